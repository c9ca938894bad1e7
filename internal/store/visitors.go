package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/faucetdb/frontdesk/internal/model"
)

const visitorColumns = `id, name, email, phone, company_id, pre_registered, notified,
	check_in, check_out, temperature, health_status, face_image_path,
	visit_purpose, person_to_meet, department, company_name, visitor_location,
	version, created_at`

// CreateVisitor inserts a visitor record in a single statement. ID, Version
// and CreatedAt on v are populated after a successful insert.
func (s *Store) CreateVisitor(ctx context.Context, v *model.Visitor) error {
	v.CreatedAt = time.Now().UTC()
	v.Version = 1

	const q = `INSERT INTO visitors
		(name, email, phone, company_id, pre_registered, notified,
		 check_in, check_out, temperature, health_status, face_image_path,
		 visit_purpose, person_to_meet, department, company_name, visitor_location,
		 version, created_at)
		VALUES
		(:name, :email, :phone, :company_id, :pre_registered, :notified,
		 :check_in, :check_out, :temperature, :health_status, :face_image_path,
		 :visit_purpose, :person_to_meet, :department, :company_name, :visitor_location,
		 :version, :created_at)`

	id, err := s.insert(ctx, q, v)
	if err != nil {
		return fmt.Errorf("insert visitor: %w", err)
	}
	v.ID = id
	return nil
}

// GetVisitor returns a visitor by ID within a company. Visitors belonging to
// other companies are reported as ErrNotFound.
func (s *Store) GetVisitor(ctx context.Context, companyID, id int64) (*model.Visitor, error) {
	var v model.Visitor
	q := s.db.Rebind("SELECT " + visitorColumns + " FROM visitors WHERE id = ? AND company_id = ?")
	if err := s.db.GetContext(ctx, &v, q, id, companyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get visitor: %w", err)
	}
	return &v, nil
}

// UpdateVisitor writes the mutable lifecycle fields of v, conditional on the
// row still carrying v.Version. On success v.Version is advanced. If the row
// changed underneath, ErrVersionConflict is returned and nothing is written.
func (s *Store) UpdateVisitor(ctx context.Context, v *model.Visitor) error {
	const q = `UPDATE visitors SET
		notified = :notified,
		check_in = :check_in,
		check_out = :check_out,
		temperature = :temperature,
		health_status = :health_status,
		face_image_path = :face_image_path,
		version = version + 1
		WHERE id = :id AND company_id = :company_id AND version = :version`

	result, err := s.db.NamedExecContext(ctx, q, v)
	if err != nil {
		return fmt.Errorf("update visitor: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update visitor rows affected: %w", err)
	}
	if n == 0 {
		if _, err := s.GetVisitor(ctx, v.CompanyID, v.ID); err != nil {
			return err
		}
		return ErrVersionConflict
	}
	v.Version++
	return nil
}

// ListVisitors returns all visitors of a company in insertion order.
func (s *Store) ListVisitors(ctx context.Context, companyID int64) ([]model.Visitor, error) {
	return s.ReportVisitors(ctx, companyID, model.ReportQuery{})
}

// ReportVisitors returns the visitors of a company matching q, ordered by id.
func (s *Store) ReportVisitors(ctx context.Context, companyID int64, q model.ReportQuery) ([]model.Visitor, error) {
	where := []string{"company_id = ?"}
	args := []interface{}{companyID}

	if !q.From.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, q.From.UTC())
	}
	if !q.To.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, q.To.UTC())
	}
	if q.Department != "" {
		where = append(where, "department = ?")
		args = append(args, q.Department)
	}
	switch q.Status {
	case "":
	case model.StatusCheckedOut:
		where = append(where, "check_out IS NOT NULL")
	case model.StatusCheckedIn:
		where = append(where, "check_in IS NOT NULL AND check_out IS NULL")
	case model.StatusPreRegistered:
		where = append(where, "check_in IS NULL AND check_out IS NULL AND pre_registered = ?")
		args = append(args, true)
	case model.StatusRegistered:
		where = append(where, "check_in IS NULL AND check_out IS NULL AND pre_registered = ?")
		args = append(args, false)
	default:
		return nil, fmt.Errorf("unknown visitor status %q", q.Status)
	}

	query := s.db.Rebind("SELECT " + visitorColumns + " FROM visitors WHERE " +
		strings.Join(where, " AND ") + " ORDER BY id")

	visitors := []model.Visitor{}
	if err := s.db.SelectContext(ctx, &visitors, query, args...); err != nil {
		return nil, fmt.Errorf("list visitors: %w", err)
	}
	return visitors, nil
}

// DashboardCounts aggregates a company's visitors. Today counts visitors whose
// check-in falls within [dayStart, dayEnd).
func (s *Store) DashboardCounts(ctx context.Context, companyID int64, dayStart, dayEnd time.Time) (*model.DashboardCounts, error) {
	q := s.db.Rebind(`SELECT
		COUNT(*) AS total,
		COALESCE(SUM(CASE WHEN check_in IS NOT NULL THEN 1 ELSE 0 END), 0) AS checked_in,
		COALESCE(SUM(CASE WHEN check_out IS NOT NULL THEN 1 ELSE 0 END), 0) AS checked_out,
		COALESCE(SUM(CASE WHEN check_in >= ? AND check_in < ? THEN 1 ELSE 0 END), 0) AS today,
		COALESCE(SUM(CASE WHEN pre_registered = ? THEN 1 ELSE 0 END), 0) AS pre_registered,
		COALESCE(SUM(CASE WHEN notified = ? THEN 1 ELSE 0 END), 0) AS notified
		FROM visitors WHERE company_id = ?`)

	var counts model.DashboardCounts
	if err := s.db.GetContext(ctx, &counts, q, dayStart.UTC(), dayEnd.UTC(), true, true, companyID); err != nil {
		return nil, fmt.Errorf("dashboard counts: %w", err)
	}
	return &counts, nil
}
