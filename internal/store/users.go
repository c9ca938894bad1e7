package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/faucetdb/frontdesk/internal/model"
)

const userColumns = `id, username, password_hash, company_id, is_superuser, created_at`

// CreateUser inserts a new staff account. The ID and CreatedAt fields on u
// are populated after a successful insert. A taken username yields
// ErrDuplicate.
func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	u.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO users (username, password_hash, company_id, is_superuser, created_at)
		VALUES (:username, :password_hash, :company_id, :is_superuser, :created_at)`

	id, err := s.insert(ctx, q, u)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert user %q: %w", u.Username, ErrDuplicate)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	u.ID = id
	return nil
}

// GetUser returns a staff account by ID.
func (s *Store) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	q := s.db.Rebind("SELECT " + userColumns + " FROM users WHERE id = ?")
	if err := s.db.GetContext(ctx, &u, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// GetUserByUsername returns a staff account by its unique username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	q := s.db.Rebind("SELECT " + userColumns + " FROM users WHERE username = ?")
	if err := s.db.GetContext(ctx, &u, q, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return &u, nil
}

// ListUsers returns staff accounts ordered by id. A companyID of zero lists
// every company.
func (s *Store) ListUsers(ctx context.Context, companyID int64) ([]model.User, error) {
	users := []model.User{}
	var err error
	if companyID == 0 {
		err = s.db.SelectContext(ctx, &users, "SELECT "+userColumns+" FROM users ORDER BY id")
	} else {
		q := s.db.Rebind("SELECT " + userColumns + " FROM users WHERE company_id = ? ORDER BY id")
		err = s.db.SelectContext(ctx, &users, q, companyID)
	}
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}
