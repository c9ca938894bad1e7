package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/faucetdb/frontdesk/internal/face"
	"github.com/faucetdb/frontdesk/internal/imagestore"
	"github.com/faucetdb/frontdesk/internal/model"
	"github.com/faucetdb/frontdesk/internal/notify"
	"github.com/faucetdb/frontdesk/internal/store"
)

// DefaultNotifyTimeout bounds a single notification attempt.
const DefaultNotifyTimeout = 10 * time.Second

// Notification texts sent on pre-registration.
const (
	preRegisterSMS     = "Hello %s, you have been pre-registered."
	registrationTitle  = "Visitor Registration"
	registrationBody   = "Please register yourself using this link: %s/register/%d"
	maxFaceUploadBytes = 10 << 20
)

// VisitorStore is the persistence the lifecycle manager needs.
type VisitorStore interface {
	CreateVisitor(ctx context.Context, v *model.Visitor) error
	GetVisitor(ctx context.Context, companyID, id int64) (*model.Visitor, error)
	UpdateVisitor(ctx context.Context, v *model.Visitor) error
	ListVisitors(ctx context.Context, companyID int64) ([]model.Visitor, error)
	ReportVisitors(ctx context.Context, companyID int64, q model.ReportQuery) ([]model.Visitor, error)
	DashboardCounts(ctx context.Context, companyID int64, dayStart, dayEnd time.Time) (*model.DashboardCounts, error)
}

// BadgeRenderer produces a printable badge for a visitor.
type BadgeRenderer interface {
	Render(ctx context.Context, v *model.Visitor) ([]byte, error)
}

// VisitorConfig holds the lifecycle policies.
type VisitorConfig struct {
	// StrictCheckout rejects check-out of visitors that never checked in
	// or already left. When false, check-out always stamps check_out.
	StrictCheckout bool

	// RegistrationBaseURL prefixes the link mailed to pre-registered
	// visitors.
	RegistrationBaseURL string

	NotifyTimeout time.Duration
}

// VisitorService runs the visitor lifecycle: pre-registration, walk-in,
// check-in and check-out, plus the read side used by reports and the
// dashboard.
type VisitorService struct {
	store    VisitorStore
	verifier face.Verifier
	notifier notify.Gateway
	logger   *slog.Logger
	cfg      VisitorConfig

	badges   BadgeRenderer
	images   imagestore.Store
	capturer face.Capturer
	now      func() time.Time
}

// VisitorOption configures optional collaborators of a VisitorService.
type VisitorOption func(*VisitorService)

// WithBadges enables badge rendering.
func WithBadges(r BadgeRenderer) VisitorOption {
	return func(s *VisitorService) { s.badges = r }
}

// WithImages enables face image upload and capture storage.
func WithImages(images imagestore.Store) VisitorOption {
	return func(s *VisitorService) { s.images = images }
}

// WithCapturer enables camera capture.
func WithCapturer(c face.Capturer) VisitorOption {
	return func(s *VisitorService) { s.capturer = c }
}

// WithVisitorClock replaces time.Now, for tests.
func WithVisitorClock(now func() time.Time) VisitorOption {
	return func(s *VisitorService) { s.now = now }
}

func NewVisitorService(st VisitorStore, verifier face.Verifier, notifier notify.Gateway, logger *slog.Logger, cfg VisitorConfig, opts ...VisitorOption) *VisitorService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = DefaultNotifyTimeout
	}
	cfg.RegistrationBaseURL = strings.TrimRight(cfg.RegistrationBaseURL, "/")
	s := &VisitorService{
		store:    st,
		verifier: verifier,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ---------------------------------------------------------------------------
// Registration
// ---------------------------------------------------------------------------

// PreRegister records a visitor ahead of their arrival and sends them the
// registration link. Delivery failures are logged and do not fail the call.
func (s *VisitorService) PreRegister(ctx context.Context, companyID int64, in model.VisitorInput) (*model.Visitor, error) {
	in.Normalize()
	if err := validateContact(&in); err != nil {
		return nil, err
	}

	v := newVisitor(companyID, in)
	v.PreRegistered = true
	v.Notified = true
	if err := s.store.CreateVisitor(ctx, v); err != nil {
		return nil, internalError("create visitor", err)
	}

	s.sendRegistration(ctx, v)
	return v, nil
}

// WalkIn registers and checks in an unannounced visitor in one step. The
// face gate runs before anything is written.
func (s *VisitorService) WalkIn(ctx context.Context, companyID int64, in model.VisitorInput, ci model.CheckInInput) (*model.Visitor, error) {
	in.Normalize()
	if in.Name == "" {
		return nil, invalidInput("name is required")
	}
	if in.Email != "" {
		addr, err := parseEmail(in.Email)
		if err != nil {
			return nil, err
		}
		in.Email = addr
	}
	if err := s.checkFaceRef(companyID, 0, ci.FaceImageRef); err != nil {
		return nil, err
	}
	if err := s.verifyFace(ctx, ci.FaceImageRef); err != nil {
		return nil, err
	}

	v := newVisitor(companyID, in)
	applyCheckIn(v, ci, s.now().UTC())
	if err := s.store.CreateVisitor(ctx, v); err != nil {
		return nil, internalError("create visitor", err)
	}
	return v, nil
}

func validateContact(in *model.VisitorInput) error {
	var missing []string
	if in.Name == "" {
		missing = append(missing, "name")
	}
	if in.Email == "" {
		missing = append(missing, "email")
	}
	if in.Phone == "" {
		missing = append(missing, "phone")
	}
	if len(missing) > 0 {
		return invalidInput("%s required", strings.Join(missing, ", "))
	}
	addr, err := parseEmail(in.Email)
	if err != nil {
		return err
	}
	in.Email = addr
	return nil
}

// parseEmail accepts a single bare address. Display-name forms are refused
// because the value is used verbatim as the SMTP recipient.
func parseEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Name != "" || addr.Address != raw {
		return "", invalidInput("email %q is not a valid address", raw)
	}
	return addr.Address, nil
}

func newVisitor(companyID int64, in model.VisitorInput) *model.Visitor {
	return &model.Visitor{
		Name:            in.Name,
		Email:           in.Email,
		Phone:           in.Phone,
		CompanyID:       companyID,
		VisitPurpose:    in.VisitPurpose,
		PersonToMeet:    in.PersonToMeet,
		Department:      in.Department,
		CompanyName:     in.CompanyName,
		VisitorLocation: in.VisitorLocation,
	}
}

func (s *VisitorService) sendRegistration(ctx context.Context, v *model.Visitor) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.NotifyTimeout)
	defer cancel()

	if err := s.notifier.SendSMS(ctx, v.Phone, fmt.Sprintf(preRegisterSMS, v.Name)); err != nil {
		s.logger.Warn("pre-registration sms failed", "visitor_id", v.ID, "error", err)
	}
	body := fmt.Sprintf(registrationBody, s.cfg.RegistrationBaseURL, v.ID)
	if err := s.notifier.SendEmail(ctx, v.Email, registrationTitle, body); err != nil {
		s.logger.Warn("pre-registration email failed", "visitor_id", v.ID, "error", err)
	}
}

// ---------------------------------------------------------------------------
// Check-in / check-out
// ---------------------------------------------------------------------------

// CheckIn admits a registered visitor. The face gate runs first; a rejected
// image leaves the record untouched.
func (s *VisitorService) CheckIn(ctx context.Context, companyID, visitorID int64, ci model.CheckInInput) (*model.Visitor, error) {
	if err := s.checkFaceRef(companyID, visitorID, ci.FaceImageRef); err != nil {
		return nil, err
	}
	if err := s.verifyFace(ctx, ci.FaceImageRef); err != nil {
		return nil, err
	}

	v, err := s.Get(ctx, companyID, visitorID)
	if err != nil {
		return nil, err
	}
	switch {
	case v.CheckOut != nil:
		return nil, ErrAlreadyCheckedOut
	case v.CheckIn != nil:
		return nil, ErrAlreadyCheckedIn
	}

	applyCheckIn(v, ci, s.now().UTC())
	if err := s.update(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// CheckOut stamps the departure time.
func (s *VisitorService) CheckOut(ctx context.Context, companyID, visitorID int64) (*model.Visitor, error) {
	v, err := s.Get(ctx, companyID, visitorID)
	if err != nil {
		return nil, err
	}
	if s.cfg.StrictCheckout {
		switch {
		case v.CheckIn == nil:
			return nil, ErrNotCheckedIn
		case v.CheckOut != nil:
			return nil, ErrAlreadyCheckedOut
		}
	}

	now := s.now().UTC()
	v.CheckOut = &now
	if err := s.update(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func applyCheckIn(v *model.Visitor, ci model.CheckInInput, at time.Time) {
	v.CheckIn = &at
	temp := ci.Temperature
	v.Temperature = &temp
	if hs := strings.TrimSpace(ci.HealthStatus); hs != "" {
		v.HealthStatus = &hs
	}
	if ref := strings.TrimSpace(ci.FaceImageRef); ref != "" {
		v.FaceImagePath = &ref
	}
}

// checkFaceRef ensures a reference issued by the image store belongs to the
// visitor being admitted (visitorID 0: a walk-in image staged by the same
// company). Without an image store references are opaque and pass through.
func (s *VisitorService) checkFaceRef(companyID, visitorID int64, ref string) error {
	ref = strings.TrimSpace(ref)
	if s.images == nil || ref == "" {
		return nil
	}
	key, err := imagestore.KeyOf(ref)
	if err != nil || !strings.HasPrefix(key, imagestore.FacePrefix(companyID, visitorID)) {
		return invalidInput("face image %q was not issued for this visitor", ref)
	}
	return nil
}

// verifyFace treats a verifier error as a rejection.
func (s *VisitorService) verifyFace(ctx context.Context, ref string) error {
	ok, err := s.verifier.Verify(ctx, strings.TrimSpace(ref))
	if err != nil {
		s.logger.Warn("face verification failed", "image_ref", ref, "error", err)
		return ErrFaceNotDetected
	}
	if !ok {
		return ErrFaceNotDetected
	}
	return nil
}

func (s *VisitorService) update(ctx context.Context, v *model.Visitor) error {
	err := s.store.UpdateVisitor(ctx, v)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrVersionConflict):
		return ErrConflict
	case errors.Is(err, store.ErrNotFound):
		return ErrVisitorNotFound
	default:
		return internalError("update visitor", err)
	}
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// Get returns one visitor of the company.
func (s *VisitorService) Get(ctx context.Context, companyID, visitorID int64) (*model.Visitor, error) {
	v, err := s.store.GetVisitor(ctx, companyID, visitorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrVisitorNotFound
		}
		return nil, internalError("get visitor", err)
	}
	return v, nil
}

// ListForCompany returns every visitor of the company ordered by id.
func (s *VisitorService) ListForCompany(ctx context.Context, companyID int64) ([]model.Visitor, error) {
	visitors, err := s.store.ListVisitors(ctx, companyID)
	if err != nil {
		return nil, internalError("list visitors", err)
	}
	return visitors, nil
}

// Report returns the company's visitors matching q, ordered by id.
func (s *VisitorService) Report(ctx context.Context, companyID int64, q model.ReportQuery) ([]model.Visitor, error) {
	if q.Status != "" && !model.IsValidStatus(q.Status) {
		return nil, invalidInput("unknown status %q", q.Status)
	}
	if !q.From.IsZero() && !q.To.IsZero() && !q.From.Before(q.To) {
		return nil, invalidInput("from must be before to")
	}
	visitors, err := s.store.ReportVisitors(ctx, companyID, q)
	if err != nil {
		return nil, internalError("report visitors", err)
	}
	return visitors, nil
}

// DashboardCounts aggregates the company's visitors. "Today" is the UTC
// calendar day containing now.
func (s *VisitorService) DashboardCounts(ctx context.Context, companyID int64, now time.Time) (*model.DashboardCounts, error) {
	now = now.UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	counts, err := s.store.DashboardCounts(ctx, companyID, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return nil, internalError("dashboard counts", err)
	}
	return counts, nil
}

// Now returns the service clock in UTC.
func (s *VisitorService) Now() time.Time {
	return s.now().UTC()
}

// ---------------------------------------------------------------------------
// Badges and face images
// ---------------------------------------------------------------------------

// Badge renders the visitor's printable badge as PDF.
func (s *VisitorService) Badge(ctx context.Context, companyID, visitorID int64) ([]byte, error) {
	if s.badges == nil {
		return nil, ErrNotConfigured
	}
	v, err := s.Get(ctx, companyID, visitorID)
	if err != nil {
		return nil, err
	}
	pdf, err := s.badges.Render(ctx, v)
	if err != nil {
		return nil, internalError("render badge", err)
	}
	return pdf, nil
}

// AttachFace stores an uploaded face image for the visitor and returns the
// reference to present at check-in.
func (s *VisitorService) AttachFace(ctx context.Context, companyID, visitorID int64, r io.Reader, contentType string) (string, error) {
	if s.images == nil {
		return "", ErrNotConfigured
	}
	if _, err := s.Get(ctx, companyID, visitorID); err != nil {
		return "", err
	}
	data, err := readFaceUpload(r)
	if err != nil {
		return "", err
	}
	return s.storeFace(ctx, companyID, visitorID, data, contentType)
}

// StageWalkInFace stores an uploaded face image for a walk-in who has no
// record yet. The reference is only accepted by WalkIn for the same company.
func (s *VisitorService) StageWalkInFace(ctx context.Context, companyID int64, r io.Reader, contentType string) (string, error) {
	if s.images == nil {
		return "", ErrNotConfigured
	}
	data, err := readFaceUpload(r)
	if err != nil {
		return "", err
	}
	return s.storeFace(ctx, companyID, 0, data, contentType)
}

func readFaceUpload(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxFaceUploadBytes+1))
	if err != nil {
		return nil, invalidInput("read image: %v", err)
	}
	if len(data) == 0 {
		return nil, invalidInput("image is empty")
	}
	if len(data) > maxFaceUploadBytes {
		return nil, invalidInput("image exceeds %d bytes", maxFaceUploadBytes)
	}
	return data, nil
}

// CaptureFace grabs a frame from the desk camera and stores it as the
// visitor's face image.
func (s *VisitorService) CaptureFace(ctx context.Context, companyID, visitorID int64) (string, error) {
	if s.capturer == nil || s.images == nil {
		return "", ErrNotConfigured
	}
	if _, err := s.Get(ctx, companyID, visitorID); err != nil {
		return "", err
	}
	return s.captureFace(ctx, companyID, visitorID)
}

// CaptureWalkInFace grabs a frame for a walk-in who has no record yet.
func (s *VisitorService) CaptureWalkInFace(ctx context.Context, companyID int64) (string, error) {
	if s.capturer == nil || s.images == nil {
		return "", ErrNotConfigured
	}
	return s.captureFace(ctx, companyID, 0)
}

func (s *VisitorService) captureFace(ctx context.Context, companyID, visitorID int64) (string, error) {
	data, err := s.capturer.Capture(ctx)
	if err != nil {
		if errors.Is(err, face.ErrCaptureTimeout) {
			return "", err
		}
		return "", internalError("capture image", err)
	}
	return s.storeFace(ctx, companyID, visitorID, data, "image/jpeg")
}

func (s *VisitorService) storeFace(ctx context.Context, companyID, visitorID int64, data []byte, contentType string) (string, error) {
	ref, err := s.images.Put(ctx, imagestore.FaceKey(companyID, visitorID, contentType), bytes.NewReader(data), contentType)
	if err != nil {
		return "", internalError("store image", err)
	}
	s.logger.Info("face image stored", "company_id", companyID, "visitor_id", visitorID, "ref", ref, "bytes", len(data))
	return ref, nil
}
