package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/faucetdb/frontdesk/internal/face"
	"github.com/faucetdb/frontdesk/internal/imagestore"
	"github.com/faucetdb/frontdesk/internal/model"
	"github.com/faucetdb/frontdesk/internal/store"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type sentMessage struct {
	channel string
	to      string
	subject string
	body    string
}

type recordingGateway struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (g *recordingGateway) SendEmail(_ context.Context, to, subject, body string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, sentMessage{"email", to, subject, body})
	return g.err
}

func (g *recordingGateway) SendSMS(_ context.Context, to, body string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, sentMessage{"sms", to, "", body})
	return g.err
}

type erroringVerifier struct{}

func (erroringVerifier) Verify(context.Context, string) (bool, error) {
	return true, errors.New("detector unreachable")
}

type refVerifier struct{ want string }

func (v refVerifier) Verify(_ context.Context, ref string) (bool, error) { return ref == v.want, nil }

type memImages struct {
	mu    sync.Mutex
	items map[string][]byte
}

func (m *memImages) Put(_ context.Context, key string, r io.Reader, _ string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = map[string][]byte{}
	}
	m.items["mem:"+key] = data
	return "mem:" + key, nil
}

func (m *memImages) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.items[ref]
	if !ok {
		return nil, errors.New("missing")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type fakeCapturer struct {
	data []byte
	err  error
}

func (c fakeCapturer) Capture(context.Context) ([]byte, error) { return c.data, c.err }

type fakeBadges struct{}

func (fakeBadges) Render(_ context.Context, v *model.Visitor) ([]byte, error) {
	return []byte("%PDF-" + v.Name), nil
}

// brokenStore fails every call.
type brokenStore struct{}

var errDiskFull = errors.New("disk full")

func (brokenStore) CreateVisitor(context.Context, *model.Visitor) error { return errDiskFull }
func (brokenStore) GetVisitor(context.Context, int64, int64) (*model.Visitor, error) {
	return nil, errDiskFull
}
func (brokenStore) UpdateVisitor(context.Context, *model.Visitor) error { return errDiskFull }
func (brokenStore) ListVisitors(context.Context, int64) ([]model.Visitor, error) {
	return nil, errDiskFull
}
func (brokenStore) ReportVisitors(context.Context, int64, model.ReportQuery) ([]model.Visitor, error) {
	return nil, errDiskFull
}
func (brokenStore) DashboardCounts(context.Context, int64, time.Time, time.Time) (*model.DashboardCounts, error) {
	return nil, errDiskFull
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var fixedNow = time.Date(2024, 3, 14, 10, 30, 0, 0, time.UTC)

type visitorEnv struct {
	svc      *VisitorService
	store    *store.Store
	notifier *recordingGateway
}

func newVisitorEnv(t *testing.T, verifier face.Verifier, cfg VisitorConfig, opts ...VisitorOption) *visitorEnv {
	t.Helper()
	st := newTestStore(t)
	gw := &recordingGateway{}
	opts = append([]VisitorOption{WithVisitorClock(func() time.Time { return fixedNow })}, opts...)
	svc := NewVisitorService(st, verifier, gw, slog.New(slog.NewTextHandler(io.Discard, nil)), cfg, opts...)
	return &visitorEnv{svc: svc, store: st, notifier: gw}
}

func strictConfig() VisitorConfig {
	return VisitorConfig{StrictCheckout: true, RegistrationBaseURL: "https://desk.example.com/"}
}

func ashaInput() model.VisitorInput {
	return model.VisitorInput{
		Name:         "Asha",
		Email:        "a@x.com",
		Phone:        "555",
		VisitPurpose: "Meeting",
		PersonToMeet: "Ravi",
		Department:   "Sales",
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestPreRegister(t *testing.T) {
	env := newVisitorEnv(t, face.AlwaysPass{}, strictConfig())
	ctx := context.Background()

	v, err := env.svc.PreRegister(ctx, 1, ashaInput())
	if err != nil {
		t.Fatalf("PreRegister: %v", err)
	}
	if !v.PreRegistered || !v.Notified {
		t.Errorf("flags: pre_registered=%v notified=%v", v.PreRegistered, v.Notified)
	}
	if v.CheckIn != nil || v.CheckOut != nil {
		t.Error("pre-registered visitor should have no timestamps")
	}
	if v.Status() != model.StatusPreRegistered {
		t.Errorf("status: got %q", v.Status())
	}

	if len(env.notifier.sent) != 2 {
		t.Fatalf("sent %d notifications, want 2", len(env.notifier.sent))
	}
	sms, email := env.notifier.sent[0], env.notifier.sent[1]
	if sms.channel != "sms" || sms.to != "555" || sms.body != "Hello Asha, you have been pre-registered." {
		t.Errorf("sms: %+v", sms)
	}
	wantBody := "Please register yourself using this link: https://desk.example.com/register/" + itoa(v.ID)
	if email.channel != "email" || email.to != "a@x.com" || email.subject != "Visitor Registration" || email.body != wantBody {
		t.Errorf("email: %+v", email)
	}
}

func TestPreRegisterNotificationFailureIgnored(t *testing.T) {
	env := newVisitorEnv(t, face.AlwaysPass{}, strictConfig())
	env.notifier.err = errors.New("gateway down")

	v, err := env.svc.PreRegister(context.Background(), 1, ashaInput())
	if err != nil {
		t.Fatalf("PreRegister should succeed despite notification errors: %v", err)
	}
	if _, err := env.store.GetVisitor(context.Background(), 1, v.ID); err != nil {
		t.Errorf("visitor not persisted: %v", err)
	}
}

func TestPreRegisterValidation(t *testing.T) {
	env := newVisitorEnv(t, face.AlwaysPass{}, strictConfig())

	tests := []struct {
		name   string
		mutate func(*model.VisitorInput)
	}{
		{"missing name", func(in *model.VisitorInput) { in.Name = " " }},
		{"missing email", func(in *model.VisitorInput) { in.Email = "" }},
		{"missing phone", func(in *model.VisitorInput) { in.Phone = "" }},
		{"bad email", func(in *model.VisitorInput) { in.Email = "not-an-email" }},
		{"display name email", func(in *model.VisitorInput) { in.Email = "Asha <a@x.com>" }},
		{"two addresses", func(in *model.VisitorInput) { in.Email = "a@x.com, b@x.com" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := ashaInput()
			tt.mutate(&in)
			if _, err := env.svc.PreRegister(context.Background(), 1, in); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("got %v, want ErrInvalidInput", err)
			}
		})
	}
	if len(env.notifier.sent) != 0 {
		t.Errorf("no notifications expected, got %d", len(env.notifier.sent))
	}
}

func TestAshaScenario(t *testing.T) {
	now := fixedNow
	env := newVisitorEnv(t, face.AlwaysPass{}, strictConfig(), WithVisitorClock(func() time.Time { return now }))
	ctx := context.Background()

	v, err := env.svc.PreRegister(ctx, 1, ashaInput())
	if err != nil {
		t.Fatalf("PreRegister: %v", err)
	}

	in, err := env.svc.CheckIn(ctx, 1, v.ID, model.CheckInInput{Temperature: 98.6, HealthStatus: "Normal", FaceImageRef: "img1"})
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if in.CheckIn == nil || !in.CheckIn.Equal(fixedNow) {
		t.Errorf("check_in: got %v, want %v", in.CheckIn, fixedNow)
	}
	if in.Temperature == nil || *in.Temperature != 98.6 {
		t.Errorf("temperature: %v", in.Temperature)
	}
	if in.HealthStatus == nil || *in.HealthStatus != "Normal" {
		t.Errorf("health_status: %v", in.HealthStatus)
	}
	if in.FaceImagePath == nil || *in.FaceImagePath != "img1" {
		t.Errorf("face_image_path: %v", in.FaceImagePath)
	}

	now = fixedNow.Add(45 * time.Minute)
	out, err := env.svc.CheckOut(ctx, 1, v.ID)
	if err != nil {
		t.Fatalf("CheckOut: %v", err)
	}
	if out.CheckOut == nil || !out.CheckOut.Equal(now) {
		t.Errorf("check_out: got %v, want %v", out.CheckOut, now)
	}
	if !out.CheckOut.After(*out.CheckIn) {
		t.Errorf("check_out %v should be later than check_in %v", out.CheckOut, out.CheckIn)
	}

	stored, err := env.svc.Get(ctx, 1, v.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status() != model.StatusCheckedOut {
		t.Errorf("status: got %q", stored.Status())
	}
	if stored.Version != 3 {
		t.Errorf("version: got %d, want 3", stored.Version)
	}
}

func TestCheckInFaceNotDetected(t *testing.T) {
	for name, verifier := range map[string]face.Verifier{
		"rejects":  face.AlwaysFail{},
		"errors":   erroringVerifier{},
		"wrongref": refVerifier{want: "good"},
	} {
		t.Run(name, func(t *testing.T) {
			env := newVisitorEnv(t, verifier, strictConfig())
			ctx := context.Background()

			v, err := env.svc.PreRegister(ctx, 1, ashaInput())
			if err != nil {
				t.Fatalf("PreRegister: %v", err)
			}
			_, err = env.svc.CheckIn(ctx, 1, v.ID, model.CheckInInput{Temperature: 98.6, FaceImageRef: "bad"})
			if !errors.Is(err, ErrFaceNotDetected) {
				t.Fatalf("got %v, want ErrFaceNotDetected", err)
			}

			stored, err := env.svc.Get(ctx, 1, v.ID)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if stored.CheckIn != nil || stored.Temperature != nil || stored.Version != 1 {
				t.Errorf("record changed: %+v", stored)
			}
		})
	}
}

func TestCheckInRejectsFaceBeforeLookup(t *testing.T) {
	env := newVisitorEnv(t, face.AlwaysFail{}, strictConfig())
	_, err := env.svc.CheckIn(context.Background(), 1, 999, model.CheckInInput{})
	if !errors.Is(err, ErrFaceNotDetected) {
		t.Errorf("got %v, want ErrFaceNotDetected", err)
	}
}

func TestCheckInStateErrors(t *testing.T) {
	env := newVisitorEnv(t, face.AlwaysPass{}, strictConfig())
	ctx := context.Background()

	v, err := env.svc.PreRegister(ctx, 1, ashaInput())
	if err != nil {
		t.Fatalf("PreRegister: %v", err)
	}
	if _, err := env.svc.CheckIn(ctx, 1, v.ID, model.CheckInInput{Temperature: 97}); err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if _, err := env.svc.CheckIn(ctx, 1, v.ID, model.CheckInInput{Temperature: 97}); !errors.Is(err, ErrAlreadyCheckedIn) {
		t.Errorf("second check-in: got %v, want ErrAlreadyCheckedIn", err)
	}
	if _, err := env.svc.CheckOut(ctx, 1, v.ID); err != nil {
		t.Fatalf("CheckOut: %v", err)
	}
	if _, err := env.svc.CheckIn(ctx, 1, v.ID, model.CheckInInput{Temperature: 97}); !errors.Is(err, ErrAlreadyCheckedOut) {
		t.Errorf("check-in after check-out: got %v, want ErrAlreadyCheckedOut", err)
	}
	if _, err := env.svc.CheckOut(ctx, 1, v.ID); !errors.Is(err, ErrAlreadyCheckedOut) {
		t.Errorf("second check-out: got %v, want ErrAlreadyCheckedOut", err)
	}
	if _, err := env.svc.CheckIn(ctx, 1, 12345, model.CheckInInput{}); !errors.Is(err, ErrVisitorNotFound) {
		t.Errorf("unknown visitor: got %v, want ErrVisitorNotFound", err)
	}
}

func TestStrictCheckOutNeverCheckedIn(t *testing.T) {
	env := newVisitorEnv(t, face.AlwaysPass{}, strictConfig())
	ctx := context.Background()

	v, err := env.svc.PreRegister(ctx, 1, ashaInput())
	if err != nil {
		t.Fatalf("PreRegister: %v", err)
	}
	if _, err := env.svc.CheckOut(ctx, 1, v.ID); !errors.Is(err, ErrNotCheckedIn) {
		t.Fatalf("got %v, want ErrNotCheckedIn", err)
	}
	stored, _ := env.svc.Get(ctx, 1, v.ID)
	if stored.CheckOut != nil {
		t.Error("check_out should not be set")
	}
}

func TestLenientCheckOutNeverCheckedIn(t *testing.T) {
	env := newVisitorEnv(t, face.AlwaysPass{}, VisitorConfig{StrictCheckout: false})
	ctx := context.Background()

	v, err := env.svc.PreRegister(ctx, 1, ashaInput())
	if err != nil {
		t.Fatalf("PreRegister: %v", err)
	}
	out, err := env.svc.CheckOut(ctx, 1, v.ID)
	if err != nil {
		t.Fatalf("CheckOut: %v", err)
	}
	if out.CheckOut == nil || out.CheckIn != nil {
		t.Errorf("lenient check-out: check_in=%v check_out=%v", out.CheckIn, out.CheckOut)
	}

	counts, err := env.svc.DashboardCounts(ctx, 1, fixedNow)
	if err != nil {
		t.Fatalf("DashboardCounts: %v", err)
	}
	if counts.CheckedOut <= counts.CheckedIn {
		t.Errorf("expected checked_out > checked_in, got %+v", counts)
	}
}

func TestWalkIn(t *testing.T) {
	env := newVisitorEnv(t, face.AlwaysPass{}, strictConfig())
	ctx := context.Background()

	v, err := env.svc.WalkIn(ctx, 1, model.VisitorInput{Name: "Bo"}, model.CheckInInput{Temperature: 97.9, HealthStatus: "Normal"})
	if err != nil {
		t.Fatalf("WalkIn: %v", err)
	}
	if v.PreRegistered || v.CheckIn == nil || v.Status() != model.StatusCheckedIn {
		t.Errorf("walk-in should be checked in and not pre-registered: %+v", v)
	}
	if len(env.notifier.sent) != 0 {
		t.Errorf("walk-in should not notify, sent %d", len(env.notifier.sent))
	}

	stored, err := env.svc.Get(ctx, 1, v.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Version != 1 {
		t.Errorf("walk-in should be a single insert, version=%d", stored.Version)
	}
}

func TestWalkInFaceRejectedWritesNothing(t *testing.T) {
	env := newVisitorEnv(t, face.AlwaysFail{}, strictConfig())
	ctx := context.Background()

	if _, err := env.svc.WalkIn(ctx, 1, model.VisitorInput{Name: "Bo"}, model.CheckInInput{}); !errors.Is(err, ErrFaceNotDetected) {
		t.Fatalf("got %v, want ErrFaceNotDetected", err)
	}
	list, err := env.svc.ListForCompany(ctx, 1)
	if err != nil {
		t.Fatalf("ListForCompany: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected no visitors, got %d", len(list))
	}
}

func TestCompanyScoping(t *testing.T) {
	env := newVisitorEnv(t, face.AlwaysPass{}, strictConfig())
	ctx := context.Background()

	v, err := env.svc.PreRegister(ctx, 1, ashaInput())
	if err != nil {
		t.Fatalf("PreRegister: %v", err)
	}
	if _, err := env.svc.Get(ctx, 2, v.ID); !errors.Is(err, ErrVisitorNotFound) {
		t.Errorf("Get: got %v, want ErrVisitorNotFound", err)
	}
	if _, err := env.svc.CheckIn(ctx, 2, v.ID, model.CheckInInput{}); !errors.Is(err, ErrVisitorNotFound) {
		t.Errorf("CheckIn: got %v, want ErrVisitorNotFound", err)
	}
	if _, err := env.svc.CheckOut(ctx, 2, v.ID); !errors.Is(err, ErrVisitorNotFound) {
		t.Errorf("CheckOut: got %v, want ErrVisitorNotFound", err)
	}
	list, _ := env.svc.ListForCompany(ctx, 2)
	if len(list) != 0 {
		t.Errorf("company 2 sees %d visitors", len(list))
	}
}

func TestCheckOutConflict(t *testing.T) {
	env := newVisitorEnv(t, face.AlwaysPass{}, strictConfig())
	ctx := context.Background()

	v, err := env.svc.WalkIn(ctx, 1, model.VisitorInput{Name: "Bo"}, model.CheckInInput{})
	if err != nil {
		t.Fatalf("WalkIn: %v", err)
	}

	// A stale copy written after a concurrent check-out must not win.
	stale := *v
	if _, err := env.svc.CheckOut(ctx, 1, v.ID); err != nil {
		t.Fatalf("CheckOut: %v", err)
	}
	stale.Temperature = nil
	if err := env.svc.update(ctx, &stale); !errors.Is(err, ErrConflict) {
		t.Errorf("got %v, want ErrConflict", err)
	}
}

func TestReport(t *testing.T) {
	env := newVisitorEnv(t, face.AlwaysPass{}, strictConfig())
	ctx := context.Background()

	a, _ := env.svc.PreRegister(ctx, 1, ashaInput())
	if _, err := env.svc.WalkIn(ctx, 1, model.VisitorInput{Name: "Bo", Department: "Ops"}, model.CheckInInput{}); err != nil {
		t.Fatalf("WalkIn: %v", err)
	}

	got, err := env.svc.Report(ctx, 1, model.ReportQuery{Status: model.StatusPreRegistered})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if len(got) != 1 || got[0].ID != a.ID {
		t.Errorf("pre_registered report: %+v", got)
	}

	if _, err := env.svc.Report(ctx, 1, model.ReportQuery{Status: "vanished"}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad status: got %v, want ErrInvalidInput", err)
	}
	q := model.ReportQuery{From: fixedNow, To: fixedNow.Add(-time.Hour)}
	if _, err := env.svc.Report(ctx, 1, q); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("inverted range: got %v, want ErrInvalidInput", err)
	}
}

func TestDashboardToday(t *testing.T) {
	env := newVisitorEnv(t, face.AlwaysPass{}, strictConfig())
	ctx := context.Background()

	if _, err := env.svc.WalkIn(ctx, 1, model.VisitorInput{Name: "Bo"}, model.CheckInInput{}); err != nil {
		t.Fatalf("WalkIn: %v", err)
	}
	if _, err := env.svc.PreRegister(ctx, 1, ashaInput()); err != nil {
		t.Fatalf("PreRegister: %v", err)
	}

	counts, err := env.svc.DashboardCounts(ctx, 1, fixedNow)
	if err != nil {
		t.Fatalf("DashboardCounts: %v", err)
	}
	want := model.DashboardCounts{Total: 2, CheckedIn: 1, Today: 1, PreRegistered: 1, Notified: 1}
	if *counts != want {
		t.Errorf("got %+v, want %+v", *counts, want)
	}

	tomorrow, err := env.svc.DashboardCounts(ctx, 1, fixedNow.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("DashboardCounts: %v", err)
	}
	if tomorrow.Today != 0 {
		t.Errorf("tomorrow today: got %d, want 0", tomorrow.Today)
	}
}

func TestStoreFailuresAreInternal(t *testing.T) {
	svc := NewVisitorService(brokenStore{}, face.AlwaysPass{}, &recordingGateway{}, nil, strictConfig())
	ctx := context.Background()

	_, err := svc.PreRegister(ctx, 1, ashaInput())
	if !errors.Is(err, ErrInternal) || !errors.Is(err, errDiskFull) {
		t.Errorf("PreRegister: got %v, want ErrInternal wrapping cause", err)
	}
	if _, err := svc.Get(ctx, 1, 1); !errors.Is(err, ErrInternal) {
		t.Errorf("Get: got %v", err)
	}
	if _, err := svc.ListForCompany(ctx, 1); !errors.Is(err, ErrInternal) {
		t.Errorf("ListForCompany: got %v", err)
	}
	if _, err := svc.DashboardCounts(ctx, 1, fixedNow); !errors.Is(err, ErrInternal) {
		t.Errorf("DashboardCounts: got %v", err)
	}
}

func TestBadge(t *testing.T) {
	env := newVisitorEnv(t, face.AlwaysPass{}, strictConfig(), WithBadges(fakeBadges{}))
	ctx := context.Background()

	v, _ := env.svc.PreRegister(ctx, 1, ashaInput())
	pdf, err := env.svc.Badge(ctx, 1, v.ID)
	if err != nil {
		t.Fatalf("Badge: %v", err)
	}
	if string(pdf) != "%PDF-Asha" {
		t.Errorf("pdf: %q", pdf)
	}
	if _, err := env.svc.Badge(ctx, 2, v.ID); !errors.Is(err, ErrVisitorNotFound) {
		t.Errorf("other company: got %v", err)
	}

	bare := newVisitorEnv(t, face.AlwaysPass{}, strictConfig())
	if _, err := bare.svc.Badge(ctx, 1, v.ID); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("no renderer: got %v, want ErrNotConfigured", err)
	}
}

func TestAttachFaceThenCheckIn(t *testing.T) {
	images := &memImages{}
	env := newVisitorEnv(t, face.AlwaysPass{}, strictConfig(), WithImages(images))
	ctx := context.Background()

	v, _ := env.svc.PreRegister(ctx, 1, ashaInput())
	ref, err := env.svc.AttachFace(ctx, 1, v.ID, strings.NewReader("jpeg-bytes"), "image/jpeg")
	if err != nil {
		t.Fatalf("AttachFace: %v", err)
	}
	if !strings.HasPrefix(ref, "mem:images/company_1/visitor_") || !strings.HasSuffix(ref, ".jpg") {
		t.Errorf("ref: %q", ref)
	}

	in, err := env.svc.CheckIn(ctx, 1, v.ID, model.CheckInInput{Temperature: 98, FaceImageRef: ref})
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if in.FaceImagePath == nil || *in.FaceImagePath != ref {
		t.Errorf("face_image_path: %v", in.FaceImagePath)
	}

	if _, err := env.svc.AttachFace(ctx, 1, v.ID, strings.NewReader(""), "image/jpeg"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty upload: got %v", err)
	}
}

func TestCaptureFace(t *testing.T) {
	ctx := context.Background()

	t.Run("stores frame", func(t *testing.T) {
		images := &memImages{}
		env := newVisitorEnv(t, face.AlwaysPass{}, strictConfig(),
			WithImages(images), WithCapturer(fakeCapturer{data: []byte("frame")}))
		v, _ := env.svc.PreRegister(ctx, 1, ashaInput())

		ref, err := env.svc.CaptureFace(ctx, 1, v.ID)
		if err != nil {
			t.Fatalf("CaptureFace: %v", err)
		}
		rc, err := images.Open(ctx, ref)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		defer rc.Close()
		data, _ := io.ReadAll(rc)
		if string(data) != "frame" {
			t.Errorf("stored %q", data)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		env := newVisitorEnv(t, face.AlwaysPass{}, strictConfig(),
			WithImages(&memImages{}), WithCapturer(fakeCapturer{err: face.ErrCaptureTimeout}))
		v, _ := env.svc.PreRegister(ctx, 1, ashaInput())

		if _, err := env.svc.CaptureFace(ctx, 1, v.ID); !errors.Is(err, face.ErrCaptureTimeout) {
			t.Errorf("got %v, want ErrCaptureTimeout", err)
		}
	})

	t.Run("not configured", func(t *testing.T) {
		env := newVisitorEnv(t, face.AlwaysPass{}, strictConfig())
		if _, err := env.svc.CaptureFace(ctx, 1, 1); !errors.Is(err, ErrNotConfigured) {
			t.Errorf("got %v, want ErrNotConfigured", err)
		}
	})
}

func TestCheckInRejectsForeignFaceRef(t *testing.T) {
	images := &memImages{}
	env := newVisitorEnv(t, face.AlwaysPass{}, strictConfig(), WithImages(images))
	ctx := context.Background()

	asha, _ := env.svc.PreRegister(ctx, 1, ashaInput())
	other, _ := env.svc.PreRegister(ctx, 1, ashaInput())
	otherRef, err := env.svc.AttachFace(ctx, 1, other.ID, strings.NewReader("jpeg"), "image/jpeg")
	if err != nil {
		t.Fatalf("AttachFace: %v", err)
	}
	walkInRef, err := env.svc.StageWalkInFace(ctx, 1, strings.NewReader("jpeg"), "image/jpeg")
	if err != nil {
		t.Fatalf("StageWalkInFace: %v", err)
	}

	for name, ref := range map[string]string{
		"other visitor":   otherRef,
		"staged walk-in":  walkInRef,
		"unparseable":     "img1",
		"escaping":        "mem:images/company_1/visitor_" + itoa(asha.ID) + "_/../../x.jpg",
		"hand-built path": "mem:images/visitor_" + itoa(asha.ID) + "_x.jpg",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := env.svc.CheckIn(ctx, 1, asha.ID, model.CheckInInput{FaceImageRef: ref})
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("got %v, want ErrInvalidInput", err)
			}
		})
	}

	stored, _ := env.svc.Get(ctx, 1, asha.ID)
	if stored.CheckIn != nil {
		t.Error("visitor must not be checked in with a foreign image")
	}
}

func TestWalkInRejectsForeignFaceRef(t *testing.T) {
	env := newVisitorEnv(t, face.AlwaysPass{}, strictConfig(), WithImages(&memImages{}))
	ctx := context.Background()

	otherCompany, err := env.svc.StageWalkInFace(ctx, 2, strings.NewReader("jpeg"), "image/jpeg")
	if err != nil {
		t.Fatalf("StageWalkInFace: %v", err)
	}
	v, _ := env.svc.PreRegister(ctx, 1, ashaInput())
	visitorRef, _ := env.svc.AttachFace(ctx, 1, v.ID, strings.NewReader("jpeg"), "image/jpeg")

	for name, ref := range map[string]string{"other company": otherCompany, "visitor image": visitorRef} {
		t.Run(name, func(t *testing.T) {
			_, err := env.svc.WalkIn(ctx, 1, model.VisitorInput{Name: "Lee"}, model.CheckInInput{FaceImageRef: ref})
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("got %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestWalkInWithExternalDetector(t *testing.T) {
	var gotBody string
	detector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"face_detected": ` + strconv.FormatBool(gotBody == "walk-in-face") + `}`))
	}))
	defer detector.Close()

	images := &memImages{}
	verifier := face.NewExternalService(detector.URL, "", images, time.Second)
	env := newVisitorEnv(t, verifier, strictConfig(), WithImages(images), WithCapturer(fakeCapturer{data: []byte("walk-in-face")}))
	ctx := context.Background()

	if _, err := env.svc.WalkIn(ctx, 1, model.VisitorInput{Name: "Lee"}, model.CheckInInput{}); !errors.Is(err, ErrFaceNotDetected) {
		t.Fatalf("walk-in without image: got %v, want ErrFaceNotDetected", err)
	}

	ref, err := env.svc.StageWalkInFace(ctx, 1, strings.NewReader("walk-in-face"), "image/jpeg")
	if err != nil {
		t.Fatalf("StageWalkInFace: %v", err)
	}
	if !strings.HasPrefix(ref, "mem:"+imagestore.FacePrefix(1, 0)) {
		t.Errorf("ref: %q", ref)
	}

	v, err := env.svc.WalkIn(ctx, 1, model.VisitorInput{Name: "Lee", Email: "lee@example.com"}, model.CheckInInput{Temperature: 98.2, FaceImageRef: ref})
	if err != nil {
		t.Fatalf("WalkIn: %v", err)
	}
	if gotBody != "walk-in-face" {
		t.Errorf("detector received %q", gotBody)
	}
	if v.Status() != model.StatusCheckedIn || v.FaceImagePath == nil || *v.FaceImagePath != ref {
		t.Errorf("walk-in: status %q face %v", v.Status(), v.FaceImagePath)
	}

	captured, err := env.svc.CaptureWalkInFace(ctx, 1)
	if err != nil {
		t.Fatalf("CaptureWalkInFace: %v", err)
	}
	if _, err := env.svc.WalkIn(ctx, 1, model.VisitorInput{Name: "Kim"}, model.CheckInInput{FaceImageRef: captured}); err != nil {
		t.Errorf("WalkIn with captured image: %v", err)
	}
}

func TestWalkInStoresBareEmail(t *testing.T) {
	env := newVisitorEnv(t, face.AlwaysPass{}, strictConfig())
	ctx := context.Background()

	if _, err := env.svc.WalkIn(ctx, 1, model.VisitorInput{Name: "Lee", Email: "Lee <lee@example.com>"}, model.CheckInInput{}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("display-name email: got %v, want ErrInvalidInput", err)
	}
	v, err := env.svc.WalkIn(ctx, 1, model.VisitorInput{Name: "Lee", Email: " lee@example.com "}, model.CheckInInput{})
	if err != nil {
		t.Fatalf("WalkIn: %v", err)
	}
	if v.Email != "lee@example.com" {
		t.Errorf("email: %q", v.Email)
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
