package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/faucetdb/frontdesk/internal/badge"
	"github.com/faucetdb/frontdesk/internal/face"
	"github.com/faucetdb/frontdesk/internal/imagestore"
	"github.com/faucetdb/frontdesk/internal/model"
	"github.com/faucetdb/frontdesk/internal/notify"
	"github.com/faucetdb/frontdesk/internal/server/middleware"
	"github.com/faucetdb/frontdesk/internal/service"
	"github.com/faucetdb/frontdesk/internal/store"
)

const (
	testJWTSecret = "test-secret-for-handler-tests-0123456789"
	testPassword  = "supersecretpassword"
)

var testNow = time.Date(2024, 3, 14, 10, 30, 0, 0, time.UTC)

// stillCamera returns the same frame on every capture.
type stillCamera struct{ frame []byte }

func (c stillCamera) Capture(context.Context) ([]byte, error) { return c.frame, nil }

// testEnv holds shared state for handler integration tests.
type testEnv struct {
	store    *store.Store
	authSvc  *service.AuthService
	visitors *service.VisitorService
	router   chi.Router

	superToken string // superuser, company 1
	deskToken  string // ordinary account, company 1
	otherToken string // ordinary account, company 2
}

// newTestEnv creates a fresh test environment with an in-memory store, real
// services and a Chi router mounted behind the authentication middleware.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.NewSQLite("") // in-memory SQLite
	if err != nil {
		t.Fatalf("store.NewSQLite: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	images, err := imagestore.NewDisk(t.TempDir())
	if err != nil {
		t.Fatalf("imagestore.NewDisk: %v", err)
	}

	authSvc := service.NewAuthService(st, testJWTSecret, service.WithBcryptCost(bcrypt.MinCost))
	visitorSvc := service.NewVisitorService(st, face.AlwaysPass{}, notify.NewLogGateway(logger), logger,
		service.VisitorConfig{StrictCheckout: true, RegistrationBaseURL: "http://desk.test"},
		service.WithImages(images),
		service.WithBadges(badge.NewRenderer(images, logger)),
		service.WithCapturer(stillCamera{frame: []byte("\xff\xd8\xff\xe0 frame")}),
		service.WithVisitorClock(func() time.Time { return testNow }),
	)

	sysHandler := NewSystemHandler(authSvc, logger)
	visHandler := NewVisitorHandler(visitorSvc, logger)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/session", sysHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(authSvc))
			r.Delete("/session", sysHandler.Logout)
			r.Get("/me", sysHandler.Me)
			r.Get("/users", sysHandler.ListUsers)
			r.Post("/users", sysHandler.CreateUser)

			r.Get("/dashboard", visHandler.Dashboard)
			r.Get("/visitors", visHandler.List)
			r.Post("/visitors", visHandler.PreRegister)
			r.Post("/visitors/walk-in", visHandler.WalkIn)
			r.Post("/visitors/walk-in/face", visHandler.UploadWalkInFace)
			r.Post("/visitors/walk-in/capture", visHandler.CaptureWalkInFace)
			r.Get("/visitors/{id}", visHandler.Get)
			r.Post("/visitors/{id}/check-in", visHandler.CheckIn)
			r.Post("/visitors/{id}/check-out", visHandler.CheckOut)
			r.Post("/visitors/{id}/face", visHandler.UploadFace)
			r.Post("/visitors/{id}/capture", visHandler.CaptureFace)
			r.Get("/visitors/{id}/badge", visHandler.Badge)
		})
	})

	e := &testEnv{store: st, authSvc: authSvc, visitors: visitorSvc, router: r}
	e.superToken = e.seedUser(t, "super", 1, true)
	e.deskToken = e.seedUser(t, "desk", 1, false)
	e.otherToken = e.seedUser(t, "elsewhere", 2, false)
	return e
}

// seedUser creates an account and returns a session token for it.
func (e *testEnv) seedUser(t *testing.T, username string, companyID int64, superuser bool) string {
	t.Helper()
	if _, err := e.authSvc.CreateAccount(context.Background(), username, testPassword, companyID, superuser); err != nil {
		t.Fatalf("seedUser %s: %v", username, err)
	}
	sess, err := e.authSvc.Authenticate(context.Background(), username, testPassword)
	if err != nil {
		t.Fatalf("seedUser %s authenticate: %v", username, err)
	}
	return sess.Token
}

// seedVisitor pre-registers a visitor in company 1.
func (e *testEnv) seedVisitor(t *testing.T, name string) *model.Visitor {
	t.Helper()
	v, err := e.visitors.PreRegister(context.Background(), 1, model.VisitorInput{
		Name:       name,
		Email:      "visitor@example.com",
		Phone:      "+15550100",
		Department: "Sales",
	})
	if err != nil {
		t.Fatalf("seedVisitor: %v", err)
	}
	return v
}

// do executes an HTTP request against the test router and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path, token string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func toJSON(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("toJSON: %v", err)
	}
	return buf
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}

func errorMessageOf(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp model.ErrorResponse
	decodeJSON(t, rr, &resp)
	if resp.Error.Code != rr.Code {
		t.Errorf("error.code = %d, want %d", resp.Error.Code, rr.Code)
	}
	return resp.Error.Message
}
