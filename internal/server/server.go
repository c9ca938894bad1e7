package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/faucetdb/frontdesk/internal/handler"
	"github.com/faucetdb/frontdesk/internal/server/middleware"
	"github.com/faucetdb/frontdesk/internal/service"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host               string
	Port               int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	ShutdownTimeout    time.Duration
	CORSOrigins        []string
	MaxBodySize        int64 // bytes
	LoginRatePerMinute int
	BaseURL            string // advertised in the OpenAPI document
	Version            string
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8080,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       60 * time.Second,
		IdleTimeout:        120 * time.Second,
		ShutdownTimeout:    30 * time.Second,
		CORSOrigins:        []string{"*"},
		MaxBodySize:        12 * 1024 * 1024, // 12MB, room for a face upload
		LoginRatePerMinute: 10,
		BaseURL:            "http://localhost:8080",
	}
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the top-level HTTP server for frontdesk. It owns the Chi router
// and the services behind it.
type Server struct {
	cfg        Config
	router     chi.Router
	store      Pinger
	authSvc    *service.AuthService
	visitors   *service.VisitorService
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, store Pinger, authSvc *service.AuthService, visitors *service.VisitorService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		store:    store,
		authSvc:  authSvc,
		visitors: visitors,
		logger:   logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if s.cfg.MaxBodySize > 0 {
		r.Use(chimw.RequestSize(s.cfg.MaxBodySize))
	}
	r.Use(chimw.Compress(5, "application/json", "text/csv"))

	// --- Health checks (no auth required) ---
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	// --- OpenAPI spec (no auth required) ---
	r.Get("/openapi.json", handler.NewOpenAPIHandler(s.cfg.BaseURL, s.cfg.Version, s.logger).ServeSpec)

	// --- API routes ---
	r.Route("/api/v1", func(r chi.Router) {
		sysHandler := handler.NewSystemHandler(s.authSvc, s.logger)
		visHandler := handler.NewVisitorHandler(s.visitors, s.logger)

		// Login is the only unauthenticated API route.
		r.With(middleware.LoginRateLimit(s.cfg.LoginRatePerMinute)).Post("/session", sysHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(s.authSvc))

			r.Delete("/session", sysHandler.Logout)
			r.Get("/me", sysHandler.Me)

			// Staff accounts
			r.With(middleware.RequireSuperuser()).Get("/users", sysHandler.ListUsers)
			r.Post("/users", sysHandler.CreateUser)

			// Visitors
			r.Get("/dashboard", visHandler.Dashboard)
			r.Get("/visitors", visHandler.List)
			r.Post("/visitors", visHandler.PreRegister)
			r.Post("/visitors/walk-in", visHandler.WalkIn)
			r.Post("/visitors/walk-in/face", visHandler.UploadWalkInFace)
			r.Post("/visitors/walk-in/capture", visHandler.CaptureWalkInFace)
			r.Route("/visitors/{id}", func(r chi.Router) {
				r.Get("/", visHandler.Get)
				r.Post("/check-in", visHandler.CheckIn)
				r.Post("/check-out", visHandler.CheckOut)
				r.Post("/face", visHandler.UploadFace)
				r.Post("/capture", visHandler.CaptureFace)
				r.Get("/badge", visHandler.Badge)
			})
		})
	})

	s.router = r
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz is a readiness probe. Returns 200 when the store answers a
// ping, or 503 otherwise.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK
	checks := map[string]string{"store": "ok"}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.logger.WarnContext(r.Context(), "readiness check failed", "error", err)
		checks["store"] = "error: " + err.Error()
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests. The caller owns and closes the store.
func (s *Server) ListenAndServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Serve(ctx)
}

// Serve runs the HTTP server until ctx is cancelled, then shuts down
// gracefully within the configured timeout.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	// Start server in background goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
