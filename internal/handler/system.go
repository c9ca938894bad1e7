package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/faucetdb/frontdesk/internal/model"
	"github.com/faucetdb/frontdesk/internal/service"
)

// SystemHandler serves staff sessions and account administration.
type SystemHandler struct {
	authSvc *service.AuthService
	logger  *slog.Logger
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(authSvc *service.AuthService, logger *slog.Logger) *SystemHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SystemHandler{
		authSvc: authSvc,
		logger:  logger,
	}
}

// ---------------------------------------------------------------------------
// Authentication
// ---------------------------------------------------------------------------

// loginRequest is the expected payload for the Login endpoint.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse is the response payload for a successful login.
type loginResponse struct {
	Token     string      `json:"session_token"`
	TokenType string      `json:"token_type"`
	ExpiresIn int         `json:"expires_in"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

// Login authenticates a staff account and returns a JWT session token.
// POST /api/v1/session
func (h *SystemHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	sess, err := h.authSvc.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrAuthFailure) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.logger.InfoContext(r.Context(), "staff login", "username", sess.User.Username, "company_id", sess.User.CompanyID)
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     sess.Token,
		TokenType: "bearer",
		ExpiresIn: int(h.authSvc.TokenTTL().Seconds()),
		ExpiresAt: sess.ExpiresAt,
		User:      sess.User,
	})
}

// Logout acknowledges a logout. Tokens are stateless; the client discards
// its copy and the server keeps nothing to revoke.
// DELETE /api/v1/session
func (h *SystemHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Session invalidated",
	})
}

// Me returns the authenticated account.
// GET /api/v1/me
func (h *SystemHandler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, principal(r).User())
}

// ---------------------------------------------------------------------------
// Staff accounts
// ---------------------------------------------------------------------------

// ListUsers returns the accounts visible to the caller: every account for a
// superuser, the caller's company otherwise.
// GET /api/v1/users
func (h *SystemHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	users, err := h.authSvc.ListUsers(r.Context(), principal(r).User())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: users,
		Meta:     listMeta(len(users), start),
	})
}

type createUserRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	CompanyID   int64  `json:"company_id"`
	IsSuperuser bool   `json:"is_superuser"`
}

// CreateUser creates a staff account. Non-superusers may only create
// ordinary accounts in their own company.
// POST /api/v1/users
func (h *SystemHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	actor := principal(r)
	u, err := h.authSvc.CreateUserAs(r.Context(), actor.User(), req.Username, req.Password, req.CompanyID, req.IsSuperuser)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.logger.InfoContext(r.Context(), "staff account created",
		"username", u.Username,
		"company_id", u.CompanyID,
		"is_superuser", u.IsSuperuser,
		"created_by", actor.Username,
	)
	writeJSON(w, http.StatusCreated, u)
}
