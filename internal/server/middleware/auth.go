package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/faucetdb/frontdesk/internal/model"
	"github.com/faucetdb/frontdesk/internal/service"
)

type contextKeyAuth string

const (
	// AuthPrincipalKey is the context key for the authenticated principal.
	AuthPrincipalKey contextKeyAuth = "auth_principal"
)

// Principal represents the staff account making the request.
type Principal struct {
	UserID      int64
	Username    string
	CompanyID   int64
	IsSuperuser bool
}

// User returns the principal as a model.User carrying only identity fields.
func (p *Principal) User() *model.User {
	return &model.User{ID: p.UserID, Username: p.Username, CompanyID: p.CompanyID, IsSuperuser: p.IsSuperuser}
}

// TokenResolver turns a session token into the account it was issued for.
type TokenResolver interface {
	CurrentUser(ctx context.Context, token string) (*model.User, error)
}

// Authenticate returns an HTTP middleware that requires a Bearer session
// token. The token is verified and the account reloaded on every request,
// so deleted accounts lose access immediately. On success a Principal is
// attached to the request context; otherwise a 401 JSON error is written.
func Authenticate(auth TokenResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeAuthError(w, http.StatusUnauthorized, "Authentication required. Provide a Bearer token.")
				return
			}
			token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

			u, err := auth.CurrentUser(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, service.ErrExpiredToken):
					writeAuthError(w, http.StatusUnauthorized, "Token expired")
				case errors.Is(err, service.ErrInvalidToken), errors.Is(err, service.ErrAuthFailure):
					writeAuthError(w, http.StatusUnauthorized, "Invalid token")
				default:
					writeAuthError(w, http.StatusInternalServerError, "Authentication error")
				}
				return
			}

			principal := &Principal{
				UserID:      u.ID,
				Username:    u.Username,
				CompanyID:   u.CompanyID,
				IsSuperuser: u.IsSuperuser,
			}
			ctx := context.WithValue(r.Context(), AuthPrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSuperuser returns an HTTP middleware that admits only superusers.
// It must be used after Authenticate in the middleware chain.
func RequireSuperuser() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := GetPrincipal(r.Context())
			if principal == nil || !principal.IsSuperuser {
				writeAuthError(w, http.StatusForbidden, "Superuser access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetPrincipal extracts the authenticated principal from the context.
// Returns nil if no principal is present (i.e., unauthenticated request).
func GetPrincipal(ctx context.Context) *Principal {
	if p, ok := ctx.Value(AuthPrincipalKey).(*Principal); ok {
		return p
	}
	return nil
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, AuthPrincipalKey, p)
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.ErrorResponse{
		Error: model.ErrorDetail{Code: status, Message: message},
	})
}
