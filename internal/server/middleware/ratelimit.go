package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// LoginRateLimit limits login attempts per client IP to requestsPerMinute.
// Rejected attempts get a 429 in the standard error envelope. A
// non-positive limit disables the check.
func LoginRateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeAuthError(w, http.StatusTooManyRequests, "Too many login attempts, try again later")
		}),
	)
}
