package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/faucetdb/frontdesk/internal/face"
	"github.com/faucetdb/frontdesk/internal/model"
	"github.com/faucetdb/frontdesk/internal/server/middleware"
	"github.com/faucetdb/frontdesk/internal/service"
)

// writeJSON serializes v as JSON and writes it to the response with the given
// HTTP status code. The Content-Type header is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a structured error response using the standard error
// envelope. The optional ctx map provides additional context fields.
func writeError(w http.ResponseWriter, code int, message string, ctx ...map[string]interface{}) {
	var ctxMap map[string]interface{}
	if len(ctx) > 0 {
		ctxMap = ctx[0]
	}
	writeJSON(w, code, model.ErrorResponse{
		Error: model.ErrorDetail{
			Code:    code,
			Message: message,
			Context: ctxMap,
		},
	})
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrAuthFailure), errors.Is(err, service.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrVisitorNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrDuplicateUsername),
		errors.Is(err, service.ErrConflict),
		errors.Is(err, service.ErrAlreadyCheckedIn),
		errors.Is(err, service.ErrAlreadyCheckedOut),
		errors.Is(err, service.ErrNotCheckedIn):
		return http.StatusConflict
	case errors.Is(err, service.ErrFaceNotDetected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrNotConfigured):
		return http.StatusNotImplemented
	case errors.Is(err, face.ErrCaptureTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError writes err in the error envelope. Internal failures are
// logged and reported without their cause.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err,
		)
		writeError(w, status, "Internal server error")
		return
	}
	writeError(w, status, errorMessage(err))
}

// errorMessage capitalizes the service error text for display.
func errorMessage(err error) string {
	msg := err.Error()
	if msg == "" {
		return msg
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

// readJSON decodes the request body as JSON into v. The body is closed after
// decoding regardless of success or failure.
func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// queryString extracts a string query parameter.
func queryString(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

// queryBool extracts a boolean query parameter. Returns false if the parameter
// is missing or not "true"/"1".
func queryBool(r *http.Request, key string) bool {
	val := r.URL.Query().Get(key)
	return val == "true" || val == "1"
}

// queryTime parses an RFC3339 timestamp or a YYYY-MM-DD date (midnight UTC).
// A missing parameter yields the zero time.
func queryTime(r *http.Request, key string) (time.Time, error) {
	val := queryString(r, key)
	if val == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(time.DateOnly, val, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be RFC3339 or YYYY-MM-DD, got %q", key, val)
	}
	return t, nil
}

// pathID extracts a positive integer URL parameter.
func pathID(r *http.Request, key string) (int64, error) {
	raw := chi.URLParam(r, key)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return id, nil
}

// principal returns the authenticated caller. Routes using it are mounted
// behind middleware.Authenticate.
func principal(r *http.Request) *middleware.Principal {
	if p := middleware.GetPrincipal(r.Context()); p != nil {
		return p
	}
	return &middleware.Principal{}
}

// listMeta builds the meta block for list responses.
func listMeta(count int, start time.Time) *model.ResponseMeta {
	return &model.ResponseMeta{
		Count:  count,
		TookMs: float64(time.Since(start).Microseconds()) / 1000.0,
	}
}
