package handler

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/faucetdb/frontdesk/internal/openapi"
)

// OpenAPIHandler serves the API description. The document is built once on
// first request.
type OpenAPIHandler struct {
	baseURL string
	version string
	logger  *slog.Logger

	once sync.Once
	doc  *openapi3.T
	err  error
}

// NewOpenAPIHandler creates a new OpenAPIHandler.
func NewOpenAPIHandler(baseURL, version string, logger *slog.Logger) *OpenAPIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAPIHandler{baseURL: baseURL, version: version, logger: logger}
}

// ServeSpec returns the OpenAPI document.
// GET /openapi.json
func (h *OpenAPIHandler) ServeSpec(w http.ResponseWriter, r *http.Request) {
	h.once.Do(func() {
		h.doc, h.err = openapi.Generate(h.baseURL, h.version)
	})
	if h.err != nil {
		h.logger.ErrorContext(r.Context(), "generate openapi document", "error", h.err)
		writeError(w, http.StatusInternalServerError, "Failed to generate API description")
		return
	}
	writeJSON(w, http.StatusOK, h.doc)
}
