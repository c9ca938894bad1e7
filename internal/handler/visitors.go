package handler

import (
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/faucetdb/frontdesk/internal/model"
	"github.com/faucetdb/frontdesk/internal/report"
	"github.com/faucetdb/frontdesk/internal/service"
)

// maxUploadMemory bounds the in-memory part of a multipart face upload.
const maxUploadMemory = 12 << 20

// VisitorHandler serves the visitor lifecycle for the caller's company.
type VisitorHandler struct {
	visitors *service.VisitorService
	logger   *slog.Logger
}

// NewVisitorHandler creates a new VisitorHandler.
func NewVisitorHandler(visitors *service.VisitorService, logger *slog.Logger) *VisitorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &VisitorHandler{visitors: visitors, logger: logger}
}

// List returns the caller's visitors, optionally filtered. With format=csv
// the result is rendered as a CSV attachment.
// GET /api/v1/visitors
func (h *VisitorHandler) List(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	from, err := queryTime(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := model.ReportQuery{
		From:       from,
		To:         to,
		Status:     queryString(r, "status"),
		Department: queryString(r, "department"),
	}

	visitors, err := h.visitors.Report(r.Context(), principal(r).CompanyID, q)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	switch format := queryString(r, "format"); format {
	case "", "json":
		writeJSON(w, http.StatusOK, model.ListResponse{
			Resource: visitors,
			Meta:     listMeta(len(visitors), start),
		})
	case "csv":
		h.writeCSV(w, r, visitors)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unsupported format %q", format))
	}
}

func (h *VisitorHandler) writeCSV(w http.ResponseWriter, r *http.Request, visitors []model.Visitor) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename(h.visitors.Now())))
	w.WriteHeader(http.StatusOK)

	if err := report.WriteCSV(w, visitors); err != nil {
		h.logger.WarnContext(r.Context(), "csv report write failed", "error", err)
	}
}

// PreRegister records a visitor ahead of arrival and notifies them.
// POST /api/v1/visitors
func (h *VisitorHandler) PreRegister(w http.ResponseWriter, r *http.Request) {
	var in model.VisitorInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	v, err := h.visitors.PreRegister(r.Context(), principal(r).CompanyID, in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

type walkInRequest struct {
	Visitor model.VisitorInput `json:"visitor"`
	CheckIn model.CheckInInput `json:"check_in"`
}

// WalkIn registers an unannounced visitor and checks them in at once.
// POST /api/v1/visitors/walk-in
func (h *VisitorHandler) WalkIn(w http.ResponseWriter, r *http.Request) {
	var req walkInRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	v, err := h.visitors.WalkIn(r.Context(), principal(r).CompanyID, req.Visitor, req.CheckIn)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// Get returns a single visitor.
// GET /api/v1/visitors/{id}
func (h *VisitorHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.visitorID(w, r)
	if !ok {
		return
	}
	v, err := h.visitors.Get(r.Context(), principal(r).CompanyID, id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// CheckIn admits a registered visitor once the face gate passes.
// POST /api/v1/visitors/{id}/check-in
func (h *VisitorHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	id, ok := h.visitorID(w, r)
	if !ok {
		return
	}
	var in model.CheckInInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	v, err := h.visitors.CheckIn(r.Context(), principal(r).CompanyID, id, in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Visitor checked in successfully",
		"visitor": v,
	})
}

// CheckOut records the visitor's departure.
// POST /api/v1/visitors/{id}/check-out
func (h *VisitorHandler) CheckOut(w http.ResponseWriter, r *http.Request) {
	id, ok := h.visitorID(w, r)
	if !ok {
		return
	}
	v, err := h.visitors.CheckOut(r.Context(), principal(r).CompanyID, id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Visitor checked out successfully",
		"visitor": v,
	})
}

// Dashboard returns the caller's company counts.
// GET /api/v1/dashboard
func (h *VisitorHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	counts, err := h.visitors.DashboardCounts(r.Context(), principal(r).CompanyID, h.visitors.Now())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// UploadFace stores a face image sent as the multipart field "image".
// POST /api/v1/visitors/{id}/face
func (h *VisitorHandler) UploadFace(w http.ResponseWriter, r *http.Request) {
	id, ok := h.visitorID(w, r)
	if !ok {
		return
	}
	file, contentType, ok := readImageField(w, r)
	if !ok {
		return
	}
	defer file.Close()

	ref, err := h.visitors.AttachFace(r.Context(), principal(r).CompanyID, id, file, contentType)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"face_image_ref": ref})
}

// UploadWalkInFace stages a face image for a walk-in before the record
// exists. The returned reference is passed to the walk-in request.
// POST /api/v1/visitors/walk-in/face
func (h *VisitorHandler) UploadWalkInFace(w http.ResponseWriter, r *http.Request) {
	file, contentType, ok := readImageField(w, r)
	if !ok {
		return
	}
	defer file.Close()

	ref, err := h.visitors.StageWalkInFace(r.Context(), principal(r).CompanyID, file, contentType)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"face_image_ref": ref})
}

// readImageField opens the multipart field "image". On failure it writes
// the 400 response and returns ok=false.
func readImageField(w http.ResponseWriter, r *http.Request) (multipart.File, string, bool) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart body: "+err.Error())
		return nil, "", false
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing image file")
		return nil, "", false
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return file, contentType, true
}

// CaptureFace grabs a frame from the desk camera.
// POST /api/v1/visitors/{id}/capture
func (h *VisitorHandler) CaptureFace(w http.ResponseWriter, r *http.Request) {
	id, ok := h.visitorID(w, r)
	if !ok {
		return
	}
	ref, err := h.visitors.CaptureFace(r.Context(), principal(r).CompanyID, id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"face_image_ref": ref})
}

// CaptureWalkInFace grabs a frame for a walk-in before the record exists.
// POST /api/v1/visitors/walk-in/capture
func (h *VisitorHandler) CaptureWalkInFace(w http.ResponseWriter, r *http.Request) {
	ref, err := h.visitors.CaptureWalkInFace(r.Context(), principal(r).CompanyID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"face_image_ref": ref})
}

// Badge streams the visitor's badge PDF. With inline=1 the browser shows it
// instead of downloading.
// GET /api/v1/visitors/{id}/badge
func (h *VisitorHandler) Badge(w http.ResponseWriter, r *http.Request) {
	id, ok := h.visitorID(w, r)
	if !ok {
		return
	}
	pdf, err := h.visitors.Badge(r.Context(), principal(r).CompanyID, id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	disposition := "attachment"
	if queryBool(r, "inline") {
		disposition = "inline"
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=\"badge_%d.pdf\"", disposition, id))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

func (h *VisitorHandler) visitorID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid visitor ID")
		return 0, false
	}
	return id, true
}
