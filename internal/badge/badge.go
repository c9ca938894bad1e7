// Package badge renders printable visitor badges: a single Letter page with
// the visit details, the face image when one was captured, and a QR code
// encoding the visitor id.
package badge

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-pdf/fpdf"
	"github.com/skip2/go-qrcode"

	"github.com/faucetdb/frontdesk/internal/model"
)

// ImageOpener resolves a stored face image reference to its bytes.
type ImageOpener interface {
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// Renderer produces PDF badges.
type Renderer struct {
	images   ImageOpener
	logger   *slog.Logger
	compress bool
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithCompression toggles PDF stream compression (on by default).
func WithCompression(on bool) Option {
	return func(r *Renderer) { r.compress = on }
}

// NewRenderer creates a badge renderer. images may be nil, in which case
// badges are rendered without a photo.
func NewRenderer(images ImageOpener, logger *slog.Logger, opts ...Option) *Renderer {
	r := &Renderer{images: images, logger: logger, compress: true}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// QRPayload is the text encoded in a visitor's badge QR code.
func QRPayload(visitorID int64) string {
	return fmt.Sprintf("Visitor ID: %d", visitorID)
}

// QRCode returns a PNG QR code for the visitor id.
func QRCode(visitorID int64, size int) ([]byte, error) {
	return qrcode.Encode(QRPayload(visitorID), qrcode.Medium, size)
}

// Render lays out the badge for v. A missing or unreadable face image is
// logged and left out; it never fails the badge.
func (r *Renderer) Render(ctx context.Context, v *model.Visitor) ([]byte, error) {
	qr, err := QRCode(v.ID, 256)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}

	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetCompression(r.compress)
	pdf.SetTitle(fmt.Sprintf("Visitor Badge %d", v.ID), true)
	pdf.SetCreator("frontdesk", true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, "Visitor Badge", "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 14)
	lines := []string{
		fmt.Sprintf("Visitor ID: %d", v.ID),
		"Name: " + v.Name,
		"Visit Purpose: " + v.VisitPurpose,
		"Person to Meet: " + v.PersonToMeet,
	}
	if v.CompanyName != "" {
		lines = append(lines, "Company: "+v.CompanyName)
	}
	if v.CheckIn != nil {
		lines = append(lines, "Checked In: "+v.CheckIn.UTC().Format("2006-01-02 15:04 UTC"))
	}
	for _, line := range lines {
		pdf.CellFormat(0, 9, pdf.UnicodeTranslatorFromDescriptor("")(line), "", 1, "L", false, 0, "")
	}

	pdf.RegisterImageOptionsReader("qr", fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(qr))
	pdf.ImageOptions("qr", 140, 30, 50, 50, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")

	if v.FaceImagePath != nil && *v.FaceImagePath != "" {
		r.placeFace(ctx, pdf, *v.FaceImagePath)
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render badge: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write badge: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) placeFace(ctx context.Context, pdf *fpdf.Fpdf, ref string) {
	if r.images == nil {
		return
	}
	rc, err := r.images.Open(ctx, ref)
	if err != nil {
		r.logger.WarnContext(ctx, "badge face image unavailable", "ref", ref, "error", err)
		return
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, 10<<20))
	if err != nil {
		r.logger.WarnContext(ctx, "badge face image unreadable", "ref", ref, "error", err)
		return
	}

	var imageType string
	switch http.DetectContentType(data) {
	case "image/jpeg":
		imageType = "JPG"
	case "image/png":
		imageType = "PNG"
	default:
		r.logger.WarnContext(ctx, "badge face image has unsupported format", "ref", ref)
		return
	}

	opts := fpdf.ImageOptions{ImageType: imageType}
	pdf.RegisterImageOptionsReader("face", opts, bytes.NewReader(data))
	if err := pdf.Error(); err != nil {
		r.logger.WarnContext(ctx, "badge face image rejected", "ref", ref, "error", err)
		pdf.ClearError()
		return
	}
	pdf.ImageOptions("face", 20, 100, 60, 0, false, opts, 0, "")
}
