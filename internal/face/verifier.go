// Package face gates check-in on a face being present in the captured image
// and captures images from a local camera.
package face

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Verifier decides whether the image behind ref shows a face. A false result
// blocks check-in.
type Verifier interface {
	Verify(ctx context.Context, imageRef string) (bool, error)
}

// ImageOpener resolves an image reference to its bytes.
type ImageOpener interface {
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// AlwaysPass accepts every image without looking at it. It exists for tests
// and for sites that run without a camera; selecting it disables the gate.
type AlwaysPass struct{}

// Verify always reports a face.
func (AlwaysPass) Verify(context.Context, string) (bool, error) { return true, nil }

// Name identifies the variant in logs.
func (AlwaysPass) Name() string { return "always_pass" }

// AlwaysFail rejects every image. Useful to lock check-in down.
type AlwaysFail struct{}

// Verify never reports a face.
func (AlwaysFail) Verify(context.Context, string) (bool, error) { return false, nil }

// Name identifies the variant in logs.
func (AlwaysFail) Name() string { return "always_fail" }

// ExternalService posts the image to an HTTP face-detection endpoint. The
// endpoint answers {"face_detected": bool}.
type ExternalService struct {
	endpoint string
	token    string
	images   ImageOpener
	client   *http.Client
}

// NewExternalService creates a verifier backed by the detection endpoint.
// A zero timeout defaults to 10 seconds.
func NewExternalService(endpoint, token string, images ImageOpener, timeout time.Duration) *ExternalService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ExternalService{
		endpoint: endpoint,
		token:    token,
		images:   images,
		client:   &http.Client{Timeout: timeout},
	}
}

// Name identifies the variant in logs.
func (s *ExternalService) Name() string { return "external" }

type detectResponse struct {
	FaceDetected bool `json:"face_detected"`
}

// Verify uploads the referenced image and returns the service's verdict.
// An empty reference never passes.
func (s *ExternalService) Verify(ctx context.Context, imageRef string) (bool, error) {
	if imageRef == "" {
		return false, nil
	}

	img, err := s.images.Open(ctx, imageRef)
	if err != nil {
		return false, fmt.Errorf("open image %q: %w", imageRef, err)
	}
	defer img.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, img)
	if err != nil {
		return false, fmt.Errorf("build detect request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Image-Ref", imageRef)
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("call face service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return false, fmt.Errorf("face service returned status %d", resp.StatusCode)
	}

	var out detectResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return false, fmt.Errorf("decode face service response: %w", err)
	}
	return out.FaceDetected, nil
}
