// Package imagestore keeps captured visitor face images on local disk or in
// S3-compatible object storage. Images are addressed by opaque references
// ("file:<key>" or "s3://bucket/key") that are stored on the visitor record.
package imagestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a reference points at no stored image.
var ErrNotFound = errors.New("image not found")

// ErrBadRef is returned for references the store cannot interpret.
var ErrBadRef = errors.New("unrecognized image reference")

// Store persists image bytes and resolves references back to them.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// FaceKey returns a fresh object key for a face image. A zero visitorID
// stages the image for a walk-in that has no record yet.
func FaceKey(companyID, visitorID int64, contentType string) string {
	return FacePrefix(companyID, visitorID) + uuid.Must(uuid.NewV7()).String() + extensionFor(contentType)
}

// FacePrefix is the key prefix shared by every face image FaceKey issues
// for the same company and visitor.
func FacePrefix(companyID, visitorID int64) string {
	if visitorID == 0 {
		return fmt.Sprintf("images/company_%d/walkin_", companyID)
	}
	return fmt.Sprintf("images/company_%d/visitor_%d_", companyID, visitorID)
}

// KeyOf extracts the object key from a reference returned by Put:
// "s3://bucket/key" or "<scheme>:key".
func KeyOf(ref string) (string, error) {
	var key string
	if rest, ok := strings.CutPrefix(ref, s3Prefix); ok {
		_, key, _ = strings.Cut(rest, "/")
	} else {
		scheme, k, ok := strings.Cut(ref, ":")
		if !ok || scheme == "" {
			return "", fmt.Errorf("%w: %q", ErrBadRef, ref)
		}
		key = k
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("%w: %q", ErrBadRef, ref)
	}
	return cleanKey(key)
}

func extensionFor(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ".jpg"
	}
	switch mediaType {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	}
	return ".jpg"
}

// cleanKey rejects keys that could escape the store's root.
func cleanKey(key string) (string, error) {
	key = strings.TrimLeft(strings.ReplaceAll(key, "\\", "/"), "/")
	if key == "" {
		return "", fmt.Errorf("%w: empty key", ErrBadRef)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." {
			return "", fmt.Errorf("%w: %q", ErrBadRef, key)
		}
	}
	return key, nil
}
