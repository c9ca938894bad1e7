package service

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateUsername = errors.New("username already exists")
	ErrAuthFailure       = errors.New("invalid username or password")
	ErrForbidden         = errors.New("superuser privileges required")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInternal          = errors.New("internal error")

	// ErrInvalidToken is wrapped by both token failure modes; callers deny
	// on either.
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = fmt.Errorf("%w: expired", ErrInvalidToken)
	ErrMalformedToken = fmt.Errorf("%w: malformed", ErrInvalidToken)

	ErrVisitorNotFound   = errors.New("visitor not found")
	ErrFaceNotDetected   = errors.New("face not detected")
	ErrNotCheckedIn      = errors.New("visitor has not checked in")
	ErrAlreadyCheckedIn  = errors.New("visitor already checked in")
	ErrAlreadyCheckedOut = errors.New("visitor already checked out")
	ErrConflict          = errors.New("visitor was modified concurrently")
	ErrNotConfigured     = errors.New("feature not configured")
)

func internalError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrInternal, err)
}

func invalidInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
