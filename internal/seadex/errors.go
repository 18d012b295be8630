package seadex

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrIndexUnavailable is returned when the release index cannot be queried.
	ErrIndexUnavailable = errors.New("release index unavailable")
	// ErrRateLimited is wrapped by errors for 429 responses.
	ErrRateLimited = errors.New("release index rate limit exceeded")
)

// StatusError is a non-2xx response from the release index.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("status %d", e.StatusCode)
}

// Transient reports whether the request is worth repeating.
func (e *StatusError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func (e *StatusError) Is(target error) bool {
	return target == ErrRateLimited && e.StatusCode == http.StatusTooManyRequests
}

// Error wraps a failed release index operation.
type Error struct {
	Op      string // Operation that failed (e.g., "fetch", "decode")
	IndexID int    // Release index ID being queried
	Err     error  // Underlying error
}

func (e *Error) Error() string {
	return fmt.Sprintf("seadex %s %d: %v", e.Op, e.IndexID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes every Error match ErrIndexUnavailable.
func (e *Error) Is(target error) bool {
	return target == ErrIndexUnavailable
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
