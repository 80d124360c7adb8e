package contentgen

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrNoAPIKey is returned when a backend has no credentials configured.
	ErrNoAPIKey = errors.New("contentgen: API key not configured")

	// ErrInvalidResponse wraps model output that is not valid JSON or does
	// not satisfy the expected schema.
	ErrInvalidResponse = errors.New("contentgen: invalid model response")

	// ErrEmptyCompletion is returned when the backend answered without text.
	ErrEmptyCompletion = errors.New("contentgen: no completion returned")
)

// APIError is a non-success HTTP answer from a model backend.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("contentgen: API request failed with status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying the same request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsTransient reports whether err is worth retrying: rate limits, server
// errors, network failures and malformed model output. Cancellation and
// configuration errors are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrNoAPIKey) {
		return false
	}
	if errors.Is(err, ErrInvalidResponse) || errors.Is(err, ErrEmptyCompletion) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
