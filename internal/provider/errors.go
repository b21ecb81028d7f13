package provider

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Sentinel errors for the provider's error taxonomy.
var (
	// ErrAuthInvalid means the bearer credential was rejected (401/403).
	// Callers must signal the Credential Gate to disable downstream work.
	ErrAuthInvalid = errors.New("provider: credential invalid or forbidden")
	// ErrRateLimited means the provider asked us to back off (429).
	ErrRateLimited = errors.New("provider: rate limited")
	// ErrTransient means a retryable transport or server error (5xx, network).
	ErrTransient = errors.New("provider: transient error")
	// ErrFatal means a non-retryable client error that is not an auth failure.
	ErrFatal = errors.New("provider: fatal error")
	// ErrNotFound maps a 404 for callers that treat it specially (e.g.
	// subscription renewal, which recreates on a missing subscription).
	ErrNotFound = errors.New("provider: not found")
	// ErrGone means the provider discarded our delta cursor (410); the
	// Reconciliation Engine must restart the drive's sync from empty.
	ErrGone = errors.New("provider: cursor gone, full resync required")
)

// Error wraps a provider HTTP failure with the taxonomy category and the
// raw status code, so callers can both branch on the sentinel (errors.Is)
// and log the concrete status.
type Error struct {
	StatusCode int
	Category   error // one of the sentinels above
	Body       string
	retryAfter time.Duration
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider: http %d: %v", e.StatusCode, e.Category)
}

func (e *Error) Unwrap() error {
	return e.Category
}

// classifyStatus maps an HTTP status code to a taxonomy sentinel.
func classifyStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrAuthInvalid
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusGone:
		return ErrGone
	case isRetryableServerStatus(status):
		return ErrTransient
	default:
		return ErrFatal
	}
}

// isRetryableServerStatus reports whether a status code is worth retrying
// with backoff: request timeout, and the common 5xx family.
func isRetryableServerStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func newError(status int, body string) *Error {
	return &Error{StatusCode: status, Category: classifyStatus(status), Body: body}
}
