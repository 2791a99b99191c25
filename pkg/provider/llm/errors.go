package llm

import (
	"context"
	"errors"
	"net/http"
)

// Sentinel errors for the failure classes callers care about. Provider
// implementations wrap API errors with one of these so that callers can branch
// with [errors.Is] instead of inspecting provider-specific error types.
var (
	// ErrAuth indicates the API key was rejected (HTTP 401/403).
	ErrAuth = errors.New("llm: invalid API key")

	// ErrRateLimited indicates the backend throttled the request (HTTP 429).
	ErrRateLimited = errors.New("llm: rate limited")

	// ErrInsufficientCredit indicates the account has run out of quota or
	// payment is required (HTTP 402).
	ErrInsufficientCredit = errors.New("llm: insufficient credit")

	// ErrUnavailable indicates a server-side failure (HTTP 5xx) or an
	// unreachable backend.
	ErrUnavailable = errors.New("llm: service unavailable")
)

// ClassifyStatus maps an HTTP status code from an LLM API to one of the
// sentinel errors above, or nil for success codes. Unrecognised client errors
// return ErrUnavailable so callers always get a classified error for a
// non-2xx response.
func ClassifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrAuth
	case code == http.StatusPaymentRequired:
		return ErrInsufficientCredit
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return ErrUnavailable
	}
}

// IsTimeout reports whether err stems from a deadline or cancellation rather
// than an API-level failure.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
