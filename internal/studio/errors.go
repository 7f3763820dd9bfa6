// Package studio provides an HTTP client for the Bluebeam Studio Prime API
// with OAuth2 token management, automatic retry, and error classification.
package studio

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Sentinel errors for the Studio error taxonomy.
// Use errors.Is(err, studio.ErrNotFound) to check.
var (
	// ErrAuthentication covers token exchange and refresh failures, and
	// API calls attempted with no token set.
	ErrAuthentication = errors.New("studio: authentication failed")

	// ErrAuthorization covers 401 (Unauthorized) and 403 (Forbidden).
	ErrAuthorization = errors.New("studio: authorization denied")

	// ErrNotFound covers 404 for sessions and files.
	ErrNotFound = errors.New("studio: not found")

	// ErrRateLimited covers 429 Too Many Requests.
	ErrRateLimited = errors.New("studio: rate limited")

	// ErrServer covers 5xx responses and transport failures that
	// exhausted the retry budget.
	ErrServer = errors.New("studio: server error")

	// ErrUnsupported marks documented gaps in the public API.
	ErrUnsupported = errors.New("studio: operation not supported")

	// ErrValidation marks local precondition failures detected before any
	// network call (e.g. wrong file extension).
	ErrValidation = errors.New("studio: validation failed")

	// ErrSnapshotTimeout is returned when a snapshot job does not reach
	// Complete within the polling window. Distinct from ErrServer: the job
	// was not ready, the transport was fine.
	ErrSnapshotTimeout = errors.New("studio: snapshot not ready within polling window")

	// ErrNotLoggedIn is returned when no saved token exists on disk.
	ErrNotLoggedIn = errors.New("studio: not logged in")
)

// APIError wraps a sentinel error with the HTTP status code, the response
// body, and the parsed Retry-After delay for throttled responses.
type APIError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration // from the Retry-After header on 429; 0 when absent
	Err        error         // sentinel, for errors.Is(); nil for unclassified statuses
}

func (e *APIError) Error() string {
	if text := http.StatusText(e.StatusCode); text != "" {
		return fmt.Sprintf("studio: HTTP %d %s: %s", e.StatusCode, text, e.Message)
	}

	return fmt.Sprintf("studio: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for 2xx success codes and for codes outside the taxonomy
// (those surface as a generic *APIError with no sentinel).
func classifyStatus(code int) error {
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return ErrAuthorization
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code >= http.StatusInternalServerError && code < 600:
		return ErrServer
	default:
		return nil
	}
}

// newAPIError builds an APIError from a completed non-2xx response.
// body is read by the caller so the caller controls draining/closing.
func newAPIError(resp *http.Response, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    string(body),
		Err:        classifyStatus(resp.StatusCode),
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		apiErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	}

	return apiErr
}

// parseRetryAfter parses a numeric Retry-After header value (seconds).
// Malformed or non-positive values return 0, which callers treat as
// "fall back to exponential backoff".
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	seconds, err := strconv.Atoi(header)
	if err != nil || seconds <= 0 {
		return 0
	}

	return time.Duration(seconds) * time.Second
}
