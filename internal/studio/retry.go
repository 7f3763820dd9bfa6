package studio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultMaxRetries is the number of retries after the initial attempt.
	DefaultMaxRetries = 3

	// DefaultBackoffBase is the delay before the first retry; each further
	// retry doubles it.
	DefaultBackoffBase = 800 * time.Millisecond
)

// RetryPolicy configures the retry executor. The zero value disables
// retries; start from DefaultRetryPolicy to tweak individual fields.
type RetryPolicy struct {
	// MaxRetries bounds retries after the initial attempt, so a request is
	// sent at most MaxRetries+1 times.
	MaxRetries int

	// BackoffBase is the first retry delay. Retry k sleeps
	// BackoffBase * 2^(k-1), or the response's Retry-After when that is
	// longer.
	BackoffBase time.Duration

	// RetryableStatuses marks extra status codes to retry beyond the always
	// retried transport failures, 429s, and 5xx responses.
	RetryableStatuses map[int]bool
}

// DefaultRetryPolicy returns the standard policy: 3 retries, 800ms base
// backoff, and 408 as the only retryable status outside the built-in
// rate-limit and server-error classes.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:  DefaultMaxRetries,
		BackoffBase: DefaultBackoffBase,
		RetryableStatuses: map[int]bool{
			http.StatusRequestTimeout:      true,
			http.StatusTooManyRequests:     true,
			http.StatusInternalServerError: true,
			http.StatusBadGateway:          true,
			http.StatusServiceUnavailable:  true,
			http.StatusGatewayTimeout:      true,
		},
	}
}

// shouldRetry reports whether err is worth another attempt under p.
// Transport failures (no response received), rate limits, and server errors
// always are; other API errors only when their status is in
// RetryableStatuses.
func (p RetryPolicy) shouldRetry(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return true
	}

	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrServer) {
		return true
	}

	return p.RetryableStatuses[apiErr.StatusCode]
}

// retryDelay computes the sleep before retry attempt (1-based), taking the
// larger of exponential backoff and the server's Retry-After when present.
func (p RetryPolicy) retryDelay(attempt int, err error) time.Duration {
	delay := p.BackoffBase * (1 << (attempt - 1))

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > delay {
		delay = apiErr.RetryAfter
	}

	return delay
}

// sleepFunc pauses for d or until ctx is done. Tests substitute a no-op to
// keep retry tests fast.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// doRetry runs op until it succeeds, fails with a non-retryable error, or
// exhausts the policy. op performs one complete request attempt (build,
// send, classify) and owns the response body on success.
//
// On exhaustion a transport failure is converted into a server error
// wrapping the original cause; an exhausted rate-limit or server error is
// returned unchanged so callers see the real status.
func doRetry(ctx context.Context, policy RetryPolicy, sleep sleepFunc, logger *slog.Logger, op func() (*http.Response, error)) (*http.Response, error) {
	if sleep == nil {
		sleep = sleepContext
	}

	if logger == nil {
		logger = slog.Default()
	}

	attempt := 0

	for {
		resp, err := op()
		if err == nil {
			return resp, nil
		}

		if !policy.shouldRetry(err) {
			return nil, err
		}

		if attempt >= policy.MaxRetries {
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				return nil, fmt.Errorf("studio: network/transport error after %d attempts: %w: %w", attempt+1, ErrServer, err)
			}

			return nil, err
		}

		attempt++
		delay := policy.retryDelay(attempt, err)

		logger.Warn("retrying request",
			slog.Int("attempt", attempt),
			slog.Int("max_retries", policy.MaxRetries),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)

		if err := sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("studio: retry wait interrupted: %w", err)
		}
	}
}
