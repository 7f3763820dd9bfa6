package studio

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noopSleep skips retry waits so tests run instantly.
func noopSleep(_ context.Context, _ time.Duration) error {
	return nil
}

// okResponse is a minimal successful response for executor tests.
func okResponse() *http.Response {
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()

	assert.Equal(t, 3, p.MaxRetries)
	assert.Equal(t, 800*time.Millisecond, p.BackoffBase)

	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, p.RetryableStatuses[code], "expected %d in the default retryable set", code)
	}
}

func TestRetryPolicy_ShouldRetry(t *testing.T) {
	p := DefaultRetryPolicy()

	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"transport failure", errors.New("connection refused"), true},
		{"rate limited", &APIError{StatusCode: 429, Err: ErrRateLimited}, true},
		{"server error", &APIError{StatusCode: 503, Err: ErrServer}, true},
		{"bad gateway", &APIError{StatusCode: 502, Err: ErrServer}, true},
		{"request timeout via status set", &APIError{StatusCode: 408}, true},
		{"unauthorized", &APIError{StatusCode: 401, Err: ErrAuthorization}, false},
		{"forbidden", &APIError{StatusCode: 403, Err: ErrAuthorization}, false},
		{"not found", &APIError{StatusCode: 404, Err: ErrNotFound}, false},
		{"plain bad request", &APIError{StatusCode: 400}, false},
		{"conflict", &APIError{StatusCode: 409}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, p.shouldRetry(tt.err))
		})
	}
}

func TestRetryPolicy_ShouldRetry_CustomStatuses(t *testing.T) {
	p := RetryPolicy{MaxRetries: 2, BackoffBase: time.Millisecond}

	// Without 408 in the set it is an ordinary 4xx.
	assert.False(t, p.shouldRetry(&APIError{StatusCode: 408}))

	// Rate limits and server errors stay retryable regardless of the set.
	assert.True(t, p.shouldRetry(&APIError{StatusCode: 429, Err: ErrRateLimited}))
	assert.True(t, p.shouldRetry(&APIError{StatusCode: 500, Err: ErrServer}))

	p.RetryableStatuses = map[int]bool{425: true}
	assert.True(t, p.shouldRetry(&APIError{StatusCode: 425}))
}

func TestRetryPolicy_RetryDelay(t *testing.T) {
	p := RetryPolicy{BackoffBase: 800 * time.Millisecond}
	serverErr := &APIError{StatusCode: 503, Err: ErrServer}

	// Exponential progression: base * 2^(k-1).
	assert.Equal(t, 800*time.Millisecond, p.retryDelay(1, serverErr))
	assert.Equal(t, 1600*time.Millisecond, p.retryDelay(2, serverErr))
	assert.Equal(t, 3200*time.Millisecond, p.retryDelay(3, serverErr))
}

func TestRetryPolicy_RetryDelay_RetryAfter(t *testing.T) {
	p := RetryPolicy{BackoffBase: 800 * time.Millisecond}

	// Retry-After longer than backoff wins.
	long := &APIError{StatusCode: 429, Err: ErrRateLimited, RetryAfter: 5 * time.Second}
	assert.Equal(t, 5*time.Second, p.retryDelay(1, long))

	// Backoff longer than Retry-After wins.
	short := &APIError{StatusCode: 429, Err: ErrRateLimited, RetryAfter: time.Second}
	assert.Equal(t, 3200*time.Millisecond, p.retryDelay(3, short))
}

func TestDoRetry_SuccessAfterFailures(t *testing.T) {
	calls := 0
	op := func() (*http.Response, error) {
		calls++
		if calls <= 2 {
			return nil, &APIError{StatusCode: 503, Err: ErrServer}
		}

		return okResponse(), nil
	}

	policy := RetryPolicy{MaxRetries: 2, BackoffBase: time.Millisecond}

	resp, err := doRetry(context.Background(), policy, noopSleep, nil, op)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, calls)
}

func TestDoRetry_ExhaustionReturnsLastErrorUnchanged(t *testing.T) {
	last := &APIError{StatusCode: 503, Message: "down for maintenance", Err: ErrServer}

	calls := 0
	op := func() (*http.Response, error) {
		calls++
		return nil, last
	}

	policy := RetryPolicy{MaxRetries: 1, BackoffBase: time.Millisecond}

	_, err := doRetry(context.Background(), policy, noopSleep, nil, op)
	require.Error(t, err)
	assert.Equal(t, 2, calls, "one initial attempt plus one retry")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Same(t, last, apiErr, "the final API error is re-raised, not wrapped")
}

func TestDoRetry_TransportExhaustionBecomesServerError(t *testing.T) {
	cause := errors.New("connection reset by peer")

	calls := 0
	op := func() (*http.Response, error) {
		calls++
		return nil, cause
	}

	policy := RetryPolicy{MaxRetries: 3, BackoffBase: time.Millisecond}

	_, err := doRetry(context.Background(), policy, noopSleep, nil, op)
	require.Error(t, err)
	assert.Equal(t, 4, calls)
	assert.ErrorIs(t, err, ErrServer, "exhausted transport failures become server errors")
	assert.ErrorIs(t, err, cause, "the original cause stays reachable")
	assert.Contains(t, err.Error(), "after 4 attempts")
}

func TestDoRetry_NonRetryableImmediate(t *testing.T) {
	calls := 0
	op := func() (*http.Response, error) {
		calls++
		return nil, &APIError{StatusCode: 404, Err: ErrNotFound}
	}

	_, err := doRetry(context.Background(), DefaultRetryPolicy(), noopSleep, nil, op)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, calls, "non-retryable errors never consume the budget")
}

func TestDoRetry_ZeroPolicyMeansSingleAttempt(t *testing.T) {
	calls := 0
	op := func() (*http.Response, error) {
		calls++
		return nil, &APIError{StatusCode: 503, Err: ErrServer}
	}

	_, err := doRetry(context.Background(), RetryPolicy{}, noopSleep, nil, op)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetry_SleepSchedule(t *testing.T) {
	var delays []time.Duration

	sleep := func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	calls := 0
	op := func() (*http.Response, error) {
		calls++
		if calls <= 3 {
			return nil, &APIError{StatusCode: 500, Err: ErrServer}
		}

		return okResponse(), nil
	}

	policy := RetryPolicy{MaxRetries: 3, BackoffBase: 800 * time.Millisecond}

	_, err := doRetry(context.Background(), policy, sleep, nil, op)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{
		800 * time.Millisecond,
		1600 * time.Millisecond,
		3200 * time.Millisecond,
	}, delays)
}

func TestDoRetry_RateLimitHonorsRetryAfter(t *testing.T) {
	var delays []time.Duration

	sleep := func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	calls := 0
	op := func() (*http.Response, error) {
		calls++
		if calls == 1 {
			return nil, &APIError{StatusCode: 429, Err: ErrRateLimited, RetryAfter: 5 * time.Second}
		}

		return okResponse(), nil
	}

	policy := RetryPolicy{MaxRetries: 3, BackoffBase: 800 * time.Millisecond}

	_, err := doRetry(context.Background(), policy, sleep, nil, op)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{5 * time.Second}, delays)
}

func TestDoRetry_SleepInterrupted(t *testing.T) {
	sleep := func(_ context.Context, _ time.Duration) error {
		return context.Canceled
	}

	op := func() (*http.Response, error) {
		return nil, &APIError{StatusCode: 503, Err: ErrServer}
	}

	_, err := doRetry(context.Background(), DefaultRetryPolicy(), sleep, nil, op)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSleepContext_Completes(t *testing.T) {
	err := sleepContext(context.Background(), 5*time.Millisecond)
	assert.NoError(t, err)
}

func TestSleepContext_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sleepContext(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}
