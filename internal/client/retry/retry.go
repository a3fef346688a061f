// Package retry decides whether and when a failed attempt is tried again.
// It sits above the request engine: the engine classifies a single call,
// retry drives the loop.
package retry

import (
	"context"
	"net/http"
	"time"

	"github.com/thelarryrutledge/nvlp-go/internal/client/httpx"
)

// Strategy selects the backoff shape.
type Strategy int

const (
	// Constant waits BaseDelay between every attempt.
	Constant Strategy = iota
	// Linear waits BaseDelay × attempt.
	Linear
	// Exponential waits BaseDelay × 2^(attempt-1).
	Exponential
)

// Policy configures the retry loop. The zero value never retries.
type Policy struct {
	// MaxAttempts caps the total number of attempts, first call included.
	MaxAttempts int

	// BaseDelay seeds the backoff computation.
	BaseDelay time.Duration

	// MaxDelay, when positive, caps the computed delay.
	MaxDelay time.Duration

	Strategy Strategy

	// Retryable overrides the default predicate for this policy.
	Retryable func(error) bool
}

// Default is the standard client policy: three attempts, exponential backoff
// starting at 100ms.
func Default() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Strategy:    Exponential,
	}
}

// DefaultRetryable retries network failures, timeouts, HTTP 429, and 5xx.
// Other 4xx statuses are the caller's problem and never retried. An
// invalidated session is terminal no matter what its refresh failure wraps.
func DefaultRetryable(err error) bool {
	if httpx.IsSessionInvalidated(err) {
		return false
	}
	if httpx.IsOffline(err) {
		return true
	}
	status := httpx.StatusOf(err)
	return status == http.StatusTooManyRequests || (status >= 500 && status <= 599)
}

// Delay returns the wait before the given retry. attempt counts from 1
// (the delay after the first failed attempt).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	var d time.Duration
	switch p.Strategy {
	case Linear:
		d = p.BaseDelay * time.Duration(attempt)
	case Exponential:
		d = p.BaseDelay << (attempt - 1)
	default:
		d = p.BaseDelay
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

func (p Policy) retryable(err error) bool {
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return DefaultRetryable(err)
}

// Do runs fn until it succeeds, exhausts p.MaxAttempts, hits a non-retryable
// error, or ctx is done. The last error is surfaced unchanged; nothing is
// wrapped, so errors.As against the engine taxonomy still works.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == attempts || !p.retryable(err) {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(p.Delay(attempt)):
		}
	}

	return zero, lastErr
}
