package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thelarryrutledge/nvlp-go/internal/client/httpx"
)

func TestDo_StopsAtMaxAttemptsAndSurfacesOriginalError(t *testing.T) {
	cause := &httpx.NetworkError{Err: errors.New("connection refused")}

	calls := 0
	_, err := Do(context.Background(), Policy{MaxAttempts: 3, BaseDelay: time.Millisecond},
		func(ctx context.Context) (int, error) {
			calls++
			return 0, cause
		})

	require.Equal(t, 3, calls)
	require.Same(t, error(cause), err, "the original error must come back unwrapped")
}

func TestDo_SucceedsMidway(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), Policy{MaxAttempts: 5, BaseDelay: time.Millisecond},
		func(ctx context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", &httpx.TimeoutError{Err: context.DeadlineExceeded}
			}
			return "ok", nil
		})

	require.NoError(t, err)
	require.Equal(t, "ok", got)
	require.Equal(t, 3, calls)
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{MaxAttempts: 5, BaseDelay: time.Millisecond},
		func(ctx context.Context) (int, error) {
			calls++
			return 0, &httpx.HTTPError{Status: 404}
		})

	require.Equal(t, 1, calls)
	require.Equal(t, 404, httpx.StatusOf(err))
}

func TestDo_CustomPredicateTakesPrecedence(t *testing.T) {
	calls := 0
	p := Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		Retryable:   func(err error) bool { return httpx.StatusOf(err) == 404 },
	}
	_, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
		calls++
		return 0, &httpx.HTTPError{Status: 404}
	})

	require.Equal(t, 3, calls)
	require.Equal(t, 404, httpx.StatusOf(err))
}

func TestDo_ContextCancellationAbortsWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := Do(ctx, Policy{MaxAttempts: 3, BaseDelay: 10 * time.Second},
		func(ctx context.Context) (int, error) {
			calls++
			return 0, &httpx.NetworkError{Err: errors.New("down")}
		})

	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
	require.Less(t, time.Since(start), time.Second)
}

func TestDefaultRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"network", &httpx.NetworkError{Err: errors.New("dns")}, true},
		{"timeout", &httpx.TimeoutError{Err: context.DeadlineExceeded}, true},
		{"429", &httpx.HTTPError{Status: 429}, true},
		{"500", &httpx.HTTPError{Status: 500}, true},
		{"503", &httpx.HTTPError{Status: 503}, true},
		{"400", &httpx.HTTPError{Status: 400}, false},
		{"404", &httpx.HTTPError{Status: 404}, false},
		{"session invalidated", &httpx.SessionInvalidatedError{Err: errors.New("gone")}, false},
		{"session invalidated wrapping network cause",
			&httpx.SessionInvalidatedError{Err: &httpx.NetworkError{Err: errors.New("reset")}}, false},
		{"session invalidated wrapping 500",
			&httpx.SessionInvalidatedError{Err: &httpx.HTTPError{Status: 500}}, false},
		{"plain error", errors.New("whatever"), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DefaultRetryable(tc.err))
		})
	}
}

func TestDelay_Shapes(t *testing.T) {
	base := 100 * time.Millisecond

	constant := Policy{Strategy: Constant, BaseDelay: base}
	linear := Policy{Strategy: Linear, BaseDelay: base}
	expo := Policy{Strategy: Exponential, BaseDelay: base}

	for attempt := 1; attempt <= 3; attempt++ {
		assert.Equal(t, base, constant.Delay(attempt))
		assert.Equal(t, base*time.Duration(attempt), linear.Delay(attempt))
	}

	assert.Equal(t, 100*time.Millisecond, expo.Delay(1))
	assert.Equal(t, 200*time.Millisecond, expo.Delay(2))
	assert.Equal(t, 400*time.Millisecond, expo.Delay(3))
}

func TestDelay_CappedByMaxDelay(t *testing.T) {
	p := Policy{Strategy: Exponential, BaseDelay: 100 * time.Millisecond, MaxDelay: 250 * time.Millisecond}
	assert.Equal(t, 250*time.Millisecond, p.Delay(3))
	assert.Equal(t, 250*time.Millisecond, p.Delay(10))
}

func TestDo_ExponentialBackoffTiming(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: 50 * time.Millisecond, Strategy: Exponential}

	start := time.Now()
	_, _ = Do(context.Background(), p, func(ctx context.Context) (int, error) {
		return 0, &httpx.NetworkError{Err: errors.New("down")}
	})
	elapsed := time.Since(start)

	// Delays of 50ms and 100ms between the three attempts; allow scheduling slack.
	require.GreaterOrEqual(t, elapsed, 150*time.Millisecond)
	require.Less(t, elapsed, 600*time.Millisecond)
}
