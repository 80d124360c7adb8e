package contentgen

import (
	"context"
	"time"
)

// Backoff returns how long to wait before retry number attempt (1-based).
type Backoff func(attempt int) time.Duration

// ExponentialBackoff waits initial, initial*2, initial*4, ... capped at max.
func ExponentialBackoff(initial, max time.Duration) Backoff {
	return func(attempt int) time.Duration {
		d := initial
		for i := 1; i < attempt; i++ {
			d *= 2
			if max > 0 && d >= max {
				return max
			}
		}
		return d
	}
}

// NoBackoff retries immediately.
func NoBackoff(int) time.Duration { return 0 }

// sleep waits d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// withRetry calls f until it succeeds, returns a non-transient error, or
// maxRetries retries have been spent. The last error is returned.
func withRetry[T any](ctx context.Context, maxRetries int, b Backoff, onRetry func(attempt int, err error), f func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if onRetry != nil {
				onRetry(attempt, lastErr)
			}
			if err := sleep(ctx, b(attempt)); err != nil {
				return zero, err
			}
		}
		v, err := f()
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !IsTransient(err) {
			return zero, err
		}
	}
	return zero, lastErr
}
