package generation

import (
	"context"
	"time"
)

// RetryPolicy bounds how often a rate-limited request is repeated.
// A call makes at most MaxRetries+1 attempts; before retry n (counting
// from zero) the gateway sleeps Backoff(n).
type RetryPolicy struct {
	MaxRetries int
	Backoff    func(attempt int) time.Duration
}

// ExponentialBackoff returns 2^attempt * unit.
func ExponentialBackoff(unit time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt < 0 {
			attempt = 0
		}
		return unit << uint(attempt)
	}
}

// DefaultRetryPolicy retries three times, waiting 1s, 2s and 4s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, Backoff: ExponentialBackoff(time.Second)}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	if p.Backoff == nil {
		return 0
	}
	return p.Backoff(attempt)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// RealSleeper blocks on a timer.
func RealSleeper(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
