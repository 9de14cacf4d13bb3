package engine

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy is a fixed-delay, bounded retry budget.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultRetryPolicy is three attempts one second apart.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Delay: time.Second}

// Do calls fn until it succeeds, returns a non-retryable error, the budget
// is spent or ctx is done. The last error is returned wrapped with the
// attempt count.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !Retryable(err) || i == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("after %d attempts: %w", i, err)
		case <-time.After(p.Delay):
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, err)
}
