// Package retry provides a bounded retry combinator for a single operation.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy controls how Do retries.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt.
	// Zero means one attempt only. Negative values are treated as zero.
	MaxRetries int

	// Retryable reports whether err is worth another attempt. A nil
	// Retryable retries nothing.
	Retryable func(err error) bool

	// OnRetry is called before each retry with the 1-based retry number
	// and the error that caused it.
	OnRetry func(retry int, err error)

	// Backoff returns the delay before the given 1-based retry. Nil means
	// retry immediately.
	Backoff func(retry int) time.Duration
}

// ExhaustedError is returned when every permitted attempt failed with a
// retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Do calls fn until it succeeds, fails with a non-retryable error, the
// retry budget is spent, or ctx is done. Non-retryable errors are returned
// unchanged.
func Do(ctx context.Context, p Policy, fn func() error) error {
	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(err) {
			return err
		}
		if attempt >= maxRetries {
			return &ExhaustedError{Attempts: attempt + 1, Err: err}
		}

		retry := attempt + 1
		if p.OnRetry != nil {
			p.OnRetry(retry, err)
		}

		var delay time.Duration
		if p.Backoff != nil {
			delay = p.Backoff(retry)
		}
		if err := wait(ctx, delay); err != nil {
			return err
		}
	}
}

// Linear returns a Backoff that waits step times the retry number.
func Linear(step time.Duration) func(int) time.Duration {
	return func(retry int) time.Duration {
		return time.Duration(retry) * step
	}
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
