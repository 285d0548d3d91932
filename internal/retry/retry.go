// Package retry provides the bounded retry policy used against rate-limited APIs.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrAttemptsExhausted is returned when every attempt failed with a retryable error.
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// BackoffFunc returns the delay after the given zero-based attempt.
type BackoffFunc func(attempt int) time.Duration

// Sleep waits for d honouring ctx cancellation.
func Sleep(ctx context.Context, d time.Duration) error {
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

// Exponential returns base * 2^attempt: 1s, 2s, 4s for a one second base.
func Exponential(base time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		return base << uint(attempt)
	}
}

// Policy configures Do.
type Policy struct {
	// MaxAttempts includes the first attempt.
	MaxAttempts int
	Backoff     BackoffFunc
	// IsRetryable decides whether an error earns another attempt.
	IsRetryable func(error) bool
	Sleep       SleepFunc
	// OnRetry, when set, is called before each backoff sleep.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultPolicy is three attempts with 1s/2s/4s backoff.
func DefaultPolicy(isRetryable func(error) bool) Policy {
	return Policy{
		MaxAttempts: 3,
		Backoff:     Exponential(time.Second),
		IsRetryable: isRetryable,
		Sleep:       Sleep,
	}
}

// Do runs fn until it succeeds, returns a non-retryable error, or MaxAttempts is reached.
// A retryable failure is always followed by its backoff sleep, the last attempt included,
// so three rate-limited attempts sleep 1s, 2s and 4s before ErrAttemptsExhausted.
func Do(ctx context.Context, p Policy, fn func(attempt int) error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.Backoff == nil {
		p.Backoff = Exponential(time.Second)
	}
	if p.Sleep == nil {
		p.Sleep = Sleep
	}

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		if p.IsRetryable == nil || !p.IsRetryable(err) {
			return err
		}
		lastErr = err

		delay := p.Backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if sleepErr := p.Sleep(ctx, delay); sleepErr != nil {
			return fmt.Errorf("waiting to retry: %w", sleepErr)
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, p.MaxAttempts, lastErr)
}
