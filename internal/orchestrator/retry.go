package orchestrator

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy is a bounded fixed-delay retry. The attempt counter starts at
// zero and increments on every failure; there is no backoff growth.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Do runs fn up to MaxAttempts times. A nil return stops immediately. After
// each failure onAttempt is called exactly once with the 1-based attempt
// number, then Do sleeps Delay before the next attempt — except after the
// final one, where it fails without waiting. The sleep honors ctx
// cancellation.
//
// On exhaustion the returned error wraps both ErrRetryBudgetExhausted and the
// last attempt's error.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error, onAttempt func(attempt int, err error)) error {
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if onAttempt != nil {
			onAttempt(attempt, lastErr)
		}

		if attempt == p.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay):
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryBudgetExhausted, p.MaxAttempts, lastErr)
}
