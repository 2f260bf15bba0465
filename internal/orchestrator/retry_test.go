package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_ImmediateSuccess(t *testing.T) {
	t.Parallel()

	var attempts []int
	p := RetryPolicy{MaxAttempts: 30, Delay: time.Millisecond}

	err := p.Do(context.Background(),
		func(context.Context) error { return nil },
		func(n int, _ error) { attempts = append(attempts, n) },
	)

	require.NoError(t, err)
	assert.Empty(t, attempts, "a successful attempt must not emit a progress callback")
}

func TestRetryPolicy_SuccessAfterFailures(t *testing.T) {
	t.Parallel()

	calls := 0
	var attempts []int
	p := RetryPolicy{MaxAttempts: 30, Delay: 10 * time.Millisecond}

	start := time.Now()
	err := p.Do(context.Background(),
		func(context.Context) error {
			calls++
			if calls <= 3 {
				return errors.New("connection refused")
			}
			return nil
		},
		func(n int, _ error) { attempts = append(attempts, n) },
	)

	require.NoError(t, err)
	assert.Equal(t, 4, calls, "must stop retrying immediately after the first success")
	assert.Equal(t, []int{1, 2, 3}, attempts, "exactly one progress callback per failed attempt")
	assert.GreaterOrEqual(t, time.Since(start), 3*10*time.Millisecond, "must wait the fixed delay between attempts")
}

func TestRetryPolicy_BudgetExhausted(t *testing.T) {
	t.Parallel()

	calls := 0
	var attempts []int
	lastErr := errors.New("connection refused")
	p := RetryPolicy{MaxAttempts: 5, Delay: time.Millisecond}

	err := p.Do(context.Background(),
		func(context.Context) error {
			calls++
			return lastErr
		},
		func(n int, _ error) { attempts = append(attempts, n) },
	)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetryBudgetExhausted)
	assert.ErrorIs(t, err, lastErr, "the last attempt's error must be wrapped")
	assert.Equal(t, 5, calls)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, attempts)
}

func TestRetryPolicy_ContextCanceledDuringDelay(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	p := RetryPolicy{MaxAttempts: 30, Delay: time.Minute}

	err := p.Do(ctx,
		func(context.Context) error {
			cancel()
			return errors.New("connection refused")
		},
		nil,
	)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryPolicy_NilOnAttempt(t *testing.T) {
	t.Parallel()

	p := RetryPolicy{MaxAttempts: 2, Delay: time.Millisecond}
	err := p.Do(context.Background(), func(context.Context) error { return errors.New("down") }, nil)
	assert.ErrorIs(t, err, ErrRetryBudgetExhausted)
}
