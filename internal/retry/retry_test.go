package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fakeSleep(delays *[]time.Duration) SleepFunc {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestExecuteRetryableExhausts(t *testing.T) {
	t.Parallel()

	var delays []time.Duration
	policy := New(4, time.Second).WithSleep(fakeSleep(&delays))

	calls := 0
	boom := errors.New("transient")
	attempts, err := policy.Execute(context.Background(), func(context.Context) error {
		calls++
		return boom
	})

	require.ErrorIs(t, err, boom)
	require.Equal(t, 4, attempts)
	require.Equal(t, 4, calls)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, delays)
}

func TestExecuteSucceedsAfterRetries(t *testing.T) {
	t.Parallel()

	var delays []time.Duration
	policy := New(4, time.Second).WithSleep(fakeSleep(&delays))

	calls := 0
	attempts, err := policy.Execute(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 3, attempts)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
}

func TestExecuteFatalShortCircuits(t *testing.T) {
	t.Parallel()

	var delays []time.Duration
	policy := New(4, time.Second).WithSleep(fakeSleep(&delays))

	boom := errors.New("bad request")
	calls := 0
	attempts, err := policy.Execute(context.Background(), func(context.Context) error {
		calls++
		return Fatal(boom)
	})

	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, attempts)
	require.Equal(t, 1, calls)
	require.Empty(t, delays)
}

func TestExecuteContextCanceledDuringWait(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	policy := New(4, time.Second).WithSleep(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	})

	attempts, err := policy.Execute(ctx, func(context.Context) error {
		return errors.New("transient")
	})

	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, attempts)
}

func TestExecuteSuccessFirstTry(t *testing.T) {
	t.Parallel()

	policy := New(4, time.Second).WithSleep(func(context.Context, time.Duration) error {
		t.Fatal("sleep should not be called")
		return nil
	})

	attempts, err := policy.Execute(context.Background(), func(context.Context) error {
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 1, attempts)
}
