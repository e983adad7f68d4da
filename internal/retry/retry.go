// Package retry wraps fallible operations with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// SleepFunc waits for d or until the context finishes. Tests inject a fake
// to make backoff schedules deterministic.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy executes operations with exponential backoff between attempts.
// Delays follow baseDelay * 2^(attempt-1).
type Policy struct {
	maxAttempts int
	baseDelay   time.Duration
	sleep       SleepFunc
}

// FatalError marks a failure as non-retryable. Execute unwraps it and
// short-circuits regardless of remaining attempts.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %v", e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal wraps err so Execute stops retrying immediately.
func Fatal(err error) error {
	return &FatalError{Err: err}
}

// New builds a Policy. maxAttempts counts the initial attempt, so 4 means
// one try plus three retries.
func New(maxAttempts int, baseDelay time.Duration) *Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Policy{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		sleep:       sleepContext,
	}
}

// WithSleep replaces the wait implementation.
func (p *Policy) WithSleep(fn SleepFunc) *Policy {
	p.sleep = fn
	return p
}

// Execute runs op until it succeeds, fails fatally, or attempts are
// exhausted. It returns the number of attempts made and the final error.
func (p *Policy) Execute(ctx context.Context, op func(ctx context.Context) error) (int, error) {
	delay := p.baseDelay
	var err error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		err = op(ctx)
		if err == nil {
			return attempt, nil
		}
		var fatal *FatalError
		if errors.As(err, &fatal) {
			return attempt, fatal.Err
		}
		if attempt == p.maxAttempts {
			return attempt, err
		}
		if werr := p.sleep(ctx, delay); werr != nil {
			return attempt, werr
		}
		delay *= 2
	}
	return p.maxAttempts, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
