// Package retry runs an operation a bounded number of times with a
// deterministic backoff between failed attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultMaxAttempts = 5
	DefaultBackoffStep = 5 * time.Second
)

// ErrExhausted is matched by the error returned once every attempt has failed.
var ErrExhausted = errors.New("retry attempts exhausted")

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy describes how many times an operation runs and how long to wait
// between failures. The zero value is not usable; use NewPolicy.
type Policy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
	Sleep       SleepFunc
}

// NewPolicy returns a linear policy: after failed attempt k the caller waits
// step*k. Non-positive arguments fall back to the defaults.
func NewPolicy(maxAttempts int, step time.Duration) Policy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if step <= 0 {
		step = DefaultBackoffStep
	}
	return Policy{
		MaxAttempts: maxAttempts,
		Backoff:     Linear(step),
		Sleep:       ContextSleep,
	}
}

// Linear returns a backoff of step*attempt.
func Linear(step time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return step * time.Duration(attempt)
	}
}

// ContextSleep sleeps for d, returning early with ctx.Err() on cancellation.
func ContextSleep(ctx context.Context, d time.Duration) error {
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

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying. Do returns the wrapped error
// unchanged without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// ExhaustedError carries the last failure after all attempts were used.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts: %v", ErrExhausted, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

func (e *ExhaustedError) Is(target error) bool { return target == ErrExhausted }

// FailureHook observes every failed attempt before any backoff.
type FailureHook func(attempt int, err error)

// Do calls op until it succeeds, returns a Permanent error, or MaxAttempts
// is reached. Attempts are numbered from 1. There is no wait after the final
// failure.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context, attempt int) (T, error), onFailure FailureHook) (T, error) {
	var zero T
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.Backoff == nil {
		p.Backoff = Linear(DefaultBackoffStep)
	}
	if p.Sleep == nil {
		p.Sleep = ContextSleep
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		out, err := op(ctx, attempt)
		if err == nil {
			return out, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}

		lastErr = err
		if onFailure != nil {
			onFailure(attempt, err)
		}
		if attempt == p.MaxAttempts {
			break
		}
		if err := p.Sleep(ctx, p.Backoff(attempt)); err != nil {
			return zero, fmt.Errorf("retry interrupted after attempt %d: %w", attempt, err)
		}
	}
	return zero, &ExhaustedError{Attempts: p.MaxAttempts, Last: lastErr}
}
