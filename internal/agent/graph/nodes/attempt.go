package nodes

import (
	"context"
	"sync"
)

type attemptKey struct{}

// Attempt is carried in the context of one graph run so the caller can see
// failures that must not be retried, whatever wrapping the graph applies.
type Attempt struct {
	Number int

	mu        sync.Mutex
	configErr error
}

func WithAttempt(ctx context.Context, a *Attempt) context.Context {
	return context.WithValue(ctx, attemptKey{}, a)
}

// MarkConfigError records err on the attempt in ctx, if any.
func MarkConfigError(ctx context.Context, err error) {
	a, ok := ctx.Value(attemptKey{}).(*Attempt)
	if !ok || a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.configErr == nil {
		a.configErr = err
	}
}

func (a *Attempt) ConfigError() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.configErr
}
