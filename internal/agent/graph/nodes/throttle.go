package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"
)

// Throttled waits on a shared limiter before every model request.
type Throttled struct {
	inner   einomodel.ToolCallingChatModel
	limiter *rate.Limiter
}

var _ einomodel.ToolCallingChatModel = (*Throttled)(nil)

// NewThrottled wraps inner. With a nil limiter inner is returned unchanged.
func NewThrottled(inner einomodel.ToolCallingChatModel, limiter *rate.Limiter) einomodel.ToolCallingChatModel {
	if limiter == nil {
		return inner
	}
	return &Throttled{inner: inner, limiter: limiter}
}

func (t *Throttled) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("model rate limit: %w", err)
	}
	return t.inner.Generate(ctx, input, opts...)
}

func (t *Throttled) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("model rate limit: %w", err)
	}
	return t.inner.Stream(ctx, input, opts...)
}

// WithTools binds tools on the wrapped model and keeps the same limiter.
func (t *Throttled) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	bound, err := t.inner.WithTools(tools)
	if err != nil {
		return nil, err
	}
	return &Throttled{inner: bound, limiter: t.limiter}, nil
}

// IsCallbacksEnabled reports whether the wrapped model emits its own
// callbacks, so the graph does not emit them twice.
func (t *Throttled) IsCallbacksEnabled() bool {
	return components.IsCallbacksEnabled(t.inner)
}

func (t *Throttled) GetType() string {
	if typ, ok := components.GetType(t.inner); ok {
		return typ
	}
	return "Throttled"
}
