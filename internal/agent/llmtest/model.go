// Package llmtest provides deterministic chat models for exercising chains,
// graphs and agents without a hosted model.
package llmtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// RespondFunc produces the reply for the n-th call (1-based).
type RespondFunc func(ctx context.Context, in []*schema.Message, call int) (*schema.Message, error)

// ScriptedModel is a model.ToolCallingChatModel whose replies come from a
// RespondFunc. It records every input it receives.
type ScriptedModel struct {
	respond RespondFunc

	mu     sync.Mutex
	calls  int
	inputs [][]*schema.Message
	tools  []*schema.ToolInfo
}

var _ model.ToolCallingChatModel = (*ScriptedModel)(nil)

func New(respond RespondFunc) *ScriptedModel {
	return &ScriptedModel{respond: respond}
}

// Reply is one scripted outcome.
type Reply struct {
	Message *schema.Message
	Err     error
}

// Text is a plain assistant reply.
func Text(content string) Reply {
	return Reply{Message: schema.AssistantMessage(content, nil)}
}

// Fail is a model error.
func Fail(err error) Reply {
	return Reply{Err: err}
}

// ToolCall is an assistant reply carrying one tool call.
func ToolCall(id, name, arguments string) Reply {
	return Reply{Message: schema.AssistantMessage("", []schema.ToolCall{{
		ID:       id,
		Function: schema.FunctionCall{Name: name, Arguments: arguments},
	}})}
}

// Sequence replays replies in order; once exhausted the last one repeats.
func Sequence(replies ...Reply) *ScriptedModel {
	return New(func(_ context.Context, _ []*schema.Message, call int) (*schema.Message, error) {
		if len(replies) == 0 {
			return nil, fmt.Errorf("llmtest: no scripted replies")
		}
		r := replies[len(replies)-1]
		if call <= len(replies) {
			r = replies[call-1]
		}
		if r.Err != nil {
			return nil, r.Err
		}
		// hand out a copy so callers cannot mutate the script
		msg := *r.Message
		return &msg, nil
	})
}

func (m *ScriptedModel) Generate(ctx context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.inputs = append(m.inputs, in)
	m.mu.Unlock()
	return m.respond(ctx, in, call)
}

func (m *ScriptedModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, in, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// WithTools records the tools and returns the same model so call counts
// stay shared.
func (m *ScriptedModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tools = tools
	return m, nil
}

func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Input returns the messages of the n-th call (1-based).
func (m *ScriptedModel) Input(call int) []*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if call < 1 || call > len(m.inputs) {
		return nil
	}
	return m.inputs[call-1]
}

func (m *ScriptedModel) Tools() []*schema.ToolInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tools
}

// LastUserContent returns the content of the last user message of the n-th call.
func (m *ScriptedModel) LastUserContent(call int) string {
	in := m.Input(call)
	for i := len(in) - 1; i >= 0; i-- {
		if in[i] != nil && in[i].Role == schema.User {
			return in[i].Content
		}
	}
	return ""
}
