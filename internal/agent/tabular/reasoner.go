// Package tabular answers natural-language questions over the inventory
// table with a ReAct agent that can only run read-only SQL.
package tabular

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/flow/agent"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"

	"github.com/inventory-assistant/server/internal/agent/graph/observers"
	"github.com/inventory-assistant/server/internal/agent/graph/prompts"
	"github.com/inventory-assistant/server/internal/agent/model"
	"github.com/inventory-assistant/server/internal/dataset"
	logx "github.com/inventory-assistant/server/pkg/logger"
)

const DefaultMaxIterations = 20

var ErrEmptyAnswer = errors.New("tabular agent returned an empty answer")

// ReactReasoner builds a fresh agent and sandbox for every question.
type ReactReasoner struct {
	model         einomodel.ToolCallingChatModel
	maxIterations int
	maxRows       int
}

func NewReactReasoner(cm einomodel.ToolCallingChatModel, cfg model.TabularAgentConfig) (*ReactReasoner, error) {
	if cm == nil {
		return nil, fmt.Errorf("tabular chat model is nil")
	}
	iters := cfg.MaxIterations
	if iters <= 0 {
		iters = DefaultMaxIterations
	}
	return &ReactReasoner{model: cm, maxIterations: iters, maxRows: cfg.MaxResultRows}, nil
}

// Answer loads t into a sandbox and lets the agent query it until it
// produces a final answer or runs out of iterations.
func (r *ReactReasoner) Answer(ctx context.Context, t *dataset.Table, question string) (string, error) {
	sb, err := dataset.NewSandbox(ctx, t, r.maxRows)
	if err != nil {
		return "", fmt.Errorf("prepare sandbox: %w", err)
	}
	defer sb.Close()

	cols := sb.Columns()
	promptCols := make([]prompts.TabularColumn, len(cols))
	for i, c := range cols {
		promptCols[i] = prompts.TabularColumn{Name: c.Name, Type: c.Type}
	}
	system, err := prompts.RenderTabularSystem(ctx, prompts.TabularPromptData{
		Table:         sb.Table(),
		RowCount:      sb.RowCount(),
		Columns:       promptCols,
		DescribeTool:  ToolDescribeTable,
		QueryTool:     ToolRunSQL,
		MaxIterations: r.maxIterations,
	})
	if err != nil {
		return "", err
	}

	ag, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: r.model,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools:               NewTableTools(sb),
			ExecuteSequentially: true,
		},
		// one model step plus one tools step per iteration, and the final answer
		MaxStep: 2*r.maxIterations + 1,
	})
	if err != nil {
		return "", fmt.Errorf("create tabular agent: %w", err)
	}

	out, err := ag.Generate(ctx, []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(question),
	}, agent.WithComposeOptions(compose.WithCallbacks(observers.NewAllCallbacks())))
	if err != nil {
		logx.Warn().Err(err).Int("max_iterations", r.maxIterations).Msg("tabular agent failed")
		return "", fmt.Errorf("tabular agent: %w", err)
	}
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return "", ErrEmptyAnswer
	}
	return strings.TrimSpace(out.Content), nil
}
