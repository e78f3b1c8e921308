package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/tabular_prompt.txt
var tabularSystemPrompt string

type TabularColumn struct {
	Name string
	Type string
}

// TabularPromptData feeds the tabular agent system prompt.
type TabularPromptData struct {
	Table         string
	RowCount      int
	Columns       []TabularColumn
	DescribeTool  string
	QueryTool     string
	MaxIterations int
}

// RenderTabularSystem renders the system prompt for the tabular agent and
// triggers prompt callbacks.
func RenderTabularSystem(ctx context.Context, data TabularPromptData) (string, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(tabularSystemPrompt),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"Table":         data.Table,
		"RowCount":      data.RowCount,
		"Columns":       data.Columns,
		"DescribeTool":  data.DescribeTool,
		"QueryTool":     data.QueryTool,
		"MaxIterations": data.MaxIterations,
	})
	if err != nil {
		return "", fmt.Errorf("tabular prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("tabular prompt render: empty result")
	}
	return msgs[0].Content, nil
}
