package tabular

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/inventory-assistant/server/internal/dataset"
)

const (
	ToolDescribeTable = "describe_table"
	ToolRunSQL        = "run_sql"

	describeSampleRows = 5
)

type DescribeTableInput struct{}

type DescribeTableOutput struct {
	Description string `json:"description"`
}

type RunSQLInput struct {
	Query string `json:"query"`
}

// RunSQLOutput carries either rows or an error the agent can react to.
type RunSQLOutput struct {
	Rows  string `json:"rows,omitempty"`
	Error string `json:"error,omitempty"`
}

// NewTableTools exposes sb to the agent. SQL failures are returned as tool
// output, not as Go errors, so the agent can correct its statement.
func NewTableTools(sb *dataset.Sandbox) []tool.BaseTool {
	return []tool.BaseTool{
		createDescribeTableTool(sb),
		createRunSQLTool(sb),
	}
}

func createDescribeTableTool(sb *dataset.Sandbox) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolDescribeTable,
			Desc: "Describe the inventory table: column names and types, the total row count and a few sample rows. Takes no arguments.",
		},
		func(ctx context.Context, _ *DescribeTableInput) (*DescribeTableOutput, error) {
			desc, err := sb.Describe(ctx, describeSampleRows)
			if err != nil {
				return nil, err
			}
			return &DescribeTableOutput{Description: desc}, nil
		},
	)
}

func createRunSQLTool(sb *dataset.Sandbox) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolRunSQL,
			Desc: "Run one read-only SQLite SELECT statement against the inventory table and return the resulting rows as text.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {
					Type:     "string",
					Desc:     "A single SQLite SELECT (or WITH ... SELECT) statement. Quote column names with double quotes.",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, in *RunSQLInput) (*RunSQLOutput, error) {
			if strings.TrimSpace(in.Query) == "" {
				return &RunSQLOutput{Error: "query is required"}, nil
			}
			rows, err := sb.Query(ctx, in.Query)
			if err != nil {
				return &RunSQLOutput{Error: err.Error()}, nil
			}
			return &RunSQLOutput{Rows: rows}, nil
		},
	)
}
