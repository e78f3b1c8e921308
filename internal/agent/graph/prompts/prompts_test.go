package prompts

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inventory-assistant/server/internal/agent/model"
)

func TestNLUTemplate(t *testing.T) {
	msgs, err := NLUTemplate().Format(context.Background(), map[string]any{
		VarText:               "any adhesives for rubber tyres?",
		VarFormatInstructions: `{"type":"object"}`,
	})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, schema.User, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "Natural Language Understanding for Inventory Management Domain")
	assert.Contains(t, msgs[0].Content, "The user input: any adhesives for rubber tyres?")
	assert.Contains(t, msgs[0].Content, `{"type":"object"}`)
}

func TestRenderRetrieval(t *testing.T) {
	msgs, err := RenderRetrieval(context.Background(), "How many rows?", "dataframe_scraper", "SCHEMA")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Content, "Query: How many rows?")
	assert.Contains(t, msgs[0].Content, "pass to the dataframe_scraper tool")
	assert.Contains(t, msgs[0].Content, "SCHEMA")
}

func TestRenderFormat_KeepsBracesInValues(t *testing.T) {
	msgs, err := RenderFormat(context.Background(), "q", model.ToolExchange{
		Path:      model.ToolPathDirect,
		Arguments: `{"query":"q"}`,
		Result:    "map{a:1}",
	}, "SCHEMA")
	require.NoError(t, err)
	assert.Contains(t, msgs[0].Content, `The tool was called with: {"query":"q"}`)
	assert.Contains(t, msgs[0].Content, "The tool returned: map{a:1}")
}

func TestRenderTabularSystem(t *testing.T) {
	out, err := RenderTabularSystem(context.Background(), TabularPromptData{
		Table:    "inventory",
		RowCount: 10,
		Columns: []TabularColumn{
			{Name: "Product Name", Type: "TEXT"},
			{Name: "Quantity", Type: "REAL"},
		},
		DescribeTool:  "describe_table",
		QueryTool:     "run_sql",
		MaxIterations: 20,
	})
	require.NoError(t, err)
	assert.Contains(t, out, `"inventory"`)
	assert.Contains(t, out, "It has 10 rows")
	assert.Contains(t, out, `- "Product Name" (TEXT)`)
	assert.Contains(t, out, "at most 20 tool rounds")
}
