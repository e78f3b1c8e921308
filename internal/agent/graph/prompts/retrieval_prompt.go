package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/inventory-assistant/server/internal/agent/model"
)

//go:embed template/retrieval_prompt.txt
var retrievalPrompt string

//go:embed template/format_prompt.txt
var formatPrompt string

// RenderRetrieval renders the routing prompt sent to the tool-bound model.
func RenderRetrieval(ctx context.Context, query, toolName, formatInstructions string) ([]*schema.Message, error) {
	tpl := prompt.FromMessages(
		schema.FString,
		schema.UserMessage(retrievalPrompt),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"query":               query,
		"tool_name":           toolName,
		VarFormatInstructions: formatInstructions,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval prompt render: %w", err)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("retrieval prompt render: empty result")
	}
	return msgs, nil
}

// RenderFormat renders the follow-up prompt that turns raw tool output into
// the answer schema. Both tool paths go through it.
func RenderFormat(ctx context.Context, query string, exchange model.ToolExchange, formatInstructions string) ([]*schema.Message, error) {
	tpl := prompt.FromMessages(
		schema.FString,
		schema.UserMessage(formatPrompt),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"query":               query,
		"arguments":           exchange.Arguments,
		"result":              exchange.Result,
		VarFormatInstructions: formatInstructions,
	})
	if err != nil {
		return nil, fmt.Errorf("format prompt render: %w", err)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("format prompt render: empty result")
	}
	return msgs, nil
}
