package nodes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/inventory-assistant/server/internal/agent/graph/parsers"
	"github.com/inventory-assistant/server/internal/agent/graph/prompts"
	"github.com/inventory-assistant/server/internal/agent/model"
	errx "github.com/inventory-assistant/server/internal/core/error"
	logx "github.com/inventory-assistant/server/pkg/logger"
)

// Node keys of the retrieval graph.
const (
	NodeRetrievalPrompt    = "retrieval_prompt"
	NodeRetrievalChatModel = "retrieval_chat_model"
	NodeToolCall           = string(model.ToolPathCall)
	NodeDirectInvoke       = string(model.ToolPathDirect)
	NodeFormatPrompt       = "format_prompt"
	NodeFormatChatModel    = "format_chat_model"
	NodeAnswerParser       = "answer_parser"

	// NodeNLUParser is the last step of the normalizer chain.
	NodeNLUParser = "nlu_parser"
)

// NewRetrievalPromptPreHandler resets the per-attempt state and records the intent.
func NewRetrievalPromptPreHandler() func(context.Context, string, *model.RetrievalState) (string, error) {
	return func(ctx context.Context, in string, s *model.RetrievalState) (string, error) {
		s.Intent = in
		s.Exchange = nil
		s.TotalCostUSD = 0
		return in, nil
	}
}

// NewRetrievalPromptNode renders the routing prompt for the tool-bound model.
func NewRetrievalPromptNode(toolName, formatInstructions string) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, intent string) ([]*schema.Message, error) {
		return prompts.RenderRetrieval(ctx, intent, toolName, formatInstructions)
	})
}

// NewChatModelCostPostHandler adds the cost of each model reply to the attempt total.
func NewChatModelCostPostHandler(modelName string) func(context.Context, *schema.Message, *model.RetrievalState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, s *model.RetrievalState) (*schema.Message, error) {
		if out == nil || out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
			return out, nil
		}
		_, _, total := model.ComputeCost(out.ResponseMeta.Usage, model.ResolvePricing(modelName))
		s.TotalCostUSD += total
		return out, nil
	}
}

// NewToolRouteCondition sends replies with tool calls to the tool-call node
// and everything else to the direct invocation fallback.
func NewToolRouteCondition() func(context.Context, *schema.Message) (string, error) {
	return func(ctx context.Context, in *schema.Message) (string, error) {
		if in != nil && len(in.ToolCalls) > 0 {
			logx.Debug().Int("tool_count", len(in.ToolCalls)).Msg("Routing to tool call")
			return NodeToolCall, nil
		}
		logx.Debug().Msg("No tool calls - invoking tool directly")
		return NodeDirectInvoke, nil
	}
}

// NewToolCallNode runs the first tool call of the reply with the arguments
// the model supplied. Further tool calls are ignored.
func NewToolCallNode(t tool.InvokableTool, toolName string) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *schema.Message) (model.ToolExchange, error) {
		if in == nil || len(in.ToolCalls) == 0 {
			return model.ToolExchange{}, fmt.Errorf("tool call node reached without tool calls")
		}
		call := in.ToolCalls[0]
		if len(in.ToolCalls) > 1 {
			logx.Debug().Int("tool_count", len(in.ToolCalls)).Msg("Only the first tool call is honoured")
		}
		if call.Function.Name != toolName {
			logx.Warn().Str("tool_name", call.Function.Name).Str("expected", toolName).
				Msg("Model named an unknown tool; running the retrieval tool with its arguments")
		}
		return invokeTool(ctx, t, model.ToolPathCall, call.Function.Arguments)
	})
}

// NewDirectInvokeNode runs the tool with the intent as its query when the
// model did not ask for a tool.
func NewDirectInvokeNode(t tool.InvokableTool) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ *schema.Message) (model.ToolExchange, error) {
		var intent string
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.RetrievalState) error {
			intent = s.Intent
			return nil
		}); err != nil {
			return model.ToolExchange{}, fmt.Errorf("failed to access state: %w", err)
		}
		args, err := json.Marshal(map[string]string{"query": intent})
		if err != nil {
			return model.ToolExchange{}, err
		}
		return invokeTool(ctx, t, model.ToolPathDirect, string(args))
	})
}

func invokeTool(ctx context.Context, t tool.InvokableTool, path model.ToolPath, args string) (model.ToolExchange, error) {
	result, err := t.InvokableRun(ctx, args)
	if err != nil {
		if errors.Is(err, errx.ErrUnknownRuntime) {
			MarkConfigError(ctx, err)
		}
		return model.ToolExchange{}, fmt.Errorf("%s: %w", path, err)
	}
	return model.ToolExchange{Path: path, Arguments: args, Result: result}, nil
}

// NewToolExchangePostHandler keeps the exchange in state for later nodes.
func NewToolExchangePostHandler() func(context.Context, model.ToolExchange, *model.RetrievalState) (model.ToolExchange, error) {
	return func(ctx context.Context, out model.ToolExchange, s *model.RetrievalState) (model.ToolExchange, error) {
		s.Exchange = &out
		logx.Debug().Str("path", string(out.Path)).Int("result_len", len(out.Result)).Msg("Tool exchange recorded")
		return out, nil
	}
}

// NewFormatPromptNode renders the formatting prompt from the intent and the
// tool exchange. Both tool paths arrive here with the same shape.
func NewFormatPromptNode(formatInstructions string) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, exchange model.ToolExchange) ([]*schema.Message, error) {
		var intent string
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.RetrievalState) error {
			intent = s.Intent
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}
		return prompts.RenderFormat(ctx, intent, exchange, formatInstructions)
	})
}

// NewAnswerParserNode validates the formatter reply against the answer schema.
func NewAnswerParserNode(p *parsers.Parser[model.AnswerRecord]) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, resp *schema.Message) (*model.AnswerRecord, error) {
		if resp == nil {
			return nil, fmt.Errorf("format model returned no message")
		}
		rec, err := p.Parse(resp.Content)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(rec.Query) == "" || strings.TrimSpace(rec.Response) == "" || strings.TrimSpace(rec.ParaphrasedOutput) == "" {
			return nil, fmt.Errorf("answer record has empty fields")
		}
		return rec, nil
	})
}

// NewAnswerParserPostHandler logs the attempt summary.
func NewAnswerParserPostHandler() func(context.Context, *model.AnswerRecord, *model.RetrievalState) (*model.AnswerRecord, error) {
	return func(ctx context.Context, out *model.AnswerRecord, s *model.RetrievalState) (*model.AnswerRecord, error) {
		ev := logx.Debug().Float64("total_cost_usd", s.TotalCostUSD)
		if s.Exchange != nil {
			ev = ev.Str("path", string(s.Exchange.Path))
		}
		ev.Msg("Answer parsed")
		return out, nil
	}
}

// NewIntentParserNode validates the NLU reply against the intent schema.
func NewIntentParserNode(p *parsers.Parser[model.IntentRecord]) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, resp *schema.Message) (*model.IntentRecord, error) {
		if resp == nil {
			return nil, fmt.Errorf("nlu model returned no message")
		}
		rec, err := p.Parse(resp.Content)
		if err != nil {
			logx.Debug().Err(err).Msg("Error parsing NLU response")
			return nil, err
		}
		if strings.TrimSpace(rec.UserIntent) == "" || strings.TrimSpace(rec.ActualInput) == "" {
			return nil, fmt.Errorf("intent record has empty fields")
		}
		return rec, nil
	})
}
