package graph

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"

	"github.com/inventory-assistant/server/internal/agent/graph/nodes"
	"github.com/inventory-assistant/server/internal/agent/graph/observers"
	"github.com/inventory-assistant/server/internal/agent/graph/parsers"
	"github.com/inventory-assistant/server/internal/agent/graph/prompts"
	"github.com/inventory-assistant/server/internal/agent/model"
	errx "github.com/inventory-assistant/server/internal/core/error"
	"github.com/inventory-assistant/server/internal/core/retry"
	"github.com/inventory-assistant/server/internal/metrics"
	logx "github.com/inventory-assistant/server/pkg/logger"
)

// Normalizer turns raw user text into an IntentRecord with a single model
// call per attempt.
type Normalizer struct {
	runnable     compose.Runnable[map[string]any, *model.IntentRecord]
	instructions string
	policy       retry.Policy
}

// NewNormalizer compiles the prompt -> model -> parser chain.
func NewNormalizer(ctx context.Context, cm einomodel.ToolCallingChatModel, policy retry.Policy) (*Normalizer, error) {
	if cm == nil {
		return nil, fmt.Errorf("nlu chat model is nil")
	}
	parser, err := parsers.NewIntentParser()
	if err != nil {
		return nil, err
	}

	chain := compose.NewChain[map[string]any, *model.IntentRecord]()
	chain.
		AppendChatTemplate(prompts.NLUTemplate(), compose.WithNodeName("nlu_prompt")).
		AppendChatModel(cm, compose.WithNodeName("nlu_chat_model")).
		AppendLambda(nodes.NewIntentParserNode(parser), compose.WithNodeName(nodes.NodeNLUParser))

	runnable, err := chain.Compile(ctx, compose.WithGraphName("normalizer"))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling normalizer chain")
		return nil, fmt.Errorf("error compiling normalizer chain: %w", err)
	}
	return &Normalizer{
		runnable:     runnable,
		instructions: parser.FormatInstructions(),
		policy:       policy,
	}, nil
}

// Normalize returns the intent for text. Blank text is rejected before any
// model call. When every attempt fails the record is nil and the error
// matches retry.ErrExhausted.
func (n *Normalizer) Normalize(ctx context.Context, text string) (*model.IntentRecord, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errx.BadRequest(errx.ErrEmptyQuery, errx.EmptyQueryMessage)
	}
	vars := map[string]any{
		prompts.VarText:               text,
		prompts.VarFormatInstructions: n.instructions,
	}
	return runStage(ctx, metrics.StageNormalize, n.policy, func(ctx context.Context, attempt int) (*model.IntentRecord, error) {
		out, err := n.runnable.Invoke(ctx, vars, compose.WithCallbacks(observers.NewAllCallbacks()))
		if err != nil {
			return nil, err
		}
		if out.ActualInput != text {
			logx.Debug().Int("attempt", attempt).Msg("Model altered actual_input; restoring the raw text")
			out.ActualInput = text
		}
		return out, nil
	})
}
