package graph

import (
	"context"
	"errors"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/inventory-assistant/server/internal/agent/graph/nodes"
	"github.com/inventory-assistant/server/internal/agent/graph/observers"
	"github.com/inventory-assistant/server/internal/agent/graph/parsers"
	"github.com/inventory-assistant/server/internal/agent/model"
	errx "github.com/inventory-assistant/server/internal/core/error"
	"github.com/inventory-assistant/server/internal/core/retry"
	"github.com/inventory-assistant/server/internal/metrics"
	logx "github.com/inventory-assistant/server/pkg/logger"
)

// maxRunSteps bounds one retrieval attempt. A successful run takes seven.
const maxRunSteps = 20

// RetrieverConfig holds everything needed to build the retrieval graph.
type RetrieverConfig struct {
	// ChatModel routes to the tool (with the tool bound) and formats the answer (without it).
	ChatModel einomodel.ToolCallingChatModel
	ModelName string
	Tool      tool.InvokableTool
	Policy    retry.Policy
}

// GraphBuilder handles the construction of the retrieval graph
type GraphBuilder struct {
	config *RetrieverConfig
	parser *parsers.Parser[model.AnswerRecord]
	graph  *compose.Graph[string, *model.AnswerRecord]
}

// Retriever answers a normalized intent with an AnswerRecord.
type Retriever struct {
	runnable compose.Runnable[string, *model.AnswerRecord]
	policy   retry.Policy
}

// NewRetriever builds and compiles the retrieval graph.
func NewRetriever(ctx context.Context, cfg RetrieverConfig) (*Retriever, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("retrieval chat model is nil")
	}
	if cfg.Tool == nil {
		return nil, fmt.Errorf("retrieval tool is nil")
	}
	parser, err := parsers.NewAnswerParser()
	if err != nil {
		return nil, err
	}

	builder := &GraphBuilder{
		config: &cfg,
		parser: parser,
		graph: compose.NewGraph[string, *model.AnswerRecord](
			compose.WithGenLocalState(func(ctx context.Context) *model.RetrievalState {
				return &model.RetrievalState{}
			}),
		),
	}

	if err := builder.addNodes(ctx); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}
	if err := builder.addBranches(); err != nil {
		return nil, err
	}
	runnable, err := builder.compile(ctx)
	if err != nil {
		return nil, err
	}
	return &Retriever{runnable: runnable, policy: cfg.Policy}, nil
}

// addNodes binds the tool to the routing model and adds all processing nodes.
func (b *GraphBuilder) addNodes(ctx context.Context) error {
	info, err := b.config.Tool.Info(ctx)
	if err != nil {
		logx.Error().Err(err).Msg("Failed to get tool info")
		return fmt.Errorf("failed to get tool info: %w", err)
	}
	routing, err := b.config.ChatModel.WithTools([]*schema.ToolInfo{info})
	if err != nil {
		logx.Error().Err(err).Msg("Failed to bind tools")
		return fmt.Errorf("failed to bind tools: %w", err)
	}
	instructions := b.parser.FormatInstructions()

	steps := []error{
		b.graph.AddLambdaNode(nodes.NodeRetrievalPrompt,
			nodes.NewRetrievalPromptNode(info.Name, instructions),
			compose.WithStatePreHandler(nodes.NewRetrievalPromptPreHandler()),
		),
		b.graph.AddChatModelNode(nodes.NodeRetrievalChatModel, routing,
			compose.WithStatePostHandler(nodes.NewChatModelCostPostHandler(b.config.ModelName)),
		),
		b.graph.AddLambdaNode(nodes.NodeToolCall,
			nodes.NewToolCallNode(b.config.Tool, info.Name),
			compose.WithStatePostHandler(nodes.NewToolExchangePostHandler()),
		),
		b.graph.AddLambdaNode(nodes.NodeDirectInvoke,
			nodes.NewDirectInvokeNode(b.config.Tool),
			compose.WithStatePostHandler(nodes.NewToolExchangePostHandler()),
		),
		b.graph.AddLambdaNode(nodes.NodeFormatPrompt,
			nodes.NewFormatPromptNode(instructions),
		),
		b.graph.AddChatModelNode(nodes.NodeFormatChatModel, b.config.ChatModel,
			compose.WithStatePostHandler(nodes.NewChatModelCostPostHandler(b.config.ModelName)),
		),
		b.graph.AddLambdaNode(nodes.NodeAnswerParser,
			nodes.NewAnswerParserNode(b.parser),
			compose.WithStatePostHandler(nodes.NewAnswerParserPostHandler()),
		),
	}
	if err := errors.Join(steps...); err != nil {
		logx.Error().Err(err).Msg("Error adding retrieval nodes")
		return fmt.Errorf("error adding retrieval nodes: %w", err)
	}
	return nil
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeRetrievalPrompt},
		{nodes.NodeRetrievalPrompt, nodes.NodeRetrievalChatModel},
		{nodes.NodeToolCall, nodes.NodeFormatPrompt},
		{nodes.NodeDirectInvoke, nodes.NodeFormatPrompt},
		{nodes.NodeFormatPrompt, nodes.NodeFormatChatModel},
		{nodes.NodeFormatChatModel, nodes.NodeAnswerParser},
		{nodes.NodeAnswerParser, compose.END},
	}

	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			return fmt.Errorf("error adding edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// addBranches routes the routing model's reply to one of the two tool paths.
func (b *GraphBuilder) addBranches() error {
	toolBranch := compose.NewGraphBranch(
		nodes.NewToolRouteCondition(),
		map[string]bool{
			nodes.NodeToolCall:     true,
			nodes.NodeDirectInvoke: true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeRetrievalChatModel, toolBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding tool branch")
		return fmt.Errorf("error adding tool branch: %w", err)
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[string, *model.AnswerRecord], error) {
	runnable, err := b.graph.Compile(ctx,
		compose.WithGraphName("retrieval"),
		compose.WithMaxRunSteps(maxRunSteps),
	)
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Retrieval graph compiled successfully")
	return runnable, nil
}

// Answer runs the retrieval graph under the retry policy. When every attempt
// fails the record is nil and the error matches retry.ErrExhausted. A
// configuration error stops at once and is returned unchanged.
func (r *Retriever) Answer(ctx context.Context, intent string) (*model.AnswerRecord, error) {
	return runStage(ctx, metrics.StageAnswer, r.policy, func(ctx context.Context, attempt int) (*model.AnswerRecord, error) {
		rec := &nodes.Attempt{Number: attempt}
		out, err := r.runnable.Invoke(nodes.WithAttempt(ctx, rec), intent,
			compose.WithCallbacks(observers.NewAllCallbacks()))
		if err != nil {
			if cfgErr := rec.ConfigError(); cfgErr != nil {
				return nil, retry.Permanent(cfgErr)
			}
			if errors.Is(err, errx.ErrUnknownRuntime) {
				return nil, retry.Permanent(err)
			}
			return nil, err
		}
		if out == nil {
			return nil, fmt.Errorf("retrieval graph returned no answer")
		}
		return out, nil
	})
}
