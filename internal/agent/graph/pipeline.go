package graph

import (
	"context"
	"errors"
	"time"

	"github.com/inventory-assistant/server/internal/agent/graph/nodes"
	"github.com/inventory-assistant/server/internal/agent/graph/tools"
	"github.com/inventory-assistant/server/internal/agent/model"
	"github.com/inventory-assistant/server/internal/agent/tabular"
	"github.com/inventory-assistant/server/internal/core/retry"
	"github.com/inventory-assistant/server/internal/dataset"
	"github.com/inventory-assistant/server/internal/metrics"
	logx "github.com/inventory-assistant/server/pkg/logger"
)

// Config holds everything needed to compose the normalizer and the retriever
// end-to-end against the hosted model.
type Config struct {
	APIKey  string
	BaseURL string

	NLUModel       model.NLUModelConfig
	RetrievalModel model.RetrievalModelConfig
	Tabular        model.TabularAgentConfig
	Dataset        model.DatasetConfig
	Retry          model.RetryConfig
	Throttle       model.ThrottleConfig
}

// Pipeline is the pair of public entry points.
type Pipeline struct {
	Normalizer *Normalizer
	Retriever  *Retriever
}

// BuildPipeline creates the chat models, the retrieval tool and both stages.
func BuildPipeline(ctx context.Context, cfg Config) (*Pipeline, error) {
	cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		NLU:       cfg.NLUModel,
		Retrieval: cfg.RetrievalModel,
		Tabular:   cfg.Tabular,
		Throttle:  cfg.Throttle,
	})
	if err != nil {
		return nil, err
	}

	reasoner, err := tabular.NewReactReasoner(cms.Tabular, cfg.Tabular)
	if err != nil {
		return nil, err
	}
	scraper, err := tools.NewDataframeScraper(dataset.NewFileLoader(cfg.Dataset), reasoner)
	if err != nil {
		return nil, err
	}

	policy := retry.NewPolicy(cfg.Retry.MaxAttempts, cfg.Retry.BackoffStep)

	normalizer, err := NewNormalizer(ctx, cms.NLU, policy)
	if err != nil {
		return nil, err
	}
	retriever, err := NewRetriever(ctx, RetrieverConfig{
		ChatModel: cms.Retrieval,
		ModelName: cms.RetrievalModelName,
		Tool:      scraper,
		Policy:    policy,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().
		Str("nlu_model", cms.NLUModelName).
		Str("retrieval_model", cms.RetrievalModelName).
		Str("tabular_model", cms.TabularModelName).
		Int("max_attempts", policy.MaxAttempts).
		Msg("Pipeline built successfully")
	return &Pipeline{Normalizer: normalizer, Retriever: retriever}, nil
}

// runStage runs op under policy and records the stage metrics. Each failed
// attempt is logged and counted.
func runStage[T any](ctx context.Context, stage string, policy retry.Policy, op func(ctx context.Context, attempt int) (*T, error)) (*T, error) {
	start := time.Now()
	out, err := retry.Do(ctx, policy, op, func(attempt int, err error) {
		metrics.PipelineAttemptFailures.WithLabelValues(stage).Inc()
		logx.Warn().Err(err).Str("stage", stage).Int("attempt", attempt).Int("max_attempts", policy.MaxAttempts).
			Msg("Attempt failed")
	})
	metrics.PipelineDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.PipelineCalls.WithLabelValues(stage, "success").Inc()
		return out, nil
	case errors.Is(err, retry.ErrExhausted):
		metrics.PipelineCalls.WithLabelValues(stage, "exhausted").Inc()
		logx.Error().Err(err).Str("stage", stage).Msg("All attempts failed")
	default:
		metrics.PipelineCalls.WithLabelValues(stage, "aborted").Inc()
		logx.Error().Err(err).Str("stage", stage).Msg("Stage aborted")
	}
	return nil, err
}
