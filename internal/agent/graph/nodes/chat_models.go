package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	einomodel "github.com/cloudwego/eino/components/model"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/inventory-assistant/server/internal/agent/model"
	logx "github.com/inventory-assistant/server/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	APIKey    string
	BaseURL   string
	NLU       model.NLUModelConfig
	Retrieval model.RetrievalModelConfig
	Tabular   model.TabularAgentConfig
	Throttle  model.ThrottleConfig
}

// ChatModels holds one model per pipeline stage. All of them share a
// single Gemini client and a single request limiter.
type ChatModels struct {
	NLU       einomodel.ToolCallingChatModel
	Retrieval einomodel.ToolCallingChatModel
	Tabular   einomodel.ToolCallingChatModel

	NLUModelName       string
	RetrievalModelName string
	TabularModelName   string
}

// NewChatModels creates the NLU, retrieval and tabular chat models.
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is empty")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	limiter := NewLimiter(config.Throttle)

	chatModelNLU, err := newGeminiModel(ctx, client, config.NLU.Model, config.NLU.Temperature, config.NLU.MaxTokens)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating NLU model")
		return nil, fmt.Errorf("error creating NLU model: %w", err)
	}

	chatModelRetrieval, err := newGeminiModel(ctx, client, config.Retrieval.Model, config.Retrieval.Temperature, config.Retrieval.MaxTokens)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating retrieval model")
		return nil, fmt.Errorf("error creating retrieval model: %w", err)
	}

	// the tabular agent always runs at temperature zero
	chatModelTabular, err := newGeminiModel(ctx, client, config.Tabular.Model, 0, config.Tabular.MaxTokens)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating tabular model")
		return nil, fmt.Errorf("error creating tabular model: %w", err)
	}

	return &ChatModels{
		NLU:                NewThrottled(chatModelNLU, limiter),
		Retrieval:          NewThrottled(chatModelRetrieval, limiter),
		Tabular:            NewThrottled(chatModelTabular, limiter),
		NLUModelName:       config.NLU.Model,
		RetrievalModelName: config.Retrieval.Model,
		TabularModelName:   config.Tabular.Model,
	}, nil
}

func newGeminiModel(ctx context.Context, client *genai.Client, name string, temperature float32, maxTokens int) (*gemini.ChatModel, error) {
	if name == "" {
		return nil, fmt.Errorf("model name is empty")
	}
	return gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       name,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
}

// NewLimiter turns a requests-per-minute budget into a token bucket. A
// non-positive rate disables throttling.
func NewLimiter(cfg model.ThrottleConfig) *rate.Limiter {
	if cfg.RequestsPerMinute <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), burst)
}
