package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/inventory-assistant/server/internal/agent/graph"
	"github.com/inventory-assistant/server/internal/agent/model"
	"github.com/inventory-assistant/server/internal/chat"
	"github.com/inventory-assistant/server/internal/core"
	"github.com/inventory-assistant/server/internal/secrets"
	"github.com/inventory-assistant/server/internal/server"
	logx "github.com/inventory-assistant/server/pkg/logger"
	pkgredis "github.com/inventory-assistant/server/pkg/redis"
)

// AppConfig defines all configurable parameters, sourced from environment
// variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"debug"`

	// Infrastructure
	Redis   pkgredis.Config
	Server  server.Config
	Secrets secrets.Config

	// LLM provider
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Pipeline configs
	NLU       model.NLUModelConfig
	Retrieval model.RetrievalModelConfig
	Tabular   model.TabularAgentConfig
	Dataset   model.DatasetConfig
	Retry     model.RetryConfig
	Throttle  model.ThrottleConfig
	Session   model.SessionConfig
}

// loadConfig reads path (when it exists) into the environment and then
// processes AppConfig. An unknown runtime indicator is reported here, before
// any model call is made.
func loadConfig(path string) (*AppConfig, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
			logx.Debug().Str("path", path).Msg("no dotenv file; using the process environment")
		}
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment config: %w", err)
	}
	if _, err := core.ParseRuntime(cfg.Dataset.Runtime); err != nil {
		logx.Warn().Err(err).Msg("runtime indicator not recognised; retrieval will fail")
	}
	return &cfg, nil
}

func initLogger(cfg *AppConfig) {
	logx.Init(logx.LoggerOpts{
		Environment: core.ParseEnvironment(cfg.Environment),
		Level:       cfg.LogLevel,
	})
}

// buildStages resolves the model credential and builds both pipeline
// stages. Tests replace it.
var buildStages = func(ctx context.Context, cfg *AppConfig) (chat.Normalizer, chat.Retriever, error) {
	resolver, err := secrets.New(ctx, cfg.Secrets)
	if err != nil {
		return nil, nil, err
	}
	apiKey, err := resolver.Resolve(ctx, secrets.GeminiAPIKey)
	if err != nil {
		return nil, nil, err
	}

	p, err := graph.BuildPipeline(ctx, graph.Config{
		APIKey:         apiKey,
		BaseURL:        cfg.BaseURL,
		NLUModel:       cfg.NLU,
		RetrievalModel: cfg.Retrieval,
		Tabular:        cfg.Tabular,
		Dataset:        cfg.Dataset,
		Retry:          cfg.Retry,
		Throttle:       cfg.Throttle,
	})
	if err != nil {
		return nil, nil, err
	}
	return p.Normalizer, p.Retriever, nil
}
