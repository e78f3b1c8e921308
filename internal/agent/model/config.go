package model

import "time"

// ================ Config ================
type NLUModelConfig struct {
	Model       string  `envconfig:"NLU_MODEL" default:"gemini-2.0-flash-lite"`
	MaxTokens   int     `envconfig:"NLU_MAX_TOKENS" default:"1024"`
	Temperature float32 `envconfig:"NLU_TEMPERATURE" default:"0"`
}

type RetrievalModelConfig struct {
	Model       string  `envconfig:"RETRIEVAL_MODEL" default:"gemini-2.0-flash"`
	MaxTokens   int     `envconfig:"RETRIEVAL_MAX_TOKENS" default:"4096"`
	Temperature float32 `envconfig:"RETRIEVAL_TEMPERATURE" default:"0"`
}

// TabularAgentConfig configures the agent that reasons over the dataset.
// Its temperature is always zero.
type TabularAgentConfig struct {
	Model         string `envconfig:"TABULAR_MODEL" default:"gemini-2.0-flash"`
	MaxTokens     int    `envconfig:"TABULAR_MAX_TOKENS" default:"4096"`
	MaxIterations int    `envconfig:"TABULAR_MAX_ITERATIONS" default:"20"`
	MaxResultRows int    `envconfig:"TABULAR_MAX_RESULT_ROWS" default:"200"`
}

type RetryConfig struct {
	MaxAttempts int           `envconfig:"PIPELINE_MAX_ATTEMPTS" default:"5"`
	BackoffStep time.Duration `envconfig:"PIPELINE_BACKOFF_STEP" default:"5s"`
}

type DatasetConfig struct {
	Runtime    string `envconfig:"RUNTIME_ENVIRONMENT" default:"local"`
	LocalPath  string `envconfig:"DATASET_LOCAL_PATH" default:"./data/excel/henkel_inventory_dummy_data.xlsx"`
	HostedPath string `envconfig:"DATASET_HOSTED_PATH" default:"./data/excel/henkel_inventory_dummy_data.xlsx"`
	// Sheet defaults to the first sheet of the workbook.
	Sheet string `envconfig:"DATASET_SHEET"`
	Table string `envconfig:"DATASET_TABLE" default:"inventory"`
}

type SessionConfig struct {
	TTL         time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	BusyTimeout time.Duration `envconfig:"SESSION_BUSY_TIMEOUT" default:"10m"`
}

type ThrottleConfig struct {
	RequestsPerMinute int `envconfig:"MODEL_REQUESTS_PER_MINUTE" default:"15"`
	Burst             int `envconfig:"MODEL_REQUESTS_BURST" default:"1"`
}
