package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	StageNormalize = "normalize"
	StageAnswer    = "answer"
)

var (
	PipelineCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_pipeline_calls_total",
			Help: "Total number of pipeline calls by stage and outcome",
		},
		[]string{"stage", "outcome"},
	)

	PipelineAttemptFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_pipeline_attempt_failures_total",
			Help: "Total number of failed attempts by stage",
		},
		[]string{"stage"},
	)

	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inventory_pipeline_duration_seconds",
			Help:    "Duration of pipeline calls in seconds, retries included",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"stage"},
	)

	RetrievalToolErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inventory_retrieval_tool_errors_total",
			Help: "Total number of retrieval tool failures reported as text",
		},
	)

	LLMCostUSD = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_llm_cost_usd_total",
			Help: "Accumulated model cost in USD",
		},
		[]string{"model"},
	)

	SessionTurns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_session_turns_total",
			Help: "Total number of chat turns by outcome",
		},
		[]string{"outcome"},
	)
)
