package observers

import (
	"strings"
	"testing"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/inventory-assistant/server/internal/metrics"
)

func TestRecordUsage_AddsCostForConfiguredModel(t *testing.T) {
	counter := metrics.LLMCostUSD.WithLabelValues("gemini-2.0-flash")
	before := testutil.ToFloat64(counter)

	recordUsage(&einocb.RunInfo{Name: "Gemini"}, &model.CallbackOutput{
		Message: &schema.Message{
			Role: schema.Assistant,
			ResponseMeta: &schema.ResponseMeta{Usage: &schema.TokenUsage{
				PromptTokens:     1_000_000,
				CompletionTokens: 1_000_000,
				TotalTokens:      2_000_000,
			}},
		},
		Config: &model.Config{Model: "gemini-2.0-flash"},
	})

	assert.InDelta(t, 0.50, testutil.ToFloat64(counter)-before, 1e-9)
}

func TestRecordUsage_FallsBackToCallbackTokenUsage(t *testing.T) {
	counter := metrics.LLMCostUSD.WithLabelValues("gemini-2.0-flash-lite")
	before := testutil.ToFloat64(counter)

	recordUsage(&einocb.RunInfo{Name: "gemini-2.0-flash-lite"}, &model.CallbackOutput{
		TokenUsage: &model.TokenUsage{PromptTokens: 2_000_000},
	})

	assert.InDelta(t, 0.15, testutil.ToFloat64(counter)-before, 1e-9)
}

func TestUsageOf_NoUsage(t *testing.T) {
	assert.Nil(t, usageOf(&model.CallbackOutput{Message: schema.AssistantMessage("hi", nil)}))
}

func TestLastUserContentAndTruncate(t *testing.T) {
	msgs := []*schema.Message{
		schema.SystemMessage("sys"),
		schema.UserMessage(" first "),
		nil,
		schema.AssistantMessage("reply", nil),
	}
	assert.Equal(t, "first", lastUserContent(msgs))
	assert.Equal(t, "", lastUserContent(nil))

	long := strings.Repeat("x", maxLoggedContent+10)
	assert.Len(t, truncate(long), maxLoggedContent+3)
	assert.Equal(t, "short", truncate("short"))
}
