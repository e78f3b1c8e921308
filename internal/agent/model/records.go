package model

// IntentRecord is the normalised form of a raw user query.
type IntentRecord struct {
	ActualInput string `json:"actual_input"`
	UserIntent  string `json:"user_intent"`
}

// AnswerRecord is the structured reply produced by the retrieval orchestrator.
type AnswerRecord struct {
	Query             string `json:"query"`
	Response          string `json:"response"`
	ParaphrasedOutput string `json:"paraphrased_output"`
}

// IntentRecordSchema is the JSON schema the normaliser output must satisfy.
var IntentRecordSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"actual_input": map[string]any{
			"type":        "string",
			"minLength":   1,
			"description": "The actual user input",
		},
		"user_intent": map[string]any{
			"type":        "string",
			"minLength":   1,
			"description": "What the user have asked for that can be processed by LLM in next chain",
		},
	},
	"required": []any{"actual_input", "user_intent"},
}

// AnswerRecordSchema is the JSON schema the formatted retrieval answer must satisfy.
var AnswerRecordSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"query": map[string]any{
			"type":        "string",
			"minLength":   1,
			"description": "The query sent to the tool to retrieve the information",
		},
		"response": map[string]any{
			"type":        "string",
			"minLength":   1,
			"description": "The complete output received from the tool for the received query (even if it is long)",
		},
		"paraphrased_output": map[string]any{
			"type":        "string",
			"minLength":   1,
			"description": "The paraphrased complete output from the received which includes the response but in the human-understandable format",
		},
	},
	"required": []any{"query", "response", "paraphrased_output"},
}
