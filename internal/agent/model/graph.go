package model

// ToolPath records how the retrieval tool was reached in an attempt.
type ToolPath string

const (
	// ToolPathCall means the model emitted a tool call and its arguments were used.
	ToolPathCall ToolPath = "tool_call"
	// ToolPathDirect means the model answered without a tool call and the
	// tool was invoked with the intent text.
	ToolPathDirect ToolPath = "direct_invoke"
)

// ToolExchange is what the formatter sees of a tool invocation, whichever
// path produced it.
type ToolExchange struct {
	Path      ToolPath
	Arguments string
	Result    string
}

// RetrievalState stores per-invocation state for the retrieval graph.
// Concurrency model:
//   - Registered as graph local state via compose.WithGenLocalState, so each
//     Invoke (and therefore each retry attempt) starts from a fresh value.
//   - Reads/writes happen only inside state handlers or compose.ProcessState.
type RetrievalState struct {
	Intent   string
	Exchange *ToolExchange

	// Accumulated LLM cost (USD) across model invocations for this attempt
	TotalCostUSD float64
}
