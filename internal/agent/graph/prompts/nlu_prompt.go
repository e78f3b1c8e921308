package prompts

import (
	_ "embed"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/nlu_prompt.txt
var nluPrompt string

// Variables expected by NLUTemplate.
const (
	VarText               = "text"
	VarFormatInstructions = "format_instructions"
)

// NLUTemplate returns the intent normalisation prompt as an Eino chat
// template so it can sit at the head of a chain and emit prompt callbacks.
func NLUTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(
		schema.FString,
		schema.UserMessage(nluPrompt),
	)
}
