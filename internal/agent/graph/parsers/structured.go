package parsers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/inventory-assistant/server/internal/agent/model"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 256 * 1024 // 256KB
	maxErrSnippet = 200
)

var ErrNoJSONObject = errors.New("no JSON object found in model output")

const formatInstructionsTemplate = `The output should be formatted as a JSON instance that conforms to the JSON schema below.

As an example, for the schema {"properties": {"foo": {"title": "Foo", "description": "a list of strings", "type": "array", "items": {"type": "string"}}}, "required": ["foo"]}
the object {"foo": ["bar", "baz"]} is a well-formatted instance of the schema. The object {"properties": {"foo": ["bar", "baz"]}} is not well-formatted.

Here is the output schema:
` + "```" + `
%s
` + "```"

// Parser validates model output against a JSON schema and decodes it into T.
type Parser[T any] struct {
	schema       map[string]any
	schemaLoader gojsonschema.JSONLoader
	instructions string
}

// NewParser builds a parser for the given schema document.
func NewParser[T any](schema map[string]any) (*Parser[T], error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal output schema: %w", err)
	}
	loader := gojsonschema.NewGoLoader(schema)
	if _, err := gojsonschema.NewSchema(loader); err != nil {
		return nil, fmt.Errorf("compile output schema: %w", err)
	}
	return &Parser[T]{
		schema:       schema,
		schemaLoader: loader,
		instructions: fmt.Sprintf(formatInstructionsTemplate, raw),
	}, nil
}

// NewIntentParser returns the parser for IntentRecord replies.
func NewIntentParser() (*Parser[model.IntentRecord], error) {
	return NewParser[model.IntentRecord](model.IntentRecordSchema)
}

// NewAnswerParser returns the parser for AnswerRecord replies.
func NewAnswerParser() (*Parser[model.AnswerRecord], error) {
	return NewParser[model.AnswerRecord](model.AnswerRecordSchema)
}

// FormatInstructions describes the expected output shape for inclusion in a prompt.
func (p *Parser[T]) FormatInstructions() string {
	return p.instructions
}

// Parse extracts the JSON object from content, validates it and decodes it.
func (p *Parser[T]) Parse(content string) (*T, error) {
	if len(content) > maxContentLen {
		return nil, fmt.Errorf("model output too large: %d bytes", len(content))
	}
	raw, err := extractJSONObject(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, snippet(content))
	}

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode model output: %w", err)
	}

	result, err := gojsonschema.Validate(p.schemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return nil, fmt.Errorf("model output does not match schema: %s", strings.Join(errs, "; "))
	}

	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode model output: %w", err)
	}
	return &out, nil
}

// extractJSONObject prefers a fenced ```json block and otherwise takes the
// span from the first '{' to the last '}'.
func extractJSONObject(content string) (string, error) {
	s := strings.TrimSpace(content)
	if start := strings.Index(s, "```"); start >= 0 {
		rest := s[start+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			// drop the language tag line
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			if inner := strings.TrimSpace(rest[:end]); strings.HasPrefix(inner, "{") {
				return inner, nil
			}
		}
	}

	first := strings.IndexByte(s, '{')
	last := strings.LastIndexByte(s, '}')
	if first < 0 || last < first {
		return "", ErrNoJSONObject
	}
	return s[first : last+1], nil
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}
