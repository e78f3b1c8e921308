package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntentParser_PlainJSON(t *testing.T) {
	p, err := NewIntentParser()
	require.NoError(t, err)

	rec, err := p.Parse(`{"actual_input":"how many rows?","user_intent":"Count the rows in the inventory table"}`)
	require.NoError(t, err)
	assert.Equal(t, "how many rows?", rec.ActualInput)
	assert.Equal(t, "Count the rows in the inventory table", rec.UserIntent)
}

func TestIntentParser_FencedBlockWithChatter(t *testing.T) {
	p, err := NewIntentParser()
	require.NoError(t, err)

	content := "Sure! Here it is:\n```json\n{\"actual_input\": \"stock of X\", \"user_intent\": \"Stock level of product X\"}\n```\nHope this helps {not json}"
	rec, err := p.Parse(content)
	require.NoError(t, err)
	assert.Equal(t, "stock of X", rec.ActualInput)
}

func TestIntentParser_RejectsEmptyField(t *testing.T) {
	p, err := NewIntentParser()
	require.NoError(t, err)

	_, err = p.Parse(`{"actual_input":"hi","user_intent":""}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user_intent")
}

func TestIntentParser_RejectsMissingField(t *testing.T) {
	p, err := NewIntentParser()
	require.NoError(t, err)

	_, err = p.Parse(`{"actual_input":"hi"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match schema")
}

func TestIntentParser_RejectsProse(t *testing.T) {
	p, err := NewIntentParser()
	require.NoError(t, err)

	_, err = p.Parse("I could not understand the question.")
	require.ErrorIs(t, err, ErrNoJSONObject)
}

func TestAnswerParser_RequiresAllFields(t *testing.T) {
	p, err := NewAnswerParser()
	require.NoError(t, err)

	rec, err := p.Parse(`{"query":"q","response":"r","paraphrased_output":"p"}`)
	require.NoError(t, err)
	assert.Equal(t, "p", rec.ParaphrasedOutput)

	_, err = p.Parse(`{"query":"q","response":"r"}`)
	require.Error(t, err)

	_, err = p.Parse(`{"query":"q","response":7,"paraphrased_output":"p"}`)
	require.Error(t, err)
}

func TestFormatInstructions_EmbedsSchema(t *testing.T) {
	p, err := NewAnswerParser()
	require.NoError(t, err)

	ins := p.FormatInstructions()
	assert.Contains(t, ins, "JSON schema")
	assert.Contains(t, ins, `"paraphrased_output"`)
	assert.Contains(t, ins, "The query sent to the tool to retrieve the information")
}
