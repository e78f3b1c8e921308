package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSSM struct {
	out   *ssm.GetParameterOutput
	err   error
	input *ssm.GetParameterInput
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.input = in
	return f.out, f.err
}

func strPtr(s string) *string { return &s }

func TestEnvResolver(t *testing.T) {
	r := EnvResolver{Lookup: func(name string) (string, bool) {
		if name == GeminiAPIKey {
			return "key-123", true
		}
		return "", false
	}}

	v, err := r.Resolve(context.Background(), GeminiAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "key-123", v)

	_, err = r.Resolve(context.Background(), "MISSING")
	require.ErrorIs(t, err, ErrSecretNotFound)
}

func TestEnvResolver_BlankIsMissing(t *testing.T) {
	r := EnvResolver{Lookup: func(string) (string, bool) { return "  ", true }}
	_, err := r.Resolve(context.Background(), GeminiAPIKey)
	require.ErrorIs(t, err, ErrSecretNotFound)
}

func TestSSMResolver_PrefixAndDecryption(t *testing.T) {
	api := &fakeSSM{out: &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: strPtr("key-123")}}}
	r, err := NewSSMResolver(api, "/inventory-assistant/")
	require.NoError(t, err)

	v, err := r.Resolve(context.Background(), GeminiAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "key-123", v)
	require.NotNil(t, api.input)
	assert.Equal(t, "/inventory-assistant/GEMINI_API_KEY", *api.input.Name)
	assert.True(t, *api.input.WithDecryption)
}

func TestSSMResolver_Errors(t *testing.T) {
	r, err := NewSSMResolver(&fakeSSM{err: errors.New("access denied")}, "")
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), GeminiAPIKey)
	require.ErrorContains(t, err, "access denied")

	r, err = NewSSMResolver(&fakeSSM{out: &ssm.GetParameterOutput{Parameter: &types.Parameter{}}}, "")
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), GeminiAPIKey)
	require.ErrorIs(t, err, ErrSecretNotFound)

	_, err = r.Resolve(context.Background(), " ")
	require.ErrorContains(t, err, "required")

	_, err = NewSSMResolver(nil, "")
	require.Error(t, err)
}

func TestNew_Backends(t *testing.T) {
	r, err := New(context.Background(), Config{Backend: "ENV"})
	require.NoError(t, err)
	assert.IsType(t, EnvResolver{}, r)

	_, err = New(context.Background(), Config{Backend: "vault"})
	require.ErrorContains(t, err, "unknown backend")
}
