package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errx "github.com/inventory-assistant/server/internal/core/error"
)

func TestParseEnvironment(t *testing.T) {
	assert.Equal(t, Production, ParseEnvironment("production"))
	assert.Equal(t, Production, ParseEnvironment(" PRODUCTION "))
	assert.Equal(t, Staging, ParseEnvironment("staging"))
	assert.Equal(t, Development, ParseEnvironment("whatever"))
	assert.True(t, Production.IsProduction())
	assert.False(t, Testing.IsProduction())
}

func TestParseRuntime(t *testing.T) {
	rt, err := ParseRuntime("local")
	require.NoError(t, err)
	assert.Equal(t, RuntimeLocal, rt)

	rt, err = ParseRuntime("streamlit")
	require.NoError(t, err)
	assert.Equal(t, RuntimeHosted, rt)
}

func TestParseRuntime_UnknownIsConfigError(t *testing.T) {
	for _, v := range []string{"production", "", "Local"} {
		_, err := ParseRuntime(v)
		require.Error(t, err, v)
		assert.ErrorIs(t, err, errx.ErrUnknownRuntime)
	}
}
