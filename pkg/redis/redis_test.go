package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_New(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &Config{URL: "redis://" + mr.Addr() + "/0", ReadTimeout: 1, WriteTimeout: 1, DialTimeout: 1}

	client, err := cfg.New(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestConfig_NewInvalidURL(t *testing.T) {
	cfg := &Config{URL: "not-a-url"}

	_, err := cfg.New(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse redis url")
}

func TestConfig_NewUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := &Config{URL: "redis://" + addr + "/0", ReadTimeout: 1, WriteTimeout: 1, DialTimeout: 1}
	_, err := cfg.New(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping redis")
}
