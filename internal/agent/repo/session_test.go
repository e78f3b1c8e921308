package repo

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inventory-assistant/server/internal/agent/model"
	errx "github.com/inventory-assistant/server/internal/core/error"
)

func newTestRepo(t *testing.T) (*RedisSessionRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisSessionRepository(rdb, model.SessionConfig{TTL: time.Hour, BusyTimeout: time.Minute}), mr
}

func TestRedisSessionRepository_CreateAndExists(t *testing.T) {
	r, mr := newTestRepo(t)
	ctx := context.Background()

	ok, err := r.SessionExists(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.CreateSession(ctx, "s1", time.Now()))
	ok, err = r.SessionExists(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(2 * time.Hour)
	ok, err = r.SessionExists(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisSessionRepository_TranscriptRoundTrip(t *testing.T) {
	r, mr := newTestRepo(t)
	ctx := context.Background()
	ts := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	turns := []model.ChatTurn{
		{Message: "how many rows?", Sender: model.SenderUser, Timestamp: ts},
		{Message: "There are 10 rows.", Sender: model.SenderAssistant, Timestamp: ts.Add(time.Second)},
		{Message: "Failed to retrieve data from inventory. Please try again.", Sender: model.SenderAssistant, Timestamp: ts.Add(2 * time.Second), IsError: true},
	}
	for _, turn := range turns {
		require.NoError(t, r.AppendTurn(ctx, "s1", turn))
	}

	got, err := r.LoadTranscript(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, turns, got.Turns)

	n, err := r.TurnCount(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, time.Hour, mr.TTL("session:s1:turns"))
}

func TestRedisSessionRepository_EmptyTranscript(t *testing.T) {
	r, _ := newTestRepo(t)

	got, err := r.LoadTranscript(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, got.Turns)

	n, err := r.TurnCount(context.Background(), "missing")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisSessionRepository_Clear(t *testing.T) {
	r, mr := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, r.AppendTurn(ctx, "s1", model.ChatTurn{Message: "hi", Sender: model.SenderUser}))
	ok, err := r.AcquireTurn(ctx, "s1", "t1")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, r.ClearTranscript(ctx, "s1"))
	assert.False(t, mr.Exists("session:s1:turns"))
	assert.False(t, mr.Exists("session:s1:busy"))
}

func TestRedisSessionRepository_SingleFlightGuard(t *testing.T) {
	r, mr := newTestRepo(t)
	ctx := context.Background()

	ok, err := r.AcquireTurn(ctx, "s1", "t1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "t1", mustGet(t, mr, "session:s1:busy"))

	ok, err = r.AcquireTurn(ctx, "s1", "t2")
	require.NoError(t, err)
	assert.False(t, ok, "second acquire must fail while the first turn is in flight")

	// other sessions are independent
	ok, err = r.AcquireTurn(ctx, "s2", "t3")
	require.NoError(t, err)
	assert.True(t, ok)

	released, err := r.ReleaseTurn(ctx, "s1", "t1")
	require.NoError(t, err)
	assert.True(t, released)
	ok, err = r.AcquireTurn(ctx, "s1", "t4")
	require.NoError(t, err)
	assert.True(t, ok)

	// a stuck flag expires after the busy timeout
	mr.FastForward(2 * time.Minute)
	ok, err = r.AcquireTurn(ctx, "s1", "t5")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisSessionRepository_StaleReleaseKeepsNewerGuard(t *testing.T) {
	r, mr := newTestRepo(t)
	ctx := context.Background()

	ok, err := r.AcquireTurn(ctx, "s1", "slow")
	require.NoError(t, err)
	require.True(t, ok)

	// the slow turn outlives the busy timeout and a new turn takes the guard
	mr.FastForward(2 * time.Minute)
	ok, err = r.AcquireTurn(ctx, "s1", "fresh")
	require.NoError(t, err)
	require.True(t, ok)

	released, err := r.ReleaseTurn(ctx, "s1", "slow")
	require.NoError(t, err)
	assert.False(t, released)
	assert.Equal(t, "fresh", mustGet(t, mr, "session:s1:busy"))

	ok, err = r.AcquireTurn(ctx, "s1", "third")
	require.NoError(t, err)
	assert.False(t, ok, "the fresh turn still owns the session")

	released, err = r.ReleaseTurn(ctx, "s1", "fresh")
	require.NoError(t, err)
	assert.True(t, released)
	assert.False(t, mr.Exists("session:s1:busy"))
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}

func TestRedisSessionRepository_CorruptTurn(t *testing.T) {
	r, mr := newTestRepo(t)
	_, err := mr.RPush("session:s1:turns", "{not json")
	require.NoError(t, err)

	_, err = r.LoadTranscript(context.Background(), "s1")
	require.Error(t, err)
}

func TestRedisSessionRepository_RedisDown(t *testing.T) {
	r, mr := newTestRepo(t)
	mr.Close()

	err := r.AppendTurn(context.Background(), "s1", model.ChatTurn{Message: "hi"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, errx.StatusOf(err))
}
