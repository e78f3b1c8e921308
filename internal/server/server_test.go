package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inventory-assistant/server/internal/agent/graph/conversations"
	"github.com/inventory-assistant/server/internal/agent/model"
	"github.com/inventory-assistant/server/internal/agent/repo"
	"github.com/inventory-assistant/server/internal/chat"
	errx "github.com/inventory-assistant/server/internal/core/error"
	"github.com/inventory-assistant/server/internal/core/retry"
)

type fakeNormalizer struct {
	rec *model.IntentRecord
	err error
}

func (f *fakeNormalizer) Normalize(_ context.Context, text string) (*model.IntentRecord, error) {
	if text == "" {
		return nil, errx.BadRequest(errx.ErrEmptyQuery, errx.EmptyQueryMessage)
	}
	return f.rec, f.err
}

type fakeRetriever struct {
	rec *model.AnswerRecord
	err error
}

func (f *fakeRetriever) Answer(context.Context, string) (*model.AnswerRecord, error) {
	return f.rec, f.err
}

var (
	okIntent = &model.IntentRecord{ActualInput: "rows?", UserIntent: "Count the rows"}
	okAnswer = &model.AnswerRecord{Query: "Count the rows", Response: "10", ParaphrasedOutput: "There are 10 rows."}
)

func newTestServer(t *testing.T, n chat.Normalizer, r chat.Retriever) *Server {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	sessions := conversations.NewManager(repo.NewRedisSessionRepository(rdb, model.SessionConfig{TTL: time.Hour, BusyTimeout: time.Minute}))
	s := New(Config{}, sessions, n, r)
	s.newID = func() string { return "session-1" }
	return s
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &fakeNormalizer{}, &fakeRetriever{})
	rec := do(t, s, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestNormalizeEndpoint(t *testing.T) {
	s := newTestServer(t, &fakeNormalizer{rec: okIntent}, &fakeRetriever{})

	rec := do(t, s, http.MethodPost, "/api/v1/normalize", normalizeRequest{Text: "rows?"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"actual_input":"rows?","user_intent":"Count the rows"}`, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/api/v1/normalize", normalizeRequest{Text: ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/normalize", bytes.NewBufferString("{"))
	raw := httptest.NewRecorder()
	s.Handler().ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestNormalizeEndpoint_Exhausted(t *testing.T) {
	s := newTestServer(t, &fakeNormalizer{err: &retry.ExhaustedError{Attempts: 5, Last: fmt.Errorf("bad")}}, &fakeRetriever{})

	rec := do(t, s, http.MethodPost, "/api/v1/normalize", normalizeRequest{Text: "rows?"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), chat.UnderstandFailedMessage)
}

func TestAnswerEndpoint(t *testing.T) {
	s := newTestServer(t, &fakeNormalizer{}, &fakeRetriever{rec: okAnswer})

	rec := do(t, s, http.MethodPost, "/api/v1/answer", answerRequest{Intent: "Count the rows"})
	require.Equal(t, http.StatusOK, rec.Code)
	var got model.AnswerRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, *okAnswer, got)
}

func TestAnswerEndpoint_ConfigError(t *testing.T) {
	cfgErr := errx.WrapConfig(fmt.Errorf("%w: %q", errx.ErrUnknownRuntime, "production"))
	s := newTestServer(t, &fakeNormalizer{}, &fakeRetriever{err: cfgErr})

	rec := do(t, s, http.MethodPost, "/api/v1/answer", answerRequest{Intent: "Count the rows"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), errx.ConfigErrorMessage)
	assert.NotContains(t, rec.Body.String(), "production")
}

func TestSessionFlow(t *testing.T) {
	s := newTestServer(t, &fakeNormalizer{rec: okIntent}, &fakeRetriever{rec: okAnswer})

	rec := do(t, s, http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"session_id":"session-1"}`, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/api/v1/sessions/session-1/messages", messageRequest{Message: "rows?"})
	require.Equal(t, http.StatusOK, rec.Code)
	var reply chat.Reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.Equal(t, "There are 10 rows.", reply.Message)
	assert.False(t, reply.IsError)

	rec = do(t, s, http.MethodGet, "/api/v1/sessions/session-1/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tr transcriptResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tr))
	assert.Equal(t, 1, tr.MessageCount)
	require.Len(t, tr.Messages, 2)
	assert.Equal(t, model.SenderUser, tr.Messages[0].Sender)
	assert.Equal(t, "There are 10 rows.", tr.Messages[1].Display)

	rec = do(t, s, http.MethodDelete, "/api/v1/sessions/session-1/messages", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/v1/sessions/session-1/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tr))
	assert.Empty(t, tr.Messages)
}

func TestSessionFlow_ErrorTurnIsRenderedWithPrefix(t *testing.T) {
	s := newTestServer(t, &fakeNormalizer{err: &retry.ExhaustedError{Attempts: 5, Last: fmt.Errorf("bad")}}, &fakeRetriever{})
	require.Equal(t, http.StatusCreated, do(t, s, http.MethodPost, "/api/v1/sessions", nil).Code)

	rec := do(t, s, http.MethodPost, "/api/v1/sessions/session-1/messages", messageRequest{Message: "???"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/v1/sessions/session-1/messages", nil)
	var tr transcriptResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tr))
	require.Len(t, tr.Messages, 2)
	assert.Equal(t, conversations.ErrorPrefix+chat.UnderstandFailedMessage, tr.Messages[1].Display)
}

func TestSessionErrors(t *testing.T) {
	s := newTestServer(t, &fakeNormalizer{rec: okIntent}, &fakeRetriever{rec: okAnswer})

	rec := do(t, s, http.MethodGet, "/api/v1/sessions/unknown/messages", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.Equal(t, http.StatusCreated, do(t, s, http.MethodPost, "/api/v1/sessions", nil).Code)
	rec = do(t, s, http.MethodPost, "/api/v1/sessions/session-1/messages", messageRequest{Message: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// a turn left in flight makes the session busy
	session, err := s.sessions.Open(context.Background(), "session-1")
	require.NoError(t, err)
	_, err = session.Begin(context.Background(), "in flight")
	require.NoError(t, err)

	rec = do(t, s, http.MethodPost, "/api/v1/sessions/session-1/messages", messageRequest{Message: "rows?"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), errx.BusyErrorMessage)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, &fakeNormalizer{}, &fakeRetriever{})
	rec := do(t, s, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
