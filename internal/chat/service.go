// Package chat runs one user turn through the pipeline and keeps the
// session transcript.
package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/inventory-assistant/server/internal/agent/graph/conversations"
	"github.com/inventory-assistant/server/internal/agent/model"
	errx "github.com/inventory-assistant/server/internal/core/error"
	"github.com/inventory-assistant/server/internal/metrics"
	logx "github.com/inventory-assistant/server/pkg/logger"
)

const (
	UnderstandFailedMessage = "Failed to understand your request. Please try again."
	RetrieveFailedMessage   = "Failed to retrieve data from inventory. Please try again."
)

type Normalizer interface {
	Normalize(ctx context.Context, text string) (*model.IntentRecord, error)
}

type Retriever interface {
	Answer(ctx context.Context, intent string) (*model.AnswerRecord, error)
}

// Reply is the assistant side of a turn.
type Reply struct {
	Message string              `json:"message"`
	IsError bool                `json:"is_error"`
	Intent  *model.IntentRecord `json:"intent,omitempty"`
	Answer  *model.AnswerRecord `json:"answer,omitempty"`
}

type Service struct {
	sessions   *conversations.Manager
	normalizer Normalizer
	retriever  Retriever
}

func NewService(sessions *conversations.Manager, normalizer Normalizer, retriever Retriever) *Service {
	return &Service{sessions: sessions, normalizer: normalizer, retriever: retriever}
}

// Ask normalizes text, retrieves the answer and records both sides of the
// turn. Pipeline failures become error turns; the returned error covers
// session problems only (unknown, busy, blank input, storage).
func (s *Service) Ask(ctx context.Context, sessionID, text string) (*Reply, error) {
	session, err := s.sessions.Open(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	turn, err := session.Begin(ctx, text)
	if err != nil {
		return nil, err
	}

	reply, outcome := s.run(ctx, text)
	metrics.SessionTurns.WithLabelValues(outcome).Inc()

	if reply.IsError {
		err = turn.Fail(ctx, reply.Message)
	} else {
		err = turn.Finish(ctx, reply.Message)
	}
	if err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to record assistant turn")
		return nil, fmt.Errorf("record assistant turn: %w", err)
	}
	return reply, nil
}

func (s *Service) run(ctx context.Context, text string) (*Reply, string) {
	intent, err := s.normalizer.Normalize(ctx, text)
	if err != nil {
		logFailure(err, metrics.StageNormalize)
		return &Reply{Message: UnderstandFailedMessage, IsError: true}, "not_understood"
	}

	answer, err := s.retriever.Answer(ctx, intent.UserIntent)
	if err != nil {
		logFailure(err, metrics.StageAnswer)
		return &Reply{Message: RetrieveFailedMessage, IsError: true, Intent: intent}, "not_retrieved"
	}
	return &Reply{Message: answer.ParaphrasedOutput, Intent: intent, Answer: answer}, "answered"
}

func logFailure(err error, stage string) {
	if errors.Is(err, errx.ErrUnknownRuntime) {
		logx.Error().Err(err).Str("stage", stage).Msg("pipeline misconfigured")
		return
	}
	logx.Warn().Err(err).Str("stage", stage).Msg("pipeline returned no result")
}
