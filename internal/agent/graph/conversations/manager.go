package conversations

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/inventory-assistant/server/internal/agent/model"
	errx "github.com/inventory-assistant/server/internal/core/error"
	logx "github.com/inventory-assistant/server/pkg/logger"
)

// ErrorPrefix is prepended to error turns when they are rendered.
const ErrorPrefix = "❌ Error: "

// completeTimeout bounds the writes that close a turn. They run detached from
// the caller's context so a cancelled request still records its reply.
const completeTimeout = 5 * time.Second

// Manager hands out per-session contexts backed by a SessionRepository.
type Manager struct {
	repo     model.SessionRepository
	now      func() time.Time
	newToken func() string
}

func NewManager(repo model.SessionRepository) *Manager {
	return &Manager{repo: repo, now: time.Now, newToken: uuid.NewString}
}

// Create registers a new session.
func (m *Manager) Create(ctx context.Context, sessionID string) (*Session, error) {
	if err := m.repo.CreateSession(ctx, sessionID, m.now()); err != nil {
		return nil, err
	}
	return &Session{id: sessionID, manager: m}, nil
}

// Open returns the session or errx.ErrSessionNotFound.
func (m *Manager) Open(ctx context.Context, sessionID string) (*Session, error) {
	ok, err := m.repo.SessionExists(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errx.ErrSessionNotFound
	}
	return &Session{id: sessionID, manager: m}, nil
}

// Session is the explicit context of one chat: its transcript and its
// single-flight guard.
type Session struct {
	id      string
	manager *Manager
}

func (s *Session) ID() string { return s.id }

// Turn is an in-flight exchange. It must be completed with Finish or Fail.
type Turn struct {
	session *Session
	token   string
	done    bool
}

// Begin takes the session's guard and records the user's message. It fails
// with errx.ErrSessionBusy while another turn is in flight.
func (s *Session) Begin(ctx context.Context, text string) (*Turn, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errx.ErrEmptyQuery
	}
	repo := s.manager.repo
	token := s.manager.newToken()
	ok, err := repo.AcquireTurn(ctx, s.id, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		logx.Debug().Str("session_id", s.id).Msg("Session busy; rejecting turn")
		return nil, errx.ErrSessionBusy
	}

	turn := model.ChatTurn{Message: text, Sender: model.SenderUser, Timestamp: s.manager.now()}
	if err := repo.AppendTurn(ctx, s.id, turn); err != nil {
		relCtx, cancel := detached(ctx)
		defer cancel()
		if _, relErr := repo.ReleaseTurn(relCtx, s.id, token); relErr != nil {
			logx.Error().Err(relErr).Str("session_id", s.id).Msg("failed to release session turn")
		}
		return nil, err
	}
	return &Turn{session: s, token: token}, nil
}

// Finish records the assistant reply and releases the guard.
func (t *Turn) Finish(ctx context.Context, reply string) error {
	return t.complete(ctx, model.ChatTurn{Message: reply, Sender: model.SenderAssistant})
}

// Fail records a user-facing error message and releases the guard.
func (t *Turn) Fail(ctx context.Context, message string) error {
	return t.complete(ctx, model.ChatTurn{Message: message, Sender: model.SenderAssistant, IsError: true})
}

func (t *Turn) complete(ctx context.Context, turn model.ChatTurn) error {
	if t.done {
		return errors.New("turn already completed")
	}
	t.done = true
	s := t.session
	turn.Timestamp = s.manager.now()

	ctx, cancel := detached(ctx)
	defer cancel()
	appendErr := s.manager.repo.AppendTurn(ctx, s.id, turn)
	_, releaseErr := s.manager.repo.ReleaseTurn(ctx, s.id, t.token)
	return errors.Join(appendErr, releaseErr)
}

func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), completeTimeout)
}

// Transcript returns every turn of the session in order.
func (s *Session) Transcript(ctx context.Context) (*model.Transcript, error) {
	return s.manager.repo.LoadTranscript(ctx, s.id)
}

// MessageCount is the number of user/assistant exchanges so far.
func (s *Session) MessageCount(ctx context.Context) (int, error) {
	n, err := s.manager.repo.TurnCount(ctx, s.id)
	if err != nil {
		return 0, err
	}
	return n / 2, nil
}

// Clear wipes the transcript and any stale guard.
func (s *Session) Clear(ctx context.Context) error {
	return s.manager.repo.ClearTranscript(ctx, s.id)
}

// Render formats a turn for display.
func Render(turn model.ChatTurn) string {
	if turn.IsError {
		return ErrorPrefix + turn.Message
	}
	return turn.Message
}
