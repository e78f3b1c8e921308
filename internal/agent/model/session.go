package model

import (
	"context"
	"time"
)

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// ChatTurn is one entry of a session transcript.
type ChatTurn struct {
	Message   string    `json:"message"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	IsError   bool      `json:"is_error,omitempty"`
}

type SessionRepository interface {
	// CreateSession registers a new, empty session
	CreateSession(ctx context.Context, sessionID string, createdAt time.Time) error

	// SessionExists reports whether the session was created and has not expired
	SessionExists(ctx context.Context, sessionID string) (bool, error)

	// AppendTurn appends a turn to the session transcript
	AppendTurn(ctx context.Context, sessionID string, turn ChatTurn) error

	// LoadTranscript returns the turns of a session in order
	LoadTranscript(ctx context.Context, sessionID string) (*Transcript, error)

	// ClearTranscript removes all turns of a session
	ClearTranscript(ctx context.Context, sessionID string) error

	// TurnCount returns the number of turns in the session
	TurnCount(ctx context.Context, sessionID string) (int, error)

	// AcquireTurn marks the session busy on behalf of token; false when it already is
	AcquireTurn(ctx context.Context, sessionID, token string) (bool, error)

	// ReleaseTurn clears the busy mark if token still owns it; false otherwise
	ReleaseTurn(ctx context.Context, sessionID, token string) (bool, error)
}

// Transcript represents a loaded session history.
type Transcript struct {
	SessionID string
	Turns     []ChatTurn
}
