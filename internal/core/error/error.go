package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// ConfigErrorMessage describes deployment misconfiguration.
	ConfigErrorMessage = "service misconfigured"
	// BusyErrorMessage is returned while a session already has a query in flight.
	BusyErrorMessage = "a query is already being processed for this session"
	// EmptyQueryMessage is returned for blank user input.
	EmptyQueryMessage = "query must not be empty"
	// SessionNotFoundMessage is returned for unknown or expired sessions.
	SessionNotFoundMessage = "session not found"
)

var (
	// ErrUnknownRuntime marks an unrecognised runtime-environment indicator.
	// It is never retried.
	ErrUnknownRuntime = errors.New("unknown runtime environment")

	ErrSessionBusy     = errors.New("session busy")
	ErrEmptyQuery      = errors.New("empty query")
	ErrSessionNotFound = errors.New("session not found")
)

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}

// WrapConfig marks err as a configuration failure.
func WrapConfig(err error) error {
	if err == nil {
		return nil
	}
	return New(err, http.StatusInternalServerError, ConfigErrorMessage)
}

// BadRequest wraps a client input error.
func BadRequest(err error, message string) error {
	return New(err, http.StatusBadRequest, message)
}

// StatusOf returns the HTTP status carried by err, falling back to 500.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	switch {
	case errors.Is(err, ErrSessionBusy):
		return http.StatusConflict
	case errors.Is(err, ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// MessageOf returns the safe message carried by err.
func MessageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	switch {
	case errors.Is(err, ErrSessionBusy):
		return BusyErrorMessage
	case errors.Is(err, ErrEmptyQuery):
		return EmptyQueryMessage
	case errors.Is(err, ErrSessionNotFound):
		return SessionNotFoundMessage
	}
	return SystemErrorMessage
}
