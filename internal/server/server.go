// Package server exposes the chat front end and the two pipeline entry
// points over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/inventory-assistant/server/internal/agent/graph/conversations"
	"github.com/inventory-assistant/server/internal/agent/model"
	"github.com/inventory-assistant/server/internal/chat"
	errx "github.com/inventory-assistant/server/internal/core/error"
	"github.com/inventory-assistant/server/internal/core/retry"
	logx "github.com/inventory-assistant/server/pkg/logger"
)

type Config struct {
	Host           string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port           string        `envconfig:"SERVER_PORT" default:"8080"`
	RequestTimeout time.Duration `envconfig:"SERVER_REQUEST_TIMEOUT" default:"5m"`
}

type Server struct {
	cfg        Config
	router     *chi.Mux
	sessions   *conversations.Manager
	chat       *chat.Service
	normalizer chat.Normalizer
	retriever  chat.Retriever
	newID      func() string
}

func New(cfg Config, sessions *conversations.Manager, normalizer chat.Normalizer, retriever chat.Retriever) *Server {
	s := &Server{
		cfg:        cfg,
		router:     chi.NewRouter(),
		sessions:   sessions,
		chat:       chat.NewService(sessions, normalizer, retriever),
		normalizer: normalizer,
		retriever:  retriever,
		newID:      uuid.NewString,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)
	if s.cfg.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.cfg.RequestTimeout))
	}

	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/normalize", s.handleNormalize)
		r.Post("/answer", s.handleAnswer)

		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{sessionID}/messages", func(r chi.Router) {
			r.Get("/", s.handleListMessages)
			r.Post("/", s.handlePostMessage)
			r.Delete("/", s.handleClearMessages)
		})
	})
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort(s.cfg.Host, s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logx.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		logx.Info().Msg("Shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

type normalizeRequest struct {
	Text string `json:"text"`
}

type answerRequest struct {
	Intent string `json:"intent"`
}

type messageRequest struct {
	Message string `json:"message"`
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
}

type messageView struct {
	model.ChatTurn
	Display string `json:"display"`
}

type transcriptResponse struct {
	SessionID    string        `json:"session_id"`
	Messages     []messageView `json:"messages"`
	MessageCount int           `json:"message_count"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	var req normalizeRequest
	if !decode(w, r, &req) {
		return
	}
	rec, err := s.normalizer.Normalize(r.Context(), req.Text)
	if err != nil {
		writeError(w, err, chat.UnderstandFailedMessage)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !decode(w, r, &req) {
		return
	}
	rec, err := s.retriever.Answer(r.Context(), req.Intent)
	if err != nil {
		writeError(w, err, chat.RetrieveFailedMessage)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id := s.newID()
	if _, err := s.sessions.Create(r.Context(), id); err != nil {
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{SessionID: id})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Open(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err, "")
		return
	}
	tr, err := session.Transcript(r.Context())
	if err != nil {
		writeError(w, err, "")
		return
	}
	views := make([]messageView, len(tr.Turns))
	for i, turn := range tr.Turns {
		views[i] = messageView{ChatTurn: turn, Display: conversations.Render(turn)}
	}
	writeJSON(w, http.StatusOK, transcriptResponse{
		SessionID:    tr.SessionID,
		Messages:     views,
		MessageCount: len(tr.Turns) / 2,
	})
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if !decode(w, r, &req) {
		return
	}
	reply, err := s.chat.Ask(r.Context(), chi.URLParam(r, "sessionID"), req.Message)
	if err != nil {
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleClearMessages(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Open(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err, "")
		return
	}
	if err := session.Clear(r.Context()); err != nil {
		writeError(w, err, "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return false
	}
	return true
}

// writeError maps err to a status and a safe message. Exhausted retries use
// exhaustedMessage with 503.
func writeError(w http.ResponseWriter, err error, exhaustedMessage string) {
	if exhaustedMessage != "" && errors.Is(err, retry.ErrExhausted) {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: exhaustedMessage})
		return
	}
	status := errx.StatusOf(err)
	if status >= http.StatusInternalServerError {
		logx.Error().Err(err).Int("status", status).Msg("request failed")
	}
	writeJSON(w, status, errorResponse{Error: errx.MessageOf(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Error().Err(err).Msg("failed to encode response")
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logx.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}
