package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/adapters/console"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/session"
	"github.com/go-chi/chi/v5"
)

// Server exposes the conversations of a session manager over HTTP.
type Server struct {
	Sessions *session.Manager
	Streams  *StreamManager

	metrics http.Handler
	logger  *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics mounts h on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

type inputRequest struct {
	Text string `json:"text"`
}

type notifyRequest struct {
	AppID string `json:"app_id"`
	Icon  string `json:"icon,omitempty"`
	Type  string `json:"type,omitempty"`
	Value any    `json:"value"`
}

type errorRequest struct {
	AppID   string `json:"app_id"`
	Icon    string `json:"icon,omitempty"`
	Message string `json:"message"`
}

type questionRequest struct {
	AppID  string               `json:"app_id"`
	Icon   string               `json:"icon,omitempty"`
	Expect domain.ValueCategory `json:"expect"`
	Text   string               `json:"text"`
}

// NewHandler creates the HTTP handler of the server.
func NewHandler(sessions *session.Manager, streams *StreamManager, opts ...Option) http.Handler {
	s := &Server{
		Sessions: sessions,
		Streams:  streams,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/conversations", func(r chi.Router) {
		r.Get("/", s.ListConversations)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetConversation)
			r.Delete("/", s.StopConversation)
			r.Get("/messages", s.GetMessages)
			r.Get("/events", s.SubscribeEvents)
			r.Post("/input", s.PostInput)
			r.Post("/notify", s.PostNotification)
			r.Post("/errors", s.PostError)
			r.Post("/questions", s.PostQuestion)
			r.Post("/cancel", s.PostCancel)
		})
	})
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "parley-http",
		"version": strings.TrimSpace(parley.Version),
	})
}

// ListConversations handles the GET /conversations request.
func (s *Server) ListConversations(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Sessions.List(r.Context())
	if err != nil {
		s.fail(w, "List failed", http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"conversations": ids})
}

// GetConversation handles the GET /conversations/{id} request.
func (s *Server) GetConversation(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Sessions.Snapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Conversation not found", http.StatusNotFound)
			return
		}
		s.fail(w, "Snapshot failed", http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// StopConversation handles the DELETE /conversations/{id} request.
func (s *Server) StopConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Sessions.Stop(r.Context(), id); err != nil {
		s.fail(w, "Stop failed", http.StatusInternalServerError, err)
		return
	}
	s.Streams.Forget(id)
	w.WriteHeader(http.StatusNoContent)
}

// GetMessages handles the GET /conversations/{id}/messages request.
func (s *Server) GetMessages(w http.ResponseWriter, r *http.Request) {
	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "Invalid offset", http.StatusBadRequest)
			return
		}
		offset = n
	}
	messages := s.Streams.Messages(chi.URLParam(r, "id"), offset)
	if messages == nil {
		messages = []domain.Message{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"offset": offset, "messages": messages})
}

// PostInput handles the POST /conversations/{id}/input request. The reply
// arrives on the message stream.
func (s *Server) PostInput(w http.ResponseWriter, r *http.Request) {
	var body inputRequest
	if !s.decode(w, r, &body) {
		return
	}
	text, err := console.SanitizeInput(body.Text)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid input: %v", err), http.StatusBadRequest)
		s.logger.Warn("Input rejected", "err", err, "size", len(body.Text))
		return
	}
	if text == "" {
		http.Error(w, "Empty input", http.StatusBadRequest)
		return
	}

	a, ok := s.assistant(w, r)
	if !ok {
		return
	}
	if _, err := a.HandleText(r.Context(), text); err != nil {
		s.fail(w, "Input failed", http.StatusServiceUnavailable, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{"accepted": true, "expecting": a.Expecting()})
}

// PostNotification handles the POST /conversations/{id}/notify request.
func (s *Server) PostNotification(w http.ResponseWriter, r *http.Request) {
	var body notifyRequest
	if !s.decode(w, r, &body) {
		return
	}
	a, ok := s.assistant(w, r)
	if !ok {
		return
	}
	if _, err := a.Notify(r.Context(), body.AppID, body.Icon, body.Type, body.Value); err != nil {
		s.fail(w, "Notify failed", http.StatusServiceUnavailable, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

// PostError handles the POST /conversations/{id}/errors request.
func (s *Server) PostError(w http.ResponseWriter, r *http.Request) {
	var body errorRequest
	if !s.decode(w, r, &body) {
		return
	}
	a, ok := s.assistant(w, r)
	if !ok {
		return
	}
	if _, err := a.NotifyError(r.Context(), body.AppID, body.Icon, errors.New(body.Message)); err != nil {
		s.fail(w, "Error report failed", http.StatusServiceUnavailable, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

// PostQuestion handles the POST /conversations/{id}/questions request. It
// blocks until the user answers or the client goes away.
func (s *Server) PostQuestion(w http.ResponseWriter, r *http.Request) {
	var body questionRequest
	if !s.decode(w, r, &body) {
		return
	}
	if body.Text == "" {
		http.Error(w, "Missing question text", http.StatusBadRequest)
		return
	}
	a, ok := s.assistant(w, r)
	if !ok {
		return
	}
	fut, err := a.AskQuestion(r.Context(), body.AppID, body.Icon, body.Expect, body.Text)
	if err != nil {
		s.fail(w, "Question failed", http.StatusServiceUnavailable, err)
		return
	}
	answer, err := fut.Wait(r.Context())
	if err != nil {
		if _, ok := domain.IsCancellation(err); ok {
			s.writeJSON(w, http.StatusConflict, map[string]any{"cancelled": true})
			return
		}
		s.fail(w, "Question not answered", http.StatusGatewayTimeout, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"answer": answer})
}

// PostCancel handles the POST /conversations/{id}/cancel request.
func (s *Server) PostCancel(w http.ResponseWriter, r *http.Request) {
	a, ok := s.Sessions.Get(chi.URLParam(r, "id"))
	cancelled := ok && a.Cancel()
	s.writeJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

// SubscribeEvents handles the GET /conversations/{id}/events request (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	id := chi.URLParam(r, "id")
	ch, cancel := s.Streams.Subscribe(id)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	s.logger.Info("SSE: Subscribing to conversation", "conversation_id", id)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE Client Disconnected", "conversation_id", id)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// -- Helpers --

func (s *Server) assistant(w http.ResponseWriter, r *http.Request) (*parley.Assistant, bool) {
	a, err := s.Sessions.GetOrStart(chi.URLParam(r, "id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, session.ErrShutdown) {
			status = http.StatusServiceUnavailable
		} else if errors.Is(err, domain.ErrNotFound) {
			status = http.StatusBadRequest
		}
		s.fail(w, "Conversation unavailable", status, err)
		return nil, false
	}
	return a, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("Invalid request body", "path", r.URL.Path, "err", err)
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, msg string, status int, err error) {
	http.Error(w, fmt.Sprintf("%s: %v", msg, err), status)
	s.logger.Error(msg, "err", err)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}
