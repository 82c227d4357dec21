// Package http exposes the run service as a JSON API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/langrun"
	"github.com/aretw0/langrun/internal/logging"
	"github.com/aretw0/langrun/pkg/domain"
	"github.com/aretw0/langrun/pkg/flow"
	"github.com/aretw0/langrun/pkg/ports"
	"github.com/aretw0/langrun/pkg/runner"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// maxBodyBytes bounds POST /run bodies; inline flows can be large.
const maxBodyBytes = 8 << 20

// Service is the part of runner.Service the API needs.
type Service interface {
	Run(ctx context.Context, req runner.Request) (*domain.RunResponse, error)
	Flow(ctx context.Context, name string) (*domain.Flow, error)
	Flows(ctx context.Context) ([]string, error)
}

// Server serves the API for a Service.
type Server struct {
	svc      Service
	sessions ports.SessionStore
	metrics  http.Handler
	askFlow  string
	logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithSessions enables the /sessions endpoints.
func WithSessions(store ports.SessionStore) Option {
	return func(s *Server) {
		s.sessions = store
	}
}

// WithMetrics serves h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithAskFlow serves POST /ask with the named flow.
func WithAskFlow(name string) Option {
	return func(s *Server) {
		s.askFlow = name
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler builds the HTTP handler.
func NewHandler(svc Service, opts ...Option) (http.Handler, error) {
	s := &Server{svc: svc, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	validator, err := newRequestValidator()
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.Recoverer, s.logRequests)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(openAPISpec)
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(validator.middleware)
		r.Get("/health", s.health)
		r.Post("/run", s.run)
		r.Post("/ask", s.ask)
		r.Post("/api/ask-ai", s.ask)
		r.Get("/flows", s.listFlows)
		r.Get("/flows/{id}", s.getFlow)
		r.Get("/flows/{id}/tweaks", s.getTweaks)
		r.Get("/sessions", s.listSessions)
		r.Get("/sessions/{id}", s.getSession)
		r.Delete("/sessions/{id}", s.deleteSession)
	})

	return enableCORS(r), nil
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", chimw.GetReqID(r.Context()),
		)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": strings.TrimSpace(langrun.Version)})
}

func (s *Server) run(w http.ResponseWriter, r *http.Request) {
	var req runner.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	resp, err := s.svc.Run(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type askRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
}

// ask runs the configured flow on a question and answers with its first text output.
func (s *Server) ask(w http.ResponseWriter, r *http.Request) {
	if s.askFlow == "" {
		writeError(w, http.StatusNotImplemented, "no flow is configured for questions")
		return
	}
	var req askRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	resp, err := s.svc.Run(r.Context(), runner.Request{
		Flow:       s.askFlow,
		InputValue: req.Question,
		SessionID:  req.SessionID,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": resp.FirstText()})
}

func (s *Server) listFlows(w http.ResponseWriter, r *http.Request) {
	names, err := s.svc.Flows(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"flows": names})
}

func (s *Server) getFlow(w http.ResponseWriter, r *http.Request) {
	f, ok := s.loadFlow(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, flow.Summarize(f))
}

func (s *Server) getTweaks(w http.ResponseWriter, r *http.Request) {
	f, ok := s.loadFlow(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, flow.Skeleton(f))
}

func (s *Server) loadFlow(w http.ResponseWriter, r *http.Request) (*domain.Flow, bool) {
	f, err := s.svc.Flow(r.Context(), pathID(r))
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	return f, true
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if !s.sessionsEnabled(w) {
		return
	}
	ids, err := s.sessions.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": ids})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessionsEnabled(w) {
		return
	}
	sess, err := s.sessions.Load(r.Context(), pathID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessionsEnabled(w) {
		return
	}
	id := pathID(r)
	if _, err := s.sessions.Load(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.sessions.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) sessionsEnabled(w http.ResponseWriter) bool {
	if s.sessions == nil {
		writeError(w, http.StatusNotImplemented, "session persistence is disabled")
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "path", r.URL.Path, "err", err)
	}
	writeError(w, status, err.Error())
}

// StatusFor maps a run error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, runner.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidFlow),
		errors.Is(err, domain.ErrCodeTweak),
		errors.Is(err, domain.ErrUnknownNode):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrFlowNotFound),
		errors.Is(err, domain.ErrPresetNotFound),
		errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrVariableNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrExecution):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func pathID(r *http.Request) string {
	id := chi.URLParam(r, "id")
	if unescaped, err := url.PathUnescape(id); err == nil {
		return unescaped
	}
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
