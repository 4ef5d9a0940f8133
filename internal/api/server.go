// Package api is the HTTP surface of the context engine: a context endpoint,
// stateless and session-based chat with SSE streaming, and health probes.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	apperrors "context-engine/internal/common/errors"
	"context-engine/internal/common/logger"
	"context-engine/internal/models"
	"context-engine/internal/pipeline"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline is the part of pipeline.Service the handlers use.
type Pipeline interface {
	RetrieveContext(ctx context.Context, userMessages []string) *pipeline.Run
	Answer(ctx context.Context, history *models.History) (*pipeline.Run, <-chan models.AnswerDelta, error)
}

// Checker reports whether a dependency is reachable.
type Checker func(ctx context.Context) error

type Config struct {
	RequestsPerSecond float64
	Burst             int
}

type Server struct {
	pipeline Pipeline
	sessions *SessionStore
	checks   map[string]Checker
	cfg      Config
	logger   logger.Logger
}

func NewServer(p Pipeline, sessions *SessionStore, checks map[string]Checker, cfg Config, log logger.Logger) *Server {
	if sessions == nil {
		sessions = NewSessionStore()
	}
	return &Server{
		pipeline: p,
		sessions: sessions,
		checks:   checks,
		cfg:      cfg,
		logger:   log.With(map[string]interface{}{"component": "api"}),
	}
}

// Router builds the handler tree. ctx bounds the rate limiter's cleanup loop.
func (s *Server) Router(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)
	r.Get("/ready", s.ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if s.cfg.RequestsPerSecond > 0 {
			r.Use(RateLimit(ctx, s.cfg.RequestsPerSecond, s.cfg.Burst))
		}

		r.Get("/context", s.getContext)
		r.Post("/chat", s.chat)

		r.Post("/sessions", s.createSession)
		r.Get("/sessions/{id}", s.getSession)
		r.Delete("/sessions/{id}", s.deleteSession)
		r.Post("/sessions/{id}/messages", s.postMessage)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			return
		}
		s.logger.Info("request", map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"durationMs": time.Since(start).Milliseconds(),
			"requestId":  middleware.GetReqID(r.Context()),
		})
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type subsystemStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status     string                     `json:"status"`
	Subsystems map[string]subsystemStatus `json:"subsystems"`
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := readinessResponse{Status: "ok", Subsystems: map[string]subsystemStatus{}}
	status := http.StatusOK
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			resp.Subsystems[name] = subsystemStatus{Status: "error", Error: err.Error()}
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Subsystems[name] = subsystemStatus{Status: "ok"}
	}
	writeJSON(w, status, resp)
}

// ==========================
// Response helpers
// ==========================

type errorBody struct {
	Code    apperrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
	Details string              `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	stdErr := apperrors.Normalize(err)
	status := statusFor(stdErr.Code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", map[string]interface{}{
			"errorCode": string(stdErr.Code),
			"error":     stdErr.Error(),
		})
	}
	writeJSON(w, status, map[string]errorBody{"error": bodyFor(stdErr)})
}

// bodyFor hides generation failure details behind the single user-facing message.
func bodyFor(stdErr *apperrors.StandardError) errorBody {
	switch apperrors.GetErrorCategory(stdErr.Code) {
	case "GENERATION", "OTHER":
		return errorBody{Code: stdErr.Code, Message: apperrors.UserFacingMessage}
	}
	return errorBody{Code: stdErr.Code, Message: stdErr.Message, Details: stdErr.Details}
}

func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeSessionBusy:
		return http.StatusConflict
	case apperrors.ErrCodeLLMGenerationFailed, apperrors.ErrCodeLLMTimeout, apperrors.ErrCodeCircuitOpen:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
