// internal/api/chat.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	apperrors "context-engine/internal/common/errors"
	"context-engine/internal/models"
	"context-engine/internal/pipeline"

	"github.com/go-chi/chi/v5"
)

const maxRequestBytes = 1 << 20

type contextResponse struct {
	Context string `json:"context"`
}

type chatMessage struct {
	Text   string `json:"text"`
	IsUser bool   `json:"isUser"`
}

type chatRequest struct {
	Messages []chatMessage `json:"messages"`
	Stream   *bool         `json:"stream,omitempty"`
}

type messageRequest struct {
	Text   string `json:"text"`
	Stream *bool  `json:"stream,omitempty"`
}

type chatResponse struct {
	RunID   string         `json:"runId"`
	Answer  string         `json:"answer"`
	Queries []models.Query `json:"queries"`
	Links   []string       `json:"links"`
}

type runEvent struct {
	RunID   string         `json:"runId"`
	Queries []models.Query `json:"queries"`
	Links   []string       `json:"links"`
}

type deltaEvent struct {
	Text string `json:"text"`
}

type doneEvent struct {
	Answer string `json:"answer"`
}

// GET /context?user_question=...
func (s *Server) getContext(w http.ResponseWriter, r *http.Request) {
	question := strings.TrimSpace(r.URL.Query().Get("user_question"))
	if question == "" {
		s.writeError(w, apperrors.NewInvalidInputError("user_question is required"))
		return
	}
	run := s.pipeline.RetrieveContext(r.Context(), []string{question})
	writeJSON(w, http.StatusOK, contextResponse{Context: run.Context})
}

// POST /chat answers the last user message of a caller-held history.
func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	history := models.NewHistory()
	for _, m := range req.Messages {
		if m.IsUser {
			history.Append(models.NewUserTurn(m.Text))
		} else {
			history.Append(models.NewAssistantTurn(m.Text))
		}
	}
	if len(history.UserTexts()) == 0 {
		s.writeError(w, apperrors.NewInvalidInputError("at least one user message is required"))
		return
	}

	s.respond(w, r, history, wantsStream(req.Stream))
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, s.sessions.Create())
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	view, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /sessions/{id}/messages appends a user turn and answers it. Only a
// completed answer is appended to the session.
func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req messageRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.writeError(w, apperrors.NewInvalidInputError("text is required"))
		return
	}

	history, err := s.sessions.Begin(id, req.Text)
	if err != nil {
		s.writeError(w, err)
		return
	}

	answer, completed := s.respond(w, r, history, wantsStream(req.Stream))
	s.sessions.Finish(id, answer, completed)
}

// respond runs the pipeline and writes either an SSE stream or one JSON body.
// It reports the full answer and whether generation completed.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, history *models.History, stream bool) (string, bool) {
	run, deltas, err := s.pipeline.Answer(r.Context(), history)
	if err != nil {
		s.writeError(w, err)
		return "", false
	}

	if !stream {
		answer, err := collect(deltas)
		if err != nil {
			s.writeError(w, err)
			return "", false
		}
		if r.Context().Err() != nil {
			return "", false
		}
		writeJSON(w, http.StatusOK, chatResponse{
			RunID:   run.ID,
			Answer:  answer,
			Queries: run.Queries,
			Links:   models.LinkURLs(run.Links),
		})
		return answer, true
	}

	sse, ok := newSSEWriter(w)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return "", false
	}

	sse.send("run", runEvent{RunID: run.ID, Queries: run.Queries, Links: models.LinkURLs(run.Links)})

	var b strings.Builder
	for {
		select {
		case d, open := <-deltas:
			if !open {
				if r.Context().Err() != nil {
					return "", false
				}
				sse.send("done", doneEvent{Answer: b.String()})
				return b.String(), true
			}
			if d.Err != nil {
				sse.send("error", bodyFor(apperrors.Normalize(d.Err)))
				return "", false
			}
			b.WriteString(d.Text)
			sse.send("delta", deltaEvent{Text: d.Text})
		case <-r.Context().Done():
			return "", false
		}
	}
}

func collect(deltas <-chan models.AnswerDelta) (string, error) {
	var b strings.Builder
	for d := range deltas {
		if d.Err != nil {
			return "", d.Err
		}
		b.WriteString(d.Text)
	}
	return b.String(), nil
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(v); err != nil {
		return apperrors.NewInvalidInputError(fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}

func wantsStream(flag *bool) bool {
	return flag == nil || *flag
}

// ==========================
// SSE
// ==========================

type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	return &sseWriter{w: w, flusher: flusher}, true
}

func (s *sseWriter) send(event string, v any) {
	payload, _ := json.Marshal(v)
	fmt.Fprintf(s.w, "event: %s\n", event)
	fmt.Fprintf(s.w, "data: %s\n\n", payload)
	s.flusher.Flush()
}

// Ensure pipeline.Service satisfies Pipeline.
var _ Pipeline = (*pipeline.Service)(nil)
