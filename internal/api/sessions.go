// internal/api/sessions.go
package api

import (
	"sync"
	"time"

	apperrors "context-engine/internal/common/errors"
	"context-engine/internal/models"

	"github.com/google/uuid"
)

// SessionView is the JSON shape of a session.
type SessionView struct {
	ID        string                    `json:"id"`
	CreatedAt time.Time                 `json:"createdAt"`
	Busy      bool                      `json:"busy"`
	Turns     []models.ConversationTurn `json:"turns"`
}

type session struct {
	id        string
	createdAt time.Time
	history   *models.History
	busy      bool
}

func (s *session) view() SessionView {
	return SessionView{ID: s.id, CreatedAt: s.createdAt, Busy: s.busy, Turns: s.history.Turns()}
}

// SessionStore keeps chat histories in memory for the life of the process.
// A session runs at most one answer at a time.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*session)}
}

func (st *SessionStore) Create() SessionView {
	s := &session{id: uuid.NewString(), createdAt: time.Now().UTC(), history: models.NewHistory()}

	st.mu.Lock()
	st.sessions[s.id] = s
	st.mu.Unlock()
	return s.view()
}

func (st *SessionStore) Get(id string) (SessionView, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok {
		return SessionView{}, apperrors.NewResourceNotFoundError("session", id)
	}
	return s.view(), nil
}

func (st *SessionStore) Delete(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.sessions[id]; !ok {
		return apperrors.NewResourceNotFoundError("session", id)
	}
	delete(st.sessions, id)
	return nil
}

// Begin appends the user's message and marks the session busy. It returns a
// snapshot of the history to answer from.
func (st *SessionStore) Begin(id, text string) (*models.History, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok {
		return nil, apperrors.NewResourceNotFoundError("session", id)
	}
	if s.busy {
		return nil, apperrors.NewSessionBusyError(id)
	}
	s.busy = true
	s.history.Append(models.NewUserTurn(text))
	return models.NewHistory(s.history.Turns()...), nil
}

// Finish clears the busy flag and, when the answer completed, appends it.
// A session deleted mid-run is ignored.
func (st *SessionStore) Finish(id, answer string, completed bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok {
		return
	}
	s.busy = false
	if completed {
		s.history.Append(models.NewAssistantTurn(answer))
	}
}
