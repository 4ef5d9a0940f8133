// internal/models/conversation.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// ConversationTurn is one message in a chat.
type ConversationTurn struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	IsUser    bool      `json:"isUser"`
	Timestamp time.Time `json:"timestamp"`
}

// NewUserTurn builds a user-authored turn stamped now.
func NewUserTurn(text string) ConversationTurn {
	return ConversationTurn{ID: uuid.NewString(), Text: text, IsUser: true, Timestamp: time.Now().UTC()}
}

// NewAssistantTurn builds a model-authored turn stamped now.
func NewAssistantTurn(text string) ConversationTurn {
	return ConversationTurn{ID: uuid.NewString(), Text: text, IsUser: false, Timestamp: time.Now().UTC()}
}

// History is an append-only, ordered sequence of turns.
type History struct {
	turns []ConversationTurn
}

// NewHistory copies turns into a new History.
func NewHistory(turns ...ConversationTurn) *History {
	h := &History{turns: make([]ConversationTurn, 0, len(turns))}
	h.turns = append(h.turns, turns...)
	return h
}

// Append adds a turn at the end.
func (h *History) Append(turn ConversationTurn) {
	h.turns = append(h.turns, turn)
}

// Turns returns a copy of all turns, oldest first.
func (h *History) Turns() []ConversationTurn {
	out := make([]ConversationTurn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len reports the number of turns.
func (h *History) Len() int {
	return len(h.turns)
}

// UserTexts returns the text of user-authored turns, oldest first.
// Only these feed query derivation.
func (h *History) UserTexts() []string {
	var out []string
	for _, t := range h.turns {
		if t.IsUser {
			out = append(out, t.Text)
		}
	}
	return out
}
