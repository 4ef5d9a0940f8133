package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHistory_UserTextsOnlyUserTurnsInOrder(t *testing.T) {
	h := NewHistory(
		NewUserTurn("who won the 2023 title?"),
		NewAssistantTurn("Georgia."),
	)
	h.Append(NewUserTurn("and in 2024?"))

	assert.Equal(t, []string{"who won the 2023 title?", "and in 2024?"}, h.UserTexts())
	assert.Equal(t, 3, h.Len())
}

func TestHistory_TurnsReturnsCopy(t *testing.T) {
	h := NewHistory(NewUserTurn("a"))
	turns := h.Turns()
	turns[0].Text = "mutated"

	assert.Equal(t, "a", h.Turns()[0].Text)
}

func TestHistory_EmptyHasNoUserTexts(t *testing.T) {
	assert.Empty(t, NewHistory().UserTexts())
}

func TestNewTurns_AssignIDs(t *testing.T) {
	a := NewUserTurn("x")
	b := NewUserTurn("x")
	assert.NotEqual(t, a.ID, b.ID)
	assert.True(t, a.IsUser)
	assert.False(t, NewAssistantTurn("y").IsUser)
}
