package ai

import (
	"github.com/google/uuid"

	"github.com/recallhq/recall/internal/deck"
)

// SlotView is one hand slot as the AI sees it. Card is nil unless Known:
// the engine only reasons over cards the player has legitimately seen.
type SlotView struct {
	Index int
	Known bool
	Card  *deck.Card
}

// HandView is one player's hand as the AI sees it.
type HandView struct {
	PlayerID uuid.UUID
	Slots    []SlotView
}

// KnownPoints sums the points of known slots and reports how many slots
// remain unknown.
func (h HandView) KnownPoints() (points, unknown int) {
	for _, s := range h.Slots {
		if s.Known {
			points += s.Card.Points
		} else {
			unknown++
		}
	}
	return points, unknown
}

// View is the read-only game view the orchestrator hands the decision
// engine. It carries no references into live round state.
type View struct {
	SelfID       uuid.UUID
	Self         HandView
	DrawnCard    *deck.Card
	Opponents    []HandView
	DiscardTop   *deck.Card
	DrawPileSize int
	DeckSize     int
	TurnNumber   int
	RecallCalled bool
}

// progression is 0 at a full draw pile and approaches 1 as it empties.
func (v View) progression() float64 {
	if v.DeckSize == 0 {
		return 0
	}
	return 1 - float64(v.DrawPileSize)/float64(v.DeckSize)
}
