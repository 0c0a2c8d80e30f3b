package model

import (
	"github.com/google/uuid"

	"github.com/recallhq/recall/internal/deck"
)

// DealSize is the number of cards dealt to each player at round start.
// Slot indices below DealSize always keep their position when emptied.
const DealSize = 4

// HandSlot is one position in a player's hand. An unoccupied slot is a
// visible hole: it keeps its index so position-addressed plays stay stable.
type HandSlot struct {
	Occupied bool       `json:"occupied"`
	Card     *deck.Card `json:"card,omitempty"`
}

// Hand is a fixed-position slot array, not a dynamic list. Removing a card
// leaves a hole when the slot is within the original deal size or when a
// higher slot is still occupied; otherwise the slot is trimmed. Non-drawn
// cards fill the first hole before extending the hand, while a drawn card
// always lands in a new slot at the end. This asymmetry decides which
// position a replacement card takes and must not be "simplified".
type Hand struct {
	slots []HandSlot
}

// NewHand returns an empty hand.
func NewHand() *Hand { return &Hand{} }

// Len returns the number of slots, occupied or not.
func (h *Hand) Len() int { return len(h.slots) }

// Count returns the number of occupied slots.
func (h *Hand) Count() int {
	n := 0
	for _, s := range h.slots {
		if s.Occupied {
			n++
		}
	}
	return n
}

// At returns the card at slot idx, or nil when the slot is out of range or
// a hole.
func (h *Hand) At(idx int) *deck.Card {
	if idx < 0 || idx >= len(h.slots) || !h.slots[idx].Occupied {
		return nil
	}
	return h.slots[idx].Card
}

// Find returns the slot index holding the card with the given id, or -1.
func (h *Hand) Find(cardID uuid.UUID) int {
	for i, s := range h.slots {
		if s.Occupied && s.Card.ID == cardID {
			return i
		}
	}
	return -1
}

// Remove takes the card with the given id out of the hand. The vacated slot
// becomes a hole when its index is inside the original deal size or any
// higher slot is still occupied; a trailing slot past the deal size is
// spliced out instead. Returns the card and its former index, or nil/-1.
func (h *Hand) Remove(cardID uuid.UUID) (*deck.Card, int) {
	idx := h.Find(cardID)
	if idx < 0 {
		return nil, -1
	}
	card := h.slots[idx].Card
	card.OwnerID = nil

	higherOccupied := false
	for i := idx + 1; i < len(h.slots); i++ {
		if h.slots[i].Occupied {
			higherOccupied = true
			break
		}
	}
	if idx <= DealSize-1 || higherOccupied {
		h.slots[idx] = HandSlot{}
	} else {
		h.slots = append(h.slots[:idx], h.slots[idx+1:]...)
	}
	return card, idx
}

// Add places a non-drawn card into the first hole, or appends when the hand
// has no holes. Returns the slot index the card landed in.
func (h *Hand) Add(c *deck.Card, owner uuid.UUID) int {
	id := owner
	c.OwnerID = &id
	for i, s := range h.slots {
		if !s.Occupied {
			h.slots[i] = HandSlot{Occupied: true, Card: c}
			return i
		}
	}
	h.slots = append(h.slots, HandSlot{Occupied: true, Card: c})
	return len(h.slots) - 1
}

// Append places a drawn card in a new slot at the end, ignoring holes.
func (h *Hand) Append(c *deck.Card, owner uuid.UUID) int {
	id := owner
	c.OwnerID = &id
	h.slots = append(h.slots, HandSlot{Occupied: true, Card: c})
	return len(h.slots) - 1
}

// ReplaceAt swaps the card at idx for a new one, returning the old card.
// The slot must be occupied.
func (h *Hand) ReplaceAt(idx int, c *deck.Card, owner uuid.UUID) *deck.Card {
	if idx < 0 || idx >= len(h.slots) || !h.slots[idx].Occupied {
		return nil
	}
	old := h.slots[idx].Card
	old.OwnerID = nil
	id := owner
	c.OwnerID = &id
	h.slots[idx] = HandSlot{Occupied: true, Card: c}
	return old
}

// SetAt overwrites slot idx with the given card, used for swaps where both
// sides stay occupied. The slot must exist.
func (h *Hand) SetAt(idx int, c *deck.Card, owner uuid.UUID) bool {
	if idx < 0 || idx >= len(h.slots) {
		return false
	}
	id := owner
	c.OwnerID = &id
	h.slots[idx] = HandSlot{Occupied: true, Card: c}
	return true
}

// Points sums the point values of all occupied slots.
func (h *Hand) Points() int {
	total := 0
	for _, s := range h.slots {
		if s.Occupied {
			total += s.Card.Points
		}
	}
	return total
}

// Cards returns the occupied cards in slot order.
func (h *Hand) Cards() []*deck.Card {
	out := make([]*deck.Card, 0, len(h.slots))
	for _, s := range h.slots {
		if s.Occupied {
			out = append(out, s.Card)
		}
	}
	return out
}

// Slots returns a copy of the slot array for snapshots.
func (h *Hand) Slots() []HandSlot {
	out := make([]HandSlot, len(h.slots))
	copy(out, h.slots)
	return out
}

// OccupiedIndices returns the indices of all occupied slots.
func (h *Hand) OccupiedIndices() []int {
	out := make([]int, 0, len(h.slots))
	for i, s := range h.slots {
		if s.Occupied {
			out = append(out, i)
		}
	}
	return out
}
