package game

import (
	"time"

	"github.com/google/uuid"

	"github.com/recallhq/recall/internal/deck"
	"github.com/recallhq/recall/internal/model"
)

// SlotSnapshot is one hand slot in the room document. Card is nil for a
// hole, and masked in private views unless the viewer has seen it.
type SlotSnapshot struct {
	Index    int        `json:"index"`
	Occupied bool       `json:"occupied"`
	Card     *deck.Card `json:"card,omitempty"`
}

// PlayerSnapshot is one seat in the room document.
type PlayerSnapshot struct {
	ID              uuid.UUID          `json:"id"`
	Name            string             `json:"name"`
	Type            model.PlayerType   `json:"type"`
	Status          model.PlayerStatus `json:"status"`
	Score           int                `json:"score"`
	Connected       bool               `json:"connected"`
	HasCalledRecall bool               `json:"hasCalledRecall"`
	HasDrawnCard    bool               `json:"hasDrawnCard"`
	DrawnCard       *deck.Card         `json:"drawnCard,omitempty"`
	Slots           []SlotSnapshot     `json:"slots"`
}

// RoomState is the canonical server-side room document: the full merged
// state the update queue hands to the onUpdated callback. The server keeps
// the authoritative copy; clients only ever receive obfuscated views.
type RoomState struct {
	RoomID          uuid.UUID        `json:"roomId"`
	Phase           Phase            `json:"phase"`
	TurnNumber      int              `json:"turnNumber"`
	RoundNumber     int              `json:"roundNumber"`
	CurrentPlayerID *uuid.UUID       `json:"currentPlayerId,omitempty"`
	RecallCalledBy  *uuid.UUID       `json:"recallCalledBy,omitempty"`
	Players         []PlayerSnapshot `json:"players"`
	DrawPileSize    int              `json:"drawPileSize"`
	DiscardTop      *deck.Card       `json:"discardTop,omitempty"`
	DiscardSize     int              `json:"discardSize"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// Snapshot builds the full authoritative room document.
func (r *Round) Snapshot() RoomState {
	st := RoomState{
		RoomID:      r.id,
		Phase:       r.phase,
		TurnNumber:  r.turnNumber,
		RoundNumber: r.roundNumber,
		UpdatedAt:   time.Now(),
	}
	if r.phase == PhaseTurn || r.phase == PhaseSameRank || r.phase == PhaseSpecial {
		if p := r.currentPlayer(); p != nil {
			id := p.ID
			st.CurrentPlayerID = &id
		}
	}
	if r.recallCalledBy != nil {
		id := *r.recallCalledBy
		st.RecallCalledBy = &id
	}
	for _, p := range r.players {
		st.Players = append(st.Players, snapshotPlayer(p))
	}
	if r.deck != nil {
		st.DrawPileSize = r.deck.DrawLen()
		st.DiscardTop = r.deck.LastPlayed()
		st.DiscardSize = r.deck.DiscardLen()
	}
	return st
}

func snapshotPlayer(p *model.Player) PlayerSnapshot {
	ps := PlayerSnapshot{
		ID:              p.ID,
		Name:            p.Name,
		Type:            p.Type,
		Status:          p.Status,
		Score:           p.Score,
		Connected:       p.Connected,
		HasCalledRecall: p.HasCalledRecall,
		HasDrawnCard:    p.DrawnCard != nil,
		DrawnCard:       p.DrawnCard,
	}
	for i, s := range p.Hand.Slots() {
		ps.Slots = append(ps.Slots, SlotSnapshot{Index: i, Occupied: s.Occupied, Card: s.Card})
	}
	return ps
}

// PrivateSnapshot builds the view one player is allowed to see: own seen
// cards and the discard top stay visible, every other card is masked to its
// slot position. Scores are masked until the game is over.
func (r *Round) PrivateSnapshot(viewerID uuid.UUID) RoomState {
	st := r.Snapshot()
	viewer := r.player(viewerID)
	over := r.phase == PhaseGameOver
	for pi := range st.Players {
		ps := &st.Players[pi]
		if !over {
			ps.Score = 0
		}
		if ps.DrawnCard != nil && ps.ID != viewerID {
			ps.DrawnCard = nil
		}
		for si := range ps.Slots {
			c := ps.Slots[si].Card
			if c == nil {
				continue
			}
			if over || (viewer != nil && viewer.HasSeen(c.ID)) {
				continue
			}
			ps.Slots[si].Card = nil
		}
	}
	return st
}
