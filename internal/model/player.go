// Package model holds the player state machine, the slot-addressed hand,
// and the typed action vocabulary shared by human clients, the AI engine,
// and timers.
package model

import (
	"github.com/google/uuid"

	"github.com/recallhq/recall/internal/deck"
)

// PlayerType distinguishes human clients from computer players.
type PlayerType string

const (
	PlayerHuman    PlayerType = "human"
	PlayerComputer PlayerType = "computer"
)

// PlayerStatus reflects what a player is currently allowed to do. Only the
// round orchestrator transitions it; a Player never self-transitions.
type PlayerStatus string

const (
	StatusWaiting        PlayerStatus = "waiting"
	StatusReady          PlayerStatus = "ready"
	StatusInitialPeek    PlayerStatus = "initial_peek"
	StatusPlaying        PlayerStatus = "playing"
	StatusDrawingCard    PlayerStatus = "drawing_card"
	StatusPlayingCard    PlayerStatus = "playing_card"
	StatusSameRankWindow PlayerStatus = "same_rank_window"
	StatusQueenPeek      PlayerStatus = "queen_peek"
	StatusJackSwap       PlayerStatus = "jack_swap"
	StatusPeeking        PlayerStatus = "peeking"
	StatusFinished       PlayerStatus = "finished"
	StatusDisconnected   PlayerStatus = "disconnected"
	StatusWinner         PlayerStatus = "winner"
)

// initialPeekAllowance is how many of their own dealt cards a player may
// look at during the dealing phase. Never replenished.
const initialPeekAllowance = 2

// Player is one seat in a room. Created at join time and retained through
// game over so final scores stay reportable.
type Player struct {
	ID              uuid.UUID
	Name            string
	Type            PlayerType
	Hand            *Hand
	DrawnCard       *deck.Card // drawn but not yet committed, at most one
	Score           int
	Status          PlayerStatus
	HasCalledRecall bool
	Connected       bool

	// VisibleCards tracks which card ids this player has legitimately seen
	// (initial peeks, queen peeks, own draws).
	VisibleCards map[uuid.UUID]bool

	InitialPeeksRemaining int
}

// NewPlayer creates a player in the waiting state with an empty hand.
func NewPlayer(name string, typ PlayerType) *Player {
	return &Player{
		ID:                    uuid.New(),
		Name:                  name,
		Type:                  typ,
		Hand:                  NewHand(),
		Status:                StatusWaiting,
		Connected:             true,
		VisibleCards:          make(map[uuid.UUID]bool),
		InitialPeeksRemaining: initialPeekAllowance,
	}
}

// MarkSeen records that this player has legitimately seen a card.
func (p *Player) MarkSeen(cardID uuid.UUID) {
	p.VisibleCards[cardID] = true
}

// HasSeen reports whether the player has legitimately seen the card.
func (p *Player) HasSeen(cardID uuid.UUID) bool {
	return p.VisibleCards[cardID]
}

// CalculatePoints sums the point values of the player's hand.
func (p *Player) CalculatePoints() int {
	return p.Hand.Points()
}

// Active reports whether the player still takes turns: not finished, not
// disconnected, and has not forfeited by calling Recall.
func (p *Player) Active() bool {
	switch p.Status {
	case StatusFinished, StatusDisconnected, StatusWinner:
		return false
	}
	return !p.HasCalledRecall
}
