// Package events defines the closed outbound event vocabulary and the
// channel-based bus the round orchestrator publishes to. Transport adapters
// subscribe and translate events to their wire format; the engine never
// touches a connection.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/recallhq/recall/internal/deck"
	"github.com/recallhq/recall/internal/model"
)

// Type enumerates the outbound event vocabulary.
type Type string

const (
	TypeGameStateUpdated    Type = "game_state_updated"
	TypePlayerStatusUpdated Type = "player_status_updated"
	TypeDiscardPileUpdated  Type = "discard_pile_updated"
	TypePlayerTurn          Type = "player_turn"
	TypeSameRankWindow      Type = "same_rank_window"
	TypePowerCardUsed       Type = "power_card_used"
	TypeCardRevealed        Type = "card_revealed"
	TypeRecallCalled        Type = "recall_called"
	TypeActionError         Type = "action_error"
	TypeGameEnded           Type = "game_ended"
)

// Event is a tagged union: exactly the payload matching Type is set.
// Recipient nil means broadcast to the whole room; otherwise the event is
// private to that player (card_revealed, action_error).
type Event struct {
	Type      Type       `json:"type"`
	RoomID    uuid.UUID  `json:"roomId"`
	Recipient *uuid.UUID `json:"-"`
	At        time.Time  `json:"at"`

	StateUpdated   *StateUpdated   `json:"stateUpdated,omitempty"`
	StatusUpdated  *StatusUpdated  `json:"statusUpdated,omitempty"`
	DiscardUpdated *DiscardUpdated `json:"discardUpdated,omitempty"`
	PlayerTurn     *PlayerTurn     `json:"playerTurn,omitempty"`
	SameRank       *SameRank       `json:"sameRank,omitempty"`
	PowerUsed      *PowerUsed      `json:"powerUsed,omitempty"`
	CardRevealed   *CardRevealed   `json:"cardRevealed,omitempty"`
	RecallCalled   *RecallCalled   `json:"recallCalled,omitempty"`
	ActionError    *ActionError    `json:"actionError,omitempty"`
	GameEnded      *GameEnded      `json:"gameEnded,omitempty"`
}

// StateUpdated carries the full merged room document plus the fields that
// changed in the update that produced it.
type StateUpdated struct {
	State         any      `json:"state"`
	ChangedFields []string `json:"changedFields"`
}

// StatusUpdated reports one player's status transition.
type StatusUpdated struct {
	PlayerID uuid.UUID          `json:"playerId"`
	Status   model.PlayerStatus `json:"status"`
}

// DiscardUpdated reports the new top of the discard pile.
type DiscardUpdated struct {
	TopCard *deck.Card `json:"topCard"`
}

// PlayerTurn announces whose turn started.
type PlayerTurn struct {
	PlayerID   uuid.UUID `json:"playerId"`
	TurnNumber int       `json:"turnNumber"`
}

// SameRank announces an open same-rank window.
type SameRank struct {
	Rank     deck.Rank `json:"rank"`
	Deadline time.Time `json:"deadline"`
}

// PowerUsed is the public record of a special power resolution. Card
// details are obfuscated; the private reveal travels via CardRevealed.
type PowerUsed struct {
	PlayerID uuid.UUID  `json:"playerId"`
	Power    deck.Power `json:"power"`
	Skipped  bool       `json:"skipped,omitempty"`
	Targets  []Target   `json:"targets,omitempty"`
}

// Target identifies a hand slot touched by a power, without card details.
type Target struct {
	PlayerID  uuid.UUID `json:"playerId"`
	SlotIndex int       `json:"slotIndex"`
}

// CardRevealed is private to its recipient: the full card they may now see.
type CardRevealed struct {
	Card      *deck.Card `json:"card"`
	OwnerID   uuid.UUID  `json:"ownerId"`
	SlotIndex int        `json:"slotIndex"`
}

// RecallCalled announces the final round.
type RecallCalled struct {
	PlayerID uuid.UUID `json:"playerId"`
}

// ActionError reports a rejected action to the acting client only.
type ActionError struct {
	Message string           `json:"message"`
	Action  model.ActionType `json:"action,omitempty"`
}

// GameEnded carries final scores and the winner set. Winners holds more
// than one id on a shared win and none when no winner was declared.
type GameEnded struct {
	Winners  []uuid.UUID       `json:"winners"`
	Scores   map[string]int    `json:"scores"`
	CalledBy *uuid.UUID        `json:"calledBy,omitempty"`
}
