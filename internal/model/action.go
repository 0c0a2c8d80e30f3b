package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/recallhq/recall/internal/deck"
)

// ActionType enumerates the closed inbound action vocabulary. Every source
// of mutation (human client, AI engine, timers) speaks this vocabulary;
// there is no privileged fast path.
type ActionType string

const (
	ActionJoinGame        ActionType = "join_game"
	ActionStartMatch      ActionType = "start_match"
	ActionPeekInitialCard ActionType = "peek_initial_card"
	ActionDrawCard        ActionType = "draw_card"
	ActionPlayCard        ActionType = "play_card"
	ActionPlayOutOfTurn   ActionType = "play_out_of_turn"
	ActionUseSpecialPower ActionType = "use_special_power"
	ActionCallRecall      ActionType = "call_recall"
	ActionLeaveGame       ActionType = "leave_game"
)

// DrawSource selects which pile a draw takes from.
type DrawSource string

const (
	DrawFromDrawPile    DrawSource = "draw"
	DrawFromDiscardPile DrawSource = "discard"
)

// Action is a tagged union: exactly the payload field matching Type is set.
// Construction is compile-time checked through the typed payload structs;
// there is no schema-validation table.
type Action struct {
	Type     ActionType `json:"type"`
	PlayerID uuid.UUID  `json:"playerId"`
	At       time.Time  `json:"at"`

	Join      *JoinGame        `json:"join,omitempty"`
	Peek      *PeekInitialCard `json:"peek,omitempty"`
	Draw      *DrawCard        `json:"draw,omitempty"`
	Play      *PlayCard        `json:"play,omitempty"`
	OutOfTurn *PlayOutOfTurn   `json:"outOfTurn,omitempty"`
	Power     *UseSpecialPower `json:"power,omitempty"`
	Leave     *LeaveGame       `json:"leave,omitempty"`
}

// JoinGame seats a player in the room. Tier selects the difficulty profile
// for computer players and is ignored for humans. Joining with the name of
// a disconnected player while a game is running reconnects that seat.
type JoinGame struct {
	PlayerName string     `json:"playerName"`
	PlayerType PlayerType `json:"playerType,omitempty"`
	Tier       string     `json:"tier,omitempty"`
}

// PeekInitialCard spends one of the two initial peeks on an own hand slot.
type PeekInitialCard struct {
	SlotIndex int `json:"slotIndex"`
}

// DrawCard draws from the chosen pile.
type DrawCard struct {
	Source DrawSource `json:"source"`
}

// PlayCard plays the identified card to the discard pile. When
// ReplaceIndex is set the drawn card replaces the hand slot at that index
// and the slot's previous card is what gets played.
type PlayCard struct {
	CardID       uuid.UUID `json:"cardId"`
	ReplaceIndex *int      `json:"replaceIndex,omitempty"`
}

// PlayOutOfTurn claims the open same-rank window with a matching card.
type PlayOutOfTurn struct {
	CardID uuid.UUID `json:"cardId"`
}

// UseSpecialPower resolves a pending special-play window. Skip resolves the
// power as a deliberate no-op.
type UseSpecialPower struct {
	Power deck.Power  `json:"powerType"`
	Skip  bool        `json:"skip,omitempty"`
	Peek  *PeekTarget `json:"peek,omitempty"`
	Swap  *SwapTarget `json:"swap,omitempty"`
	Steal *PeekTarget `json:"steal,omitempty"`
}

// PeekTarget identifies one card slot in one player's hand.
type PeekTarget struct {
	PlayerID  uuid.UUID `json:"playerId"`
	SlotIndex int       `json:"slotIndex"`
}

// SwapTarget identifies two card slots across any two hands, own included.
type SwapTarget struct {
	First  PeekTarget `json:"first"`
	Second PeekTarget `json:"second"`
}

// LeaveGame removes a player, with a client-supplied reason.
type LeaveGame struct {
	Reason string `json:"reason,omitempty"`
}

// Validate checks that the payload matching Type is present and the others
// are absent. It guards decoded wire input; constructed actions are
// well-formed by type.
func (a *Action) Validate() error {
	set := 0
	for _, present := range []bool{
		a.Join != nil, a.Peek != nil, a.Draw != nil, a.Play != nil,
		a.OutOfTurn != nil, a.Power != nil, a.Leave != nil,
	} {
		if present {
			set++
		}
	}
	need := func(ok bool, name string) error {
		if !ok {
			return fmt.Errorf("action %s: missing %s payload", a.Type, name)
		}
		if set != 1 {
			return fmt.Errorf("action %s: expected exactly one payload, got %d", a.Type, set)
		}
		return nil
	}
	switch a.Type {
	case ActionJoinGame:
		return need(a.Join != nil, "join")
	case ActionPeekInitialCard:
		return need(a.Peek != nil, "peek")
	case ActionDrawCard:
		return need(a.Draw != nil, "draw")
	case ActionPlayCard:
		return need(a.Play != nil, "play")
	case ActionPlayOutOfTurn:
		return need(a.OutOfTurn != nil, "outOfTurn")
	case ActionUseSpecialPower:
		return need(a.Power != nil, "power")
	case ActionLeaveGame:
		return need(a.Leave != nil, "leave")
	case ActionStartMatch, ActionCallRecall:
		if set != 0 {
			return fmt.Errorf("action %s: unexpected payload", a.Type)
		}
		return nil
	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}
}

// DecodeAction parses a wire frame into a validated Action.
func DecodeAction(raw []byte) (*Action, error) {
	var a Action
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("decode action: %w", err)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}
