// Package deck implements the card and pile model for the Recall round
// engine: immutable card identity, the rank/suit point table, special-power
// assignment, and draw/discard pile mechanics.
package deck

import (
	"github.com/google/uuid"
)

// Rank identifies a card rank. Single-letter encoding, "T" for ten and
// "O" for joker.
type Rank string

const (
	RankAce   Rank = "A"
	RankTwo   Rank = "2"
	RankThree Rank = "3"
	RankFour  Rank = "4"
	RankFive  Rank = "5"
	RankSix   Rank = "6"
	RankSeven Rank = "7"
	RankEight Rank = "8"
	RankNine  Rank = "9"
	RankTen   Rank = "T"
	RankJack  Rank = "J"
	RankQueen Rank = "Q"
	RankKing  Rank = "K"
	RankJoker Rank = "O"
)

// Suit identifies a card suit. "R" and "B" are the red and black jokers.
type Suit string

const (
	SuitHearts     Suit = "H"
	SuitDiamonds   Suit = "D"
	SuitClubs      Suit = "C"
	SuitSpades     Suit = "S"
	SuitRedJoker   Suit = "R"
	SuitBlackJoker Suit = "B"
)

// IsRed reports whether the suit is a red suit (hearts or diamonds).
func (s Suit) IsRed() bool { return s == SuitHearts || s == SuitDiamonds }

// Power is a special ability granted by playing a card of a designated rank.
type Power string

const (
	PowerNone      Power = ""
	PowerPeek      Power = "peek_at_card"  // queens: view exactly one card
	PowerSwap      Power = "switch_cards"  // jacks: swap two cards across hands
	PowerSteal     Power = "steal_card"    // added power: take a card from an opponent
	PowerExtraDraw Power = "extra_draw"    // added power: draw an extra card
	PowerProtect   Power = "protect_hand"  // added power: hand immune to swaps for a round
	PowerSkipTurn  Power = "skip_turn"     // added power: skip the next player's turn
)

// Standard ranks in deal order, jokers excluded.
var standardRanks = []Rank{
	RankAce, RankTwo, RankThree, RankFour, RankFive, RankSix, RankSeven,
	RankEight, RankNine, RankTen, RankJack, RankQueen, RankKing,
}

var standardSuits = []Suit{SuitHearts, SuitDiamonds, SuitClubs, SuitSpades}

// Card is an immutable value object created once per deck shuffle. Only
// OwnerID changes after creation, when the card enters or leaves a hand.
type Card struct {
	ID      uuid.UUID  `json:"id"`
	Rank    Rank       `json:"rank"`
	Suit    Suit       `json:"suit"`
	Points  int        `json:"points"`
	Power   Power      `json:"power,omitempty"`
	OwnerID *uuid.UUID `json:"ownerId,omitempty"`
}

// PointsFor returns the point value for a rank/suit pair.
//
// Point table: joker 0, ace 1, number cards face value, jack/queen 10,
// king 10 except red kings (hearts/diamonds) which are 0.
func PointsFor(rank Rank, suit Suit) int {
	switch rank {
	case RankJoker:
		return 0
	case RankAce:
		return 1
	case RankTwo, RankThree, RankFour, RankFive, RankSix, RankSeven, RankEight, RankNine:
		return int(rank[0] - '0')
	case RankTen, RankJack, RankQueen:
		return 10
	case RankKing:
		if suit.IsRed() {
			return 0
		}
		return 10
	}
	return 0
}

// PowerTable maps ranks to the power granted by playing them. Queens and
// jacks are fixed; further "added power" ranks come from room configuration.
type PowerTable map[Rank]Power

// DefaultPowers returns the base power table: queen peeks, jack swaps.
func DefaultPowers() PowerTable {
	return PowerTable{
		RankQueen: PowerPeek,
		RankJack:  PowerSwap,
	}
}

// WithAdded returns a copy of the table extended with added-power ranks.
// Queens and jacks cannot be reassigned.
func (t PowerTable) WithAdded(added map[Rank]Power) PowerTable {
	out := make(PowerTable, len(t)+len(added))
	for r, p := range t {
		out[r] = p
	}
	for r, p := range added {
		if r == RankQueen || r == RankJack {
			continue
		}
		out[r] = p
	}
	return out
}

// newCard constructs a card with a fresh identity and derived point value.
func newCard(rank Rank, suit Suit, powers PowerTable) *Card {
	return &Card{
		ID:     uuid.New(),
		Rank:   rank,
		Suit:   suit,
		Points: PointsFor(rank, suit),
		Power:  powers[rank],
	}
}
