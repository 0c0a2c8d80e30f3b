package ai

import (
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/recallhq/recall/internal/deck"
	"github.com/recallhq/recall/internal/model"
)

// Engine turns a view of the round into an intended action for one
// computer player. It never mutates state; the returned action travels
// through the orchestrator and state queue like a human action.
type Engine struct {
	profile Profile
	rng     *rand.Rand
	log     *logrus.Entry
}

// New creates an engine. The rng is injected so replays and tests are
// deterministic.
func New(profile Profile, rng *rand.Rand, log *logrus.Entry) *Engine {
	return &Engine{profile: profile.Normalize(), rng: rng, log: log}
}

// Profile returns the normalized profile in use.
func (e *Engine) Profile() Profile { return e.profile }

// DecideTurn produces the action for the AI's own turn. With no drawn card
// it decides between calling Recall and drawing; with a drawn card pending
// it decides between playing it and replacing a hand slot. It always
// returns a structurally valid action, whatever the error rate.
func (e *Engine) DecideTurn(v View) model.Action {
	if v.DrawnCard != nil {
		return e.decidePlay(v)
	}

	// Recall when every own slot is known and the sum is comfortably low.
	known, unknown := v.Self.KnownPoints()
	if !v.RecallCalled && unknown == 0 && known <= e.profile.RecallThreshold {
		if e.rng.Float64() >= e.profile.ErrorRate {
			return model.Action{Type: model.ActionCallRecall, PlayerID: v.SelfID, At: time.Now()}
		}
	}

	source := model.DrawFromDrawPile
	if v.DiscardTop != nil && e.rng.Float64() < e.profile.DrawFromDiscardProb {
		source = model.DrawFromDiscardPile
	}
	return model.Action{
		Type:     model.ActionDrawCard,
		PlayerID: v.SelfID,
		At:       time.Now(),
		Draw:     &model.DrawCard{Source: source},
	}
}

// expectedUnknownPoints estimates an unseen card's value, roughly the
// deck-wide average. Unknown slots trade against it so low drawn cards
// still displace them.
const expectedUnknownPoints = 6.0

// decidePlay commits the drawn card: either discard it directly or swap it
// into the hand slot that scores worst, known or estimated.
func (e *Engine) decidePlay(v View) model.Action {
	play := &model.PlayCard{CardID: v.DrawnCard.ID}

	bestIdx := -1
	bestGain := 0.0
	drawnScore := e.playScore(v.DrawnCard, v)
	for _, s := range v.Self.Slots {
		slotScore := e.profile.Weights.PointValue * expectedUnknownPoints *
			(1 + e.profile.Weights.Progression*v.progression())
		if s.Known {
			slotScore = e.playScore(s.Card, v)
		}
		if gain := slotScore - drawnScore; gain > bestGain {
			bestGain = gain
			bestIdx = s.Index
		}
	}

	replace := bestIdx >= 0
	if e.rng.Float64() < e.profile.ErrorRate {
		// Deliberate mistake: flip the choice, or pick a random occupied
		// slot to replace. Still a legal, well-formed action.
		replace = !replace
		if replace {
			occupied := occupiedIndices(v.Self)
			if len(occupied) == 0 {
				replace = false
			} else {
				bestIdx = occupied[e.rng.Intn(len(occupied))]
			}
		}
	}

	if replace {
		idx := bestIdx
		play.ReplaceIndex = &idx
	}
	return model.Action{Type: model.ActionPlayCard, PlayerID: v.SelfID, At: time.Now(), Play: play}
}

// DecideSameRank decides whether to claim an open same-rank window. nil
// means pass; passing a reactive window is a legitimate non-action, unlike
// a turn, which always yields a move.
func (e *Engine) DecideSameRank(v View, rank deck.Rank) *model.Action {
	if v.DiscardTop == nil {
		return nil
	}
	if e.rng.Float64() >= e.profile.SameRankPlayProb {
		return nil
	}

	var match, known *deck.Card
	for _, s := range v.Self.Slots {
		if !s.Known {
			continue
		}
		known = s.Card
		if s.Card.Rank == rank {
			match = s.Card
			break
		}
	}

	// Low tiers sometimes slam down the wrong rank and eat the penalty.
	if match == nil {
		if known != nil && e.rng.Float64() < e.profile.WrongRankProb {
			match = known
		} else {
			return nil
		}
	}
	return &model.Action{
		Type:      model.ActionPlayOutOfTurn,
		PlayerID:  v.SelfID,
		At:        time.Now(),
		OutOfTurn: &model.PlayOutOfTurn{CardID: match.ID},
	}
}

// DecidePower resolves a pending special-play window. A power with no
// useful target is skipped explicitly; the result is always well-formed.
func (e *Engine) DecidePower(v View, power deck.Power) model.Action {
	use := &model.UseSpecialPower{Power: power}

	switch power {
	case deck.PowerPeek:
		if t := e.pickPeekTarget(v); t != nil {
			use.Peek = t
		} else {
			use.Skip = true
		}
	case deck.PowerSwap:
		if t := e.pickSwapTarget(v); t != nil {
			use.Swap = t
		} else {
			use.Skip = true
		}
	case deck.PowerSteal:
		if t := e.pickOpponentSlot(v); t != nil {
			use.Steal = t
		} else {
			use.Skip = true
		}
	default:
		// extra_draw, protect_hand, skip_turn need no target.
	}

	if !use.Skip && e.rng.Float64() < e.profile.MissPlayProb {
		use.Peek, use.Swap, use.Steal = nil, nil, nil
		use.Skip = true
	}
	return model.Action{Type: model.ActionUseSpecialPower, PlayerID: v.SelfID, At: time.Now(), Power: use}
}

// pickPeekTarget prefers an unknown opponent slot (high uncertainty) when
// the profile says so, then falls back to an own unknown slot.
func (e *Engine) pickPeekTarget(v View) *model.PeekTarget {
	if e.profile.QueenPeekOpponents {
		if t := e.pickOpponentSlot(v); t != nil {
			return t
		}
	}
	for _, s := range v.Self.Slots {
		if !s.Known && slotOccupied(s) {
			return &model.PeekTarget{PlayerID: v.SelfID, SlotIndex: s.Index}
		}
	}
	return e.pickOpponentSlot(v)
}

// pickOpponentSlot returns a random occupied slot of a random opponent,
// preferring unknown slots.
func (e *Engine) pickOpponentSlot(v View) *model.PeekTarget {
	if len(v.Opponents) == 0 {
		return nil
	}
	order := e.rng.Perm(len(v.Opponents))
	for _, oi := range order {
		opp := v.Opponents[oi]
		candidates := make([]int, 0, len(opp.Slots))
		for _, s := range opp.Slots {
			if slotOccupied(s) && !s.Known {
				candidates = append(candidates, s.Index)
			}
		}
		if len(candidates) == 0 {
			candidates = occupiedIndices(opp)
		}
		if len(candidates) > 0 {
			return &model.PeekTarget{
				PlayerID:  opp.PlayerID,
				SlotIndex: candidates[e.rng.Intn(len(candidates))],
			}
		}
	}
	return nil
}

// pickSwapTarget swaps the own highest-point known card for an unknown
// opponent card when the profile prefers that; otherwise it trades a random
// own slot.
func (e *Engine) pickSwapTarget(v View) *model.SwapTarget {
	opp := e.pickOpponentSlot(v)
	if opp == nil {
		return nil
	}

	ownIdx := -1
	if e.profile.JackSwapOwnHighest {
		best := -1
		for _, s := range v.Self.Slots {
			if s.Known && s.Card.Points > best {
				best = s.Card.Points
				ownIdx = s.Index
			}
		}
	}
	if ownIdx < 0 {
		occupied := occupiedIndices(v.Self)
		if len(occupied) == 0 {
			return nil
		}
		ownIdx = occupied[e.rng.Intn(len(occupied))]
	}
	return &model.SwapTarget{
		First:  model.PeekTarget{PlayerID: v.SelfID, SlotIndex: ownIdx},
		Second: *opp,
	}
}

// playScore ranks a card as a discard candidate: shedding high points is
// good, burning an unused power is weighted down, and everything firms up
// as the draw pile runs out.
func (e *Engine) playScore(c *deck.Card, v View) float64 {
	w := e.profile.Weights
	score := w.PointValue * float64(c.Points)
	if c.Power != deck.PowerNone {
		score += w.PowerUtility * 5
	}
	return score * (1 + w.Progression*v.progression())
}

func slotOccupied(s SlotView) bool { return s.Known && s.Card != nil || !s.Known }

func occupiedIndices(h HandView) []int {
	out := make([]int, 0, len(h.Slots))
	for _, s := range h.Slots {
		if slotOccupied(s) {
			out = append(out, s.Index)
		}
	}
	return out
}
