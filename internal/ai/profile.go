// Package ai implements the computer-player decision engine. Given a
// difficulty profile and a read-only view of the round, it produces the
// same action vocabulary a human client sends; the orchestrator funnels
// those actions through the state queue like any other input.
package ai

import "time"

// Tier names a difficulty level on a linear rank scale.
type Tier string

const (
	TierBeginner     Tier = "beginner"
	TierIntermediate Tier = "intermediate"
	TierAdvanced     Tier = "advanced"
	TierExpert       Tier = "expert"
	TierLegend       Tier = "legend"
)

// Tiers lists all difficulty tiers from weakest to strongest.
var Tiers = []Tier{TierBeginner, TierIntermediate, TierAdvanced, TierExpert, TierLegend}

// EvalWeights weight the card-evaluation terms used to rank candidate
// plays: raw point value, special-power utility, and a game-progression
// term that grows as the draw pile shrinks.
type EvalWeights struct {
	PointValue   float64 `json:"point_value"`
	PowerUtility float64 `json:"power_utility"`
	Progression  float64 `json:"progression"`
}

// Profile parameterizes one computer player. Zero-valued fields are filled
// from tier defaults; a missing or partial profile document never fails.
type Profile struct {
	Tier                 Tier    `json:"tier"`
	DecisionDelaySeconds float64 `json:"decision_delay_seconds"`

	// ErrorRate is the probability the AI ignores the action it judged
	// best and plays a random legal one instead. It never suppresses the
	// move entirely: a structurally valid action is always produced.
	ErrorRate float64 `json:"error_rate"`

	DrawFromDiscardProb float64 `json:"draw_from_discard_prob"`
	SameRankPlayProb    float64 `json:"same_rank_play_prob"`
	WrongRankProb       float64 `json:"wrong_rank_prob"`
	MissPlayProb        float64 `json:"miss_chance_to_play"`

	Weights EvalWeights `json:"card_evaluation_weights"`

	// QueenPeekOpponents prefers peeking at opponent cards over own
	// unknown cards. JackSwapOwnHighest prefers swapping away the own
	// highest-point known card for an unknown opponent card.
	QueenPeekOpponents bool `json:"queen_peek_opponents"`
	JackSwapOwnHighest bool `json:"jack_swap_own_highest"`

	RecallThreshold int `json:"recall_threshold"`
}

// tierDefaults is the authoritative default profile per tier.
var tierDefaults = map[Tier]Profile{
	TierBeginner: {
		Tier: TierBeginner, DecisionDelaySeconds: 3.0, ErrorRate: 0.45,
		DrawFromDiscardProb: 0.15, SameRankPlayProb: 0.25, WrongRankProb: 0.20, MissPlayProb: 0.40,
		Weights:            EvalWeights{PointValue: 1.0, PowerUtility: 0.1, Progression: 0.1},
		QueenPeekOpponents: false, JackSwapOwnHighest: false, RecallThreshold: 4,
	},
	TierIntermediate: {
		Tier: TierIntermediate, DecisionDelaySeconds: 2.5, ErrorRate: 0.30,
		DrawFromDiscardProb: 0.30, SameRankPlayProb: 0.45, WrongRankProb: 0.10, MissPlayProb: 0.25,
		Weights:            EvalWeights{PointValue: 1.0, PowerUtility: 0.3, Progression: 0.2},
		QueenPeekOpponents: true, JackSwapOwnHighest: false, RecallThreshold: 6,
	},
	TierAdvanced: {
		Tier: TierAdvanced, DecisionDelaySeconds: 2.0, ErrorRate: 0.18,
		DrawFromDiscardProb: 0.45, SameRankPlayProb: 0.65, WrongRankProb: 0.05, MissPlayProb: 0.12,
		Weights:            EvalWeights{PointValue: 1.0, PowerUtility: 0.5, Progression: 0.35},
		QueenPeekOpponents: true, JackSwapOwnHighest: true, RecallThreshold: 8,
	},
	TierExpert: {
		Tier: TierExpert, DecisionDelaySeconds: 1.5, ErrorRate: 0.08,
		DrawFromDiscardProb: 0.55, SameRankPlayProb: 0.80, WrongRankProb: 0.02, MissPlayProb: 0.05,
		Weights:            EvalWeights{PointValue: 1.0, PowerUtility: 0.7, Progression: 0.5},
		QueenPeekOpponents: true, JackSwapOwnHighest: true, RecallThreshold: 10,
	},
	TierLegend: {
		Tier: TierLegend, DecisionDelaySeconds: 1.0, ErrorRate: 0.02,
		DrawFromDiscardProb: 0.65, SameRankPlayProb: 0.92, WrongRankProb: 0.0, MissPlayProb: 0.01,
		Weights:            EvalWeights{PointValue: 1.0, PowerUtility: 0.9, Progression: 0.65},
		QueenPeekOpponents: true, JackSwapOwnHighest: true, RecallThreshold: 12,
	},
}

// DefaultProfile returns the built-in defaults for a tier. Unknown tiers
// fall back to intermediate.
func DefaultProfile(tier Tier) Profile {
	if p, ok := tierDefaults[tier]; ok {
		return p
	}
	return tierDefaults[TierIntermediate]
}

// Normalize fills zero-valued fields from the tier defaults and clamps
// probabilities into [0, 1]. A partial profile document therefore degrades
// to documented defaults per field instead of failing.
func (p Profile) Normalize() Profile {
	def := DefaultProfile(p.Tier)
	if p.Tier == "" {
		p.Tier = def.Tier
	}
	if p.DecisionDelaySeconds <= 0 {
		p.DecisionDelaySeconds = def.DecisionDelaySeconds
	}
	if p.DrawFromDiscardProb == 0 {
		p.DrawFromDiscardProb = def.DrawFromDiscardProb
	}
	if p.SameRankPlayProb == 0 {
		p.SameRankPlayProb = def.SameRankPlayProb
	}
	if p.Weights == (EvalWeights{}) {
		p.Weights = def.Weights
	}
	if p.RecallThreshold == 0 {
		p.RecallThreshold = def.RecallThreshold
	}
	clamp := func(v *float64) {
		if *v < 0 {
			*v = 0
		}
		if *v > 1 {
			*v = 1
		}
	}
	clamp(&p.ErrorRate)
	clamp(&p.DrawFromDiscardProb)
	clamp(&p.SameRankPlayProb)
	clamp(&p.WrongRankProb)
	clamp(&p.MissPlayProb)
	return p
}

// DecisionDelay converts the profile's delay to a duration.
func (p Profile) DecisionDelay() time.Duration {
	return time.Duration(p.DecisionDelaySeconds * float64(time.Second))
}
