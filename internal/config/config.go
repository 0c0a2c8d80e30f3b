// Package config loads the AI difficulty-profile document and the room
// rule settings. Missing or partial input degrades to documented defaults;
// configuration problems are never surfaced to players.
package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/recallhq/recall/internal/ai"
	"github.com/recallhq/recall/internal/deck"
)

// RoomConfig holds the per-room rule knobs.
type RoomConfig struct {
	MinPlayers int `json:"minPlayers"`
	MaxPlayers int `json:"maxPlayers"`

	IncludeJokers bool `json:"includeJokers"`

	// AddedPowers assigns extra abilities to designated ranks on top of
	// the fixed queen/jack powers.
	AddedPowers map[deck.Rank]deck.Power `json:"addedPowers,omitempty"`

	InitialPeekWindow time.Duration `json:"initialPeekWindow"`
	SameRankWindow    time.Duration `json:"sameRankWindow"`
	SpecialPlayWindow time.Duration `json:"specialPlayWindow"`
	TurnTimer         time.Duration `json:"turnTimer"`

	PenaltyDrawCount int `json:"penaltyDrawCount"`
}

// DefaultRoomConfig returns the standard room rules. The window literals
// are defaults, not protocol constants.
func DefaultRoomConfig() RoomConfig {
	return RoomConfig{
		MinPlayers:        2,
		MaxPlayers:        4,
		IncludeJokers:     true,
		InitialPeekWindow: 10 * time.Second,
		SameRankWindow:    5 * time.Second,
		SpecialPlayWindow: 10 * time.Second,
		TurnTimer:         30 * time.Second,
		PenaltyDrawCount:  2,
	}
}

// Normalize fills unset fields with defaults and fixes inconsistent
// bounds.
func (c RoomConfig) Normalize() RoomConfig {
	def := DefaultRoomConfig()
	if c.MinPlayers < 2 {
		c.MinPlayers = def.MinPlayers
	}
	if c.MaxPlayers < c.MinPlayers {
		c.MaxPlayers = c.MinPlayers
	}
	if c.InitialPeekWindow <= 0 {
		c.InitialPeekWindow = def.InitialPeekWindow
	}
	if c.SameRankWindow <= 0 {
		c.SameRankWindow = def.SameRankWindow
	}
	if c.SpecialPlayWindow <= 0 {
		c.SpecialPlayWindow = def.SpecialPlayWindow
	}
	if c.TurnTimer <= 0 {
		c.TurnTimer = def.TurnTimer
	}
	if c.PenaltyDrawCount <= 0 {
		c.PenaltyDrawCount = def.PenaltyDrawCount
	}
	return c
}

// profileDocument is the on-disk shape of the difficulty configuration.
type profileDocument struct {
	Tiers map[string]ai.Profile `json:"tiers"`
}

// LoadProfiles reads the difficulty-profile document at path. Every tier
// always comes back usable: unknown tiers are ignored, absent tiers and
// absent fields fall back to the built-in defaults, and a missing or
// malformed file yields the full default set.
func LoadProfiles(path string, log *logrus.Entry) map[ai.Tier]ai.Profile {
	profiles := make(map[ai.Tier]ai.Profile, len(ai.Tiers))
	for _, tier := range ai.Tiers {
		profiles[tier] = ai.DefaultProfile(tier)
	}
	if path == "" {
		return profiles
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Warn("ai profiles: using defaults")
		return profiles
	}
	var doc profileDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		log.WithError(err).WithField("path", path).Warn("ai profiles: malformed document, using defaults")
		return profiles
	}

	for name, p := range doc.Tiers {
		tier := ai.Tier(name)
		if _, known := profiles[tier]; !known {
			log.WithField("tier", name).Warn("ai profiles: unknown tier ignored")
			continue
		}
		p.Tier = tier
		profiles[tier] = p.Normalize()
	}
	return profiles
}
