package deck

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointsFor(t *testing.T) {
	assert.Equal(t, 0, PointsFor(RankJoker, SuitRedJoker))
	assert.Equal(t, 1, PointsFor(RankAce, SuitSpades))
	assert.Equal(t, 2, PointsFor(RankTwo, SuitHearts))
	assert.Equal(t, 9, PointsFor(RankNine, SuitClubs))
	assert.Equal(t, 10, PointsFor(RankTen, SuitDiamonds))
	assert.Equal(t, 10, PointsFor(RankJack, SuitHearts))
	assert.Equal(t, 10, PointsFor(RankQueen, SuitClubs))

	// Red kings are worth nothing; black kings the full ten.
	assert.Equal(t, 0, PointsFor(RankKing, SuitHearts))
	assert.Equal(t, 0, PointsFor(RankKing, SuitDiamonds))
	assert.Equal(t, 10, PointsFor(RankKing, SuitSpades))
	assert.Equal(t, 10, PointsFor(RankKing, SuitClubs))
}

func TestHandTotalExample(t *testing.T) {
	// 5 of diamonds + king of hearts + queen of clubs = 5 + 0 + 10.
	total := PointsFor(RankFive, SuitDiamonds) +
		PointsFor(RankKing, SuitHearts) +
		PointsFor(RankQueen, SuitClubs)
	assert.Equal(t, 15, total)
}

func TestBuildCounts(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	d := Build(false, nil, rng)
	assert.Equal(t, 52, d.Size())
	assert.Equal(t, 52, d.DrawLen())
	assert.Equal(t, 0, d.DiscardLen())

	d = Build(true, nil, rng)
	assert.Equal(t, 54, d.Size())
}

func TestDefaultPowerAssignment(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	d := Build(true, DefaultPowers(), rng)

	for i := 0; i < d.Size(); i++ {
		c := d.Draw()
		require.NotNil(t, c)
		switch c.Rank {
		case RankQueen:
			assert.Equal(t, PowerPeek, c.Power)
		case RankJack:
			assert.Equal(t, PowerSwap, c.Power)
		default:
			assert.Equal(t, PowerNone, c.Power)
		}
	}
}

func TestWithAddedCannotReassignQueenJack(t *testing.T) {
	powers := DefaultPowers().WithAdded(map[Rank]Power{
		RankQueen: PowerSteal,
		RankKing:  PowerSkipTurn,
		RankSeven: PowerExtraDraw,
	})
	assert.Equal(t, PowerPeek, powers[RankQueen])
	assert.Equal(t, PowerSwap, powers[RankJack])
	assert.Equal(t, PowerSkipTurn, powers[RankKing])
	assert.Equal(t, PowerExtraDraw, powers[RankSeven])
}

func TestDrawExhaustsAndReshuffles(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	d := Build(false, nil, rng)

	// Move three cards to the discard pile, then empty the draw pile.
	for i := 0; i < 3; i++ {
		d.Discard(d.Draw())
	}
	for d.DrawLen() > 0 {
		require.NotNil(t, d.Draw())
	}
	top := d.LastPlayed()
	require.NotNil(t, top)

	// The next draw folds the discard pile back in, keeping its top.
	c := d.Draw()
	require.NotNil(t, c)
	assert.NotEqual(t, top.ID, c.ID)
	assert.Equal(t, 1, d.DiscardLen())
	assert.Equal(t, top.ID, d.LastPlayed().ID)
}

func TestDrawReturnsNilWhenTrulyEmpty(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	d := Build(false, nil, rng)

	drawn := 0
	for c := d.Draw(); c != nil; c = d.Draw() {
		drawn++
	}
	assert.Equal(t, 52, drawn)
	assert.Nil(t, d.Draw())
}

func TestDiscardClearsOwner(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	d := Build(false, nil, rng)

	c := d.Draw()
	owner := c.ID
	c.OwnerID = &owner
	d.Discard(c)
	assert.Nil(t, c.OwnerID)
	assert.Equal(t, c.ID, d.LastPlayed().ID)
}
