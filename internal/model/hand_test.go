package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallhq/recall/internal/deck"
)

func testCard(rank deck.Rank, suit deck.Suit) *deck.Card {
	return &deck.Card{
		ID:     uuid.New(),
		Rank:   rank,
		Suit:   suit,
		Points: deck.PointsFor(rank, suit),
	}
}

func dealtHand(owner uuid.UUID) (*Hand, []*deck.Card) {
	h := NewHand()
	cards := []*deck.Card{
		testCard(deck.RankTwo, deck.SuitHearts),
		testCard(deck.RankFive, deck.SuitDiamonds),
		testCard(deck.RankNine, deck.SuitClubs),
		testCard(deck.RankKing, deck.SuitSpades),
	}
	for _, c := range cards {
		h.Add(c, owner)
	}
	return h, cards
}

func TestRemoveWithinDealSizeLeavesHole(t *testing.T) {
	owner := uuid.New()
	h, cards := dealtHand(owner)

	removed, idx := h.Remove(cards[1].ID)
	require.NotNil(t, removed)
	assert.Equal(t, 1, idx)
	assert.Nil(t, removed.OwnerID)

	// Slot 1 is a hole; the other cards keep their positions.
	assert.Equal(t, 4, h.Len())
	assert.Equal(t, 3, h.Count())
	assert.Nil(t, h.At(1))
	assert.Equal(t, cards[0].ID, h.At(0).ID)
	assert.Equal(t, cards[2].ID, h.At(2).ID)
	assert.Equal(t, cards[3].ID, h.At(3).ID)
}

func TestRemoveTrailingSlotSplices(t *testing.T) {
	owner := uuid.New()
	h, _ := dealtHand(owner)
	extra := testCard(deck.RankThree, deck.SuitClubs)
	h.Append(extra, owner)
	require.Equal(t, 5, h.Len())

	// Slot 4 is past the deal size with nothing above it: trimmed, no hole.
	removed, idx := h.Remove(extra.ID)
	require.NotNil(t, removed)
	assert.Equal(t, 4, idx)
	assert.Equal(t, 4, h.Len())
	assert.Equal(t, 4, h.Count())
}

func TestRemoveMidSlotWithHigherOccupiedLeavesHole(t *testing.T) {
	owner := uuid.New()
	h, _ := dealtHand(owner)
	fifth := testCard(deck.RankThree, deck.SuitClubs)
	sixth := testCard(deck.RankFour, deck.SuitHearts)
	h.Append(fifth, owner)
	h.Append(sixth, owner)

	// Slot 4 is past the deal size but slot 5 is occupied above it.
	removed, idx := h.Remove(fifth.ID)
	require.NotNil(t, removed)
	assert.Equal(t, 4, idx)
	assert.Equal(t, 6, h.Len())
	assert.Nil(t, h.At(4))
	assert.Equal(t, sixth.ID, h.At(5).ID)
}

func TestAddFillsFirstHoleAppendDoesNot(t *testing.T) {
	owner := uuid.New()
	h, cards := dealtHand(owner)
	h.Remove(cards[1].ID)

	// A non-drawn card takes the hole.
	penalty := testCard(deck.RankSix, deck.SuitSpades)
	idx := h.Add(penalty, owner)
	assert.Equal(t, 1, idx)
	assert.Equal(t, 4, h.Len())

	// A drawn card ignores holes and extends the hand.
	h.Remove(cards[0].ID)
	drawn := testCard(deck.RankSeven, deck.SuitHearts)
	idx = h.Append(drawn, owner)
	assert.Equal(t, 4, idx)
	assert.Equal(t, 5, h.Len())
	assert.Nil(t, h.At(0))
}

func TestReplaceAt(t *testing.T) {
	owner := uuid.New()
	h, cards := dealtHand(owner)
	incoming := testCard(deck.RankAce, deck.SuitClubs)

	old := h.ReplaceAt(2, incoming, owner)
	require.NotNil(t, old)
	assert.Equal(t, cards[2].ID, old.ID)
	assert.Nil(t, old.OwnerID)
	assert.Equal(t, incoming.ID, h.At(2).ID)
	require.NotNil(t, incoming.OwnerID)
	assert.Equal(t, owner, *incoming.OwnerID)

	// Replacing a hole fails.
	h.Remove(incoming.ID)
	assert.Nil(t, h.ReplaceAt(2, testCard(deck.RankTwo, deck.SuitClubs), owner))
}

func TestPointsSkipsHoles(t *testing.T) {
	owner := uuid.New()
	h, cards := dealtHand(owner)
	total := h.Points()
	assert.Equal(t, 2+5+9+10, total)

	h.Remove(cards[3].ID)
	assert.Equal(t, 2+5+9, h.Points())
}

func TestFindAndOccupiedIndices(t *testing.T) {
	owner := uuid.New()
	h, cards := dealtHand(owner)
	assert.Equal(t, 2, h.Find(cards[2].ID))
	assert.Equal(t, -1, h.Find(uuid.New()))

	h.Remove(cards[0].ID)
	assert.Equal(t, []int{1, 2, 3}, h.OccupiedIndices())
}
