package deck

import (
	"math/rand"
)

// Deck holds the face-down draw pile and the face-up discard pile for one
// room. The union of both piles and all hands always equals the fixed set
// of cards built at shuffle time; cards are relocated, never destroyed.
type Deck struct {
	drawPile    []*Card
	discardPile []*Card
	size        int
	rng         *rand.Rand
}

// Build constructs a full 52-card deck, or 54 with jokers, shuffles it with
// the given source, and returns it with an empty discard pile. The rng is
// retained for later reshuffles.
func Build(includeJokers bool, powers PowerTable, rng *rand.Rand) *Deck {
	if powers == nil {
		powers = DefaultPowers()
	}
	cards := make([]*Card, 0, 54)
	for _, suit := range standardSuits {
		for _, rank := range standardRanks {
			cards = append(cards, newCard(rank, suit, powers))
		}
	}
	if includeJokers {
		cards = append(cards, newCard(RankJoker, SuitRedJoker, powers))
		cards = append(cards, newCard(RankJoker, SuitBlackJoker, powers))
	}

	d := &Deck{drawPile: cards, size: len(cards), rng: rng}
	d.shuffleDraw()
	return d
}

// shuffleDraw shuffles the draw pile in place (Fisher-Yates).
func (d *Deck) shuffleDraw() {
	for i := len(d.drawPile) - 1; i > 0; i-- {
		j := d.rng.Intn(i + 1)
		d.drawPile[i], d.drawPile[j] = d.drawPile[j], d.drawPile[i]
	}
}

// Draw pops the top card of the draw pile. When the draw pile is empty it
// first folds the discard pile back in, keeping the current top of discard
// in place. Returns nil only when no card exists anywhere in the piles.
func (d *Deck) Draw() *Card {
	if len(d.drawPile) == 0 {
		d.reshuffle()
	}
	if len(d.drawPile) == 0 {
		return nil
	}
	top := d.drawPile[len(d.drawPile)-1]
	d.drawPile = d.drawPile[:len(d.drawPile)-1]
	return top
}

// DrawFromDiscard pops the top card of the discard pile, or nil if empty.
func (d *Deck) DrawFromDiscard() *Card {
	if len(d.discardPile) == 0 {
		return nil
	}
	top := d.discardPile[len(d.discardPile)-1]
	d.discardPile = d.discardPile[:len(d.discardPile)-1]
	return top
}

// Discard pushes a card onto the discard pile; it becomes the last played.
func (d *Deck) Discard(c *Card) {
	c.OwnerID = nil
	d.discardPile = append(d.discardPile, c)
}

// LastPlayed returns the top of the discard pile, or nil if empty.
func (d *Deck) LastPlayed() *Card {
	if len(d.discardPile) == 0 {
		return nil
	}
	return d.discardPile[len(d.discardPile)-1]
}

// reshuffle moves every discard card except the top back into the draw pile
// and shuffles. The discard top stays where it is so the last played card
// remains visible.
func (d *Deck) reshuffle() {
	if len(d.discardPile) <= 1 {
		return
	}
	top := d.discardPile[len(d.discardPile)-1]
	d.drawPile = append(d.drawPile, d.discardPile[:len(d.discardPile)-1]...)
	d.discardPile = d.discardPile[:0]
	d.discardPile = append(d.discardPile, top)
	d.shuffleDraw()
}

// DrawLen returns the number of cards in the draw pile.
func (d *Deck) DrawLen() int { return len(d.drawPile) }

// DiscardLen returns the number of cards in the discard pile.
func (d *Deck) DiscardLen() int { return len(d.discardPile) }

// Size returns the fixed number of cards this deck was built with.
func (d *Deck) Size() int { return d.size }

// DiscardPile returns the discard pile, bottom first. The returned slice is
// shared; callers must not mutate it.
func (d *Deck) DiscardPile() []*Card { return d.discardPile }

// PileCardIDs returns the ids of every card currently in either pile.
// Used by invariant checks: piles plus hands must cover the deck exactly.
func (d *Deck) PileCardIDs() []string {
	ids := make([]string, 0, len(d.drawPile)+len(d.discardPile))
	for _, c := range d.drawPile {
		ids = append(ids, c.ID.String())
	}
	for _, c := range d.discardPile {
		ids = append(ids, c.ID.String())
	}
	return ids
}
