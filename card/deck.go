package card

import (
	"math/rand"
)

// Deck 牌堆与弃牌堆。抽牌从尾部弹出；牌不足时先把弃牌堆洗回牌堆。
type Deck struct {
	cards   []*Card
	discard []*Card
	rng     *rand.Rand
}

// NewDeck builds pool[type] copies of each catalog card and shuffles them.
// Unknown pool keys are ignored. The rng is retained for later reshuffles.
func NewDeck(pool map[string]int, rng *rand.Rand) *Deck {
	d := &Deck{rng: rng}
	for _, t := range allTypes {
		n := pool[t.String()]
		for i := 0; i < n; i++ {
			d.cards = append(d.cards, New(t))
		}
	}
	shuffle(d.cards, rng)
	return d
}

// Len returns the number of cards left in the draw pile.
func (d *Deck) Len() int { return len(d.cards) }

// DiscardLen returns the number of cards in the discard pile.
func (d *Deck) DiscardLen() int { return len(d.discard) }

// Draw pops up to n cards from the deck tail. When the draw pile runs dry the
// discard pile is shuffled back in first; if the combined pool is still short
// the available cards are returned. Never blocks, never errors.
func (d *Deck) Draw(n int) []*Card {
	drawn := make([]*Card, 0, n)
	for len(drawn) < n {
		if len(d.cards) == 0 {
			if len(d.discard) == 0 {
				break
			}
			d.cards = d.discard
			d.discard = nil
			shuffle(d.cards, d.rng)
		}
		last := len(d.cards) - 1
		drawn = append(drawn, d.cards[last])
		d.cards[last] = nil
		d.cards = d.cards[:last]
	}
	return drawn
}

// Discard moves a used card onto the discard pile.
func (d *Deck) Discard(c *Card) {
	d.discard = append(d.discard, c)
}

// DistributeDropped shuffles the dropped cards and deals them round-robin,
// claimer first, across [claimer]+others in that fixed cyclic order. Counts
// across recipients differ by at most one.
func DistributeDropped(cards []*Card, claimerID string, others []string, rng *rand.Rand) map[string][]*Card {
	recipients := append([]string{claimerID}, others...)
	dropped := make([]*Card, len(cards))
	copy(dropped, cards)
	shuffle(dropped, rng)

	out := make(map[string][]*Card, len(recipients))
	for i, c := range dropped {
		id := recipients[i%len(recipients)]
		out[id] = append(out[id], c)
	}
	return out
}

// shuffle 标准 Fisher–Yates 洗牌
func shuffle(cards []*Card, rng *rand.Rand) {
	for i := len(cards) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
}
