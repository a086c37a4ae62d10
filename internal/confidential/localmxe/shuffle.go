package localmxe

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"casino-backend/internal/cards"
)

// Shuffler produces a freshly ordered deck.
type Shuffler func() ([cards.DeckSize]cards.Card, error)

// CryptoShuffle is a Fisher-Yates shuffle driven by crypto/rand.
func CryptoShuffle() ([cards.DeckSize]cards.Card, error) {
	deck := cards.NewDeck()
	for i := len(deck) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return deck, fmt.Errorf("failed to shuffle: %w", err)
		}
		k := j.Int64()
		deck[i], deck[k] = deck[k], deck[i]
	}
	return deck, nil
}

// FixedShuffle returns a shuffler that puts prefix on top and the remaining
// cards in ascending order below it.
func FixedShuffle(prefix ...cards.Card) Shuffler {
	return func() ([cards.DeckSize]cards.Card, error) {
		var deck [cards.DeckSize]cards.Card
		var used [cards.DeckSize]bool
		n := 0
		for _, c := range prefix {
			if int(c) >= cards.DeckSize || used[c] {
				return deck, fmt.Errorf("card %d repeated or out of range", c)
			}
			used[c] = true
			deck[n] = c
			n++
		}
		for c := 0; c < cards.DeckSize; c++ {
			if !used[c] {
				deck[n] = cards.Card(c)
				n++
			}
		}
		return deck, nil
	}
}
