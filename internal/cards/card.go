// Package cards holds the card representation shared by the engine and the
// confidential cluster: 6-bit card digits packed into fixed-width words, and
// the blackjack hand evaluator.
package cards

import "fmt"

// Card is a deck value 0..51 (rank = v % 13, suit = v / 13) or Empty.
type Card uint8

const (
	// DeckSize is the number of cards in a full deck.
	DeckSize = 52
	// HandSlots is the fixed number of slots in a packed hand.
	HandSlots = 11

	// Empty marks an unused hand or deck slot.
	Empty Card = 53
)

var (
	rankLabels = [13]string{"A", "1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q"}
	suitLabels = [4]string{"♠", "♥", "♦", "♣"}
)

// Rank returns v % 13. Rank 0 is the ace.
func (c Card) Rank() uint8 { return uint8(c) % 13 }

// Suit returns v / 13.
func (c Card) Suit() uint8 { return uint8(c) / 13 }

// IsEmpty reports whether c is the empty-slot sentinel.
func (c Card) IsEmpty() bool { return c == Empty }

// Valid reports whether c is a dealable card or the sentinel.
func (c Card) Valid() bool { return c <= Empty }

// Points returns the card's blackjack contribution before any soft-ace
// adjustment: ace 11, ranks above 10 count 10, everything else its rank.
func (c Card) Points() int {
	r := c.Rank()
	switch {
	case r == 0:
		return 11
	case r > 10:
		return 10
	default:
		return int(r)
	}
}

func (c Card) String() string {
	if c.IsEmpty() {
		return "--"
	}
	if c > Empty || c == 52 {
		return fmt.Sprintf("?%d", uint8(c))
	}
	return rankLabels[c.Rank()] + suitLabels[c.Suit()]
}

// NewDeck returns the 52 cards in ascending order.
func NewDeck() [DeckSize]Card {
	var deck [DeckSize]Card
	for i := range deck {
		deck[i] = Card(i)
	}
	return deck
}

// EmptyHand returns a hand with every slot set to Empty.
func EmptyHand() [HandSlots]Card {
	var hand [HandSlots]Card
	for i := range hand {
		hand[i] = Empty
	}
	return hand
}
