package localmxe

import (
	"errors"
	"fmt"

	"casino-backend/internal/cards"
	"casino-backend/internal/confidential"
)

const dealerDrawRounds = 7

var errDeckExhausted = errors.New("deck exhausted")

type dealt struct {
	deck   [cards.DeckSize]cards.Card
	dealer [cards.HandSlots]cards.Card
	player [cards.HandSlots]cards.Card
	up     [cards.HandSlots]cards.Card
}

// deal hands out deck[0], deck[2] to the player and deck[1], deck[3] to the
// dealer. The dealer's first card (deck[1]) is the one shown to the player.
func deal(deck [cards.DeckSize]cards.Card) dealt {
	d := dealt{
		deck:   deck,
		dealer: cards.EmptyHand(),
		player: cards.EmptyHand(),
		up:     cards.EmptyHand(),
	}
	d.player[0], d.player[1] = deck[0], deck[2]
	d.dealer[0], d.dealer[1] = deck[1], deck[3]
	d.up[0] = deck[1]
	return d
}

// draw checks bust before drawing. A busted hand gets no card and the next
// slot is left empty.
func draw(deck [cards.DeckSize]cards.Card, hand [cards.HandSlots]cards.Card, playerSize, dealerSize int) ([cards.HandSlots]cards.Card, bool, error) {
	if cards.Bust(cards.Value(hand, playerSize)) {
		if playerSize < cards.HandSlots {
			hand[playerSize] = cards.Empty
		}
		return hand, true, nil
	}
	cursor := playerSize + dealerSize
	if playerSize >= cards.HandSlots || cursor >= cards.DeckSize {
		return hand, false, fmt.Errorf("%w: player %d dealer %d", errDeckExhausted, playerSize, dealerSize)
	}
	hand[playerSize] = deck[cursor]
	return hand, false, nil
}

func playerBust(hand [cards.HandSlots]cards.Card, playerSize int) bool {
	return cards.Bust(cards.Value(hand, playerSize))
}

// dealerPlay draws while the dealer is under 17, for a bounded number of rounds.
func dealerPlay(deck [cards.DeckSize]cards.Card, hand [cards.HandSlots]cards.Card, playerSize, dealerSize int) ([cards.HandSlots]cards.Card, int) {
	size := dealerSize
	for i := 0; i < dealerDrawRounds; i++ {
		if cards.Value(hand, size) >= cards.DealerStandValue {
			break
		}
		cursor := playerSize + size
		if size >= cards.HandSlots || cursor >= cards.DeckSize {
			break
		}
		hand[size] = deck[cursor]
		size++
	}
	return hand, size
}

func resolve(player, dealer [cards.HandSlots]cards.Card, playerSize, dealerSize int) uint64 {
	p := cards.Value(player, playerSize)
	d := cards.Value(dealer, dealerSize)
	switch {
	case cards.Bust(p):
		return confidential.OutcomePlayerBust
	case cards.Bust(d):
		return confidential.OutcomeDealerBust
	case p > d:
		return confidential.OutcomePlayerHigher
	case d > p:
		return confidential.OutcomeDealerHigher
	default:
		return confidential.OutcomePush
	}
}
