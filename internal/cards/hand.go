package cards

const (
	// BlackjackValue is the highest non-bust total.
	BlackjackValue = 21
	// DealerStandValue is the total at which the dealer stops drawing.
	DealerStandValue = 17
)

// Value returns the blackjack total of the first n slots of hand.
//
// An ace counts 11. If the hand holds at least one ace and the sum exceeds 21,
// 10 is subtracted once, no matter how many aces are present.
func Value(hand [HandSlots]Card, n int) int {
	if n > HandSlots {
		n = HandSlots
	}
	total := 0
	hasAce := false
	for i := 0; i < n; i++ {
		c := hand[i]
		if c.Rank() == 0 {
			hasAce = true
		}
		total += c.Points()
	}
	if total > BlackjackValue && hasAce {
		total -= 10
	}
	return total
}

// Value evaluates the first n slots of the packed hand.
func (h PackedHand) Value(n int) int {
	return Value(h.Cards(), n)
}

// Bust reports whether total is over 21.
func Bust(total int) bool {
	return total > BlackjackValue
}
