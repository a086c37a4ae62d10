package confidential

type Circuit string

const (
	CircuitDeal       Circuit = "shuffle_and_deal_cards"
	CircuitHit        Circuit = "player_hit"
	CircuitDoubleDown Circuit = "player_double_down"
	CircuitStand      Circuit = "player_stand"
	CircuitDealerPlay Circuit = "dealer_play"
	CircuitResolve    Circuit = "resolve_game"
)

// Shape is the success payload a circuit must produce: one entry per
// encrypted field giving its block count, then the number of revealed scalars.
type Shape struct {
	Fields   []int
	Revealed int
}

var shapes = map[Circuit]Shape{
	// deck, dealer hand, player hand, up card
	CircuitDeal: {Fields: []int{3, 1, 1, 1}},
	// player hand; bust flag
	CircuitHit:        {Fields: []int{1}, Revealed: 1},
	CircuitDoubleDown: {Fields: []int{1}, Revealed: 1},
	CircuitStand:      {Revealed: 1},
	// dealer hand for the cluster, dealer hand for the player; dealer size
	CircuitDealerPlay: {Fields: []int{1, 1}, Revealed: 1},
	// outcome code
	CircuitResolve: {Revealed: 1},
}

// Shape returns the payload shape for c.
func (c Circuit) Shape() (Shape, bool) {
	s, ok := shapes[c]
	return s, ok
}

func (c Circuit) Valid() bool {
	_, ok := shapes[c]
	return ok
}

// Outcome codes revealed by resolve_game.
const (
	OutcomePlayerBust   = 0
	OutcomeDealerBust   = 1
	OutcomePlayerHigher = 2
	OutcomeDealerHigher = 3
	OutcomePush         = 4
)
