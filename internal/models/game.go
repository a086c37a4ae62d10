package models

import (
	"fmt"

	"casino-backend/internal/confidential"
)

type GameState uint8

const (
	StateInitial GameState = iota
	StatePlayerTurn
	StateDealerTurn
	StateResolving
	StateResolved
)

var gameStateNames = [...]string{"initial", "player_turn", "dealer_turn", "resolving", "resolved"}

func (s GameState) String() string {
	if int(s) < len(gameStateNames) {
		return gameStateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

func (s GameState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *GameState) UnmarshalText(b []byte) error {
	for i, name := range gameStateNames {
		if name == string(b) {
			*s = GameState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown game state %q", b)
}

// Step names a state-advancing request.
type Step string

const (
	StepDeal       Step = "deal"
	StepHit        Step = "hit"
	StepDoubleDown Step = "double_down"
	StepStand      Step = "stand"
	StepDealerPlay Step = "dealer_play"
	StepResolve    Step = "resolve"
)

// PendingStep is set while a request is in flight. At most one exists per
// session; a settlement is only accepted for the handle recorded here.
type PendingStep struct {
	Step         Step                 `json:"step"`
	Circuit      confidential.Circuit `json:"circuit"`
	Handle       string               `json:"handle"`
	DispatchedAt int64                `json:"dispatched_at"`
}

type GameSession struct {
	ID        string                 `json:"id"`
	UserID    int64                  `json:"user_id"`
	PlayerKey confidential.PublicKey `json:"player_key"`

	Deck            [3]confidential.Ciphertext `json:"deck"`
	DeckNonce       confidential.Nonce         `json:"deck_nonce"`
	PlayerHand      confidential.Ciphertext    `json:"player_hand"`
	PlayerHandNonce confidential.Nonce         `json:"player_hand_nonce"`
	DealerHand      confidential.Ciphertext    `json:"dealer_hand"`
	DealerHandNonce confidential.Nonce         `json:"dealer_hand_nonce"`
	PlayerHandSize  uint8                      `json:"player_hand_size"`
	DealerHandSize  uint8                      `json:"dealer_hand_size"`

	// encrypted to the player
	UpCard       *confidential.EncryptedField `json:"up_card,omitempty"`
	DealerReveal *confidential.EncryptedField `json:"dealer_reveal,omitempty"`

	State          GameState `json:"state"`
	PlayerHasStood bool      `json:"player_has_stood"`
	BetAmount      int64     `json:"bet_amount"`
	Escrowed       bool      `json:"escrowed"`
	Result         *uint8    `json:"result,omitempty"`
	Payout         int64     `json:"payout"`

	Pending   *PendingStep `json:"pending,omitempty"`
	LastError string       `json:"last_error,omitempty"`
	Version   int64        `json:"version"`

	CreatedAt  int64 `json:"created_at"`
	UpdatedAt  int64 `json:"updated_at"`
	ResolvedAt int64 `json:"resolved_at,omitempty"`
}

// DealtCards is the draw cursor: the index of the next undealt deck card.
func (g *GameSession) DealtCards() int {
	return int(g.PlayerHandSize) + int(g.DealerHandSize)
}

// PlayerHandField returns the player's hand as the field they can decrypt.
func (g *GameSession) PlayerHandField() confidential.EncryptedField {
	return confidential.EncryptedField{
		Recipient:   g.PlayerKey,
		Nonce:       g.PlayerHandNonce,
		Ciphertexts: []confidential.Ciphertext{g.PlayerHand},
	}
}

func (g *GameSession) IsResolved() bool { return g.State == StateResolved }

func (g *GameSession) Clone() *GameSession {
	c := *g
	if g.UpCard != nil {
		up := cloneField(*g.UpCard)
		c.UpCard = &up
	}
	if g.DealerReveal != nil {
		dr := cloneField(*g.DealerReveal)
		c.DealerReveal = &dr
	}
	if g.Result != nil {
		r := *g.Result
		c.Result = &r
	}
	if g.Pending != nil {
		p := *g.Pending
		c.Pending = &p
	}
	return &c
}

func cloneField(f confidential.EncryptedField) confidential.EncryptedField {
	f.Ciphertexts = append([]confidential.Ciphertext(nil), f.Ciphertexts...)
	return f
}
