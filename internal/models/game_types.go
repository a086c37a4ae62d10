package models

import "casino-backend/internal/confidential"

type BeginGameRequest struct {
	BetAmount   int64  `json:"bet_amount" binding:"required,min=1"`
	PlayerKey   string `json:"player_key" binding:"required,len=64,hexadecimal"`
	HandNonce   string `json:"hand_nonce,omitempty" binding:"omitempty,len=32,hexadecimal"`
	UpCardNonce string `json:"up_card_nonce,omitempty" binding:"omitempty,len=32,hexadecimal"`
}

type DealerPlayRequest struct {
	ClientNonce string `json:"client_nonce,omitempty" binding:"omitempty,len=32,hexadecimal"`
}

type StepResponse struct {
	GameID string `json:"game_id"`
	Step   Step   `json:"step"`
	Handle string `json:"handle"`
	State  string `json:"state"`
}

type ClusterKeyResponse struct {
	PublicKey confidential.PublicKey `json:"public_key"`
}

// GameView is what a player sees of a session. Server-only ciphertexts are
// left out.
type GameView struct {
	ID             string                       `json:"id"`
	State          string                       `json:"state"`
	PlayerKey      confidential.PublicKey       `json:"player_key"`
	PlayerHand     *confidential.EncryptedField `json:"player_hand,omitempty"`
	UpCard         *confidential.EncryptedField `json:"up_card,omitempty"`
	DealerReveal   *confidential.EncryptedField `json:"dealer_reveal,omitempty"`
	PlayerHandSize uint8                        `json:"player_hand_size"`
	DealerHandSize uint8                        `json:"dealer_hand_size"`
	PlayerHasStood bool                         `json:"player_has_stood"`
	BetAmount      string                       `json:"bet_amount"`
	Result         *uint8                       `json:"result,omitempty"`
	Payout         string                       `json:"payout"`
	Pending        *PendingStep                 `json:"pending,omitempty"`
	LastError      string                       `json:"last_error,omitempty"`
	CreatedAt      int64                        `json:"created_at"`
	UpdatedAt      int64                        `json:"updated_at"`
}

func (g *GameSession) View() *GameView {
	v := &GameView{
		ID:             g.ID,
		State:          g.State.String(),
		PlayerKey:      g.PlayerKey,
		UpCard:         g.UpCard,
		DealerReveal:   g.DealerReveal,
		PlayerHandSize: g.PlayerHandSize,
		DealerHandSize: g.DealerHandSize,
		PlayerHasStood: g.PlayerHasStood,
		BetAmount:      FormatAmount(g.BetAmount),
		Result:         g.Result,
		Payout:         FormatAmount(g.Payout),
		Pending:        g.Pending,
		LastError:      g.LastError,
		CreatedAt:      g.CreatedAt,
		UpdatedAt:      g.UpdatedAt,
	}
	if g.PlayerHandSize > 0 {
		f := g.PlayerHandField()
		v.PlayerHand = &f
	}
	return v
}
