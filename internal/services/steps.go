package services

import (
	"fmt"

	"casino-backend/internal/cards"
	"casino-backend/internal/confidential"
	"casino-backend/internal/models"
)

// stepInput carries the caller-chosen values a request needs besides the
// session itself.
type stepInput struct {
	deckNonce   confidential.Nonce
	dealerNonce confidential.Nonce
	handNonce   confidential.Nonce
	upCardNonce confidential.Nonce
	clientNonce confidential.Nonce
}

// applied describes what a settlement did, for logging and events.
type applied struct {
	event models.EventType
	data  map[string]any
}

// stepSpec is one pending confidential step: which state it may start from,
// the arguments it sends and how its success payload changes the session.
type stepSpec struct {
	step    models.Step
	circuit confidential.Circuit
	guard   func(g *models.GameSession) error
	args    func(g *models.GameSession, in stepInput) []confidential.Argument
	apply   func(g *models.GameSession, out confidential.Outcome, cluster confidential.PublicKey) (applied, error)
}

var steps = map[models.Step]*stepSpec{}

func register(s *stepSpec) *stepSpec {
	steps[s.step] = s
	return s
}

var (
	dealStep = register(&stepSpec{
		step:    models.StepDeal,
		circuit: confidential.CircuitDeal,
		guard:   inState(models.StateInitial),
		args:    dealArgs,
		apply:   applyDeal,
	})
	hitStep = register(&stepSpec{
		step:    models.StepHit,
		circuit: confidential.CircuitHit,
		guard:   canDraw,
		args:    drawArgs,
		apply:   applyHit,
	})
	doubleDownStep = register(&stepSpec{
		step:    models.StepDoubleDown,
		circuit: confidential.CircuitDoubleDown,
		guard:   canDraw,
		args:    drawArgs,
		apply:   applyDoubleDown,
	})
	standStep = register(&stepSpec{
		step:    models.StepStand,
		circuit: confidential.CircuitStand,
		guard:   playerActing,
		args:    standArgs,
		apply:   applyStand,
	})
	dealerPlayStep = register(&stepSpec{
		step:    models.StepDealerPlay,
		circuit: confidential.CircuitDealerPlay,
		guard:   inState(models.StateDealerTurn),
		args:    dealerPlayArgs,
		apply:   applyDealerPlay,
	})
	resolveStep = register(&stepSpec{
		step:    models.StepResolve,
		circuit: confidential.CircuitResolve,
		guard:   inState(models.StateResolving),
		args:    resolveArgs,
		apply:   applyResolve,
	})
)

func inState(want models.GameState) func(*models.GameSession) error {
	return func(g *models.GameSession) error {
		if g.State != want {
			return fmt.Errorf("%w: game is %s, want %s", ErrInvalidTransition, g.State, want)
		}
		return nil
	}
}

func playerActing(g *models.GameSession) error {
	if err := inState(models.StatePlayerTurn)(g); err != nil {
		return err
	}
	if g.PlayerHasStood {
		return fmt.Errorf("%w: player has already stood", ErrInvalidTransition)
	}
	return nil
}

func canDraw(g *models.GameSession) error {
	if err := playerActing(g); err != nil {
		return err
	}
	if int(g.PlayerHandSize) >= cards.HandSlots || g.DealtCards() >= cards.DeckSize {
		return fmt.Errorf("%w: no room to draw", ErrInvalidTransition)
	}
	return nil
}

func deckRef(g *models.GameSession) []confidential.Argument {
	return []confidential.Argument{
		confidential.U128(g.DeckNonce),
		confidential.Record(RecordKey(g.ID), models.RecordDeckOffset, models.RecordDeckLength),
	}
}

func playerHandRef(g *models.GameSession) []confidential.Argument {
	return []confidential.Argument{
		confidential.Key(g.PlayerKey),
		confidential.U128(g.PlayerHandNonce),
		confidential.Record(RecordKey(g.ID), models.RecordPlayerHandOffset, models.RecordHandLength),
	}
}

func dealerHandRef(g *models.GameSession) []confidential.Argument {
	return []confidential.Argument{
		confidential.U128(g.DealerHandNonce),
		confidential.Record(RecordKey(g.ID), models.RecordDealerHandOffset, models.RecordHandLength),
	}
}

func sizes(g *models.GameSession) []confidential.Argument {
	return []confidential.Argument{confidential.U8(g.PlayerHandSize), confidential.U8(g.DealerHandSize)}
}

func concat(parts ...[]confidential.Argument) []confidential.Argument {
	var out []confidential.Argument
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func dealArgs(g *models.GameSession, in stepInput) []confidential.Argument {
	return []confidential.Argument{
		confidential.U128(in.deckNonce),
		confidential.U128(in.dealerNonce),
		confidential.Key(g.PlayerKey), confidential.U128(in.handNonce),
		confidential.Key(g.PlayerKey), confidential.U128(in.upCardNonce),
	}
}

func drawArgs(g *models.GameSession, _ stepInput) []confidential.Argument {
	return concat(deckRef(g), playerHandRef(g), sizes(g))
}

func standArgs(g *models.GameSession, _ stepInput) []confidential.Argument {
	return concat(playerHandRef(g), []confidential.Argument{confidential.U8(g.PlayerHandSize)})
}

func dealerPlayArgs(g *models.GameSession, in stepInput) []confidential.Argument {
	return concat(deckRef(g), dealerHandRef(g),
		[]confidential.Argument{confidential.Key(g.PlayerKey), confidential.U128(in.clientNonce)},
		sizes(g))
}

func resolveArgs(g *models.GameSession, _ stepInput) []confidential.Argument {
	return concat(playerHandRef(g), dealerHandRef(g), sizes(g))
}

func expectRecipient(f confidential.EncryptedField, want confidential.PublicKey, what string) error {
	if f.Recipient != want {
		return fmt.Errorf("%w: %s encrypted to %s, want %s", ErrConsistency, what, f.Recipient, want)
	}
	return nil
}

func revealedFlag(out confidential.Outcome) (bool, error) {
	switch out.Revealed[0] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: flag value %d", ErrConsistency, out.Revealed[0])
	}
}

func applyDeal(g *models.GameSession, out confidential.Outcome, cluster confidential.PublicKey) (applied, error) {
	deck, dealer, player, up := out.Fields[0], out.Fields[1], out.Fields[2], out.Fields[3]
	for _, check := range []error{
		expectRecipient(deck, cluster, "deck"),
		expectRecipient(dealer, cluster, "dealer hand"),
		expectRecipient(player, g.PlayerKey, "player hand"),
		expectRecipient(up, g.PlayerKey, "up card"),
	} {
		if check != nil {
			return applied{}, check
		}
	}

	copy(g.Deck[:], deck.Ciphertexts)
	g.DeckNonce = deck.Nonce
	g.DealerHand, g.DealerHandNonce = dealer.Ciphertexts[0], dealer.Nonce
	g.PlayerHand, g.PlayerHandNonce = player.Ciphertexts[0], player.Nonce
	g.UpCard = &up
	g.PlayerHandSize = 2
	g.DealerHandSize = 2
	g.State = models.StatePlayerTurn
	return applied{event: models.EventCardsDealt}, nil
}

func storePlayerHand(g *models.GameSession, out confidential.Outcome) (bool, error) {
	hand := out.Fields[0]
	if err := expectRecipient(hand, g.PlayerKey, "player hand"); err != nil {
		return false, err
	}
	bust, err := revealedFlag(out)
	if err != nil {
		return false, err
	}
	g.PlayerHand, g.PlayerHandNonce = hand.Ciphertexts[0], hand.Nonce
	return bust, nil
}

func applyHit(g *models.GameSession, out confidential.Outcome, _ confidential.PublicKey) (applied, error) {
	bust, err := storePlayerHand(g, out)
	if err != nil {
		return applied{}, err
	}
	if bust {
		g.State = models.StateDealerTurn
		return applied{event: models.EventPlayerBust}, nil
	}
	g.PlayerHandSize++
	return applied{event: models.EventPlayerHit}, nil
}

func applyDoubleDown(g *models.GameSession, out confidential.Outcome, _ confidential.PublicKey) (applied, error) {
	bust, err := storePlayerHand(g, out)
	if err != nil {
		return applied{}, err
	}
	if !bust {
		g.PlayerHandSize++
	}
	g.PlayerHasStood = true
	g.State = models.StateDealerTurn
	return applied{event: models.EventPlayerDoubledDown, data: map[string]any{"bust": bust}}, nil
}

// applyStand latches the stand. A bust hand stays in the player's turn.
func applyStand(g *models.GameSession, out confidential.Outcome, _ confidential.PublicKey) (applied, error) {
	bust, err := revealedFlag(out)
	if err != nil {
		return applied{}, err
	}
	g.PlayerHasStood = true
	if bust {
		return applied{event: models.EventPlayerBust, data: map[string]any{"stood": true}}, nil
	}
	g.State = models.StateDealerTurn
	return applied{event: models.EventPlayerStood}, nil
}

func applyDealerPlay(g *models.GameSession, out confidential.Outcome, cluster confidential.PublicKey) (applied, error) {
	own, reveal := out.Fields[0], out.Fields[1]
	if err := expectRecipient(own, cluster, "dealer hand"); err != nil {
		return applied{}, err
	}
	if err := expectRecipient(reveal, g.PlayerKey, "dealer reveal"); err != nil {
		return applied{}, err
	}
	size := out.Revealed[0]
	if size < uint64(g.DealerHandSize) || size > cards.HandSlots || int(g.PlayerHandSize)+int(size) > cards.DeckSize {
		return applied{}, fmt.Errorf("%w: dealer hand size %d", ErrConsistency, size)
	}

	g.DealerHand, g.DealerHandNonce = own.Ciphertexts[0], own.Nonce
	g.DealerReveal = &reveal
	g.DealerHandSize = uint8(size)
	g.State = models.StateResolving
	return applied{event: models.EventDealerPlayed, data: map[string]any{"dealer_hand_size": size}}, nil
}

func applyResolve(g *models.GameSession, out confidential.Outcome, _ confidential.PublicKey) (applied, error) {
	code := out.Revealed[0]
	if code > confidential.OutcomePush {
		return applied{}, fmt.Errorf("%w: outcome code %d", ErrConsistency, code)
	}
	result := uint8(code)
	g.Result = &result
	g.State = models.StateResolved
	return applied{event: models.EventGameResolved, data: map[string]any{"result": result}}, nil
}
