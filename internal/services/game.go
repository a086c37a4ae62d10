package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"casino-backend/internal/confidential"
	"casino-backend/internal/models"

	"github.com/sirupsen/logrus"
)

type EngineConfig struct {
	RTPBps       int64
	MinBet       int64
	MaxBet       int64
	EscrowStake  bool
	HouseAccount int64
}

// GameEngine drives blackjack sessions. Every state change is split in two:
// a request that validates, marks the session pending and dispatches a
// computation, and a settlement that applies the computation's result.
type GameEngine struct {
	store       SessionStore
	ledger      Ledger
	dispatcher  confidential.Dispatcher
	broadcaster Broadcaster
	cfg         EngineConfig
	log         *logrus.Entry
	now         func() time.Time
}

func NewGameEngine(store SessionStore, ledger Ledger, dispatcher confidential.Dispatcher, broadcaster Broadcaster, cfg EngineConfig, log *logrus.Entry) *GameEngine {
	if broadcaster == nil {
		broadcaster = noopBroadcaster{}
	}
	return &GameEngine{
		store:       store,
		ledger:      ledger,
		dispatcher:  dispatcher,
		broadcaster: broadcaster,
		cfg:         cfg,
		log:         log,
		now:         time.Now,
	}
}

func (ge *GameEngine) ClusterKey() confidential.PublicKey {
	return ge.dispatcher.ClusterKey()
}

// BeginGame escrows the stake, creates the session and requests the deal.
// When only the dispatch fails the response still carries the game id and
// the error wraps ErrDispatchFailed; the deal can be retried with Deal.
func (ge *GameEngine) BeginGame(ctx context.Context, userID int64, req *models.BeginGameRequest) (*models.StepResponse, error) {
	if err := req.Validate(ge.cfg.MinBet, ge.cfg.MaxBet); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBet, err)
	}
	playerKey, err := confidential.ParsePublicKey(req.PlayerKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBet, err)
	}
	in, err := dealInput(req)
	if err != nil {
		return nil, err
	}

	now := ge.now().Unix()
	session := &models.GameSession{
		ID:        models.GenerateGameID(),
		UserID:    userID,
		PlayerKey: playerKey,
		State:     models.StateInitial,
		BetAmount: req.BetAmount,
		CreatedAt: now,
		UpdatedAt: now,
	}
	log := ge.log.WithFields(logrus.Fields{"game_id": session.ID, "user_id": userID})

	if ge.cfg.EscrowStake {
		_, err := ge.ledger.Transfer(ctx, models.Transfer{
			Ref:         "bet:" + session.ID,
			From:        userID,
			To:          ge.cfg.HouseAccount,
			Amount:      req.BetAmount,
			Type:        models.TransactionTypeBet,
			GameID:      session.ID,
			Description: "blackjack stake",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to escrow stake: %w", err)
		}
		session.Escrowed = true
	}

	if err := ge.store.CreateSession(ctx, session); err != nil {
		if session.Escrowed {
			ge.refund(ctx, session, log)
		}
		return nil, fmt.Errorf("failed to create game session: %w", err)
	}
	log.WithField("bet", req.BetAmount).Info("game created")

	return ge.request(ctx, session.ID, userID, dealStep, in)
}

func dealInput(req *models.BeginGameRequest) (stepInput, error) {
	var in stepInput
	var err error
	for _, n := range []*confidential.Nonce{&in.deckNonce, &in.dealerNonce, &in.handNonce, &in.upCardNonce} {
		if *n, err = models.GenerateNonce(); err != nil {
			return in, err
		}
	}
	if req.HandNonce != "" {
		if err := in.handNonce.UnmarshalText([]byte(req.HandNonce)); err != nil {
			return in, fmt.Errorf("%w: %v", ErrInvalidBet, err)
		}
	}
	if req.UpCardNonce != "" {
		if err := in.upCardNonce.UnmarshalText([]byte(req.UpCardNonce)); err != nil {
			return in, fmt.Errorf("%w: %v", ErrInvalidBet, err)
		}
	}
	return in, nil
}

func (ge *GameEngine) refund(ctx context.Context, session *models.GameSession, log *logrus.Entry) {
	_, err := ge.ledger.Transfer(ctx, models.Transfer{
		Ref:         "refund:" + session.ID,
		From:        ge.cfg.HouseAccount,
		To:          session.UserID,
		Amount:      session.BetAmount,
		Type:        models.TransactionTypeRefund,
		GameID:      session.ID,
		Description: "blackjack stake refund",
	})
	if err != nil {
		log.WithError(err).Error("failed to refund stake")
	}
}

// Deal re-requests the deal for a game whose first dispatch failed or timed out.
func (ge *GameEngine) Deal(ctx context.Context, gameID string, userID int64) (*models.StepResponse, error) {
	in, err := dealInput(&models.BeginGameRequest{})
	if err != nil {
		return nil, err
	}
	return ge.request(ctx, gameID, userID, dealStep, in)
}

func (ge *GameEngine) Hit(ctx context.Context, gameID string, userID int64) (*models.StepResponse, error) {
	return ge.request(ctx, gameID, userID, hitStep, stepInput{})
}

func (ge *GameEngine) DoubleDown(ctx context.Context, gameID string, userID int64) (*models.StepResponse, error) {
	return ge.request(ctx, gameID, userID, doubleDownStep, stepInput{})
}

func (ge *GameEngine) Stand(ctx context.Context, gameID string, userID int64) (*models.StepResponse, error) {
	return ge.request(ctx, gameID, userID, standStep, stepInput{})
}

// DealerPlay requests the dealer's draw. The revealed dealer hand is
// encrypted to the player under clientNonce; a zero nonce picks a random one.
func (ge *GameEngine) DealerPlay(ctx context.Context, gameID string, userID int64, clientNonce confidential.Nonce) (*models.StepResponse, error) {
	if clientNonce.IsZero() {
		n, err := models.GenerateNonce()
		if err != nil {
			return nil, err
		}
		clientNonce = n
	}
	return ge.request(ctx, gameID, userID, dealerPlayStep, stepInput{clientNonce: clientNonce})
}

func (ge *GameEngine) Resolve(ctx context.Context, gameID string, userID int64) (*models.StepResponse, error) {
	return ge.request(ctx, gameID, userID, resolveStep, stepInput{})
}

// GetGame returns a session. A zero userID skips the ownership check.
func (ge *GameEngine) GetGame(ctx context.Context, gameID string, userID int64) (*models.GameSession, error) {
	session, err := ge.store.GetSession(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if userID != 0 && session.UserID != userID {
		return nil, ErrNotOwner
	}
	return session, nil
}

func (ge *GameEngine) request(ctx context.Context, gameID string, userID int64, def *stepSpec, in stepInput) (*models.StepResponse, error) {
	handle := models.GenerateHandle()
	var req confidential.Request

	session, err := ge.store.UpdateSession(ctx, gameID, func(g *models.GameSession) error {
		if userID != 0 && g.UserID != userID {
			return ErrNotOwner
		}
		if g.Pending != nil {
			return fmt.Errorf("%w: %s", ErrStepPending, g.Pending.Step)
		}
		if err := def.guard(g); err != nil {
			return err
		}
		req = confidential.Request{
			Handle:          handle,
			Circuit:         def.circuit,
			Args:            def.args(g, in),
			CallbackRecords: []string{RecordKey(g.ID)},
		}
		g.Pending = &models.PendingStep{
			Step:         def.step,
			Circuit:      def.circuit,
			Handle:       handle,
			DispatchedAt: ge.now().Unix(),
		}
		g.LastError = ""
		g.UpdatedAt = ge.now().Unix()
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := ge.log.WithFields(logrus.Fields{"game_id": gameID, "step": def.step, "handle": handle})
	if err := ge.dispatcher.Dispatch(ctx, req); err != nil {
		log.WithError(err).Error("dispatch failed")
		if _, clearErr := ge.clearPending(ctx, gameID, handle, "dispatch failed: "+err.Error()); clearErr != nil {
			log.WithError(clearErr).Error("failed to release pending step")
		}
		// The game exists and keeps its state, so callers still learn its id.
		return &models.StepResponse{
			GameID: gameID,
			Step:   def.step,
			State:  session.State.String(),
		}, fmt.Errorf("%w: %s: %w", ErrDispatchFailed, def.step, err)
	}
	log.Info("step requested")

	return &models.StepResponse{
		GameID: gameID,
		Step:   def.step,
		Handle: handle,
		State:  session.State.String(),
	}, nil
}

// clearPending drops the pending step if it still carries handle.
func (ge *GameEngine) clearPending(ctx context.Context, gameID, handle, reason string) (*models.GameSession, error) {
	return ge.store.UpdateSession(ctx, gameID, func(g *models.GameSession) error {
		if g.Pending == nil || g.Pending.Handle != handle {
			return fmt.Errorf("%w: handle %s", ErrStaleSettlement, handle)
		}
		g.Pending = nil
		g.LastError = reason
		g.UpdatedAt = ge.now().Unix()
		return nil
	})
}

// Settle applies the result of a dispatched computation. Only a settlement
// for the session's pending handle and circuit is accepted. On success every
// update is persisted together; on abort, consistency or payout failure the
// session keeps its state and only the pending step is released.
func (ge *GameEngine) Settle(ctx context.Context, s confidential.Settlement) error {
	if len(s.Records) == 0 {
		return fmt.Errorf("%w: settlement %s carries no record", ErrStaleSettlement, s.Handle)
	}
	gameID, ok := gameIDFromRecordKey(s.Records[0])
	if !ok {
		return fmt.Errorf("%w: unknown record %q", ErrStaleSettlement, s.Records[0])
	}
	log := ge.log.WithFields(logrus.Fields{"game_id": gameID, "handle": s.Handle, "circuit": s.Circuit})

	session, err := ge.store.GetSession(ctx, gameID)
	if err != nil {
		return err
	}
	p := session.Pending
	if p == nil || p.Handle != s.Handle || p.Circuit != s.Circuit {
		log.Warn("settlement does not match pending step")
		return fmt.Errorf("%w: handle %s", ErrStaleSettlement, s.Handle)
	}
	def := steps[p.Step]
	log = log.WithField("step", p.Step)

	if s.Outcome.Aborted {
		return ge.fail(ctx, session, p, fmt.Errorf("%w: %s", ErrComputationAborted, s.Outcome.Reason), log)
	}
	shape, _ := def.circuit.Shape()
	if err := s.Outcome.Check(shape); err != nil {
		return ge.fail(ctx, session, p, fmt.Errorf("%w: %v", ErrConsistency, err), log)
	}

	next := session.Clone()
	result, err := def.apply(next, s.Outcome, ge.dispatcher.ClusterKey())
	if err != nil {
		return ge.fail(ctx, session, p, err, log)
	}

	now := ge.now().Unix()
	if def.step == models.StepResolve {
		next.Payout = CalculatePayout(*next.Result, next.BetAmount, ge.cfg.RTPBps)
		next.ResolvedAt = now
		if err := ge.payout(ctx, next); err != nil {
			return ge.fail(ctx, session, p, err, log)
		}
	}
	next.Pending = nil
	next.LastError = ""
	next.UpdatedAt = now

	committed, err := ge.store.UpdateSession(ctx, gameID, func(g *models.GameSession) error {
		if g.Pending == nil || g.Pending.Handle != s.Handle {
			return fmt.Errorf("%w: handle %s", ErrStaleSettlement, s.Handle)
		}
		version := g.Version
		*g = *next
		g.Version = version
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to persist settlement: %w", err)
	}

	log.WithFields(logrus.Fields{
		"state":            committed.State,
		"player_hand_size": committed.PlayerHandSize,
		"dealer_hand_size": committed.DealerHandSize,
	}).Info("step settled")
	ge.publish(committed, p, result.event, result.data)
	return nil
}

func (ge *GameEngine) payout(ctx context.Context, g *models.GameSession) error {
	if g.Payout <= 0 {
		return nil
	}
	_, err := ge.ledger.Transfer(ctx, models.Transfer{
		Ref:         "payout:" + g.ID,
		From:        ge.cfg.HouseAccount,
		To:          g.UserID,
		Amount:      g.Payout,
		Type:        models.TransactionTypeWin,
		GameID:      g.ID,
		Description: "blackjack payout",
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPayoutTransfer, err)
	}
	return nil
}

func (ge *GameEngine) fail(ctx context.Context, session *models.GameSession, p *models.PendingStep, cause error, log *logrus.Entry) error {
	log.WithError(cause).Warn("step failed")
	updated, err := ge.clearPending(ctx, session.ID, p.Handle, cause.Error())
	if err != nil {
		if errors.Is(err, ErrStaleSettlement) {
			return err
		}
		log.WithError(err).Error("failed to release pending step")
		return cause
	}
	ge.publish(updated, p, models.EventStepFailed, map[string]any{"error": cause.Error()})
	return cause
}

func (ge *GameEngine) publish(g *models.GameSession, p *models.PendingStep, event models.EventType, data map[string]any) {
	ge.broadcaster.BroadcastGameEvent(&models.GameEvent{
		Type:      event,
		GameID:    g.ID,
		UserID:    g.UserID,
		Step:      p.Step,
		Handle:    p.Handle,
		State:     g.State.String(),
		Data:      data,
		Timestamp: ge.now().Unix(),
	})
}

// ExpirePending releases steps that have waited longer than maxAge. Late
// settlements for released handles are rejected as stale.
func (ge *GameEngine) ExpirePending(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := ge.now().Add(-maxAge)
	ids, err := ge.store.PendingBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending games: %w", err)
	}

	expired := 0
	for _, id := range ids {
		var released *models.PendingStep
		updated, err := ge.store.UpdateSession(ctx, id, func(g *models.GameSession) error {
			if g.Pending == nil || g.Pending.DispatchedAt > cutoff.Unix() {
				return errNoChange
			}
			released = g.Pending
			g.Pending = nil
			g.LastError = "step timed out"
			g.UpdatedAt = ge.now().Unix()
			return nil
		})
		if errors.Is(err, errNoChange) {
			continue
		}
		if err != nil {
			ge.log.WithError(err).WithField("game_id", id).Warn("failed to expire pending step")
			continue
		}
		expired++
		ge.log.WithFields(logrus.Fields{"game_id": id, "step": released.Step, "handle": released.Handle}).Warn("pending step expired")
		ge.publish(updated, released, models.EventStepFailed, map[string]any{"error": "step timed out"})
	}
	return expired, nil
}
