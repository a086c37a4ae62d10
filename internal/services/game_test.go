package services

import (
	"testing"
	"time"

	"casino-backend/internal/cards"
	"casino-backend/internal/confidential"
	"casino-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarioHitStandDealerResolve(t *testing.T) {
	h := newHarness(t, testEngineConfig(), 0, 10, 9, 6, 5, 2)
	id := h.begin(1000)
	assert.Equal(t, int64(DefaultWalletBalance-1000), h.balance(testUser))

	g := h.game(id)
	assert.Equal(t, models.StateInitial, g.State)
	require.NotNil(t, g.Pending)
	assert.Equal(t, models.StepDeal, g.Pending.Step)

	h.mustSettle()
	g = h.game(id)
	assert.Equal(t, models.StatePlayerTurn, g.State)
	assert.Equal(t, uint8(2), g.PlayerHandSize)
	assert.Equal(t, uint8(2), g.DealerHandSize)
	assert.Nil(t, g.Pending)
	assert.Equal(t, 20, h.playerHand(id).Value(2))

	up, err := h.playerCipher().OpenHand(*g.UpCard)
	require.NoError(t, err)
	assert.Equal(t, cards.Card(10), up.Cards()[0])

	_, err = h.engine.Hit(h.ctx, id, testUser)
	require.NoError(t, err)
	h.mustSettle()
	g = h.game(id)
	assert.Equal(t, models.StatePlayerTurn, g.State)
	assert.Equal(t, uint8(3), g.PlayerHandSize)
	assert.Equal(t, 15, h.playerHand(id).Value(3))

	_, err = h.engine.Stand(h.ctx, id, testUser)
	require.NoError(t, err)
	h.mustSettle()
	g = h.game(id)
	assert.Equal(t, models.StateDealerTurn, g.State)
	assert.True(t, g.PlayerHasStood)

	_, err = h.engine.DealerPlay(h.ctx, id, testUser, confidential.Nonce{})
	require.NoError(t, err)
	h.mustSettle()
	g = h.game(id)
	assert.Equal(t, models.StateResolving, g.State)
	assert.Equal(t, uint8(3), g.DealerHandSize)
	require.NotNil(t, g.DealerReveal)
	dealer, err := h.playerCipher().OpenHand(*g.DealerReveal)
	require.NoError(t, err)
	assert.Equal(t, 18, dealer.Value(3))

	_, err = h.engine.Resolve(h.ctx, id, testUser)
	require.NoError(t, err)
	h.mustSettle()
	g = h.game(id)
	assert.Equal(t, models.StateResolved, g.State)
	require.NotNil(t, g.Result)
	assert.Equal(t, uint8(confidential.OutcomeDealerHigher), *g.Result)
	assert.Equal(t, int64(0), g.Payout)
	assert.Equal(t, int64(DefaultWalletBalance-1000), h.balance(testUser))

	assert.Equal(t, []models.EventType{
		models.EventCardsDealt,
		models.EventPlayerHit,
		models.EventPlayerStood,
		models.EventDealerPlayed,
		models.EventGameResolved,
	}, h.events.types())

	history, err := h.store.GetGameHistory(h.ctx, testUser, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, id, history[0].ID)
}

func TestDeckCursorIsDisjoint(t *testing.T) {
	h := newHarness(t, testEngineConfig(), 0, 10, 9, 6, 5, 2)
	id := h.begin(100)
	h.mustSettle()
	_, err := h.engine.Hit(h.ctx, id, testUser)
	require.NoError(t, err)
	h.mustSettle()
	_, err = h.engine.Stand(h.ctx, id, testUser)
	require.NoError(t, err)
	h.mustSettle()
	_, err = h.engine.DealerPlay(h.ctx, id, testUser, confidential.NonceFromUint64(77))
	require.NoError(t, err)
	h.mustSettle()

	g := h.game(id)
	assert.Equal(t, confidential.NonceFromUint64(77), g.DealerReveal.Nonce)
	player := h.playerHand(id).Cards()
	revealed, err := h.playerCipher().OpenHand(*g.DealerReveal)
	require.NoError(t, err)
	dealer := revealed.Cards()

	seen := map[cards.Card]bool{}
	for _, c := range player[:g.PlayerHandSize] {
		assert.False(t, seen[c], "card %s dealt twice", c)
		seen[c] = true
	}
	for _, c := range dealer[:g.DealerHandSize] {
		assert.False(t, seen[c], "card %s dealt twice", c)
		seen[c] = true
	}
	assert.Len(t, seen, g.DealtCards())
}

func TestDoubleDownBustMovesToDealer(t *testing.T) {
	h := newHarness(t, testEngineConfig(), 10, 1, 9, 2, 4)
	id := h.begin(500)
	h.mustSettle()

	_, err := h.engine.DoubleDown(h.ctx, id, testUser)
	require.NoError(t, err)
	h.mustSettle()

	g := h.game(id)
	assert.Equal(t, models.StateDealerTurn, g.State)
	assert.True(t, g.PlayerHasStood)
	assert.Equal(t, uint8(3), g.PlayerHandSize)
	assert.Equal(t, 23, h.playerHand(id).Value(3))
	assert.Equal(t, int64(500), g.BetAmount)

	_, err = h.engine.Hit(h.ctx, id, testUser)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = h.engine.DealerPlay(h.ctx, id, testUser, confidential.Nonce{})
	require.NoError(t, err)
	h.mustSettle()
	_, err = h.engine.Resolve(h.ctx, id, testUser)
	require.NoError(t, err)
	h.mustSettle()

	g = h.game(id)
	assert.Equal(t, uint8(confidential.OutcomePlayerBust), *g.Result)
	assert.Equal(t, int64(0), g.Payout)
}

func TestDoubleDownWithoutBust(t *testing.T) {
	h := newHarness(t, testEngineConfig(), 2, 10, 3, 6, 5)
	id := h.begin(500)
	h.mustSettle()

	_, err := h.engine.DoubleDown(h.ctx, id, testUser)
	require.NoError(t, err)
	h.mustSettle()

	g := h.game(id)
	assert.Equal(t, models.StateDealerTurn, g.State)
	assert.True(t, g.PlayerHasStood)
	assert.Equal(t, uint8(3), g.PlayerHandSize)
	assert.Equal(t, 10, h.playerHand(id).Value(3))
}

func TestHitBustMovesToDealer(t *testing.T) {
	// 19, then 24 without a bust report, then the next hit reports bust
	h := newHarness(t, testEngineConfig(), 10, 1, 9, 2, 5)
	id := h.begin(100)
	h.mustSettle()

	_, err := h.engine.Hit(h.ctx, id, testUser)
	require.NoError(t, err)
	h.mustSettle()
	g := h.game(id)
	assert.Equal(t, models.StatePlayerTurn, g.State)
	assert.Equal(t, uint8(3), g.PlayerHandSize)

	_, err = h.engine.Hit(h.ctx, id, testUser)
	require.NoError(t, err)
	h.mustSettle()
	g = h.game(id)
	assert.Equal(t, models.StateDealerTurn, g.State)
	assert.Equal(t, uint8(3), g.PlayerHandSize)
	assert.False(t, g.PlayerHasStood)
	assert.Contains(t, h.events.types(), models.EventPlayerBust)
}

func TestStandWhileBustStaysInPlayerTurn(t *testing.T) {
	h := newHarness(t, testEngineConfig(), 10, 1, 9, 2, 5)
	id := h.begin(100)
	h.mustSettle()
	_, err := h.engine.Hit(h.ctx, id, testUser)
	require.NoError(t, err)
	h.mustSettle()

	_, err = h.engine.Stand(h.ctx, id, testUser)
	require.NoError(t, err)
	h.mustSettle()

	g := h.game(id)
	assert.Equal(t, models.StatePlayerTurn, g.State)
	assert.True(t, g.PlayerHasStood)

	_, err = h.engine.Hit(h.ctx, id, testUser)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = h.engine.Stand(h.ctx, id, testUser)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = h.engine.DealerPlay(h.ctx, id, testUser, confidential.Nonce{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPlayerWinPaysStakeTimesRTP(t *testing.T) {
	h := newHarness(t, testEngineConfig(), 10, 9, 11, 23)
	id := h.begin(1000)
	h.mustSettle()
	_, err := h.engine.Stand(h.ctx, id, testUser)
	require.NoError(t, err)
	h.mustSettle()
	_, err = h.engine.DealerPlay(h.ctx, id, testUser, confidential.Nonce{})
	require.NoError(t, err)
	h.mustSettle()
	assert.Equal(t, uint8(2), h.game(id).DealerHandSize)

	houseBefore := h.balance(testHouse)
	_, err = h.engine.Resolve(h.ctx, id, testUser)
	require.NoError(t, err)
	h.mustSettle()

	g := h.game(id)
	assert.Equal(t, uint8(confidential.OutcomePlayerHigher), *g.Result)
	assert.Equal(t, int64(995), g.Payout)
	assert.Equal(t, int64(DefaultWalletBalance-1000+995), h.balance(testUser))
	assert.Equal(t, houseBefore-995, h.balance(testHouse))

	txs, err := h.store.GetUserTransactions(h.ctx, testUser, 10)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, models.TransactionTypeWin, txs[0].Type)
	assert.Equal(t, "payout:"+id, txs[0].Ref)
	assert.Equal(t, models.TransactionTypeBet, txs[1].Type)
}

func TestRequestGuards(t *testing.T) {
	h := newHarness(t, testEngineConfig(), 0, 10, 9, 6)
	id := h.begin(100)

	_, err := h.engine.Hit(h.ctx, id, testUser)
	assert.ErrorIs(t, err, ErrStepPending)

	h.mustSettle()

	_, err = h.engine.Resolve(h.ctx, id, testUser)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = h.engine.DealerPlay(h.ctx, id, testUser, confidential.Nonce{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = h.engine.Deal(h.ctx, id, testUser)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = h.engine.Hit(h.ctx, id, testUser+1)
	assert.ErrorIs(t, err, ErrNotOwner)

	_, err = h.engine.Hit(h.ctx, "game_missing", testUser)
	assert.ErrorIs(t, err, ErrGameNotFound)

	_, err = h.engine.Stand(h.ctx, id, testUser)
	require.NoError(t, err)
	_, err = h.engine.Stand(h.ctx, id, testUser)
	assert.ErrorIs(t, err, ErrStepPending)
}

func TestBeginValidation(t *testing.T) {
	h := newHarness(t, testEngineConfig())

	_, err := h.engine.BeginGame(h.ctx, testUser, &models.BeginGameRequest{BetAmount: 20000, PlayerKey: h.player.Public.String()})
	assert.ErrorIs(t, err, ErrInvalidBet)

	_, err = h.engine.BeginGame(h.ctx, testUser, &models.BeginGameRequest{BetAmount: 100, PlayerKey: "00"})
	assert.ErrorIs(t, err, ErrInvalidBet)

	cfg := testEngineConfig()
	cfg.MaxBet = 1_000_000
	h = newHarness(t, cfg)
	_, err = h.engine.BeginGame(h.ctx, testUser, &models.BeginGameRequest{BetAmount: DefaultWalletBalance + 1, PlayerKey: h.player.Public.String()})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Empty(t, h.dispatcher.queue)
}

func TestAbortLeavesSessionAndReplayIsStale(t *testing.T) {
	h := newHarness(t, testEngineConfig(), 0, 10, 9, 6)
	id := h.begin(100)
	req := h.dispatcher.pop(t)
	before := h.game(id)

	abort := confidential.Settlement{
		Handle:  req.Handle,
		Circuit: req.Circuit,
		Records: req.CallbackRecords,
		Outcome: confidential.Aborted("cluster failure"),
	}
	err := h.engine.Settle(h.ctx, abort)
	assert.ErrorIs(t, err, ErrComputationAborted)

	after := h.game(id)
	assert.Equal(t, models.StateInitial, after.State)
	assert.Nil(t, after.Pending)
	assert.Contains(t, after.LastError, "cluster failure")
	assert.Equal(t, before.Deck, after.Deck)
	assert.Equal(t, before.PlayerHand, after.PlayerHand)
	assert.Equal(t, before.PlayerHandSize, after.PlayerHandSize)

	err = h.engine.Settle(h.ctx, abort)
	assert.ErrorIs(t, err, ErrStaleSettlement)
	assert.Equal(t, after.Version, h.game(id).Version)

	// the step can be requested again
	_, err = h.engine.Deal(h.ctx, id, testUser)
	require.NoError(t, err)
	h.mustSettle()
	assert.Equal(t, models.StatePlayerTurn, h.game(id).State)
	assert.Contains(t, h.events.types(), models.EventStepFailed)
}

func TestStaleSettlementsRejected(t *testing.T) {
	h := newHarness(t, testEngineConfig(), 0, 10, 9, 6)
	id := h.begin(100)
	req := h.dispatcher.pop(t)
	out := h.cluster.Execute(h.ctx, req)

	wrongHandle := confidential.Settlement{Handle: "other", Circuit: req.Circuit, Records: req.CallbackRecords, Outcome: out}
	assert.ErrorIs(t, h.engine.Settle(h.ctx, wrongHandle), ErrStaleSettlement)

	wrongCircuit := confidential.Settlement{Handle: req.Handle, Circuit: confidential.CircuitHit, Records: req.CallbackRecords, Outcome: out}
	assert.ErrorIs(t, h.engine.Settle(h.ctx, wrongCircuit), ErrStaleSettlement)

	noRecord := confidential.Settlement{Handle: req.Handle, Circuit: req.Circuit, Outcome: out}
	assert.ErrorIs(t, h.engine.Settle(h.ctx, noRecord), ErrStaleSettlement)

	good := confidential.Settlement{Handle: req.Handle, Circuit: req.Circuit, Records: req.CallbackRecords, Outcome: out}
	require.NoError(t, h.engine.Settle(h.ctx, good))
	assert.ErrorIs(t, h.engine.Settle(h.ctx, good), ErrStaleSettlement, "duplicate success")
	assert.Equal(t, models.StatePlayerTurn, h.game(id).State)
}

func TestConsistencyViolation(t *testing.T) {
	h := newHarness(t, testEngineConfig(), 0, 10, 9, 6)
	id := h.begin(100)
	req := h.dispatcher.pop(t)
	out := h.cluster.Execute(h.ctx, req)
	out.Fields[2].Recipient = confidential.PublicKey{0xee}

	err := h.engine.Settle(h.ctx, confidential.Settlement{Handle: req.Handle, Circuit: req.Circuit, Records: req.CallbackRecords, Outcome: out})
	assert.ErrorIs(t, err, ErrConsistency)

	g := h.game(id)
	assert.Equal(t, models.StateInitial, g.State)
	assert.Equal(t, uint8(0), g.PlayerHandSize)
	assert.Nil(t, g.UpCard)
}

func TestMalformedPayloadRejected(t *testing.T) {
	h := newHarness(t, testEngineConfig(), 0, 10, 9, 6)
	id := h.begin(100)
	h.mustSettle()

	_, err := h.engine.Stand(h.ctx, id, testUser)
	require.NoError(t, err)
	req := h.dispatcher.pop(t)

	bad := confidential.Outcome{Revealed: []uint64{7}}
	err = h.engine.Settle(h.ctx, confidential.Settlement{Handle: req.Handle, Circuit: req.Circuit, Records: req.CallbackRecords, Outcome: bad})
	assert.ErrorIs(t, err, ErrConsistency)
	assert.False(t, h.game(id).PlayerHasStood)
}

func TestPayoutFailureKeepsResolving(t *testing.T) {
	cfg := testEngineConfig()
	cfg.EscrowStake = false
	cfg.HouseAccount = 42
	h := newHarness(t, cfg, 10, 9, 11, 23)
	require.NoError(t, h.store.EnsureWallet(h.ctx, 42, 0))

	id := h.begin(1000)
	h.mustSettle()
	_, err := h.engine.Stand(h.ctx, id, testUser)
	require.NoError(t, err)
	h.mustSettle()
	_, err = h.engine.DealerPlay(h.ctx, id, testUser, confidential.Nonce{})
	require.NoError(t, err)
	h.mustSettle()

	_, err = h.engine.Resolve(h.ctx, id, testUser)
	require.NoError(t, err)
	assert.ErrorIs(t, h.settleNext(), ErrPayoutTransfer)

	g := h.game(id)
	assert.Equal(t, models.StateResolving, g.State)
	assert.Nil(t, g.Result)
	assert.Nil(t, g.Pending)

	_, err = h.store.Transfer(h.ctx, models.Transfer{Ref: "seed", From: 7, To: 42, Amount: 5000, Type: models.TransactionTypeDeposit})
	require.NoError(t, err)

	_, err = h.engine.Resolve(h.ctx, id, testUser)
	require.NoError(t, err)
	h.mustSettle()

	g = h.game(id)
	assert.Equal(t, models.StateResolved, g.State)
	assert.Equal(t, int64(DefaultWalletBalance+995), h.balance(testUser))
	assert.Equal(t, int64(5000-995), h.balance(42))
}

func TestDispatchFailureReleasesPending(t *testing.T) {
	h := newHarness(t, testEngineConfig(), 0, 10, 9, 6)
	h.dispatcher.fail = errDispatchDown

	resp, err := h.engine.BeginGame(h.ctx, testUser, &models.BeginGameRequest{BetAmount: 100, PlayerKey: h.player.Public.String()})
	require.ErrorIs(t, err, errDispatchDown)
	require.ErrorIs(t, err, ErrDispatchFailed)
	require.NotNil(t, resp)
	assert.Equal(t, models.StateInitial.String(), resp.State)
	assert.Empty(t, resp.Handle)
	assert.Equal(t, int64(DefaultWalletBalance-100), h.balance(testUser), "stake stays escrowed for the retry")

	games, err := h.store.GetUserActiveGames(h.ctx, testUser)
	require.NoError(t, err)
	require.Len(t, games, 1)
	id := games[0].ID
	assert.Equal(t, id, resp.GameID)
	assert.Nil(t, games[0].Pending)
	assert.Contains(t, games[0].LastError, "unavailable")

	h.dispatcher.fail = nil
	_, err = h.engine.Deal(h.ctx, id, testUser)
	require.NoError(t, err)
	h.mustSettle()
	assert.Equal(t, models.StatePlayerTurn, h.game(id).State)
}

func TestExpirePending(t *testing.T) {
	h := newHarness(t, testEngineConfig(), 0, 10, 9, 6)
	id := h.begin(100)
	req := h.dispatcher.pop(t)

	n, err := h.engine.ExpirePending(h.ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	h.clock = h.clock.Add(2 * time.Minute)
	n, err = h.engine.ExpirePending(h.ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	g := h.game(id)
	assert.Nil(t, g.Pending)
	assert.Equal(t, "step timed out", g.LastError)

	out := h.cluster.Execute(h.ctx, req)
	err = h.engine.Settle(h.ctx, confidential.Settlement{Handle: req.Handle, Circuit: req.Circuit, Records: req.CallbackRecords, Outcome: out})
	assert.ErrorIs(t, err, ErrStaleSettlement)
	assert.Equal(t, models.StateInitial, h.game(id).State)
}

func TestSettleThroughClusterWorkers(t *testing.T) {
	store := NewMemoryStore()
	cluster, err := newWorkerCluster(store)
	require.NoError(t, err)
	player, err := confidential.GenerateKeyPair(randReader)
	require.NoError(t, err)

	engine := NewGameEngine(store, store, cluster, nil, testEngineConfig(), testLogger())
	cluster.SetSettlementHandler(engine)
	cluster.Start(t.Context(), 2)
	defer cluster.Close()

	resp, err := engine.BeginGame(t.Context(), testUser, &models.BeginGameRequest{BetAmount: 100, PlayerKey: player.Public.String()})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		g, err := store.GetSession(t.Context(), resp.GameID)
		return err == nil && g.State == models.StatePlayerTurn
	}, 2*time.Second, 10*time.Millisecond)

	_, err = engine.Stand(t.Context(), resp.GameID, testUser)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		g, err := store.GetSession(t.Context(), resp.GameID)
		return err == nil && g.Pending == nil && g.PlayerHasStood
	}, 2*time.Second, 10*time.Millisecond)
}
