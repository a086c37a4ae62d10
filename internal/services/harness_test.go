package services

import (
	"context"
	"crypto/rand"
	"errors"
	"sync"
	"testing"
	"time"

	"casino-backend/internal/cards"
	"casino-backend/internal/confidential"
	"casino-backend/internal/confidential/localmxe"
	"casino-backend/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const (
	testUser  = int64(123456)
	testHouse = int64(1)
)

type eventRecorder struct {
	mu     sync.Mutex
	events []*models.GameEvent
}

func (r *eventRecorder) BroadcastGameEvent(e *models.GameEvent) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *eventRecorder) types() []models.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// queueDispatcher holds requests until the test runs them.
type queueDispatcher struct {
	key   confidential.PublicKey
	mu    sync.Mutex
	queue []confidential.Request
	fail  error
}

func (d *queueDispatcher) Dispatch(_ context.Context, req confidential.Request) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		return d.fail
	}
	d.queue = append(d.queue, req)
	return nil
}

func (d *queueDispatcher) ClusterKey() confidential.PublicKey { return d.key }

func (d *queueDispatcher) pop(t *testing.T) confidential.Request {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	require.NotEmpty(t, d.queue, "no request dispatched")
	req := d.queue[0]
	d.queue = d.queue[1:]
	return req
}

type harness struct {
	t          *testing.T
	ctx        context.Context
	store      *MemoryStore
	cluster    *localmxe.Cluster
	dispatcher *queueDispatcher
	engine     *GameEngine
	events     *eventRecorder
	player     confidential.KeyPair
	clock      time.Time
}

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(log)
}

func testEngineConfig() EngineConfig {
	return EngineConfig{RTPBps: 9950, MinBet: 1, MaxBet: 10000, EscrowStake: true, HouseAccount: testHouse}
}

func newHarness(t *testing.T, cfg EngineConfig, prefix ...cards.Card) *harness {
	t.Helper()
	store := NewMemoryStore()
	cluster, err := localmxe.New(NewSessionRecords(store), testLogger(), localmxe.WithShuffler(localmxe.FixedShuffle(prefix...)))
	require.NoError(t, err)
	player, err := confidential.GenerateKeyPair(rand.Reader)
	require.NoError(t, err)

	h := &harness{
		t:          t,
		ctx:        context.Background(),
		store:      store,
		cluster:    cluster,
		dispatcher: &queueDispatcher{key: cluster.ClusterKey()},
		events:     &eventRecorder{},
		player:     player,
		clock:      time.Unix(1_700_000_000, 0),
	}
	h.engine = NewGameEngine(store, store, h.dispatcher, h.events, cfg, testLogger())
	h.engine.now = func() time.Time { return h.clock }
	require.NoError(t, store.EnsureWallet(h.ctx, testHouse, 1_000_000))
	return h
}

func (h *harness) begin(bet int64) string {
	h.t.Helper()
	resp, err := h.engine.BeginGame(h.ctx, testUser, &models.BeginGameRequest{
		BetAmount: bet,
		PlayerKey: h.player.Public.String(),
	})
	require.NoError(h.t, err)
	require.Equal(h.t, models.StepDeal, resp.Step)
	return resp.GameID
}

// settleNext runs the oldest queued request on the cluster and settles it.
func (h *harness) settleNext() error {
	h.t.Helper()
	req := h.dispatcher.pop(h.t)
	out := h.cluster.Execute(h.ctx, req)
	return h.engine.Settle(h.ctx, confidential.Settlement{
		Handle:  req.Handle,
		Circuit: req.Circuit,
		Records: req.CallbackRecords,
		Outcome: out,
	})
}

func (h *harness) mustSettle() {
	h.t.Helper()
	require.NoError(h.t, h.settleNext())
}

func (h *harness) game(id string) *models.GameSession {
	h.t.Helper()
	g, err := h.store.GetSession(h.ctx, id)
	require.NoError(h.t, err)
	return g
}

func (h *harness) playerCipher() *confidential.Cipher {
	h.t.Helper()
	c, err := confidential.NewCipher(h.player.Private, h.cluster.ClusterKey())
	require.NoError(h.t, err)
	return c
}

func (h *harness) playerHand(id string) cards.PackedHand {
	h.t.Helper()
	hand, err := h.playerCipher().OpenHand(h.game(id).PlayerHandField())
	require.NoError(h.t, err)
	return hand
}

func (h *harness) balance(userID int64) int64 {
	h.t.Helper()
	w, err := h.store.GetWallet(h.ctx, userID)
	require.NoError(h.t, err)
	return w.Balance
}

var errDispatchDown = errors.New("compute service unavailable")

var randReader = rand.Reader

func newWorkerCluster(store *MemoryStore) (*localmxe.Cluster, error) {
	return localmxe.New(NewSessionRecords(store), testLogger(), localmxe.WithShuffler(localmxe.FixedShuffle(10, 9, 11, 23)))
}
