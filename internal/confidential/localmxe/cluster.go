// Package localmxe runs the blackjack circuits in-process. It holds its own
// x25519 key, reads ciphertext arguments from the record store the same way a
// remote cluster would, and delivers settlements asynchronously from a pool
// of workers.
package localmxe

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	"casino-backend/internal/confidential"

	"github.com/sirupsen/logrus"
)

var (
	ErrClosed         = errors.New("cluster closed")
	ErrUnknownCircuit = errors.New("unknown circuit")
)

// RecordReader returns the stored image of a ledger record.
type RecordReader interface {
	ReadRecord(ctx context.Context, key string) ([]byte, error)
}

type Cluster struct {
	keys    confidential.KeyPair
	records RecordReader
	shuffle Shuffler
	log     *logrus.Entry

	mu      sync.RWMutex
	handler confidential.SettlementHandler

	jobs      chan confidential.Request
	quit      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type Option func(*Cluster)

func WithShuffler(s Shuffler) Option {
	return func(c *Cluster) { c.shuffle = s }
}

func WithKeyPair(kp confidential.KeyPair) Option {
	return func(c *Cluster) { c.keys = kp }
}

func WithQueueSize(n int) Option {
	return func(c *Cluster) { c.jobs = make(chan confidential.Request, n) }
}

func New(records RecordReader, log *logrus.Entry, opts ...Option) (*Cluster, error) {
	c := &Cluster{
		records: records,
		shuffle: CryptoShuffle,
		log:     log,
		jobs:    make(chan confidential.Request, 256),
		quit:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.keys.Public.IsZero() {
		kp, err := confidential.GenerateKeyPair(rand.Reader)
		if err != nil {
			return nil, err
		}
		c.keys = kp
	}
	return c, nil
}

// SetSettlementHandler must be called before Start. The engine and the
// cluster refer to each other, so the handler is attached after both exist.
func (c *Cluster) SetSettlementHandler(h confidential.SettlementHandler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

func (c *Cluster) ClusterKey() confidential.PublicKey { return c.keys.Public }

// Start launches the worker pool. Workers stop when ctx is done or Close is called.
func (c *Cluster) Start(ctx context.Context, workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i)
	}
	c.log.WithField("workers", workers).Info("local compute cluster started")
}

func (c *Cluster) Close() {
	c.closeOnce.Do(func() { close(c.quit) })
	c.wg.Wait()
}

func (c *Cluster) Dispatch(ctx context.Context, req confidential.Request) error {
	if !req.Circuit.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownCircuit, req.Circuit)
	}
	select {
	case <-c.quit:
		return ErrClosed
	default:
	}
	select {
	case c.jobs <- req:
		return nil
	case <-c.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Cluster) worker(ctx context.Context, id int) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.quit:
			return
		case req := <-c.jobs:
			c.run(ctx, id, req)
		}
	}
}

func (c *Cluster) run(ctx context.Context, worker int, req confidential.Request) {
	log := c.log.WithFields(logrus.Fields{"worker": worker, "handle": req.Handle, "circuit": req.Circuit})

	outcome := c.Execute(ctx, req)
	if outcome.Aborted {
		log.WithField("reason", outcome.Reason).Warn("computation aborted")
	}

	c.mu.RLock()
	h := c.handler
	c.mu.RUnlock()
	if h == nil {
		log.Error("no settlement handler attached, dropping result")
		return
	}

	s := confidential.Settlement{
		Handle:  req.Handle,
		Circuit: req.Circuit,
		Records: req.CallbackRecords,
		Outcome: outcome,
	}
	if err := h.Settle(ctx, s); err != nil {
		log.WithError(err).Warn("settlement rejected")
		return
	}
	log.Debug("settled")
}

// Execute runs req synchronously. Any failure becomes an abort outcome.
func (c *Cluster) Execute(ctx context.Context, req confidential.Request) confidential.Outcome {
	e := &execution{
		cluster: c,
		ctx:     ctx,
		args:    confidential.NewArgs(req.Args),
		records: make(map[string][]byte),
	}

	var (
		out confidential.Outcome
		err error
	)
	switch req.Circuit {
	case confidential.CircuitDeal:
		out, err = e.deal()
	case confidential.CircuitHit, confidential.CircuitDoubleDown:
		out, err = e.draw()
	case confidential.CircuitStand:
		out, err = e.stand()
	case confidential.CircuitDealerPlay:
		out, err = e.dealerPlay()
	case confidential.CircuitResolve:
		out, err = e.resolve()
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownCircuit, req.Circuit)
	}
	if err != nil {
		return confidential.Aborted(err.Error())
	}
	return out
}
