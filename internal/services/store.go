package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"casino-backend/internal/models"
)

// SessionStore persists game sessions and the per-player indexes derived
// from them.
type SessionStore interface {
	CreateSession(ctx context.Context, session *models.GameSession) error
	GetSession(ctx context.Context, gameID string) (*models.GameSession, error)

	// UpdateSession applies fn to the current session and persists the result
	// atomically. When fn returns an error nothing is written.
	UpdateSession(ctx context.Context, gameID string, fn func(*models.GameSession) error) (*models.GameSession, error)

	GetUserActiveGames(ctx context.Context, userID int64) ([]*models.GameSession, error)
	GetGameHistory(ctx context.Context, userID int64, limit int64) ([]*models.GameSession, error)

	// PendingBefore lists games whose pending step was dispatched at or before cutoff.
	PendingBefore(ctx context.Context, cutoff time.Time) ([]string, error)
}

// Ledger holds player wallets and the house reserve.
type Ledger interface {
	// Transfer applies t at most once per t.Ref. It reports whether this call
	// applied it.
	Transfer(ctx context.Context, t models.Transfer) (bool, error)
	GetWallet(ctx context.Context, userID int64) (*models.Wallet, error)
	EnsureWallet(ctx context.Context, userID int64, balance int64) error
	GetUserTransactions(ctx context.Context, userID int64, limit int64) ([]*models.Transaction, error)
}

type RateLimiter interface {
	CheckRateLimit(ctx context.Context, userID int64, action string, limit int, window time.Duration) (bool, error)
}

// Store is everything the API server needs from a backend.
type Store interface {
	SessionStore
	Ledger
	RateLimiter
}

func RecordKey(gameID string) string {
	return fmt.Sprintf(KeyGameRecord, gameID)
}

func gameIDFromRecordKey(key string) (string, bool) {
	id, ok := strings.CutPrefix(key, strings.TrimSuffix(KeyGameRecord, "%s"))
	return id, ok && id != ""
}

// SessionRecords serves ledger record images by record key.
type SessionRecords struct {
	store SessionStore
}

func NewSessionRecords(store SessionStore) *SessionRecords {
	return &SessionRecords{store: store}
}

func (r *SessionRecords) ReadRecord(ctx context.Context, key string) ([]byte, error) {
	gameID, ok := gameIDFromRecordKey(key)
	if !ok {
		return nil, fmt.Errorf("%w: bad record key %q", ErrGameNotFound, key)
	}
	session, err := r.store.GetSession(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return session.Record(), nil
}
