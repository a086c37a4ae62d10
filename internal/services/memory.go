package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"casino-backend/internal/models"
)

// MemoryStore keeps everything in process memory. It backs STORE=memory and
// the engine tests.
type MemoryStore struct {
	mu           sync.Mutex
	sessions     map[string]*models.GameSession
	completed    map[int64][]string
	wallets      map[int64]*models.Wallet
	transfers    map[string]struct{}
	transactions map[int64][]*models.Transaction
	rateLimits   map[string]*rateWindow
	now          func() time.Time
}

type rateWindow struct {
	count   int
	resetAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:     make(map[string]*models.GameSession),
		completed:    make(map[int64][]string),
		wallets:      make(map[int64]*models.Wallet),
		transfers:    make(map[string]struct{}),
		transactions: make(map[int64][]*models.Transaction),
		rateLimits:   make(map[string]*rateWindow),
		now:          time.Now,
	}
}

func (m *MemoryStore) CreateSession(_ context.Context, session *models.GameSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.ID]; ok {
		return fmt.Errorf("game session %s already exists", session.ID)
	}
	m.sessions[session.ID] = session.Clone()
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, gameID string) (*models.GameSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[gameID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	return s.Clone(), nil
}

func (m *MemoryStore) UpdateSession(_ context.Context, gameID string, fn func(*models.GameSession) error) (*models.GameSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.sessions[gameID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.Version = current.Version + 1
	if next.IsResolved() && !current.IsResolved() {
		m.completed[next.UserID] = append(m.completed[next.UserID], next.ID)
		if n := len(m.completed[next.UserID]); n > MaxListedItems {
			m.completed[next.UserID] = m.completed[next.UserID][n-MaxListedItems:]
		}
	}
	m.sessions[gameID] = next
	return next.Clone(), nil
}

func (m *MemoryStore) GetUserActiveGames(_ context.Context, userID int64) ([]*models.GameSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var games []*models.GameSession
	for _, s := range m.sessions {
		if s.UserID == userID && !s.IsResolved() {
			games = append(games, s.Clone())
		}
	}
	sort.Slice(games, func(i, j int) bool { return games[i].CreatedAt > games[j].CreatedAt })
	return games, nil
}

func (m *MemoryStore) GetGameHistory(_ context.Context, userID int64, limit int64) ([]*models.GameSession, error) {
	limit = clampLimit(limit)
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.completed[userID]
	var games []*models.GameSession
	for i := len(ids) - 1; i >= 0 && int64(len(games)) < limit; i-- {
		if s, ok := m.sessions[ids[i]]; ok {
			games = append(games, s.Clone())
		}
	}
	return games, nil
}

func (m *MemoryStore) PendingBefore(_ context.Context, cutoff time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, s := range m.sessions {
		if s.Pending != nil && s.Pending.DispatchedAt <= cutoff.Unix() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) wallet(userID int64) *models.Wallet {
	w, ok := m.wallets[userID]
	if !ok {
		w = &models.Wallet{UserID: userID, Balance: DefaultWalletBalance}
		m.wallets[userID] = w
	}
	return w
}

func (m *MemoryStore) Transfer(_ context.Context, t models.Transfer) (bool, error) {
	if err := validateTransfer(t); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, done := m.transfers[t.Ref]; done {
		return false, nil
	}

	from, to := m.wallet(t.From), m.wallet(t.To)
	if from.Balance < t.Amount {
		return false, fmt.Errorf("%w: account %d has %d, needs %d", ErrInsufficientFunds, t.From, from.Balance, t.Amount)
	}

	now := m.now().Unix()
	fromBefore, toBefore := from.Balance, to.Balance
	from.Balance -= t.Amount
	to.Balance += t.Amount
	switch t.Type {
	case models.TransactionTypeBet:
		from.TotalWagered += t.Amount
	case models.TransactionTypeWin:
		to.TotalWon += t.Amount
	}

	m.appendTransaction(&models.Transaction{
		ID: models.GenerateTransactionID(), UserID: t.From, Counterparty: t.To, Type: t.Type,
		Amount: -t.Amount, BalanceBefore: fromBefore, BalanceAfter: from.Balance,
		GameID: t.GameID, Ref: t.Ref, Description: t.Description, CreatedAt: now,
	})
	m.appendTransaction(&models.Transaction{
		ID: models.GenerateTransactionID(), UserID: t.To, Counterparty: t.From, Type: t.Type,
		Amount: t.Amount, BalanceBefore: toBefore, BalanceAfter: to.Balance,
		GameID: t.GameID, Ref: t.Ref, Description: t.Description, CreatedAt: now,
	})
	m.transfers[t.Ref] = struct{}{}
	return true, nil
}

func (m *MemoryStore) appendTransaction(tx *models.Transaction) {
	list := append(m.transactions[tx.UserID], tx)
	if len(list) > MaxListedItems {
		list = list[len(list)-MaxListedItems:]
	}
	m.transactions[tx.UserID] = list
}

func (m *MemoryStore) GetWallet(_ context.Context, userID int64) (*models.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := *m.wallet(userID)
	return &w, nil
}

func (m *MemoryStore) EnsureWallet(_ context.Context, userID int64, balance int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.wallets[userID]; !ok {
		m.wallets[userID] = &models.Wallet{UserID: userID, Balance: balance}
	}
	return nil
}

func (m *MemoryStore) GetUserTransactions(_ context.Context, userID int64, limit int64) ([]*models.Transaction, error) {
	limit = clampLimit(limit)
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.transactions[userID]
	var out []*models.Transaction
	for i := len(list) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		tx := *list[i]
		out = append(out, &tx)
	}
	return out, nil
}

func (m *MemoryStore) CheckRateLimit(_ context.Context, userID int64, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, userID, action)
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	w, ok := m.rateLimits[key]
	if !ok || !now.Before(w.resetAt) {
		w = &rateWindow{resetAt: now.Add(window)}
		m.rateLimits[key] = w
	}
	w.count++
	return w.count <= limit, nil
}

func validateTransfer(t models.Transfer) error {
	if t.Ref == "" {
		return fmt.Errorf("transfer needs a reference")
	}
	if t.Amount <= 0 {
		return fmt.Errorf("transfer amount must be positive, got %d", t.Amount)
	}
	if t.From == t.To {
		return fmt.Errorf("transfer from account %d to itself", t.From)
	}
	return nil
}

func clampLimit(limit int64) int64 {
	if limit <= 0 || limit > MaxListedItems {
		return 50
	}
	return limit
}
