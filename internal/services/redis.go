package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"casino-backend/internal/config"
	"casino-backend/internal/models"

	"github.com/redis/go-redis/v9"
)

const maxUpdateRetries = 8

type RedisService struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisService(cfg *config.Config) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisService{client: client, now: time.Now}, nil
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

func (s *RedisService) CreateSession(ctx context.Context, session *models.GameSession) error {
	key := fmt.Sprintf(KeyGameSession, session.ID)

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal game session: %w", err)
	}

	created, err := s.client.SetNX(ctx, key, data, TTLGameSession).Result()
	if err != nil {
		return fmt.Errorf("failed to save game session: %w", err)
	}
	if !created {
		return fmt.Errorf("game session %s already exists", session.ID)
	}

	activeKey := fmt.Sprintf(KeyUserActiveGames, session.UserID)
	if err := s.client.SAdd(ctx, activeKey, session.ID).Err(); err != nil {
		return fmt.Errorf("failed to add to active games: %w", err)
	}
	s.client.Expire(ctx, activeKey, TTLGameSession)

	return nil
}

func (s *RedisService) GetSession(ctx context.Context, gameID string) (*models.GameSession, error) {
	key := fmt.Sprintf(KeyGameSession, gameID)

	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
		}
		return nil, fmt.Errorf("failed to get game session: %w", err)
	}

	var session models.GameSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game session: %w", err)
	}

	return &session, nil
}

// UpdateSession runs fn inside WATCH/MULTI and retries when another writer
// got there first.
func (s *RedisService) UpdateSession(ctx context.Context, gameID string, fn func(*models.GameSession) error) (*models.GameSession, error) {
	key := fmt.Sprintf(KeyGameSession, gameID)
	var updated *models.GameSession

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
		}
		if err != nil {
			return fmt.Errorf("failed to get game session: %w", err)
		}

		var current models.GameSession
		if err := json.Unmarshal(data, &current); err != nil {
			return fmt.Errorf("failed to unmarshal game session: %w", err)
		}

		next := current.Clone()
		if err := fn(next); err != nil {
			return err
		}
		next.Version = current.Version + 1

		payload, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to marshal updated game session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, TTLGameSession)
			s.indexSession(ctx, pipe, &current, next)
			return nil
		})
		if err != nil {
			return err
		}
		updated = next
		return nil
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}

	return nil, fmt.Errorf("failed to update game session %s: too many concurrent writers", gameID)
}

func (s *RedisService) indexSession(ctx context.Context, pipe redis.Pipeliner, prev, next *models.GameSession) {
	if next.Pending != nil {
		pipe.ZAdd(ctx, KeyPendingGames, redis.Z{Score: float64(next.Pending.DispatchedAt), Member: next.ID})
	} else if prev.Pending != nil {
		pipe.ZRem(ctx, KeyPendingGames, next.ID)
	}

	if next.IsResolved() && !prev.IsResolved() {
		pipe.SRem(ctx, fmt.Sprintf(KeyUserActiveGames, next.UserID), next.ID)

		completedKey := fmt.Sprintf(KeyUserCompletedGames, next.UserID)
		pipe.ZAdd(ctx, completedKey, redis.Z{Score: float64(next.ResolvedAt), Member: next.ID})
		pipe.ZRemRangeByRank(ctx, completedKey, 0, -(MaxListedItems + 1))
	}
}

func (s *RedisService) GetUserActiveGames(ctx context.Context, userID int64) ([]*models.GameSession, error) {
	key := fmt.Sprintf(KeyUserActiveGames, userID)

	games, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get active games: %w", err)
	}

	sessions, err := s.bulkGetSessions(ctx, games)
	if err != nil {
		return nil, err
	}
	active := sessions[:0]
	for _, session := range sessions {
		if !session.IsResolved() {
			active = append(active, session)
		}
	}
	return active, nil
}

func (s *RedisService) GetGameHistory(ctx context.Context, userID int64, limit int64) ([]*models.GameSession, error) {
	limit = clampLimit(limit)
	completedKey := fmt.Sprintf(KeyUserCompletedGames, userID)

	gameIDs, err := s.client.ZRevRange(ctx, completedKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get game IDs: %w", err)
	}

	return s.bulkGetSessions(ctx, gameIDs)
}

func (s *RedisService) PendingBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	ids, err := s.client.ZRangeByScore(ctx, KeyPendingGames, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list pending games: %w", err)
	}
	return ids, nil
}

func (s *RedisService) bulkGetSessions(ctx context.Context, gameIDs []string) ([]*models.GameSession, error) {
	if len(gameIDs) == 0 {
		return []*models.GameSession{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(gameIDs))

	for i, gameID := range gameIDs {
		cmds[i] = pipe.Get(ctx, fmt.Sprintf(KeyGameSession, gameID))
	}

	_, err := pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("pipeline execution failed: %w", err)
	}

	sessions := make([]*models.GameSession, 0, len(cmds))
	for _, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			continue
		}

		var session models.GameSession
		if err := json.Unmarshal(data, &session); err != nil {
			continue
		}

		sessions = append(sessions, &session)
	}

	return sessions, nil
}

var transferScript = redis.NewScript(`
	local from_key, to_key, ref_key = KEYS[1], KEYS[2], KEYS[3]
	local from_list, to_list = KEYS[4], KEYS[5]
	local from_tx_key, to_tx_key = KEYS[6], KEYS[7]

	local amount = tonumber(ARGV[1])
	local default_balance = tonumber(ARGV[2])
	local tx_type = ARGV[3]
	local now = tonumber(ARGV[4])
	local ttl = tonumber(ARGV[5])
	local from_id = tonumber(ARGV[6])
	local to_id = tonumber(ARGV[7])
	local from_tx_id, to_tx_id = ARGV[8], ARGV[9]
	local ref, game_id, description = ARGV[10], ARGV[11], ARGV[12]
	local keep = tonumber(ARGV[13])

	if redis.call("EXISTS", ref_key) == 1 then
		return 0
	end

	local function load(key, id)
		local data = redis.call("GET", key)
		if not data then
			return {user_id = id, balance = default_balance, total_wagered = 0, total_won = 0}
		end
		return cjson.decode(data)
	end

	local from = load(from_key, from_id)
	local to = load(to_key, to_id)

	if from.balance < amount then
		return redis.error_reply("insufficient balance")
	end

	local from_before, to_before = from.balance, to.balance
	from.balance = from.balance - amount
	to.balance = to.balance + amount
	if tx_type == "bet" then
		from.total_wagered = from.total_wagered + amount
	elseif tx_type == "win" then
		to.total_won = to.total_won + amount
	end

	redis.call("SET", from_key, cjson.encode(from))
	redis.call("SET", to_key, cjson.encode(to))

	local function record(tx_key, list, tx_id, user_id, counterparty, signed, before, after)
		local tx = {
			id = tx_id, user_id = user_id, counterparty = counterparty, type = tx_type,
			amount = signed, balance_before = before, balance_after = after,
			game_id = game_id, ref = ref, description = description, created_at = now
		}
		redis.call("SET", tx_key, cjson.encode(tx), "EX", ttl)
		redis.call("ZADD", list, now, tx_id)
		redis.call("ZREMRANGEBYRANK", list, 0, -(keep + 1))
	end

	record(from_tx_key, from_list, from_tx_id, from_id, to_id, -amount, from_before, from.balance)
	record(to_tx_key, to_list, to_tx_id, to_id, from_id, amount, to_before, to.balance)

	redis.call("SET", ref_key, from_tx_id, "EX", ttl)
	return 1
`)

func (s *RedisService) Transfer(ctx context.Context, t models.Transfer) (bool, error) {
	if err := validateTransfer(t); err != nil {
		return false, err
	}

	fromTxID, toTxID := models.GenerateTransactionID(), models.GenerateTransactionID()
	keys := []string{
		fmt.Sprintf(KeyWallet, t.From),
		fmt.Sprintf(KeyWallet, t.To),
		fmt.Sprintf(KeyTransferRef, t.Ref),
		fmt.Sprintf(KeyUserTransactions, t.From),
		fmt.Sprintf(KeyUserTransactions, t.To),
		fmt.Sprintf(KeyTransaction, fromTxID),
		fmt.Sprintf(KeyTransaction, toTxID),
	}
	args := []any{
		t.Amount, DefaultWalletBalance, string(t.Type), s.now().Unix(), int64(TTLTransaction.Seconds()),
		t.From, t.To, fromTxID, toTxID, t.Ref, t.GameID, t.Description, MaxListedItems,
	}

	applied, err := transferScript.Run(ctx, s.client, keys, args...).Int()
	if err != nil {
		if strings.Contains(err.Error(), "insufficient balance") {
			return false, fmt.Errorf("%w: account %d", ErrInsufficientFunds, t.From)
		}
		return false, fmt.Errorf("failed to transfer: %w", err)
	}
	return applied == 1, nil
}

func (s *RedisService) GetWallet(ctx context.Context, userID int64) (*models.Wallet, error) {
	if err := s.EnsureWallet(ctx, userID, DefaultWalletBalance); err != nil {
		return nil, err
	}

	data, err := s.client.Get(ctx, fmt.Sprintf(KeyWallet, userID)).Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	var wallet models.Wallet
	if err := json.Unmarshal(data, &wallet); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet: %w", err)
	}

	return &wallet, nil
}

func (s *RedisService) EnsureWallet(ctx context.Context, userID int64, balance int64) error {
	data, err := json.Marshal(&models.Wallet{UserID: userID, Balance: balance})
	if err != nil {
		return fmt.Errorf("failed to marshal wallet: %w", err)
	}
	if err := s.client.SetNX(ctx, fmt.Sprintf(KeyWallet, userID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

func (s *RedisService) GetUserTransactions(ctx context.Context, userID int64, limit int64) ([]*models.Transaction, error) {
	limit = clampLimit(limit)
	userTxKey := fmt.Sprintf(KeyUserTransactions, userID)

	txIDs, err := s.client.ZRevRange(ctx, userTxKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction IDs: %w", err)
	}

	var transactions []*models.Transaction
	for _, txID := range txIDs {
		data, err := s.client.Get(ctx, fmt.Sprintf(KeyTransaction, txID)).Bytes()
		if err != nil {
			continue
		}

		var tx models.Transaction
		if err := json.Unmarshal(data, &tx); err != nil {
			continue
		}

		transactions = append(transactions, &tx)
	}

	return transactions, nil
}

func (s *RedisService) CheckRateLimit(ctx context.Context, userID int64, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, userID, action)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}

	if count == 1 {
		s.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}

func (s *RedisService) deleteKeys(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}
