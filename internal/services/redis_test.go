package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"casino-backend/internal/config"
	"casino-backend/internal/models"
)

func TestRedisService(t *testing.T) {
	cfg := &config.Config{
		RedisURL:  "localhost:6379",
		RedisPass: "",
		RedisDB:   0,
	}

	redisService, err := NewRedisService(cfg)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	defer redisService.Close()

	ctx := context.Background()
	userID := int64(999999)
	houseID := int64(999998)
	gameID := fmt.Sprintf("test_game_%d", time.Now().UnixNano())
	defer redisService.deleteKeys(ctx,
		fmt.Sprintf(KeyWallet, userID),
		fmt.Sprintf(KeyWallet, houseID),
		fmt.Sprintf(KeyGameSession, gameID),
		fmt.Sprintf(KeyTransferRef, "bet:"+gameID),
		fmt.Sprintf(KeyUserTransactions, userID),
		fmt.Sprintf(KeyUserTransactions, houseID),
		fmt.Sprintf(KeyUserActiveGames, userID),
		fmt.Sprintf(KeyUserCompletedGames, userID),
		fmt.Sprintf(KeyRateLimit, userID, "step"),
	)

	wallet, err := redisService.GetWallet(ctx, userID)
	if err != nil {
		t.Fatalf("Failed to get wallet: %v", err)
	}
	if wallet.Balance != DefaultWalletBalance {
		t.Errorf("Expected default balance %d, got %d", DefaultWalletBalance, wallet.Balance)
	}

	bet := models.Transfer{Ref: "bet:" + gameID, From: userID, To: houseID, Amount: 1000, Type: models.TransactionTypeBet, GameID: gameID}
	applied, err := redisService.Transfer(ctx, bet)
	if err != nil || !applied {
		t.Fatalf("Failed to transfer stake: applied=%v err=%v", applied, err)
	}
	applied, err = redisService.Transfer(ctx, bet)
	if err != nil || applied {
		t.Errorf("Replayed transfer should be a no-op: applied=%v err=%v", applied, err)
	}

	wallet, _ = redisService.GetWallet(ctx, userID)
	if wallet.Balance != DefaultWalletBalance-1000 || wallet.TotalWagered != 1000 {
		t.Errorf("Unexpected wallet after stake: %+v", wallet)
	}

	txs, err := redisService.GetUserTransactions(ctx, userID, 10)
	if err != nil || len(txs) != 1 || txs[0].Amount != -1000 {
		t.Errorf("Unexpected transactions: %v %v", txs, err)
	}

	session := &models.GameSession{ID: gameID, UserID: userID, BetAmount: 1000, State: models.StateInitial}
	if err := redisService.CreateSession(ctx, session); err != nil {
		t.Fatalf("Failed to save game session: %v", err)
	}

	updated, err := redisService.UpdateSession(ctx, gameID, func(g *models.GameSession) error {
		g.Pending = &models.PendingStep{Step: models.StepDeal, Handle: "h", DispatchedAt: 10}
		return nil
	})
	if err != nil || updated.Version != 1 {
		t.Fatalf("Failed to update session: %v", err)
	}

	pending, err := redisService.PendingBefore(ctx, time.Unix(10, 0))
	if err != nil || !contains(pending, gameID) {
		t.Errorf("Expected %s to be pending: %v %v", gameID, pending, err)
	}

	_, err = redisService.UpdateSession(ctx, gameID, func(g *models.GameSession) error {
		g.Pending = nil
		g.State = models.StateResolved
		g.ResolvedAt = time.Now().Unix()
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to resolve session: %v", err)
	}

	history, err := redisService.GetGameHistory(ctx, userID, 10)
	if err != nil || len(history) != 1 || history[0].ID != gameID {
		t.Errorf("Unexpected history: %v %v", history, err)
	}
	active, _ := redisService.GetUserActiveGames(ctx, userID)
	if len(active) != 0 {
		t.Errorf("Resolved game should not be active")
	}

	allowed, err := redisService.CheckRateLimit(ctx, userID, "step", 5, time.Minute)
	if err != nil {
		t.Errorf("Failed to check rate limit: %v", err)
	}
	if !allowed {
		t.Error("First step should be allowed")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
