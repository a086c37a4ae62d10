package services

import "time"

const (
	KeyWallet             = "wallet:%d"
	KeyGameSession        = "blackjack:session:%s"
	KeyGameRecord         = "blackjack:game:%s"
	KeyPendingGames       = "blackjack:pending"
	KeyUserActiveGames    = "user:%d:active_games"
	KeyUserCompletedGames = "user:%d:completed_games"
	KeyTransaction        = "transaction:%s"
	KeyTransferRef        = "transfer:%s"
	KeyUserTransactions   = "user:%d:transactions"
	KeyRateLimit          = "ratelimit:%d:%s"

	TTLGameSession = 7 * 24 * time.Hour  // 7 days
	TTLTransaction = 30 * 24 * time.Hour // 30 days

	DefaultWalletBalance = 10000 // $100.00 in cents
	MaxListedItems       = 100

	DefaultRateLimitSteps = 60 // per minute
	DefaultRateLimitBets  = 30
)
