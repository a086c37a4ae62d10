package models

// Wallet balances are in minor units (cents).
type Wallet struct {
	UserID       int64 `json:"user_id"`
	Balance      int64 `json:"balance"`
	TotalWagered int64 `json:"total_wagered"`
	TotalWon     int64 `json:"total_won"`
}

type BalanceResponse struct {
	Balance      string `json:"balance"`
	TotalWagered string `json:"total_wagered"`
	TotalWon     string `json:"total_won"`
	BalanceMinor int64  `json:"balance_minor"`
}

func (w *Wallet) Response() *BalanceResponse {
	return &BalanceResponse{
		Balance:      FormatAmount(w.Balance),
		TotalWagered: FormatAmount(w.TotalWagered),
		TotalWon:     FormatAmount(w.TotalWon),
		BalanceMinor: w.Balance,
	}
}
