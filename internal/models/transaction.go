package models

type TransactionType string

const (
	TransactionTypeBet     TransactionType = "bet"
	TransactionTypeWin     TransactionType = "win"
	TransactionTypeDeposit TransactionType = "deposit"
	TransactionTypeRefund  TransactionType = "refund"
)

// Transaction is one side of a transfer as seen by the account it touched.
// Ref is the idempotency key of the transfer that produced it.
type Transaction struct {
	ID            string          `json:"id"`
	UserID        int64           `json:"user_id"`
	Counterparty  int64           `json:"counterparty"`
	Type          TransactionType `json:"type"`
	Amount        int64           `json:"amount"`
	BalanceBefore int64           `json:"balance_before"`
	BalanceAfter  int64           `json:"balance_after"`
	GameID        string          `json:"game_id,omitempty"`
	Ref           string          `json:"ref"`
	Description   string          `json:"description"`
	CreatedAt     int64           `json:"created_at"`
}

// Transfer moves Amount from one account to another exactly once per Ref.
type Transfer struct {
	Ref         string
	From        int64
	To          int64
	Amount      int64
	Type        TransactionType
	GameID      string
	Description string
}
