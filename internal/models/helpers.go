package models

import (
	"crypto/rand"
	"fmt"
	"time"

	"casino-backend/internal/confidential"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func GenerateGameID() string {
	return fmt.Sprintf("game_%s_%s",
		time.Now().Format("20060102"),
		uuid.New().String())
}

func GenerateTransactionID() string {
	return fmt.Sprintf("tx_%s_%s",
		time.Now().Format("20060102"),
		uuid.New().String())
}

func GenerateHandle() string {
	return uuid.New().String()
}

// GenerateNonce returns a random 128-bit nonce.
func GenerateNonce() (confidential.Nonce, error) {
	var n confidential.Nonce
	if _, err := rand.Read(n[:]); err != nil {
		return n, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return n, nil
}

// FormatAmount renders minor units as a two-decimal string.
func FormatAmount(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}

// ParseAmount converts a decimal string such as "12.50" to minor units.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	minor := d.Shift(2)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has more than two decimals", s)
	}
	return minor.IntPart(), nil
}

func (r *BeginGameRequest) Validate(minBet, maxBet int64) error {
	if r.BetAmount < minBet {
		return fmt.Errorf("bet amount must be at least %s", FormatAmount(minBet))
	}
	if r.BetAmount > maxBet {
		return fmt.Errorf("maximum bet amount is %s", FormatAmount(maxBet))
	}
	if _, err := confidential.ParsePublicKey(r.PlayerKey); err != nil {
		return err
	}
	return nil
}
