package services

import (
	"casino-backend/internal/confidential"

	"github.com/holiman/uint256"
)

const bpsDenominator = 10000

// BasePayout maps an outcome code to the stake multiple paid back: the stake
// on dealer bust, player higher and push, nothing otherwise.
func BasePayout(outcome uint8, bet int64) int64 {
	switch outcome {
	case confidential.OutcomePlayerBust, confidential.OutcomeDealerHigher:
		return 0
	default:
		return bet
	}
}

// ApplyRTP scales amount by bps/10000, rounding down.
func ApplyRTP(amount, bps int64) int64 {
	if amount <= 0 || bps <= 0 {
		return 0
	}
	v := uint256.NewInt(uint64(amount))
	v.Mul(v, uint256.NewInt(uint64(bps)))
	v.Div(v, uint256.NewInt(bpsDenominator))
	return int64(v.Uint64())
}

func CalculatePayout(outcome uint8, bet, bps int64) int64 {
	return ApplyRTP(BasePayout(outcome, bet), bps)
}
