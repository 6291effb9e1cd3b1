package utils

import (
	"fmt"
	"math/big"
)

// ConvertDecimals rescales a raw-unit amount from one decimal convention to
// another. Upscaling multiplies by 10^(to-from); downscaling divides and
// truncates toward zero, so the result is never larger than the value the
// source amount represents.
func ConvertDecimals(amount *big.Int, from, to uint8) *big.Int {
	if amount == nil {
		return new(big.Int)
	}
	if from == to {
		return new(big.Int).Set(amount)
	}
	if to > from {
		factor := pow10(int(to - from))
		return new(big.Int).Mul(amount, factor)
	}
	factor := pow10(int(from - to))
	return new(big.Int).Quo(new(big.Int).Set(amount), factor)
}

// MaxRoundingLoss returns the largest value that truncation can discard when
// converting from `from` decimals down to `to` decimals: 10^(from-to) - 1.
// Zero when no downscaling happens.
func MaxRoundingLoss(from, to uint8) *big.Int {
	if to >= from {
		return new(big.Int)
	}
	loss := pow10(int(from - to))
	return loss.Sub(loss, big.NewInt(1))
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// ParseAmount parses a base-10 raw-unit amount. Settlement amounts are
// unsigned; negative or malformed input is rejected.
func ParseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", s)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("negative amount: %s", s)
	}
	return amount, nil
}

// FormatAmount renders a raw-unit amount for storage. Amounts are persisted
// as base-10 strings because Postgres has no native 256-bit integer.
func FormatAmount(a *big.Int) string {
	if a == nil {
		return "0"
	}
	return a.String()
}
