// Package units converts between ether amounts typed by people and wei.
package units

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// EtherDecimals is the number of wei decimal places in one ether.
const EtherDecimals = 18

// ParseEther converts a decimal ether string (e.g. "0.001") to wei.
// Amounts with more than 18 decimal places are rejected rather than rounded.
func ParseEther(amount string) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}
	if dec.IsNegative() {
		return nil, fmt.Errorf("amount cannot be negative")
	}

	wei := dec.Shift(EtherDecimals)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, fmt.Errorf("amount %s has more than %d decimal places", amount, EtherDecimals)
	}
	return wei.BigInt(), nil
}

// FormatEther renders wei as ether rounded down to places decimal places.
func FormatEther(wei *big.Int, places int32) string {
	if wei == nil {
		return decimal.Zero.StringFixed(places)
	}
	return decimal.NewFromBigInt(wei, -EtherDecimals).Truncate(places).StringFixed(places)
}

// TokensToWei converts a whole-token reward (18-decimal ERC-20) to its base unit.
func TokensToWei(tokens int64) *big.Int {
	return decimal.NewFromInt(tokens).Shift(EtherDecimals).BigInt()
}
