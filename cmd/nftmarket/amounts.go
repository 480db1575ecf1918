package main

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// amountDecimals is the precision of both the native coin and the
// settlement token.
const amountDecimals = 18

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount is required")
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if value.IsNegative() {
		return nil, fmt.Errorf("amount must not be negative")
	}
	scaled := value.Shift(amountDecimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", raw, amountDecimals)
	}
	return scaled.BigInt(), nil
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -amountDecimals).String()
}

func parseAddress(flagName, raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return common.Address{}, fmt.Errorf("--%s is required", flagName)
	}
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("--%s must be a hex address", flagName)
	}
	return common.HexToAddress(trimmed), nil
}

func parseTokenID(raw string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok || id.Sign() < 0 {
		return nil, fmt.Errorf("--token-id must be a non-negative integer")
	}
	return id, nil
}
