package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// MaxFeeBps bounds the configured fee rate.
const MaxFeeBps = uint32(10_000)

func validAddress(raw string, required bool) bool {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return !required
	}
	if !common.IsHexAddress(trimmed) {
		return false
	}
	return common.HexToAddress(trimmed) != (common.Address{})
}

func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil configuration")
	}
	if !validAddress(cfg.Operator, true) {
		return fmt.Errorf("config: Operator must be a non-zero hex address")
	}
	if !validAddress(cfg.SettlementToken, false) {
		return fmt.Errorf("config: SettlementToken must be a hex address")
	}
	if cfg.FeeBps > MaxFeeBps {
		return fmt.Errorf("config: FeeBps %d exceeds %d", cfg.FeeBps, MaxFeeBps)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.BidPolicy)) {
	case "", "open", "highest":
	default:
		return fmt.Errorf("config: unknown BidPolicy %q", cfg.BidPolicy)
	}
	return nil
}
