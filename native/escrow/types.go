package escrow

import (
	"fmt"
	"strings"
)

// Currency names a settlement currency tracked by the ledger.
type Currency string

const (
	// CurrencyNative is the host chain's native coin used by fixed-price
	// sales.
	CurrencyNative Currency = "NATIVE"
	// CurrencyToken is the fungible settlement token used by offers.
	CurrencyToken Currency = "TOKEN"
)

// NormalizeCurrency ensures the provided currency matches a supported value
// and returns the canonical uppercase form. "ETH" is accepted as an alias for
// the native coin.
func NormalizeCurrency(raw string) (Currency, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(raw))
	switch trimmed {
	case string(CurrencyNative), "ETH":
		return CurrencyNative, nil
	case string(CurrencyToken):
		return CurrencyToken, nil
	default:
		return "", fmt.Errorf("unsupported escrow currency: %s", raw)
	}
}
