package config

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Market represents the parsed marketplace parameters.
type Market struct {
	Operator           common.Address
	SettlementToken    common.Address
	FeeBps             uint32
	CancelLock         time.Duration
	BidPolicy          string
	EnforceOfferExpiry bool
	Paused             bool
}

// Market parses the configured marketplace knobs into runtime values. The
// configuration must have passed ValidateConfig.
func (c *Config) Market() Market {
	out := Market{
		Operator:           common.HexToAddress(strings.TrimSpace(c.Operator)),
		FeeBps:             c.FeeBps,
		CancelLock:         time.Duration(c.OfferCancelLockSeconds) * time.Second,
		BidPolicy:          strings.ToLower(strings.TrimSpace(c.BidPolicy)),
		EnforceOfferExpiry: c.EnforceOfferExpiry,
		Paused:             c.Pauses.Market,
	}
	if token := strings.TrimSpace(c.SettlementToken); token != "" {
		out.SettlementToken = common.HexToAddress(token)
	}
	return out
}
