package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const testOperator = "0x00000000000000000000000000000000000000F1"

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !common.IsHexAddress(cfg.Operator) {
		t.Fatalf("expected generated operator, got %q", cfg.Operator)
	}
	if cfg.OfferCancelLockSeconds != DefaultOfferCancelLockSeconds || cfg.BidPolicy != DefaultBidPolicy {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not persisted: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Operator != cfg.Operator {
		t.Fatalf("operator changed across reloads: %s vs %s", reloaded.Operator, cfg.Operator)
	}
}

func TestLoadParsesTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `DataDir = "./data"
Environment = "staging"
LogLevel = "debug"
Operator = "` + testOperator + `"
FeeBps = 250
OfferCancelLockSeconds = 3600
BidPolicy = "highest"
EnforceOfferExpiry = true

[pauses]
Market = true

[telemetry]
Endpoint = "collector:4318"
Insecure = true
Traces = true
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	market := cfg.Market()
	if market.Operator != common.HexToAddress(testOperator) || market.FeeBps != 250 {
		t.Fatalf("unexpected market params %+v", market)
	}
	if market.CancelLock != time.Hour || market.BidPolicy != "highest" || !market.EnforceOfferExpiry || !market.Paused {
		t.Fatalf("unexpected market params %+v", market)
	}
	if market.SettlementToken != (common.Address{}) {
		t.Fatalf("settlement token should be unset")
	}
	if !cfg.Telemetry.Enabled() || cfg.Telemetry.Endpoint != "collector:4318" || !cfg.Telemetry.Insecure {
		t.Fatalf("unexpected telemetry %+v", cfg.Telemetry)
	}
}

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := `data_dir: ./data
operator: "` + testOperator + `"
fee_bps: 200
settlement_token: "0x00000000000000000000000000000000000000AA"
telemetry:
  metrics: true
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.FeeBps != 200 || cfg.BidPolicy != DefaultBidPolicy || !cfg.Telemetry.Metrics {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Market().SettlementToken != common.HexToAddress("0xaa") {
		t.Fatalf("unexpected settlement token %s", cfg.Market().SettlementToken.Hex())
	}
}

func TestLoadRejectsUnknownTOMLField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `Operator = "` + testOperator + `"
ListenAddress = ":6001"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "ListenAddress") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
}

func TestValidateConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing operator", mutate: func(c *Config) { c.Operator = "" }, want: "Operator"},
		{name: "zero operator", mutate: func(c *Config) { c.Operator = "0x0000000000000000000000000000000000000000" }, want: "Operator"},
		{name: "malformed token", mutate: func(c *Config) { c.SettlementToken = "0xnope" }, want: "SettlementToken"},
		{name: "fee too high", mutate: func(c *Config) { c.FeeBps = 10_001 }, want: "FeeBps"},
		{name: "unknown policy", mutate: func(c *Config) { c.BidPolicy = "dutch" }, want: "BidPolicy"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default(testOperator)
			tc.mutate(cfg)
			err := ValidateConfig(cfg)
			if tc.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %s, got %v", tc.want, err)
			}
		})
	}
}
