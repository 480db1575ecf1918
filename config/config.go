package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDataDir                = "./nftmarket-data"
	DefaultEnvironment            = "devnet"
	DefaultLogLevel               = "info"
	DefaultOfferCancelLockSeconds = uint64(48 * 60 * 60)
	DefaultBidPolicy              = "open"
)

type Config struct {
	DataDir                string    `toml:"DataDir" yaml:"data_dir"`
	Environment            string    `toml:"Environment" yaml:"environment"`
	LogFile                string    `toml:"LogFile" yaml:"log_file"`
	LogLevel               string    `toml:"LogLevel" yaml:"log_level"`
	Operator               string    `toml:"Operator" yaml:"operator"`
	SettlementToken        string    `toml:"SettlementToken" yaml:"settlement_token"`
	FeeBps                 uint32    `toml:"FeeBps" yaml:"fee_bps"`
	OfferCancelLockSeconds uint64    `toml:"OfferCancelLockSeconds" yaml:"offer_cancel_lock_seconds"`
	BidPolicy              string    `toml:"BidPolicy" yaml:"bid_policy"`
	EnforceOfferExpiry     bool      `toml:"EnforceOfferExpiry" yaml:"enforce_offer_expiry"`
	Pauses                 Pauses    `toml:"pauses" yaml:"pauses"`
	Telemetry              Telemetry `toml:"telemetry" yaml:"telemetry"`
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// Load loads the configuration from the given path. A default file is
// written when none exists. Paths ending in .yaml or .yml are decoded as
// YAML, everything else as TOML.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if isYAML(path) {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	} else {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, err
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s has unknown field %s", path, undecoded[0].String())
		}
	}

	applyDefaults(cfg)
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = DefaultDataDir
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = DefaultEnvironment
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.OfferCancelLockSeconds == 0 {
		cfg.OfferCancelLockSeconds = DefaultOfferCancelLockSeconds
	}
	if strings.TrimSpace(cfg.BidPolicy) == "" {
		cfg.BidPolicy = DefaultBidPolicy
	}
}

// Default returns a configuration populated with defaults for the supplied
// operator address.
func Default(operator string) *Config {
	cfg := &Config{Operator: operator}
	applyDefaults(cfg)
	return cfg
}

// createDefault creates and saves a default configuration file. A fresh
// operator identity is generated so a new devnet is never administered by a
// well-known address.
func createDefault(path string) (*Config, error) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	cfg := Default(ethcrypto.PubkeyToAddress(key.PublicKey).Hex())
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		defer enc.Close()
		return enc.Encode(cfg)
	}
	return toml.NewEncoder(f).Encode(cfg)
}
