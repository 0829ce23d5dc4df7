// Package config defines the client's runtime configuration. Config is
// loaded from a YAML profile (default: configs/config.yaml) with secrets
// overridable via HL_* environment variables, mirroring the teacher's
// POLY_* convention.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"hlgo/internal/transport"
)

// Config is the top-level client configuration. Maps directly to the YAML
// file structure via mapstructure tags.
type Config struct {
	Network       string        `mapstructure:"network"` // "Mainnet" or "Testnet"
	BaseURL       string        `mapstructure:"base_url"`
	InfoPath      string        `mapstructure:"info_path"`
	ExchangePath  string        `mapstructure:"exchange_path"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Retry         RetryConfig   `mapstructure:"retry"`
	Wallet        WalletConfig  `mapstructure:"wallet"`
	DefaultSlippage  string     `mapstructure:"default_slippage"`
	BuilderFeeCapBps uint64     `mapstructure:"builder_fee_cap_bps"`
	Logging       LoggingConfig `mapstructure:"logging"`
}

// RetryConfig controls internal/transport's back-off wrapper.
type RetryConfig struct {
	MaxRetries     int           `mapstructure:"max_retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	Multiplier     float64       `mapstructure:"multiplier"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

// WalletConfig holds the API wallet used for signing actions.
// PrivateKeyHex signs both the L1 and user-signed paths (spec §4.D —
// "the ECDSA signing key used for both paths is the API wallet key").
// VaultAddress and AccountAddress are optional: a vault address routes
// orders through a sub-account/vault. AccountAddress is loaded and shown by
// String, but exchange.New does not read it: the client's account-state
// queries always use the signer's own derived address.
type WalletConfig struct {
	PrivateKeyHex  string `mapstructure:"private_key"`
	VaultAddress   string `mapstructure:"vault_address"`
	AccountAddress string `mapstructure:"account_address"`
}

// LoggingConfig controls the shared *slog.Logger every component receives.
type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"` // "text" or "json"
	DebugWire bool   `mapstructure:"debug_wire"`
}

// Load reads config from a YAML file with env var overrides. Sensitive
// fields use env vars: HL_PRIVATE_KEY, HL_VAULT_ADDRESS, HL_BASE_URL,
// HL_NETWORK.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("HL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("info_path", "/info")
	v.SetDefault("exchange_path", "/exchange")
	v.SetDefault("timeout", 10*time.Second)
	v.SetDefault("default_slippage", "0.05")
	v.SetDefault("builder_fee_cap_bps", uint64(1_000_000))
	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.initial_backoff", 500*time.Millisecond)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.max_backoff", 5*time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if key := os.Getenv("HL_PRIVATE_KEY"); key != "" {
		cfg.Wallet.PrivateKeyHex = key
	}
	if vault := os.Getenv("HL_VAULT_ADDRESS"); vault != "" {
		cfg.Wallet.VaultAddress = vault
	}
	if baseURL := os.Getenv("HL_BASE_URL"); baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if network := os.Getenv("HL_NETWORK"); network != "" {
		cfg.Network = network
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and value ranges, returning the first
// problem found.
func (c *Config) Validate() error {
	if c.Wallet.PrivateKeyHex == "" {
		return fmt.Errorf("wallet.private_key is required (set HL_PRIVATE_KEY)")
	}
	switch c.Network {
	case "Mainnet", "Testnet":
	default:
		return fmt.Errorf("network must be one of: Mainnet, Testnet (got %q)", c.Network)
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must be >= 0")
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier must be >= 1")
	}
	if c.BuilderFeeCapBps > 1_000_000 {
		return fmt.Errorf("builder_fee_cap_bps must be <= 1_000_000")
	}
	return nil
}

// IsMainnet reports whether the configured network is mainnet.
func (c *Config) IsMainnet() bool { return c.Network == "Mainnet" }

// TransportConfig projects the HTTP-relevant fields into transport.Config.
func (c *Config) TransportConfig() transport.Config {
	return transport.Config{
		BaseURL:      c.BaseURL,
		InfoPath:     c.InfoPath,
		ExchangePath: c.ExchangePath,
		Timeout:      c.Timeout,
		Retry: transport.RetryPolicy{
			MaxRetries:     c.Retry.MaxRetries,
			InitialBackoff: c.Retry.InitialBackoff,
			Multiplier:     c.Retry.Multiplier,
			MaxBackoff:     c.Retry.MaxBackoff,
		},
		DebugWire: c.Logging.DebugWire,
	}
}

// String suppresses the private key from any %v/%+v format of Config —
// the data model invariant is that the key is never logged or serialized.
func (c Config) String() string {
	return fmt.Sprintf("Config{Network:%s BaseURL:%s Wallet:{VaultAddress:%s AccountAddress:%s PrivateKeyHex:<redacted>}}",
		c.Network, c.BaseURL, c.Wallet.VaultAddress, c.Wallet.AccountAddress)
}
