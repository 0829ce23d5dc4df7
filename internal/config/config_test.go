package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config fixture: %v", err)
	}
	return path
}

const minimalYAML = `
network: Testnet
base_url: https://api.hyperliquid-testnet.xyz
wallet:
  private_key: "0000000000000000000000000000000000000000000000000000000000000001"
`

func TestLoadAppliesDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := Load(writeConfigFile(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.InfoPath != "/info" {
		t.Errorf("InfoPath = %q, want /info", cfg.InfoPath)
	}
	if cfg.ExchangePath != "/exchange" {
		t.Errorf("ExchangePath = %q, want /exchange", cfg.ExchangePath)
	}
	if cfg.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Timeout)
	}
	if cfg.Retry.MaxRetries != 3 {
		t.Errorf("Retry.MaxRetries = %d, want 3", cfg.Retry.MaxRetries)
	}
	if cfg.BuilderFeeCapBps != 1_000_000 {
		t.Errorf("BuilderFeeCapBps = %d, want 1_000_000", cfg.BuilderFeeCapBps)
	}
	if cfg.IsMainnet() {
		t.Error("IsMainnet() should be false for Testnet")
	}
}

func TestLoadRejectsMissingPrivateKey(t *testing.T) {
	t.Parallel()
	_, err := Load(writeConfigFile(t, "network: Testnet\nbase_url: https://x\n"))
	if err == nil {
		t.Fatal("expected error for missing private key")
	}
}

func TestLoadRejectsBadNetwork(t *testing.T) {
	t.Parallel()
	yaml := `
network: Devnet
base_url: https://x
wallet:
  private_key: "0000000000000000000000000000000000000000000000000000000000000001"
`
	_, err := Load(writeConfigFile(t, yaml))
	if err == nil {
		t.Fatal("expected error for invalid network")
	}
}

func TestLoadEnvOverridesPrivateKey(t *testing.T) {
	t.Setenv("HL_PRIVATE_KEY", "1111111111111111111111111111111111111111111111111111111111111111")
	cfg, err := Load(writeConfigFile(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Wallet.PrivateKeyHex != "1111111111111111111111111111111111111111111111111111111111111111" {
		t.Errorf("PrivateKeyHex not overridden by HL_PRIVATE_KEY, got %q", cfg.Wallet.PrivateKeyHex)
	}
}

func TestLoadEnvOverridesNetworkAndBaseURL(t *testing.T) {
	t.Setenv("HL_NETWORK", "Mainnet")
	t.Setenv("HL_BASE_URL", "https://api.hyperliquid.xyz")
	cfg, err := Load(writeConfigFile(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.IsMainnet() {
		t.Error("expected Mainnet after HL_NETWORK override")
	}
	if cfg.BaseURL != "https://api.hyperliquid.xyz" {
		t.Errorf("BaseURL = %q, want override", cfg.BaseURL)
	}
}

func TestTransportConfigProjection(t *testing.T) {
	t.Parallel()
	cfg, err := Load(writeConfigFile(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	tc := cfg.TransportConfig()
	if tc.BaseURL != cfg.BaseURL || tc.InfoPath != cfg.InfoPath || tc.ExchangePath != cfg.ExchangePath {
		t.Errorf("TransportConfig() = %+v did not project base fields from %+v", tc, cfg)
	}
	if tc.Retry.MaxRetries != cfg.Retry.MaxRetries {
		t.Errorf("TransportConfig().Retry.MaxRetries = %d, want %d", tc.Retry.MaxRetries, cfg.Retry.MaxRetries)
	}
}

func TestStringRedactsPrivateKey(t *testing.T) {
	t.Parallel()
	cfg, err := Load(writeConfigFile(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := cfg.String()
	if strings.Contains(s, "0000000000000000000000000000000000000000000000000000000000000001") {
		t.Error("Config.String() leaked the private key")
	}
	if !strings.Contains(s, "redacted") {
		t.Error("Config.String() should mention redaction")
	}
}

func TestValidateRejectsBadMultiplier(t *testing.T) {
	t.Parallel()
	cfg := &Config{
		Network: "Mainnet", BaseURL: "https://x",
		Wallet: WalletConfig{PrivateKeyHex: "abc"},
		Retry:  RetryConfig{Multiplier: 0.5},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for multiplier < 1")
	}
}

func TestValidateRejectsBuilderFeeCapOverflow(t *testing.T) {
	t.Parallel()
	cfg := &Config{
		Network: "Mainnet", BaseURL: "https://x",
		Wallet:           WalletConfig{PrivateKeyHex: "abc"},
		Retry:            RetryConfig{Multiplier: 2},
		BuilderFeeCapBps: 2_000_000,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for builder_fee_cap_bps > 1_000_000")
	}
}
