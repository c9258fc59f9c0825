package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the agent configuration. Core packages never read files or env
// themselves; everything arrives through explicit values resolved here.
type Config struct {
	MerchantURL    string        `yaml:"merchantUrl"`
	FacilitatorURL string        `yaml:"facilitatorUrl"`
	Network        string        `yaml:"network"`
	PaymentNetwork string        `yaml:"paymentNetwork"`
	WalletPath     string        `yaml:"walletPath"`
	HTTPTimeout    time.Duration `yaml:"httpTimeout"`
	UnlockBurst    int           `yaml:"unlockBurst"`
}

type configFile struct {
	Agent Config `yaml:"agent"`
}

// Default returns the configuration the original tooling assumes: a local
// facilitator and the mainnet cluster.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		MerchantURL:    "https://x402.purch.xyz/orders/solana",
		FacilitatorURL: "http://127.0.0.1:8080",
		Network:        "mainnet-beta",
		PaymentNetwork: "solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp",
		WalletPath:     filepath.Join(home, ".fuego", "keychain", "id.json"),
		HTTPTimeout:    60 * time.Second,
		UnlockBurst:    5,
	}
}

// LoadFromPath merges defaults, the first readable config file, and env
// overrides, in that order.
func LoadFromPath(configPath string) Config {
	cfg := Default()

	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		home, _ := os.UserHomeDir()
		candidates = append(candidates,
			filepath.Join(home, ".fuego", "config.yaml"),
			"configs/config.yaml",
		)
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var parsed configFile
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			continue
		}
		Merge(&cfg, parsed.Agent)
		break
	}

	ApplyEnvOverrides(&cfg)
	return cfg
}

// Merge copies the set fields of src over dst.
func Merge(dst *Config, src Config) {
	if src.MerchantURL != "" {
		dst.MerchantURL = src.MerchantURL
	}
	if src.FacilitatorURL != "" {
		dst.FacilitatorURL = src.FacilitatorURL
	}
	if src.Network != "" {
		dst.Network = src.Network
	}
	if src.PaymentNetwork != "" {
		dst.PaymentNetwork = src.PaymentNetwork
	}
	if src.WalletPath != "" {
		dst.WalletPath = src.WalletPath
	}
	if src.HTTPTimeout > 0 {
		dst.HTTPTimeout = src.HTTPTimeout
	}
	if src.UnlockBurst > 0 {
		dst.UnlockBurst = src.UnlockBurst
	}
}

// ApplyEnvOverrides applies the FUEGO_* environment variables the original
// scripts honor.
func ApplyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("FUEGO_MERCHANT")); v != "" {
		cfg.MerchantURL = v
	}
	if v := strings.TrimSpace(os.Getenv("FUEGO_SERVER")); v != "" {
		cfg.FacilitatorURL = v
	}
	if v := strings.TrimSpace(os.Getenv("FUEGO_NETWORK")); v != "" {
		cfg.Network = v
	}
	if v := strings.TrimSpace(os.Getenv("FUEGO_PAYMENT_NETWORK")); v != "" {
		cfg.PaymentNetwork = v
	}
	if v := strings.TrimSpace(os.Getenv("FUEGO_WALLET")); v != "" {
		cfg.WalletPath = v
	}
	if v := strings.TrimSpace(os.Getenv("FUEGO_HTTP_TIMEOUT_SECONDS")); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.HTTPTimeout = time.Duration(secs) * time.Second
		}
	}
}
