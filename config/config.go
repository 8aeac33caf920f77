// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

// Package config loads the marketplace client and co-signer settings from
// a YAML file with MARKET_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file name inside the data directory.
const FileName = "config.yaml"

// Config holds every setting read by marketctl and cosignd.
type Config struct {
	DataDir  string `yaml:"datadir"`
	Network  string `yaml:"network"`
	LogLevel string `yaml:"loglevel"`
	LogFile  string `yaml:"logfile,omitempty"`

	// FeeRate is in satoshis per 1000 bytes.
	FeeRate uint64 `yaml:"feerate"`

	RPC      RPCConfig      `yaml:"rpc"`
	Cosigner CosignerConfig `yaml:"cosigner"`
	Listing  ListingConfig  `yaml:"listing"`
	Paymail  PaymailConfig  `yaml:"paymail"`
}

// RPCConfig is the node connection. Empty fields fall back to the
// environment and then the network presets.
type RPCConfig struct {
	URL      string `yaml:"url,omitempty"`
	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// CosignerConfig is shared by the client (URL) and the daemon
// (ListenAddr, MintFee).
type CosignerConfig struct {
	URL        string `yaml:"url,omitempty"`
	ListenAddr string `yaml:"listen"`
	MintFee    uint64 `yaml:"mintfee"`
}

// ListingConfig holds the price-lock template bytecode around the
// seller and payment pushes.
type ListingConfig struct {
	TemplatePrefixHex string `yaml:"prefix,omitempty"`
	TemplateSuffixHex string `yaml:"suffix,omitempty"`
}

// PaymailConfig controls recipient resolution.
type PaymailConfig struct {
	DNSSEC   bool   `yaml:"dnssec"`
	Upstream string `yaml:"upstream,omitempty"`
}

// DefaultDataDir returns ~/.market, or .market when the home directory
// cannot be determined.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".market"
	}
	return filepath.Join(home, ".market")
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DataDir:  DefaultDataDir(),
		Network:  "mainnet",
		LogLevel: "info",
		FeeRate:  100,
		Cosigner: CosignerConfig{
			ListenAddr: ":8090",
			MintFee:    1000,
		},
	}
}

// ConfigPath returns the configuration file path inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, FileName)
}

// LoadConfig reads path over DefaultConfig. Keys absent from the file keep
// their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}

	return cfg, nil
}

// SaveConfig writes cfg to path, creating parent directories.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	body, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}

	data := append([]byte("# Market Configuration\n"), body...)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides cfg from MARKET_* variables read through getenv.
// Unparseable numbers are ignored.
func (c *Config) ApplyEnv(getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *uint64) {
		if v := getenv(key); v != "" {
			if n, err := strconv.ParseUint(v, 10, 64); err == nil {
				*dst = n
			}
		}
	}

	str("MARKET_DATADIR", &c.DataDir)
	str("MARKET_NETWORK", &c.Network)
	str("MARKET_LOGLEVEL", &c.LogLevel)
	num("MARKET_FEERATE", &c.FeeRate)
	str("MARKET_COSIGNER_URL", &c.Cosigner.URL)
	str("MARKET_COSIGNER_LISTEN", &c.Cosigner.ListenAddr)
	num("MARKET_MINT_FEE", &c.Cosigner.MintFee)
	str("MARKET_DNS_UPSTREAM", &c.Paymail.Upstream)
	if v := getenv("MARKET_DNSSEC"); v != "" {
		c.Paymail.DNSSEC = v == "true" || v == "1"
	}
}
