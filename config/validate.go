// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"encoding/hex"
	"fmt"
	"net"
	"strings"

	"github.com/decred/slog"
)

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if cfg.Network != "mainnet" && cfg.Network != "testnet" && cfg.Network != "regtest" {
		return ErrInvalidNetwork
	}

	if _, ok := slog.LevelFromString(strings.ToLower(cfg.LogLevel)); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, cfg.LogLevel)
	}

	if cfg.FeeRate == 0 {
		return ErrInvalidFeeRate
	}

	if err := validateAddr(cfg.Cosigner.ListenAddr); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidListenAddr, err)
	}

	for _, h := range []string{cfg.Listing.TemplatePrefixHex, cfg.Listing.TemplateSuffixHex} {
		if _, err := hex.DecodeString(h); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
		}
	}

	return nil
}

// validateAddr checks that addr is a valid host:port address.
func validateAddr(addr string) error {
	_, _, err := net.SplitHostPort(addr)
	return err
}
