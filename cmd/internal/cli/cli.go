// Package cli holds the start-up plumbing shared by marketctl and cosignd:
// configuration loading, log backends and opening the seed wallet.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/decred/slog"

	"github.com/bitfsorg/libmarket-go/config"
	"github.com/bitfsorg/libmarket-go/network"
	"github.com/bitfsorg/libmarket-go/wallet"
)

// PasswordEnv holds the seed file password.
const PasswordEnv = "MARKET_PASSWORD"

// LoadConfig reads config.yaml from dataDir, falling back to defaults when
// the file is missing, then applies the environment and validates.
func LoadConfig(dataDir string, getenv func(string) string) (config.Config, error) {
	if dataDir == "" {
		dataDir = getenv("MARKET_DATADIR")
	}
	if dataDir == "" {
		dataDir = config.DefaultDataDir()
	}

	cfg, err := config.LoadConfig(config.ConfigPath(dataDir))
	switch {
	case errors.Is(err, config.ErrConfigNotFound):
		cfg = config.DefaultConfig()
	case err != nil:
		return config.Config{}, err
	}
	cfg.DataDir = dataDir
	cfg.ApplyEnv(getenv)

	if err := config.ValidateConfig(cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// Logs is a log backend with one logger per subsystem.
type Logs struct {
	backend *slog.Backend
	level   slog.Level
	file    *os.File
}

// NewLogs writes to stderr and, when cfg.LogFile is set, appends to that
// file as well.
func NewLogs(cfg config.Config) (*Logs, error) {
	level, ok := slog.LevelFromString(strings.ToLower(cfg.LogLevel))
	if !ok {
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidLogLevel, cfg.LogLevel)
	}

	l := &Logs{level: level}
	var w io.Writer = os.Stderr
	if cfg.LogFile != "" {
		path := cfg.LogFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.DataDir, path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		l.file = f
		w = io.MultiWriter(os.Stderr, f)
	}
	l.backend = slog.NewBackend(w)
	return l, nil
}

// Logger returns the logger for subsystem tag.
func (l *Logs) Logger(tag string) slog.Logger {
	log := l.backend.Logger(tag)
	log.SetLevel(l.level)
	return log
}

// Close closes the log file, if any.
func (l *Logs) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// OpenWallet decrypts the seed in cfg.DataDir and returns a node-backed
// wallet for cfg.Network.
func OpenWallet(cfg config.Config, getenv func(string) string, log, rpcLog slog.Logger) (*wallet.Local, error) {
	password := getenv(PasswordEnv)
	if password == "" {
		return nil, fmt.Errorf("%s is not set", PasswordEnv)
	}
	seed, err := wallet.LoadSeedFile(filepath.Join(cfg.DataDir, wallet.SeedFileName), password)
	if err != nil {
		return nil, err
	}
	netCfg, err := wallet.GetNetwork(cfg.Network)
	if err != nil {
		return nil, err
	}
	hd, err := wallet.NewWallet(seed, netCfg)
	if err != nil {
		return nil, err
	}

	node, err := NewNode(cfg, getenv, rpcLog)
	if err != nil {
		return nil, err
	}
	return wallet.NewLocal(hd, node, log)
}

// NewNode returns the RPC client for cfg.Network. Settings in cfg win over
// the MARKET_RPC_* environment, which wins over the network preset.
func NewNode(cfg config.Config, getenv func(string) string, log slog.Logger) (*network.RPCClient, error) {
	rpcCfg, err := network.ResolveConfig(network.RPCConfig{
		URL:      cfg.RPC.URL,
		User:     cfg.RPC.User,
		Password: cfg.RPC.Password,
	}, getenv, cfg.Network)
	if err != nil {
		return nil, err
	}
	client := network.NewRPCClient(rpcCfg)
	client.SetLogger(log)
	return client, nil
}
