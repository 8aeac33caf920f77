package network

import (
	"fmt"
	"net/url"
	"strconv"
)

// RPCConfig locates and authenticates a node's JSON-RPC endpoint.
type RPCConfig struct {
	URL      string `json:"url"`
	User     string `json:"user"`
	Password string `json:"password"`
	Network  string `json:"network"`

	// Rescan makes ImportAddress rescan the chain for existing outputs.
	Rescan bool `json:"rescan"`
}

// Environment variables read by ResolveConfig.
const (
	EnvRPCURL    = "MARKET_RPC_URL"
	EnvRPCUser   = "MARKET_RPC_USER"
	EnvRPCPass   = "MARKET_RPC_PASS"
	EnvRPCRescan = "MARKET_RPC_RESCAN"
)

// NetworkPresets are local-node defaults. Mainnet has none so that it is
// never reached by accident.
var NetworkPresets = map[string]RPCConfig{
	"regtest": {URL: "http://localhost:18332", User: "market", Password: "market", Rescan: true},
	"testnet": {URL: "http://localhost:18333", User: "market", Password: "market"},
}

// ResolveConfig layers explicit settings over the environment over the
// preset for network. Empty explicit fields do not override. The result
// must name an http or https URL.
func ResolveConfig(explicit RPCConfig, getenv func(string) string, network string) (RPCConfig, error) {
	cfg := NetworkPresets[network]
	cfg.Network = network

	if getenv != nil {
		override(&cfg.URL, getenv(EnvRPCURL))
		override(&cfg.User, getenv(EnvRPCUser))
		override(&cfg.Password, getenv(EnvRPCPass))
		if v := getenv(EnvRPCRescan); v != "" {
			rescan, err := strconv.ParseBool(v)
			if err != nil {
				return RPCConfig{}, fmt.Errorf("network: %s: %w", EnvRPCRescan, err)
			}
			cfg.Rescan = rescan
		}
	}
	override(&cfg.URL, explicit.URL)
	override(&cfg.User, explicit.User)
	override(&cfg.Password, explicit.Password)

	if cfg.URL == "" {
		return RPCConfig{}, fmt.Errorf("network: %s has no default node, set rpc.url or %s", network, EnvRPCURL)
	}
	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return RPCConfig{}, fmt.Errorf("network: rpc url %q is not an http(s) url", cfg.URL)
	}
	return cfg, nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
