package wallet

import (
	"fmt"
	"strings"

	chaincfg "github.com/bsv-blockchain/go-sdk/transaction/chaincfg"
)

// Network selects the address and extended-key encodings of a chain.
// Regtest keys and addresses are encoded like testnet ones.
type Network struct {
	Name   string
	params *chaincfg.Params
}

var (
	MainNet = &Network{Name: "mainnet", params: &chaincfg.MainNet}
	TestNet = &Network{Name: "testnet", params: &chaincfg.TestNet}
	RegTest = &Network{Name: "regtest", params: &chaincfg.TestNet}
)

// GetNetwork returns the network called name, ignoring case.
func GetNetwork(name string) (*Network, error) {
	for _, n := range []*Network{MainNet, TestNet, RegTest} {
		if strings.EqualFold(n.Name, name) {
			return n, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidNetwork, name)
}

// IsMainnet reports whether addresses carry the mainnet version byte.
func (n *Network) IsMainnet() bool {
	return n != nil && n.params == &chaincfg.MainNet
}

func (n *Network) String() string {
	return n.Name
}
