package wallet

import (
	"fmt"
	"strings"

	"github.com/bsv-blockchain/go-sdk/script"

	bip32 "github.com/bsv-blockchain/go-sdk/compat/bip32"
	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

const (
	PurposeBIP44 = 44
	CoinTypeBSV  = 236

	PaymentAccount  = 0
	OrdinalAccount  = 1
	IdentityAccount = 2

	ExternalChain = 0
	InternalChain = 1

	// MaxIndex is the largest non-hardened child index.
	MaxIndex = 1<<31 - 1

	// Hardened is added to a child index for hardened derivation.
	Hardened = 0x80000000
)

// Wallet is the BIP32 tree of one seed. Keys are derived on demand and
// never cached.
type Wallet struct {
	master  *bip32.ExtendedKey
	network *Network
}

// KeyPair is one derived key and its P2PKH address.
type KeyPair struct {
	PrivateKey *ec.PrivateKey `json:"-"`
	PublicKey  *ec.PublicKey  `json:"public_key"`
	Path       string         `json:"path"`
	Address    string         `json:"address"`
}

// NewWallet returns the tree for seed on network, mainnet when nil.
func NewWallet(seed []byte, network *Network) (*Wallet, error) {
	if len(seed) == 0 {
		return nil, ErrInvalidSeed
	}
	if network == nil {
		network = MainNet
	}
	master, err := bip32.NewMaster(seed, network.params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivationFailed, err)
	}
	return &Wallet{master: master, network: network}, nil
}

// Network returns the network the wallet encodes addresses for.
func (w *Wallet) Network() *Network {
	return w.network
}

// DeriveKey derives m/44'/236'/account'/chain/index.
func (w *Wallet) DeriveKey(account, chain, index uint32) (*KeyPair, error) {
	if account > MaxIndex || index > MaxIndex {
		return nil, fmt.Errorf("%w: account %d index %d", ErrIndexOutOfRange, account, index)
	}
	if chain != ExternalChain && chain != InternalChain {
		return nil, fmt.Errorf("%w: chain %d", ErrIndexOutOfRange, chain)
	}

	path := []uint32{PurposeBIP44 + Hardened, CoinTypeBSV + Hardened, account + Hardened, chain, index}
	key := w.master
	for depth, child := range path {
		next, err := key.Child(child)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrDerivationFailed, formatPath(path[:depth+1]), err)
		}
		key = next
	}
	return newKeyPair(key, formatPath(path), w.network.IsMainnet())
}

// formatPath renders a derivation path with ' marking hardened steps.
func formatPath(path []uint32) string {
	var b strings.Builder
	b.WriteString("m")
	for _, c := range path {
		if c >= Hardened {
			fmt.Fprintf(&b, "/%d'", c-Hardened)
		} else {
			fmt.Fprintf(&b, "/%d", c)
		}
	}
	return b.String()
}

// DerivePaymentKey derives a key of the payment account.
func (w *Wallet) DerivePaymentKey(chain, index uint32) (*KeyPair, error) {
	return w.DeriveKey(PaymentAccount, chain, index)
}

// DeriveOrdinalKey derives a receive key of the ordinal account.
func (w *Wallet) DeriveOrdinalKey(index uint32) (*KeyPair, error) {
	return w.DeriveKey(OrdinalAccount, ExternalChain, index)
}

// DeriveIdentityKey derives the wallet's single identity key.
func (w *Wallet) DeriveIdentityKey() (*KeyPair, error) {
	return w.DeriveKey(IdentityAccount, ExternalChain, 0)
}

func newKeyPair(k *bip32.ExtendedKey, path string, mainnet bool) (*KeyPair, error) {
	priv, err := k.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %s private key: %w", ErrDerivationFailed, path, err)
	}
	pub := priv.PubKey()
	addr, err := script.NewAddressFromPublicKey(pub, mainnet)
	if err != nil {
		return nil, fmt.Errorf("%w: %s address: %w", ErrDerivationFailed, path, err)
	}
	return &KeyPair{PrivateKey: priv, PublicKey: pub, Path: path, Address: addr.AddressString}, nil
}
