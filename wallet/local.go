package wallet

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/decred/slog"

	"github.com/bitfsorg/libmarket-go/network"
	"github.com/bitfsorg/libmarket-go/signer"
	"github.com/bitfsorg/libmarket-go/tx"
)

// Local is a wallet backed by keys derived from a seed in this process and
// a network.Node. It is the flow.Wallet used by marketctl.
type Local struct {
	node     network.Node
	payment  *KeyPair
	ordinal  *KeyPair
	identity *KeyPair
	signer   *signer.KeySigner
	log      slog.Logger
}

// NewLocal derives the first payment, ordinal and identity keys of w.
func NewLocal(w *Wallet, node network.Node, log slog.Logger) (*Local, error) {
	if w == nil || node == nil {
		return nil, fmt.Errorf("wallet: local wallet needs a wallet and a node")
	}
	if log == nil {
		log = slog.Disabled
	}
	payment, err := w.DerivePaymentKey(ExternalChain, 0)
	if err != nil {
		return nil, err
	}
	ordinal, err := w.DeriveOrdinalKey(0)
	if err != nil {
		return nil, err
	}
	identity, err := w.DeriveIdentityKey()
	if err != nil {
		return nil, err
	}
	ks, err := signer.NewKeySigner(w.Network().IsMainnet(), payment.PrivateKey, ordinal.PrivateKey)
	if err != nil {
		return nil, err
	}
	return &Local{
		node:     node,
		payment:  payment,
		ordinal:  ordinal,
		identity: identity,
		signer:   ks,
		log:      log,
	}, nil
}

// Watch registers the payment and ordinal addresses with the node.
func (l *Local) Watch(ctx context.Context) error {
	for _, addr := range []string{l.payment.Address, l.ordinal.Address} {
		if err := l.node.ImportAddress(ctx, addr); err != nil {
			return err
		}
	}
	return nil
}

// GetAddresses returns the receive addresses.
func (l *Local) GetAddresses(ctx context.Context) (*tx.Addresses, error) {
	return &tx.Addresses{
		Payment:  l.payment.Address,
		Ordinal:  l.ordinal.Address,
		Identity: l.identity.Address,
	}, nil
}

// GetUtxos returns the spendable outputs of the payment address in the
// order the node lists them.
func (l *Local) GetUtxos(ctx context.Context) ([]*tx.Utxo, error) {
	utxos, err := l.node.ListUnspent(ctx, l.payment.Address)
	if err != nil {
		return nil, fmt.Errorf("wallet: list unspent for %s: %w", l.payment.Address, err)
	}
	l.log.Debugf("Found %d UTXOs for %s", len(utxos), l.payment.Address)
	return utxos, nil
}

// Asset looks up the "txid:vout" outpoint on the node. The output must be
// unspent and locked to the ordinal address, inscribed or not.
func (l *Local) Asset(ctx context.Context, outpoint string) (*tx.Utxo, error) {
	txid, voutStr, ok := strings.Cut(outpoint, ":")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOutpoint, outpoint)
	}
	vout, err := strconv.ParseUint(voutStr, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidOutpoint, outpoint, err)
	}
	u, err := l.node.GetUtxo(ctx, txid, uint32(vout))
	if err != nil {
		return nil, fmt.Errorf("wallet: asset %s: %w", outpoint, err)
	}
	held, err := l.holdsOrdinal(u)
	if err != nil {
		return nil, err
	}
	if !held {
		return nil, fmt.Errorf("%w: %s is not locked to %s", ErrNotOwned, outpoint, l.ordinal.Address)
	}
	u.OwnerAddress = l.ordinal.Address
	return u, nil
}

func (l *Local) holdsOrdinal(u *tx.Utxo) (bool, error) {
	lock, err := tx.BuildP2PKHLock(l.ordinal.Address)
	if err != nil {
		return false, err
	}
	script, err := u.LockingScript()
	if err != nil {
		return false, err
	}
	return bytes.HasPrefix(script, lock), nil
}

// CheckUnspent confirms the node still holds u unspent with the amount and
// script the caller has.
func (l *Local) CheckUnspent(ctx context.Context, u *tx.Utxo) error {
	got, err := l.node.GetUtxo(ctx, u.TxID, u.OutputIndex)
	if err != nil {
		return err
	}
	if got.Satoshis != u.Satoshis || !strings.EqualFold(got.LockingScriptHex, u.LockingScriptHex) {
		return fmt.Errorf("%w: %s holds %d sats under a different script", ErrUtxoMismatch, u.Outpoint(), got.Satoshis)
	}
	return nil
}

// RequestSignatures signs with the in-process keys.
func (l *Local) RequestSignatures(ctx context.Context, unsignedTxHex string, reqs []signer.SignatureRequest) ([]signer.SignatureResponse, error) {
	return l.signer.RequestSignatures(ctx, unsignedTxHex, reqs)
}

// Broadcast submits signedTxHex to the node.
func (l *Local) Broadcast(ctx context.Context, signedTxHex string) (string, error) {
	return l.node.Broadcast(ctx, signedTxHex)
}
