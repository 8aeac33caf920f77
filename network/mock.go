package network

import (
	"context"
	"fmt"

	"github.com/bitfsorg/libmarket-go/tx"
)

// MockNode is a Node test double. A method whose function field is nil
// fails with ErrConnectionFailed.
type MockNode struct {
	ListUnspentFn   func(ctx context.Context, address string) ([]*tx.Utxo, error)
	GetUtxoFn       func(ctx context.Context, txid string, vout uint32) (*tx.Utxo, error)
	BroadcastFn     func(ctx context.Context, rawTxHex string) (string, error)
	TxStatusFn      func(ctx context.Context, txid string) (*TxStatus, error)
	ImportAddressFn func(ctx context.Context, address string) error
}

var _ Node = (*MockNode)(nil)

func unset(method string) error {
	return fmt.Errorf("%w: mock %s not set", ErrConnectionFailed, method)
}

func (m *MockNode) ListUnspent(ctx context.Context, address string) ([]*tx.Utxo, error) {
	if m.ListUnspentFn == nil {
		return nil, unset("ListUnspent")
	}
	return m.ListUnspentFn(ctx, address)
}

func (m *MockNode) GetUtxo(ctx context.Context, txid string, vout uint32) (*tx.Utxo, error) {
	if m.GetUtxoFn == nil {
		return nil, unset("GetUtxo")
	}
	return m.GetUtxoFn(ctx, txid, vout)
}

func (m *MockNode) Broadcast(ctx context.Context, rawTxHex string) (string, error) {
	if m.BroadcastFn == nil {
		return "", unset("Broadcast")
	}
	return m.BroadcastFn(ctx, rawTxHex)
}

func (m *MockNode) TxStatus(ctx context.Context, txid string) (*TxStatus, error) {
	if m.TxStatusFn == nil {
		return nil, unset("TxStatus")
	}
	return m.TxStatusFn(ctx, txid)
}

func (m *MockNode) ImportAddress(ctx context.Context, address string) error {
	if m.ImportAddressFn == nil {
		return unset("ImportAddress")
	}
	return m.ImportAddressFn(ctx, address)
}
