// Package network talks to a BSV node over JSON-RPC: listing and checking
// the outputs a wallet spends, broadcasting signed transactions and
// reporting their confirmation state.
package network

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfsorg/libmarket-go/tx"
)

// Node is the node surface the market wallet and the platform use.
type Node interface {
	// ListUnspent returns the outputs paying address, mempool included, in
	// the order the node reports them. OwnerAddress is always set.
	ListUnspent(ctx context.Context, address string) ([]*tx.Utxo, error)

	// GetUtxo returns the output at txid:vout if it is still unspent,
	// counting mempool spends. It returns ErrSpent otherwise.
	GetUtxo(ctx context.Context, txid string, vout uint32) (*tx.Utxo, error)

	// Broadcast submits a signed transaction and returns its txid. A refusal
	// is a *RejectError.
	Broadcast(ctx context.Context, rawTxHex string) (string, error)

	// TxStatus reports how deeply txid is buried. It returns ErrTxNotFound
	// when the node has never seen it.
	TxStatus(ctx context.Context, txid string) (*TxStatus, error)

	// ImportAddress makes the node track outputs paying address.
	ImportAddress(ctx context.Context, address string) error
}

// TxStatus is the confirmation state of a transaction.
type TxStatus struct {
	TxID          string
	Confirmations int64
	BlockHash     string
	BlockTime     time.Time
}

// Confirmed reports whether the transaction is in a block.
func (s *TxStatus) Confirmed() bool {
	return s.Confirmations > 0
}

func (s *TxStatus) String() string {
	if !s.Confirmed() {
		return "mempool"
	}
	if s.Confirmations == 1 {
		return "1 confirmation"
	}
	return fmt.Sprintf("%d confirmations", s.Confirmations)
}
