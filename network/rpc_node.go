package network

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/bitfsorg/libmarket-go/tx"
)

// maxConfirmations is listunspent's "any depth" upper bound.
const maxConfirmations = 9999999

func btcToSat(btc float64) uint64 {
	return uint64(math.Round(btc * 1e8))
}

type unspentEntry struct {
	TxID         string  `json:"txid"`
	Vout         uint32  `json:"vout"`
	Amount       float64 `json:"amount"`
	ScriptPubKey string  `json:"scriptPubKey"`
	Address      string  `json:"address"`
}

// ListUnspent calls listunspent with a zero minimum depth so change still
// in the mempool can be spent again.
func (c *RPCClient) ListUnspent(ctx context.Context, address string) ([]*tx.Utxo, error) {
	var entries []unspentEntry
	params := []any{0, maxConfirmations, []string{address}}
	if err := c.Call(ctx, "listunspent", params, &entries); err != nil {
		return nil, err
	}

	utxos := make([]*tx.Utxo, 0, len(entries))
	for _, e := range entries {
		owner := e.Address
		if owner == "" {
			owner = address
		}
		utxos = append(utxos, &tx.Utxo{
			TxID:             e.TxID,
			OutputIndex:      e.Vout,
			Satoshis:         btcToSat(e.Amount),
			LockingScriptHex: e.ScriptPubKey,
			OwnerAddress:     owner,
		})
	}
	c.log.Debugf("listunspent %s: %d outputs", address, len(utxos))
	return utxos, nil
}

type txOut struct {
	Value        float64 `json:"value"`
	ScriptPubKey struct {
		Hex       string   `json:"hex"`
		Address   string   `json:"address"`
		Addresses []string `json:"addresses"`
	} `json:"scriptPubKey"`
}

func (o *txOut) owner() string {
	if o.ScriptPubKey.Address != "" {
		return o.ScriptPubKey.Address
	}
	if len(o.ScriptPubKey.Addresses) == 1 {
		return o.ScriptPubKey.Addresses[0]
	}
	return ""
}

// GetUtxo calls gettxout with mempool spends included. The node answers a
// spent or unknown outpoint with a null result.
func (c *RPCClient) GetUtxo(ctx context.Context, txid string, vout uint32) (*tx.Utxo, error) {
	if _, err := tx.HashFromHex(txid); err != nil {
		return nil, err
	}
	var out *txOut
	if err := c.Call(ctx, "gettxout", []any{txid, vout, true}, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("%w: %s:%d", ErrSpent, txid, vout)
	}
	if out.ScriptPubKey.Hex == "" {
		return nil, fmt.Errorf("%w: gettxout %s:%d has no script", ErrInvalidResponse, txid, vout)
	}
	return &tx.Utxo{
		TxID:             txid,
		OutputIndex:      vout,
		Satoshis:         btcToSat(out.Value),
		LockingScriptHex: out.ScriptPubKey.Hex,
		OwnerAddress:     out.owner(),
	}, nil
}

// Broadcast calls sendrawtransaction. A transaction the node already has
// in a block counts as broadcast.
func (c *RPCClient) Broadcast(ctx context.Context, rawTxHex string) (string, error) {
	raw, err := hex.DecodeString(rawTxHex)
	if err != nil || len(raw) == 0 {
		return "", fmt.Errorf("network: broadcast: transaction is not hex")
	}
	txid := tx.TxID(raw)

	var got string
	err = c.Call(ctx, "sendrawtransaction", []any{rawTxHex}, &got)
	var rpcErr *RPCError
	switch {
	case errors.As(err, &rpcErr):
		switch rpcErr.Code {
		case codeVerifyAlreadyInTx:
			c.log.Infof("Transaction %s already mined", txid)
			return txid, nil
		case codeVerifyError, codeVerifyRejected:
			c.log.Warnf("Broadcast of %s rejected: %s", txid, rpcErr.Message)
			return "", &RejectError{TxID: txid, Code: rpcErr.Code, Reason: rpcErr.Message}
		}
		return "", err
	case err != nil:
		return "", err
	}

	if got != txid {
		return "", fmt.Errorf("%w: node returned txid %s for %s", ErrInvalidResponse, got, txid)
	}
	c.log.Infof("Broadcast transaction %s", txid)
	return txid, nil
}

type verboseTx struct {
	TxID          string `json:"txid"`
	Confirmations int64  `json:"confirmations"`
	BlockHash     string `json:"blockhash"`
	BlockTime     int64  `json:"blocktime"`
}

// TxStatus calls verbose getrawtransaction. Confirmed transactions other
// than the wallet's own are only visible to a node running with -txindex.
func (c *RPCClient) TxStatus(ctx context.Context, txid string) (*TxStatus, error) {
	if _, err := tx.HashFromHex(txid); err != nil {
		return nil, err
	}
	var v verboseTx
	err := c.Call(ctx, "getrawtransaction", []any{txid, true}, &v)
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) && rpcErr.Code == codeInvalidAddressOrKey {
		return nil, fmt.Errorf("%w: %s", ErrTxNotFound, txid)
	}
	if err != nil {
		return nil, err
	}
	if v.TxID != txid {
		return nil, fmt.Errorf("%w: getrawtransaction returned %q for %s", ErrInvalidResponse, v.TxID, txid)
	}

	st := &TxStatus{TxID: txid, Confirmations: v.Confirmations, BlockHash: v.BlockHash}
	if v.BlockTime > 0 {
		st.BlockTime = time.Unix(v.BlockTime, 0).UTC()
	}
	return st, nil
}

// ImportAddress calls importaddress, rescanning when the client was
// configured to.
func (c *RPCClient) ImportAddress(ctx context.Context, address string) error {
	return c.Call(ctx, "importaddress", []any{address, "", c.rescan}, nil)
}
