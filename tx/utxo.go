package tx

import (
	"encoding/hex"
	"fmt"
)

// Utxo is a spendable output as reported by the wallet.
type Utxo struct {
	TxID             string `json:"txid"`
	OutputIndex      uint32 `json:"vout"`
	Satoshis         uint64 `json:"satoshis"`
	LockingScriptHex string `json:"script"`
	OwnerAddress     string `json:"owner,omitempty"`
}

// Outpoint returns "txid:vout".
func (u *Utxo) Outpoint() string {
	return fmt.Sprintf("%s:%d", u.TxID, u.OutputIndex)
}

// LockingScript decodes LockingScriptHex.
func (u *Utxo) LockingScript() ([]byte, error) {
	b, err := hex.DecodeString(u.LockingScriptHex)
	if err != nil {
		return nil, fmt.Errorf("%w: utxo %s: %w", ErrMalformedScript, u.Outpoint(), err)
	}
	return b, nil
}

// Input builds a final TxInput spending u.
func (u *Utxo) Input() (*TxInput, error) {
	return NewTxInput(u.TxID, u.OutputIndex)
}

// Addresses are the wallet's receive addresses.
type Addresses struct {
	Payment  string `json:"payment"`
	Ordinal  string `json:"ordinal"`
	Identity string `json:"identity,omitempty"`
}
