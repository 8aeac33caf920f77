// Package cosign implements the platform side of a co-signed ordinal mint
// and the HTTP client used to reach it.
//
// The platform builds the mint transaction, signs its own authority input
// (input 0), and returns the partially signed bytes together with one
// signature request per caller input. Caller signatures are spliced into
// the returned bytes without touching anything else.
package cosign

import (
	"fmt"
	"unicode/utf8"

	"github.com/bitfsorg/libmarket-go/signer"
	"github.com/bitfsorg/libmarket-go/tx"
)

// MaxContentSize caps the inscription body accepted for a mint.
const MaxContentSize = 100 * 1024

// MintRequest is what a client sends to have an inscription minted.
type MintRequest struct {
	OrdinalAddress string     `json:"ordinalAddress"`
	ChangeAddress  string     `json:"changeAddress"`
	ContentType    string     `json:"contentType"`
	Content        []byte     `json:"content"`
	Utxos          []*tx.Utxo `json:"utxos"`
}

// Validate checks the fields that do not need chain access.
func (r *MintRequest) Validate() error {
	switch {
	case r == nil:
		return fmt.Errorf("%w: nil request", ErrInvalidRequest)
	case r.OrdinalAddress == "":
		return fmt.Errorf("%w: missing ordinal address", ErrInvalidRequest)
	case r.ChangeAddress == "":
		return fmt.Errorf("%w: missing change address", ErrInvalidRequest)
	case r.ContentType == "" || !utf8.ValidString(r.ContentType):
		return fmt.Errorf("%w: bad content type", ErrInvalidRequest)
	case len(r.Content) == 0:
		return fmt.Errorf("%w: empty content", ErrInvalidRequest)
	case len(r.Content) > MaxContentSize:
		return fmt.Errorf("%w: content is %d bytes, max %d", ErrInvalidRequest, len(r.Content), MaxContentSize)
	case len(r.Utxos) == 0:
		return fmt.Errorf("%w: no funding utxos", ErrInvalidRequest)
	}
	seen := make(map[string]bool, len(r.Utxos))
	for i, u := range r.Utxos {
		if u == nil {
			return fmt.Errorf("%w: utxo %d is nil", ErrInvalidRequest, i)
		}
		if seen[u.Outpoint()] {
			return fmt.Errorf("%w: utxo %s listed twice", ErrInvalidRequest, u.Outpoint())
		}
		seen[u.Outpoint()] = true
	}
	return nil
}

// MintOrder is the platform's answer: a transaction whose input 0 is
// already signed, plus the requests the caller must sign.
type MintOrder struct {
	UnsignedTxHex   string                    `json:"unsignedTx"`
	SigRequests     []signer.SignatureRequest `json:"sigRequests"`
	PlatformAddress string                    `json:"platformAddress"`
	MintFee         uint64                    `json:"mintFee"`
	Fee             uint64                    `json:"fee"`
}

type errorResponse struct {
	Error string `json:"error"`
}
