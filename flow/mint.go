package flow

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/bitfsorg/libmarket-go/cosign"
	"github.com/bitfsorg/libmarket-go/tx"
)

// MintRequest asks the co-signer to inscribe Content to the wallet's
// ordinal address.
type MintRequest struct {
	ContentType string
	Content     []byte
}

// CosignedMint obtains a partially signed mint transaction from the
// co-signer, signs only the inputs it asks for and splices those
// signatures into its bytes. No other byte of the co-signer's transaction
// is changed.
func (p *Pipeline) CosignedMint(ctx context.Context, req MintRequest) (*Result, error) {
	return p.run(ctx, KindMint, func(ctx context.Context) (*draft, error) {
		if p.Cosigner == nil {
			return nil, fmt.Errorf("%w: no co-signer", ErrNotConfigured)
		}

		addrs, err := p.Wallet.GetAddresses(ctx)
		if err != nil {
			return nil, fmt.Errorf("flow: wallet addresses: %w", err)
		}
		utxos, err := p.Wallet.GetUtxos(ctx)
		if err != nil {
			return nil, fmt.Errorf("flow: wallet utxos: %w", err)
		}

		order, err := p.Cosigner.PrepareMint(ctx, &cosign.MintRequest{
			OrdinalAddress: addrs.Ordinal,
			ChangeAddress:  addrs.Payment,
			ContentType:    req.ContentType,
			Content:        req.Content,
			Utxos:          utxos,
		})
		if err != nil {
			return nil, err
		}

		raw, err := hex.DecodeString(order.UnsignedTxHex)
		if err != nil {
			return nil, fmt.Errorf("%w: transaction hex: %w", cosign.ErrMalformedOrder, err)
		}
		parsed, err := tx.ParseTransaction(raw)
		if err != nil {
			return nil, err
		}
		if err := checkOrder(parsed, order); err != nil {
			return nil, err
		}

		return &draft{
			unsigned: raw,
			requests: order.SigRequests,
			outputs:  parsed.Outputs,
			fee:      order.Fee,
			amount:   order.MintFee,
			to:       order.PlatformAddress,
			finalize: func(scripts map[int][]byte) ([]byte, error) {
				return spliceComplete(raw, scripts)
			},
		}, nil
	})
}

// checkOrder verifies each request names the outpoint actually spent at
// its input index, and that the slot is still unsigned.
func checkOrder(parsed *tx.ParsedTx, order *cosign.MintOrder) error {
	if len(order.SigRequests) == 0 {
		return fmt.Errorf("%w: no signature requests", ErrOrderMismatch)
	}
	seen := make(map[int]bool, len(order.SigRequests))
	for _, r := range order.SigRequests {
		if r.InputIndex < 0 || r.InputIndex >= len(parsed.Inputs) {
			return fmt.Errorf("%w: input %d out of range", ErrOrderMismatch, r.InputIndex)
		}
		if seen[r.InputIndex] {
			return fmt.Errorf("%w: input %d requested twice", ErrOrderMismatch, r.InputIndex)
		}
		seen[r.InputIndex] = true

		in := parsed.Inputs[r.InputIndex]
		if !strings.EqualFold(in.PrevTxIDHex(), r.PrevTxID) || in.OutputIndex != r.OutputIndex {
			return fmt.Errorf("%w: input %d spends %s:%d, request names %s:%d",
				ErrOrderMismatch, r.InputIndex, in.PrevTxIDHex(), in.OutputIndex, r.PrevTxID, r.OutputIndex)
		}
		if len(in.UnlockingScript) != 0 {
			return fmt.Errorf("%w: input %d is already signed", ErrOrderMismatch, r.InputIndex)
		}
	}
	return nil
}

// spliceComplete splices scripts into raw and requires the result to have
// an unlocking script on every input.
func spliceComplete(raw []byte, scripts map[int][]byte) ([]byte, error) {
	signed, err := tx.Splice(raw, scripts)
	if err != nil {
		return nil, err
	}
	parsed, err := tx.ParseTransaction(signed)
	if err != nil {
		return nil, err
	}
	for i, in := range parsed.Inputs {
		if len(in.UnlockingScript) == 0 {
			return nil, &tx.MissingSignatureError{InputIndex: i}
		}
	}
	return signed, nil
}
