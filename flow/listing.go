package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/bitfsorg/libmarket-go/signer"
	"github.com/bitfsorg/libmarket-go/tx"
)

// ListingRequest offers Asset for Price satoshis. The buyer's payment goes
// to PayTo, or to the wallet's payment address when empty.
type ListingRequest struct {
	Asset *tx.Utxo
	Price uint64
	PayTo string
}

// ListForSale moves the asset under a price-lock script. The transaction
// spends the asset as input 0 and one funding utxo as input 1, writes the
// listing lock holding 1 satoshi as output 0 and change as output 1. The
// seller signs both inputs.
func (p *Pipeline) ListForSale(ctx context.Context, req ListingRequest) (*Result, error) {
	return p.run(ctx, KindListing, func(ctx context.Context) (*draft, error) {
		if req.Asset == nil {
			return nil, fmt.Errorf("%w: missing asset", ErrInvalidRequest)
		}
		if p.Locker == nil {
			return nil, fmt.Errorf("%w: no price-lock template", ErrNotConfigured)
		}
		if c, ok := p.Wallet.(UnspentChecker); ok {
			if err := c.CheckUnspent(ctx, req.Asset); err != nil {
				return nil, fmt.Errorf("%w: asset %s: %w", ErrInvalidRequest, req.Asset.Outpoint(), err)
			}
		}

		addrs, err := p.Wallet.GetAddresses(ctx)
		if err != nil {
			return nil, fmt.Errorf("flow: wallet addresses: %w", err)
		}
		payTo := req.PayTo
		if payTo == "" {
			payTo = addrs.Payment
		}

		lock, err := tx.BuildListingLock(p.Locker, addrs.Ordinal, payTo, req.Price)
		if err != nil {
			return nil, err
		}

		utxos, err := p.Wallet.GetUtxos(ctx)
		if err != nil {
			return nil, fmt.Errorf("flow: wallet utxos: %w", err)
		}
		funding, sel, err := p.selectFunding(req.Asset, utxos, len(lock))
		if err != nil {
			return nil, err
		}

		t := tx.NewTransaction()
		for _, u := range []*tx.Utxo{req.Asset, funding} {
			in, err := u.Input()
			if err != nil {
				return nil, err
			}
			t.AddInput(in)
		}
		contexts := []signer.InputContext{
			signer.ContextFromUtxo(req.Asset, addrs.Ordinal),
			signer.ContextFromUtxo(funding, addrs.Payment),
		}

		t.AddOutput(1, lock)
		if sel.Change > 0 {
			change, err := tx.BuildP2PKHLock(addrs.Payment)
			if err != nil {
				return nil, fmt.Errorf("flow: change address: %w", err)
			}
			t.AddOutput(sel.Change, change)
		}

		d, err := p2pkhDraft(t, contexts)
		if err != nil {
			return nil, err
		}
		d.fee, d.amount, d.to = sel.Fee, req.Price, payTo
		return d, nil
	})
}

// selectFunding returns the first utxo, in wallet order, that covers the
// listing fee on its own.
func (p *Pipeline) selectFunding(asset *tx.Utxo, utxos []*tx.Utxo, lockLen int) (*tx.Utxo, *tx.Selection, error) {
	extra := 8 + tx.VarIntSize(uint64(lockLen)) + lockLen - tx.P2PKHOutputSize
	var lastErr error
	for _, u := range utxos {
		if u == nil || u.Outpoint() == asset.Outpoint() {
			continue
		}
		sel, err := tx.Select(tx.SelectParams{
			Candidates:    []*tx.Utxo{u},
			Target:        1,
			FeeRate:       p.feeRate(),
			FixedInputs:   1,
			FixedSatoshis: asset.Satoshis,
			Outputs:       2,
			ExtraBytes:    extra,
		})
		if err == nil {
			return u, sel, nil
		}
		if !errors.Is(err, tx.ErrInsufficientFunds) {
			return nil, nil, err
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: no funding utxo", tx.ErrInsufficientFunds)
	}
	return nil, nil, lastErr
}
