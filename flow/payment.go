package flow

import (
	"context"
	"fmt"

	"github.com/bitfsorg/libmarket-go/paymail"
	"github.com/bitfsorg/libmarket-go/signer"
	"github.com/bitfsorg/libmarket-go/tx"
)

// PaymentRequest pays Amount satoshis to To, a base58 address or an
// alias@domain paymail.
type PaymentRequest struct {
	To     string
	Amount uint64
}

// SendPayment selects wallet utxos for the amount plus fee, pays the
// recipient in output 0 and returns any change to the wallet in output 1.
func (p *Pipeline) SendPayment(ctx context.Context, req PaymentRequest) (*Result, error) {
	return p.run(ctx, KindPayment, func(ctx context.Context) (*draft, error) {
		if req.Amount == 0 {
			return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
		}
		payTo, err := p.recipientScript(ctx, req.To, req.Amount)
		if err != nil {
			return nil, err
		}

		addrs, err := p.Wallet.GetAddresses(ctx)
		if err != nil {
			return nil, fmt.Errorf("flow: wallet addresses: %w", err)
		}
		utxos, err := p.Wallet.GetUtxos(ctx)
		if err != nil {
			return nil, fmt.Errorf("flow: wallet utxos: %w", err)
		}

		sel, err := tx.SelectUtxos(utxos, req.Amount, p.feeRate())
		if err != nil {
			return nil, err
		}

		t := tx.NewTransaction()
		contexts := make([]signer.InputContext, 0, len(sel.Selected))
		for _, u := range sel.Selected {
			in, err := u.Input()
			if err != nil {
				return nil, err
			}
			t.AddInput(in)
			contexts = append(contexts, signer.ContextFromUtxo(u, addrs.Payment))
		}

		t.AddOutput(req.Amount, payTo)
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
		d.fee, d.amount, d.to = sel.Fee, req.Amount, req.To
		return d, nil
	})
}

func (p *Pipeline) recipientScript(ctx context.Context, to string, amount uint64) ([]byte, error) {
	if to == "" {
		return nil, fmt.Errorf("%w: missing recipient", ErrInvalidRequest)
	}
	if paymail.IsPaymail(to) {
		if p.Resolver == nil {
			return nil, fmt.Errorf("%w: no resolver for paymail %s", ErrNotConfigured, to)
		}
		return p.Resolver.LockingScript(ctx, to, amount)
	}
	lock, err := tx.BuildP2PKHLock(to)
	if err != nil {
		return nil, fmt.Errorf("%w: recipient: %w", ErrInvalidRequest, err)
	}
	return lock, nil
}
