// Package flow composes the transaction builder, the external signer and a
// broadcaster into the marketplace flows: sending a payment, listing an
// ordinal for sale and completing a co-signed mint.
package flow

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/decred/slog"

	"github.com/bitfsorg/libmarket-go/cosign"
	"github.com/bitfsorg/libmarket-go/receipt"
	"github.com/bitfsorg/libmarket-go/signer"
	"github.com/bitfsorg/libmarket-go/tx"
)

// Wallet is the external wallet: it owns the keys, lists spendable
// outputs and relays signed transactions.
type Wallet interface {
	signer.Signer
	GetUtxos(ctx context.Context) ([]*tx.Utxo, error)
	GetAddresses(ctx context.Context) (*tx.Addresses, error)
	Broadcast(ctx context.Context, signedTxHex string) (string, error)
}

// UnspentChecker is implemented by wallets that can ask a node whether an
// output is still spendable. ListForSale uses it to refuse an asset that
// has already moved.
type UnspentChecker interface {
	CheckUnspent(ctx context.Context, u *tx.Utxo) error
}

// Cosigner prepares platform co-signed mint transactions.
type Cosigner interface {
	PrepareMint(ctx context.Context, req *cosign.MintRequest) (*cosign.MintOrder, error)
}

// Resolver maps a paymail recipient to a locking script.
type Resolver interface {
	LockingScript(ctx context.Context, recipient string, satoshis uint64) ([]byte, error)
}

// Journal records completed flows.
type Journal interface {
	Put(r *receipt.Receipt) error
}

// Pipeline runs flows against one wallet. Only Wallet is required; the
// other collaborators are needed by the flows that use them.
type Pipeline struct {
	Wallet   Wallet
	FeeRate  uint64 // sat/KB, DefaultFeeRate when zero
	Locker   tx.PriceLocker
	Cosigner Cosigner
	Resolver Resolver
	Journal  Journal
	Log      slog.Logger

	// SkipBroadcast stops after serialization and returns the signed
	// transaction without relaying it.
	SkipBroadcast bool

	// OnState, when set, is called on every state transition.
	OnState func(Kind, State)
}

// Result is the outcome of a successful flow.
type Result struct {
	Kind        Kind
	TxID        string
	SignedHex   string
	Fee         uint64
	Broadcast   bool
	Destination string
}

// draft is a built but unsigned transaction together with how to finish it.
type draft struct {
	unsigned []byte
	requests []signer.SignatureRequest
	outputs  []*tx.TxOutput
	fee      uint64
	amount   uint64
	to       string

	// finalize turns unlocking scripts into the signed transaction.
	finalize func(scripts map[int][]byte) ([]byte, error)
}

// p2pkhDraft finalizes by re-serializing t, so every input must be signed.
func p2pkhDraft(t *tx.Transaction, contexts []signer.InputContext) (*draft, error) {
	reqs, err := signer.BuildSignatureRequests(t, contexts)
	if err != nil {
		return nil, err
	}
	unsigned, err := t.SerializeUnsigned()
	if err != nil {
		return nil, err
	}
	return &draft{
		unsigned: unsigned,
		requests: reqs,
		outputs:  t.Outputs,
		finalize: t.SerializeSigned,
	}, nil
}

func (p *Pipeline) log() slog.Logger {
	if p.Log == nil {
		return slog.Disabled
	}
	return p.Log
}

func (p *Pipeline) feeRate() uint64 {
	if p.FeeRate == 0 {
		return tx.DefaultFeeRate
	}
	return p.FeeRate
}

func (p *Pipeline) enter(kind Kind, s State) {
	p.log().Debugf("%s: %s", kind, s)
	if p.OnState != nil {
		p.OnState(kind, s)
	}
}

func (p *Pipeline) fail(kind Kind, at State, err error) error {
	p.log().Debugf("%s: failed while %s: %v", kind, at, err)
	if p.OnState != nil {
		p.OnState(kind, StateFailed)
	}
	return &Error{Kind: kind, State: at, Err: err}
}

func cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return nil
}

// run drives one flow through the state machine. Nothing reaches the
// broadcaster unless every earlier step succeeded and ctx is still live.
func (p *Pipeline) run(ctx context.Context, kind Kind, build func(context.Context) (*draft, error)) (*Result, error) {
	if p.Wallet == nil {
		return nil, &Error{Kind: kind, State: StateBuilding, Err: fmt.Errorf("%w: wallet", ErrNotConfigured)}
	}

	p.enter(kind, StateBuilding)
	d, err := build(ctx)
	if err != nil {
		return nil, p.fail(kind, StateBuilding, err)
	}
	for i, o := range d.outputs {
		if o.Truncated() {
			p.log().Warnf("%s: output %d amount %d exceeds 32 bits and will be truncated on the wire", kind, i, o.Satoshis)
		}
	}

	if err := cancelled(ctx); err != nil {
		return nil, p.fail(kind, StateBuilding, err)
	}
	p.enter(kind, StateAwaitingSignatures)
	resps, err := signer.Request(ctx, p.Wallet, hex.EncodeToString(d.unsigned), d.requests)
	if err != nil {
		return nil, p.fail(kind, StateAwaitingSignatures, err)
	}
	if err := cancelled(ctx); err != nil {
		return nil, p.fail(kind, StateAwaitingSignatures, err)
	}

	p.enter(kind, StateSerializing)
	scripts, err := signer.UnlockingScripts(resps)
	if err != nil {
		return nil, p.fail(kind, StateSerializing, err)
	}
	signed, err := d.finalize(scripts)
	if err != nil {
		return nil, p.fail(kind, StateSerializing, err)
	}

	res := &Result{
		Kind:        kind,
		TxID:        tx.TxID(signed),
		SignedHex:   hex.EncodeToString(signed),
		Fee:         d.fee,
		Destination: d.to,
	}

	if !p.SkipBroadcast {
		if err := cancelled(ctx); err != nil {
			return nil, p.fail(kind, StateSerializing, err)
		}
		p.enter(kind, StateBroadcasting)
		txid, err := p.Wallet.Broadcast(ctx, res.SignedHex)
		if err != nil {
			return nil, p.fail(kind, StateBroadcasting, fmt.Errorf("%w: %w", ErrBroadcastRejected, err))
		}
		if txid != "" && txid != res.TxID {
			p.log().Warnf("%s: broadcaster reported txid %s, computed %s", kind, txid, res.TxID)
		}
		res.Broadcast = true
		p.log().Infof("%s: broadcast %s (fee %d)", kind, res.TxID, res.Fee)
	}

	p.record(kind, d, res, signed)
	p.enter(kind, StateDone)
	return res, nil
}

// record journals res. A journal failure does not fail the flow: the
// transaction may already be on the network.
func (p *Pipeline) record(kind Kind, d *draft, res *Result, raw []byte) {
	if p.Journal == nil {
		return
	}
	err := p.Journal.Put(&receipt.Receipt{
		TxID:         res.TxID,
		Kind:         string(kind),
		Amount:       d.amount,
		Fee:          d.fee,
		Counterparty: d.to,
		CreatedAt:    time.Now(),
		RawTx:        raw,
		Broadcast:    res.Broadcast,
	})
	if err != nil {
		p.log().Errorf("%s: journal %s: %v", kind, res.TxID, err)
	}
}
