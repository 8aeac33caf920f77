package cosign

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/decred/slog"

	"github.com/bitfsorg/libmarket-go/ordinals"
	"github.com/bitfsorg/libmarket-go/signer"
	"github.com/bitfsorg/libmarket-go/tx"
)

// DefaultReserveFor is how long an authority utxo handed out in an order
// is withheld from later orders.
const DefaultReserveFor = 10 * time.Minute

// Platform is the wallet holding the platform authority key. Its payment
// address receives the authority output back plus the mint fee.
type Platform interface {
	signer.Signer
	GetUtxos(ctx context.Context) ([]*tx.Utxo, error)
	GetAddresses(ctx context.Context) (*tx.Addresses, error)
}

// Minter builds and pre-signs mint transactions:
//
//	input 0      platform authority utxo (signed here)
//	inputs 1..n  caller funding
//	output 0     inscription to the caller's ordinal address, 1 sat
//	output 1     platform address, authority amount + mint fee
//	output 2     caller change, when non-zero
type Minter struct {
	platform Platform
	mintFee  uint64
	feeRate  uint64

	// ReserveFor overrides DefaultReserveFor when positive.
	ReserveFor time.Duration

	mu       sync.Mutex
	reserved map[string]time.Time
	now      func() time.Time
	log      slog.Logger
}

// NewMinter returns a Minter charging mintFee satoshis per mint and paying
// network fees at feeRate sat/KB.
func NewMinter(p Platform, mintFee, feeRate uint64, log slog.Logger) (*Minter, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: platform", tx.ErrNilParam)
	}
	if feeRate == 0 {
		feeRate = tx.DefaultFeeRate
	}
	if log == nil {
		log = slog.Disabled
	}
	return &Minter{
		platform: p,
		mintFee:  mintFee,
		feeRate:  feeRate,
		reserved: make(map[string]time.Time),
		now:      time.Now,
		log:      log,
	}, nil
}

// MintFee returns the platform fee charged per mint.
func (m *Minter) MintFee() uint64 { return m.mintFee }

// Mint builds the transaction for req, signs the authority input and
// returns the order for the caller to complete.
func (m *Minter) Mint(ctx context.Context, req *MintRequest) (*MintOrder, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	inscription, err := ordinals.BuildInscription(req.OrdinalAddress, &ordinals.Inscription{
		ContentType: req.ContentType,
		Content:     req.Content,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: ordinal address: %w", ErrInvalidRequest, err)
	}
	changeLock, err := tx.BuildP2PKHLock(req.ChangeAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: change address: %w", ErrInvalidRequest, err)
	}

	addrs, err := m.platform.GetAddresses(ctx)
	if err != nil {
		return nil, fmt.Errorf("cosign: platform addresses: %w", err)
	}
	platformLock, err := tx.BuildP2PKHLock(addrs.Payment)
	if err != nil {
		return nil, fmt.Errorf("cosign: platform address: %w", err)
	}

	authority, err := m.reserve(ctx, req.Utxos)
	if err != nil {
		return nil, err
	}
	order, err := m.build(ctx, req, authority, addrs.Payment, inscription, platformLock, changeLock)
	if err != nil {
		m.release(authority)
		return nil, err
	}

	m.log.Infof("Mint order for %s: authority %s, %d caller inputs, fee %d",
		req.OrdinalAddress, authority.Outpoint(), len(order.SigRequests), order.Fee)
	return order, nil
}

func (m *Minter) build(ctx context.Context, req *MintRequest, authority *tx.Utxo, platformAddr string,
	inscription, platformLock, changeLock []byte) (*MintOrder, error) {
	// The inscription output replaces one of the three P2PKH outputs the
	// size estimate assumes.
	extra := 8 + tx.VarIntSize(uint64(len(inscription))) + len(inscription) - tx.P2PKHOutputSize

	sel, err := tx.Select(tx.SelectParams{
		Candidates:  req.Utxos,
		Target:      1 + m.mintFee,
		FeeRate:     m.feeRate,
		FixedInputs: 1,
		Outputs:     3,
		ExtraBytes:  extra,
	})
	if err != nil {
		return nil, fmt.Errorf("cosign: funding: %w", err)
	}

	t := tx.NewTransaction()
	contexts := make([]signer.InputContext, 0, 1+len(sel.Selected))
	for _, u := range append([]*tx.Utxo{authority}, sel.Selected...) {
		in, err := u.Input()
		if err != nil {
			return nil, fmt.Errorf("%w: utxo %s: %w", ErrInvalidRequest, u.Outpoint(), err)
		}
		t.AddInput(in)
		owner := req.ChangeAddress
		if u == authority {
			owner = platformAddr
		}
		contexts = append(contexts, signer.ContextFromUtxo(u, owner))
	}

	t.AddOutput(1, inscription)
	t.AddOutput(authority.Satoshis+m.mintFee, platformLock)
	if sel.Change > 0 {
		t.AddOutput(sel.Change, changeLock)
	}

	reqs, err := signer.BuildSignatureRequests(t, contexts)
	if err != nil {
		return nil, err
	}
	unsigned, err := t.SerializeUnsigned()
	if err != nil {
		return nil, err
	}

	resps, err := signer.Request(ctx, m.platform, hex.EncodeToString(unsigned), reqs[:1])
	if err != nil {
		return nil, fmt.Errorf("cosign: platform signature: %w", err)
	}
	scripts, err := signer.UnlockingScripts(resps)
	if err != nil {
		return nil, err
	}
	partial, err := tx.Splice(unsigned, scripts)
	if err != nil {
		return nil, err
	}

	return &MintOrder{
		UnsignedTxHex:   hex.EncodeToString(partial),
		SigRequests:     reqs[1:],
		PlatformAddress: platformAddr,
		MintFee:         m.mintFee,
		Fee:             sel.Fee,
	}, nil
}

// reserve picks the first platform utxo that is neither reserved nor among
// the caller's own inputs.
func (m *Minter) reserve(ctx context.Context, callerUtxos []*tx.Utxo) (*tx.Utxo, error) {
	utxos, err := m.platform.GetUtxos(ctx)
	if err != nil {
		return nil, fmt.Errorf("cosign: platform utxos: %w", err)
	}

	caller := make(map[string]bool, len(callerUtxos))
	for _, u := range callerUtxos {
		caller[u.Outpoint()] = true
	}

	ttl := m.ReserveFor
	if ttl <= 0 {
		ttl = DefaultReserveFor
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for op, until := range m.reserved {
		if now.After(until) {
			delete(m.reserved, op)
		}
	}
	for _, u := range utxos {
		if u == nil || caller[u.Outpoint()] {
			continue
		}
		if _, held := m.reserved[u.Outpoint()]; held {
			continue
		}
		m.reserved[u.Outpoint()] = now.Add(ttl)
		return u, nil
	}
	return nil, ErrNoAuthority
}

func (m *Minter) release(u *tx.Utxo) {
	m.mu.Lock()
	delete(m.reserved, u.Outpoint())
	m.mu.Unlock()
}

// IsClientError reports whether err was caused by the request rather than
// the platform.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) || errors.Is(err, tx.ErrInsufficientFunds)
}
