package flow

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/decred/slog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libmarket-go/cosign"
	"github.com/bitfsorg/libmarket-go/ordinals"
	"github.com/bitfsorg/libmarket-go/signer"
	"github.com/bitfsorg/libmarket-go/tx"
)

type testPlatform struct {
	*signer.KeySigner
	key   *testKey
	utxos []*tx.Utxo
}

func (p *testPlatform) GetUtxos(context.Context) ([]*tx.Utxo, error) { return p.utxos, nil }

func (p *testPlatform) GetAddresses(context.Context) (*tx.Addresses, error) {
	return &tx.Addresses{Payment: p.key.address, Ordinal: p.key.address}, nil
}

// recordingCosigner keeps the last order it passed through.
type recordingCosigner struct {
	next  Cosigner
	order *cosign.MintOrder
}

func (r *recordingCosigner) PrepareMint(ctx context.Context, req *cosign.MintRequest) (*cosign.MintOrder, error) {
	o, err := r.next.PrepareMint(ctx, req)
	r.order = o
	return o, err
}

type orderFunc func(ctx context.Context, req *cosign.MintRequest) (*cosign.MintOrder, error)

func (f orderFunc) PrepareMint(ctx context.Context, req *cosign.MintRequest) (*cosign.MintOrder, error) {
	return f(ctx, req)
}

func newCosignServer(t *testing.T, authority uint64) (*testPlatform, *httptest.Server) {
	t.Helper()
	k := newTestKey(t)
	ks, err := signer.NewKeySigner(true, k.priv)
	require.NoError(t, err)
	platform := &testPlatform{KeySigner: ks, key: k, utxos: []*tx.Utxo{k.utxo(900, authority)}}

	minter, err := cosign.NewMinter(platform, 1000, 100, slog.Disabled)
	require.NoError(t, err)
	srv := httptest.NewServer(cosign.NewServer(minter, slog.Disabled).Engine())
	t.Cleanup(srv.Close)
	return platform, srv
}

func TestCosignedMint(t *testing.T) {
	platform, srv := newCosignServer(t, 5000)
	w := newTestWallet(t, 20000)
	p, rec := newPipeline(w, 100)
	cs := &recordingCosigner{next: cosign.NewClient(srv.URL, slog.Disabled)}
	p.Cosigner = cs

	res, err := p.CosignedMint(context.Background(), MintRequest{ContentType: "text/plain", Content: []byte("hello")})
	require.NoError(t, err)
	assert.Equal(t, KindMint, res.Kind)
	assert.Equal(t, platform.key.address, res.Destination)
	assert.Equal(t, cs.order.Fee, res.Fee)
	assert.Equal(t, []State{StateBuilding, StateAwaitingSignatures, StateSerializing, StateBroadcasting, StateDone}, rec.get())

	// Only the caller's script field differs from the co-signer's bytes.
	orderRaw, err := hex.DecodeString(cs.order.UnsignedTxHex)
	require.NoError(t, err)
	signed, err := hex.DecodeString(res.SignedHex)
	require.NoError(t, err)
	parsed, err := tx.ParseTransaction(signed)
	require.NoError(t, err)
	require.Len(t, parsed.Inputs, 2)
	respliced, err := tx.Splice(orderRaw, map[int][]byte{1: parsed.Inputs[1].UnlockingScript})
	require.NoError(t, err)
	assert.Equal(t, signed, respliced)

	sdkTx := parseSigned(t, res, []*tx.Utxo{platform.utxos[0], w.utxos[0]})
	assertSignedBy(t, sdkTx, 0, platform.key)
	assertSignedBy(t, sdkTx, 1, w.payment)

	insc, err := ordinals.ParseInscription(parsed.Outputs[0].LockingScript)
	require.NoError(t, err)
	assert.Equal(t, "text/plain", insc.ContentType)
	assert.Equal(t, []byte("hello"), insc.Content)
	assert.Equal(t, uint64(1), parsed.Outputs[0].Satoshis)
	assert.Equal(t, uint64(5000+1000), parsed.Outputs[1].Satoshis)
}

func TestCosignedMint_CosignerErrors(t *testing.T) {
	_, srv := newCosignServer(t, 5000)
	w := newTestWallet(t, 100)
	p, _ := newPipeline(w, 100)

	_, err := p.CosignedMint(context.Background(), MintRequest{ContentType: "text/plain", Content: []byte("x")})
	assert.ErrorIs(t, err, ErrNotConfigured)

	p.Cosigner = cosign.NewClient(srv.URL, slog.Disabled)
	_, err = p.CosignedMint(context.Background(), MintRequest{ContentType: "text/plain", Content: []byte("x")})
	assert.ErrorIs(t, err, cosign.ErrRejected)
	requireFlowError(t, err, StateBuilding)

	_, err = p.CosignedMint(context.Background(), MintRequest{Content: []byte("x")})
	assert.ErrorIs(t, err, cosign.ErrInvalidRequest)

	srv.Close()
	w.utxos = []*tx.Utxo{w.payment.utxo(1, 20000)}
	_, err = p.CosignedMint(context.Background(), MintRequest{ContentType: "text/plain", Content: []byte("x")})
	assert.ErrorIs(t, err, cosign.ErrUnavailable)
	assert.Zero(t, w.broadcastCount())
}

// craftedOrder is a two-input order over wallet utxos, both unsigned.
func craftedOrder(t *testing.T, w *testWallet) (*tx.Transaction, []signer.SignatureRequest) {
	t.Helper()
	tr := tx.NewTransaction()
	contexts := make([]signer.InputContext, 0, len(w.utxos))
	for _, u := range w.utxos {
		in, err := u.Input()
		require.NoError(t, err)
		tr.AddInput(in)
		contexts = append(contexts, signer.ContextFromUtxo(u, w.payment.address))
	}
	lock, err := tx.BuildP2PKHLock(w.payment.address)
	require.NoError(t, err)
	tr.AddOutput(1000, lock)
	reqs, err := signer.BuildSignatureRequests(tr, contexts)
	require.NoError(t, err)
	return tr, reqs
}

func TestCosignedMint_OrderMismatch(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *testing.T, raw []byte, reqs []signer.SignatureRequest) ([]byte, []signer.SignatureRequest)
	}{
		{"no requests", func(_ *testing.T, raw []byte, _ []signer.SignatureRequest) ([]byte, []signer.SignatureRequest) {
			return raw, nil
		}},
		{"wrong outpoint", func(_ *testing.T, raw []byte, reqs []signer.SignatureRequest) ([]byte, []signer.SignatureRequest) {
			reqs[1].PrevTxID = fmt.Sprintf("%064x", 77)
			return raw, reqs
		}},
		{"wrong output index", func(_ *testing.T, raw []byte, reqs []signer.SignatureRequest) ([]byte, []signer.SignatureRequest) {
			reqs[0].OutputIndex += 5
			return raw, reqs
		}},
		{"index out of range", func(_ *testing.T, raw []byte, reqs []signer.SignatureRequest) ([]byte, []signer.SignatureRequest) {
			reqs[1].InputIndex = 2
			return raw, reqs
		}},
		{"negative index", func(_ *testing.T, raw []byte, reqs []signer.SignatureRequest) ([]byte, []signer.SignatureRequest) {
			reqs[0].InputIndex = -1
			return raw, reqs
		}},
		{"duplicate index", func(_ *testing.T, raw []byte, reqs []signer.SignatureRequest) ([]byte, []signer.SignatureRequest) {
			return raw, []signer.SignatureRequest{reqs[0], reqs[0]}
		}},
		{"already signed", func(t *testing.T, raw []byte, reqs []signer.SignatureRequest) ([]byte, []signer.SignatureRequest) {
			signed, err := tx.Splice(raw, map[int][]byte{0: {0x51}})
			require.NoError(t, err)
			return signed, reqs
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := newTestWallet(t, 3000, 4000)
			tr, reqs := craftedOrder(t, w)
			unsigned, err := tr.SerializeUnsigned()
			require.NoError(t, err)
			raw, reqs := tc.mutate(t, unsigned, reqs)

			p, _ := newPipeline(w, 100)
			p.Cosigner = orderFunc(func(context.Context, *cosign.MintRequest) (*cosign.MintOrder, error) {
				return &cosign.MintOrder{UnsignedTxHex: hex.EncodeToString(raw), SigRequests: reqs}, nil
			})

			_, err = p.CosignedMint(context.Background(), MintRequest{ContentType: "text/plain", Content: []byte("x")})
			assert.ErrorIs(t, err, ErrOrderMismatch)
			requireFlowError(t, err, StateBuilding)
			assert.Zero(t, w.broadcastCount())
		})
	}
}

func TestCosignedMint_UnsignedInputLeftOver(t *testing.T) {
	w := newTestWallet(t, 3000, 4000)
	tr, reqs := craftedOrder(t, w)
	unsigned, err := tr.SerializeUnsigned()
	require.NoError(t, err)

	p, _ := newPipeline(w, 100)
	p.Cosigner = orderFunc(func(context.Context, *cosign.MintRequest) (*cosign.MintOrder, error) {
		return &cosign.MintOrder{UnsignedTxHex: hex.EncodeToString(unsigned), SigRequests: reqs[1:]}, nil
	})

	_, err = p.CosignedMint(context.Background(), MintRequest{ContentType: "text/plain", Content: []byte("x")})
	assert.ErrorIs(t, err, tx.ErrMissingSignature)
	var missing *tx.MissingSignatureError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, 0, missing.InputIndex)
	requireFlowError(t, err, StateSerializing)
	assert.Zero(t, w.broadcastCount())
}

func TestCosignedMint_MalformedHex(t *testing.T) {
	w := newTestWallet(t, 3000)
	p, _ := newPipeline(w, 100)
	p.Cosigner = orderFunc(func(context.Context, *cosign.MintRequest) (*cosign.MintOrder, error) {
		return &cosign.MintOrder{UnsignedTxHex: "zz", SigRequests: []signer.SignatureRequest{{}}}, nil
	})

	_, err := p.CosignedMint(context.Background(), MintRequest{ContentType: "text/plain", Content: []byte("x")})
	assert.ErrorIs(t, err, cosign.ErrMalformedOrder)
}
