package signer

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	sighash "github.com/bsv-blockchain/go-sdk/transaction/sighash"

	"github.com/bitfsorg/libmarket-go/tx"
)

type testKey struct {
	priv    *ec.PrivateKey
	address string
	lockHex string
}

func newTestKey(t *testing.T) *testKey {
	t.Helper()
	priv, err := ec.NewPrivateKey()
	require.NoError(t, err)
	addr, err := script.NewAddressFromPublicKey(priv.PubKey(), true)
	require.NoError(t, err)
	lock, err := tx.BuildP2PKHLock(addr.AddressString)
	require.NoError(t, err)
	return &testKey{priv: priv, address: addr.AddressString, lockHex: hex.EncodeToString(lock)}
}

func testUtxo(k *testKey, n int, sats uint64) *tx.Utxo {
	return &tx.Utxo{
		TxID:             fmt.Sprintf("%064x", n),
		OutputIndex:      uint32(n),
		Satoshis:         sats,
		LockingScriptHex: k.lockHex,
		OwnerAddress:     k.address,
	}
}

// buildTestTx spends utxos to a single output and returns the transaction
// with its signing contexts.
func buildTestTx(t *testing.T, utxos []*tx.Utxo, payTo *testKey) (*tx.Transaction, []InputContext) {
	t.Helper()
	txn := tx.NewTransaction()
	var ctxs []InputContext
	for _, u := range utxos {
		in, err := u.Input()
		require.NoError(t, err)
		txn.AddInput(in)
		ctxs = append(ctxs, ContextFromUtxo(u, ""))
	}
	lock, err := hex.DecodeString(payTo.lockHex)
	require.NoError(t, err)
	txn.AddOutput(900, lock)
	return txn, ctxs
}

type funcSigner func(ctx context.Context, unsignedTxHex string, reqs []SignatureRequest) ([]SignatureResponse, error)

func (f funcSigner) RequestSignatures(ctx context.Context, unsignedTxHex string, reqs []SignatureRequest) ([]SignatureResponse, error) {
	return f(ctx, unsignedTxHex, reqs)
}

func validResponse(t *testing.T, idx int) SignatureResponse {
	t.Helper()
	k := newTestKey(t)
	return SignatureResponse{
		InputIndex:  idx,
		Signature:   "3006020101020101" + "41",
		PublicKey:   hex.EncodeToString(k.priv.PubKey().Compressed()),
		SigHashType: sighash.AllForkID,
	}
}

func TestBuildSignatureRequests(t *testing.T) {
	k := newTestKey(t)
	utxos := []*tx.Utxo{testUtxo(k, 1, 500), testUtxo(k, 2, 700)}
	txn, ctxs := buildTestTx(t, utxos, k)

	reqs, err := BuildSignatureRequests(txn, ctxs)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	for i, r := range reqs {
		assert.Equal(t, i, r.InputIndex)
		assert.Equal(t, utxos[i].TxID, r.PrevTxID)
		assert.Equal(t, utxos[i].OutputIndex, r.OutputIndex)
		assert.Equal(t, utxos[i].Satoshis, r.Satoshis)
		assert.Equal(t, []string{k.address}, r.Addresses)
		assert.Equal(t, k.lockHex, r.Script)
		assert.Equal(t, sighash.AllForkID, r.SigHashType)
	}
}

func TestBuildSignatureRequests_Errors(t *testing.T) {
	k := newTestKey(t)
	txn, ctxs := buildTestTx(t, []*tx.Utxo{testUtxo(k, 1, 500)}, k)

	_, err := BuildSignatureRequests(txn, append(ctxs, InputContext{}))
	assert.ErrorIs(t, err, tx.ErrInvalidParams)

	_, err = BuildSignatureRequests(nil, nil)
	assert.ErrorIs(t, err, tx.ErrNilParam)
}

func TestContextFromUtxo_DefaultAddress(t *testing.T) {
	k := newTestKey(t)
	u := testUtxo(k, 1, 1)
	u.OwnerAddress = ""
	assert.Equal(t, "fallback", ContextFromUtxo(u, "fallback").Address)
}

func TestValidateResponses(t *testing.T) {
	reqs := []SignatureRequest{{InputIndex: 0}, {InputIndex: 1}}

	t.Run("complete", func(t *testing.T) {
		got, err := ValidateResponses(reqs, []SignatureResponse{validResponse(t, 1), validResponse(t, 0)})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	tests := []struct {
		name  string
		resps func(t *testing.T) []SignatureResponse
	}{
		{"missing", func(t *testing.T) []SignatureResponse {
			return []SignatureResponse{validResponse(t, 0)}
		}},
		{"none", func(t *testing.T) []SignatureResponse { return nil }},
		{"duplicate", func(t *testing.T) []SignatureResponse {
			return []SignatureResponse{validResponse(t, 0), validResponse(t, 0), validResponse(t, 1)}
		}},
		{"unexpected", func(t *testing.T) []SignatureResponse {
			return []SignatureResponse{validResponse(t, 0), validResponse(t, 1), validResponse(t, 2)}
		}},
		{"bad signature hex", func(t *testing.T) []SignatureResponse {
			r := validResponse(t, 1)
			r.Signature = "zz"
			return []SignatureResponse{validResponse(t, 0), r}
		}},
		{"empty public key", func(t *testing.T) []SignatureResponse {
			r := validResponse(t, 1)
			r.PublicKey = ""
			return []SignatureResponse{validResponse(t, 0), r}
		}},
		{"sighash type differs from request", func(t *testing.T) []SignatureResponse {
			r := validResponse(t, 1)
			r.SigHashType = sighash.All
			return []SignatureResponse{validResponse(t, 0), r}
		}},
		{"signature without requested sighash byte", func(t *testing.T) []SignatureResponse {
			r := validResponse(t, 0)
			r.Signature = "3006020101020101" + "01"
			return []SignatureResponse{r, validResponse(t, 1)}
		}},
		{"invalid public key", func(t *testing.T) []SignatureResponse {
			r := validResponse(t, 1)
			r.PublicKey = strings.Repeat("00", 33)
			return []SignatureResponse{validResponse(t, 0), r}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateResponses(reqs, tt.resps(t))
			assert.ErrorIs(t, err, ErrInvalidSignatureResponse)
		})
	}
}

func TestValidateResponses_ExplicitSigHashType(t *testing.T) {
	flag := sighash.AllForkID | sighash.AnyOneCanPay
	reqs := []SignatureRequest{{InputIndex: 0, SigHashType: flag}}

	r := validResponse(t, 0)
	_, err := ValidateResponses(reqs, []SignatureResponse{r})
	assert.ErrorIs(t, err, ErrInvalidSignatureResponse, "default flag answers a non-default request")

	r.SigHashType = flag
	r.Signature = "3006020101020101" + "c1"
	got, err := ValidateResponses(reqs, []SignatureResponse{r})
	require.NoError(t, err)
	assert.Equal(t, flag, got[0].SigHashType)
}

func TestValidateResponses_MissingReportsInput(t *testing.T) {
	reqs := []SignatureRequest{{InputIndex: 0}, {InputIndex: 1}}
	_, err := ValidateResponses(reqs, []SignatureResponse{validResponse(t, 0)})
	require.ErrorIs(t, err, tx.ErrMissingSignature)

	var missing *tx.MissingSignatureError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, 1, missing.InputIndex)
}

func TestRequest_Declined(t *testing.T) {
	userRejected := errors.New("user rejected")
	s := funcSigner(func(context.Context, string, []SignatureRequest) ([]SignatureResponse, error) {
		return nil, userRejected
	})
	_, err := Request(context.Background(), s, "00", []SignatureRequest{{InputIndex: 0}})
	assert.ErrorIs(t, err, ErrSigningDeclined)
	assert.ErrorIs(t, err, userRejected)
}

func TestRequest_InvalidShapeIsNotDeclined(t *testing.T) {
	s := funcSigner(func(context.Context, string, []SignatureRequest) ([]SignatureResponse, error) {
		return nil, nil
	})
	_, err := Request(context.Background(), s, "00", []SignatureRequest{{InputIndex: 0}})
	assert.ErrorIs(t, err, ErrInvalidSignatureResponse)
	assert.NotErrorIs(t, err, ErrSigningDeclined)
}

func TestRequest_CancelledWhileWaiting(t *testing.T) {
	called := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	s := funcSigner(func(context.Context, string, []SignatureRequest) ([]SignatureResponse, error) {
		close(called)
		<-release
		return nil, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-called
		cancel()
	}()

	_, err := Request(ctx, s, "00", []SignatureRequest{{InputIndex: 0}})
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRequest_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := funcSigner(func(context.Context, string, []SignatureRequest) ([]SignatureResponse, error) {
		t.Fatal("signer must not be called")
		return nil, nil
	})
	_, err := Request(ctx, s, "00", nil)
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestRequest_Timeout(t *testing.T) {
	s := funcSigner(func(ctx context.Context, _ string, _ []SignatureRequest) ([]SignatureResponse, error) {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return nil, ctx.Err()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := Request(ctx, s, "00", []SignatureRequest{{InputIndex: 0}})
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRequest_NilSigner(t *testing.T) {
	_, err := Request(context.Background(), nil, "00", nil)
	assert.ErrorIs(t, err, tx.ErrNilParam)
}

func TestKeySigner_SignsAllInputs(t *testing.T) {
	k1, k2 := newTestKey(t), newTestKey(t)
	utxos := []*tx.Utxo{testUtxo(k1, 1, 600), testUtxo(k2, 2, 800)}
	txn, ctxs := buildTestTx(t, utxos, k1)

	unsigned, err := txn.SerializeUnsigned()
	require.NoError(t, err)
	reqs, err := BuildSignatureRequests(txn, ctxs)
	require.NoError(t, err)

	ks, err := NewKeySigner(true, k1.priv, k2.priv)
	require.NoError(t, err)
	assert.True(t, ks.HasAddress(k2.address))
	assert.ElementsMatch(t, []string{k1.address, k2.address}, ks.Addresses())

	resps, err := Request(context.Background(), ks, hex.EncodeToString(unsigned), reqs)
	require.NoError(t, err)
	require.Len(t, resps, 2)

	scripts, err := UnlockingScripts(resps)
	require.NoError(t, err)
	signed, err := txn.SerializeSigned(scripts)
	require.NoError(t, err)

	// Re-derive each signature over the signed bytes; the fork-id preimage
	// ignores unlocking scripts, so it must match what was signed.
	sdkTx, err := transaction.NewTransactionFromBytes(signed)
	require.NoError(t, err)
	keys := []*testKey{k1, k2}
	for i, u := range utxos {
		lock, err := hex.DecodeString(u.LockingScriptHex)
		require.NoError(t, err)
		sdkTx.Inputs[i].SetSourceTxOutput(&transaction.TransactionOutput{
			Satoshis:      u.Satoshis,
			LockingScript: script.NewFromBytes(lock),
		})
	}
	for i := range utxos {
		hash, err := sdkTx.CalcInputSignatureHash(uint32(i), sighash.AllForkID)
		require.NoError(t, err)
		sig, err := keys[i].priv.Sign(hash)
		require.NoError(t, err)

		chunks, err := sdkTx.Inputs[i].UnlockingScript.Chunks()
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, append(sig.Serialize(), byte(sighash.AllForkID)), chunks[0].Data)
		assert.Equal(t, keys[i].priv.PubKey().Compressed(), chunks[1].Data)
	}
}

func TestKeySigner_UnknownAddressDeclines(t *testing.T) {
	owner, stranger := newTestKey(t), newTestKey(t)
	txn, ctxs := buildTestTx(t, []*tx.Utxo{testUtxo(owner, 1, 600)}, owner)
	unsigned, err := txn.SerializeUnsigned()
	require.NoError(t, err)
	reqs, err := BuildSignatureRequests(txn, ctxs)
	require.NoError(t, err)

	ks, err := NewKeySigner(true, stranger.priv)
	require.NoError(t, err)

	_, err = Request(context.Background(), ks, hex.EncodeToString(unsigned), reqs)
	assert.ErrorIs(t, err, ErrSigningDeclined)
}

func TestKeySigner_BadInput(t *testing.T) {
	ks, err := NewKeySigner(true)
	require.NoError(t, err)

	_, err = ks.RequestSignatures(context.Background(), "not-hex", nil)
	assert.Error(t, err)

	_, err = NewKeySigner(true, nil)
	assert.ErrorIs(t, err, ErrSigningDeclined)
}
