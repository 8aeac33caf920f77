package signer

import (
	"context"
	"encoding/hex"
	"fmt"

	sighash "github.com/bsv-blockchain/go-sdk/transaction/sighash"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"

	"github.com/bitfsorg/libmarket-go/tx"
)

// DefaultSigHashType is SIGHASH_ALL with the fork id bit.
const DefaultSigHashType = sighash.AllForkID

// SignatureRequest describes one input to sign. It carries everything the
// signer needs besides the unsigned transaction itself.
type SignatureRequest struct {
	PrevTxID    string       `json:"prevTxid"`
	OutputIndex uint32       `json:"outputIndex"`
	InputIndex  int          `json:"inputIndex"`
	Satoshis    uint64       `json:"satoshis"`
	Addresses   []string     `json:"address"`
	Script      string       `json:"script"`
	SigHashType sighash.Flag `json:"sigHashType"`
}

// SignatureResponse is the signer's answer for one input. Signature is a DER
// signature followed by the sighash byte.
type SignatureResponse struct {
	InputIndex  int          `json:"inputIndex"`
	Signature   string       `json:"sig"`
	PublicKey   string       `json:"pubKey"`
	SigHashType sighash.Flag `json:"sigHashType"`
}

// SignatureBytes decodes Signature.
func (r *SignatureResponse) SignatureBytes() ([]byte, error) {
	return hex.DecodeString(r.Signature)
}

// PublicKeyBytes decodes PublicKey.
func (r *SignatureResponse) PublicKeyBytes() ([]byte, error) {
	return hex.DecodeString(r.PublicKey)
}

// UnlockingScript returns push(signature) push(publicKey).
func (r *SignatureResponse) UnlockingScript() ([]byte, error) {
	sig, err := r.SignatureBytes()
	if err != nil {
		return nil, fmt.Errorf("%w: input %d signature: %w", ErrInvalidSignatureResponse, r.InputIndex, err)
	}
	pub, err := r.PublicKeyBytes()
	if err != nil {
		return nil, fmt.Errorf("%w: input %d public key: %w", ErrInvalidSignatureResponse, r.InputIndex, err)
	}
	return tx.BuildP2PKHUnlock(sig, pub)
}

// InputContext is what the caller knows about the output an input spends.
type InputContext struct {
	Satoshis         uint64
	Address          string
	LockingScriptHex string
	SigHashType      sighash.Flag
}

// ContextFromUtxo builds the signing context for spending u. An empty owner
// falls back to defaultAddress.
func ContextFromUtxo(u *tx.Utxo, defaultAddress string) InputContext {
	addr := u.OwnerAddress
	if addr == "" {
		addr = defaultAddress
	}
	return InputContext{
		Satoshis:         u.Satoshis,
		Address:          addr,
		LockingScriptHex: u.LockingScriptHex,
		SigHashType:      DefaultSigHashType,
	}
}

// BuildSignatureRequests returns one request per input of t, in input order.
func BuildSignatureRequests(t *tx.Transaction, contexts []InputContext) ([]SignatureRequest, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: transaction", tx.ErrNilParam)
	}
	if len(contexts) != len(t.Inputs) {
		return nil, fmt.Errorf("%w: %d contexts for %d inputs", tx.ErrInvalidParams, len(contexts), len(t.Inputs))
	}

	reqs := make([]SignatureRequest, len(t.Inputs))
	for i, in := range t.Inputs {
		c := contexts[i]
		flag := c.SigHashType
		if flag == 0 {
			flag = DefaultSigHashType
		}
		var addrs []string
		if c.Address != "" {
			addrs = []string{c.Address}
		}
		reqs[i] = SignatureRequest{
			PrevTxID:    in.PrevTxIDHex(),
			OutputIndex: in.OutputIndex,
			InputIndex:  i,
			Satoshis:    c.Satoshis,
			Addresses:   addrs,
			Script:      c.LockingScriptHex,
			SigHashType: flag,
		}
	}
	return reqs, nil
}

// Signer is an external party able to sign transaction inputs. The call may
// block on user interaction.
type Signer interface {
	RequestSignatures(ctx context.Context, unsignedTxHex string, reqs []SignatureRequest) ([]SignatureResponse, error)
}

// Request asks s to sign reqs and validates the result, keyed by input index.
// If ctx is done before s returns, Request returns ErrCancelled without
// waiting for s.
func Request(ctx context.Context, s Signer, unsignedTxHex string, reqs []SignatureRequest) (map[int]SignatureResponse, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: signer", tx.ErrNilParam)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	type result struct {
		resps []SignatureResponse
		err   error
	}
	done := make(chan result, 1)
	go func() {
		resps, err := s.RequestSignatures(ctx, unsignedTxHex, reqs)
		done <- result{resps, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSigningDeclined, r.err)
		}
		return ValidateResponses(reqs, r.resps)
	}
}

// ValidateResponses checks that resps holds exactly one well-formed entry
// per requested input index.
func ValidateResponses(reqs []SignatureRequest, resps []SignatureResponse) (map[int]SignatureResponse, error) {
	want := make(map[int]sighash.Flag, len(reqs))
	for _, r := range reqs {
		flag := r.SigHashType
		if flag == 0 {
			flag = DefaultSigHashType
		}
		want[r.InputIndex] = flag
	}

	out := make(map[int]SignatureResponse, len(resps))
	for _, r := range resps {
		flag, ok := want[r.InputIndex]
		if !ok {
			return nil, fmt.Errorf("%w: unexpected input %d", ErrInvalidSignatureResponse, r.InputIndex)
		}
		if _, dup := out[r.InputIndex]; dup {
			return nil, fmt.Errorf("%w: duplicate input %d", ErrInvalidSignatureResponse, r.InputIndex)
		}
		if err := checkResponse(&r, flag); err != nil {
			return nil, err
		}
		out[r.InputIndex] = r
	}
	for _, r := range reqs {
		if _, ok := out[r.InputIndex]; !ok {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSignatureResponse, &tx.MissingSignatureError{InputIndex: r.InputIndex})
		}
	}
	return out, nil
}

// checkResponse validates one response against the sighash flag its
// request asked for. The flag must be both declared and appended to the
// signature, since the node only reads the trailing byte.
func checkResponse(r *SignatureResponse, flag sighash.Flag) error {
	sig, err := r.SignatureBytes()
	if err != nil || len(sig) < 2 {
		return fmt.Errorf("%w: input %d: malformed signature", ErrInvalidSignatureResponse, r.InputIndex)
	}
	if r.SigHashType != flag {
		return fmt.Errorf("%w: input %d: sighash type %#x, requested %#x",
			ErrInvalidSignatureResponse, r.InputIndex, uint32(r.SigHashType), uint32(flag))
	}
	if sighash.Flag(sig[len(sig)-1]) != flag {
		return fmt.Errorf("%w: input %d: signature ends in sighash byte %#x, requested %#x",
			ErrInvalidSignatureResponse, r.InputIndex, sig[len(sig)-1], uint32(flag))
	}
	pub, err := r.PublicKeyBytes()
	if err != nil || len(pub) == 0 {
		return fmt.Errorf("%w: input %d: malformed public key", ErrInvalidSignatureResponse, r.InputIndex)
	}
	if _, err := ec.PublicKeyFromBytes(pub); err != nil {
		return fmt.Errorf("%w: input %d: public key: %w", ErrInvalidSignatureResponse, r.InputIndex, err)
	}
	return nil
}

// UnlockingScripts converts validated responses into unlocking scripts.
func UnlockingScripts(resps map[int]SignatureResponse) (map[int][]byte, error) {
	scripts := make(map[int][]byte, len(resps))
	for idx, r := range resps {
		s, err := r.UnlockingScript()
		if err != nil {
			return nil, err
		}
		scripts[idx] = s
	}
	return scripts, nil
}
