package signer

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	sighash "github.com/bsv-blockchain/go-sdk/transaction/sighash"
)

// KeySigner signs with private keys held in process, looked up by the P2PKH
// address in each request. It backs the local wallet and the platform side
// of a co-signed mint.
type KeySigner struct {
	keys map[string]*ec.PrivateKey
}

// NewKeySigner indexes keys by their address on the given network.
func NewKeySigner(mainnet bool, keys ...*ec.PrivateKey) (*KeySigner, error) {
	k := &KeySigner{keys: make(map[string]*ec.PrivateKey, len(keys))}
	for _, priv := range keys {
		if priv == nil {
			return nil, fmt.Errorf("%w: nil private key", ErrSigningDeclined)
		}
		addr, err := script.NewAddressFromPublicKey(priv.PubKey(), mainnet)
		if err != nil {
			return nil, fmt.Errorf("address from key: %w", err)
		}
		k.keys[addr.AddressString] = priv
	}
	return k, nil
}

// Addresses lists the addresses this signer holds keys for.
func (k *KeySigner) Addresses() []string {
	out := make([]string, 0, len(k.keys))
	for a := range k.keys {
		out = append(out, a)
	}
	return out
}

// HasAddress reports whether k can sign for address.
func (k *KeySigner) HasAddress(address string) bool {
	_, ok := k.keys[address]
	return ok
}

func (k *KeySigner) keyFor(req *SignatureRequest) *ec.PrivateKey {
	for _, a := range req.Addresses {
		if priv, ok := k.keys[a]; ok {
			return priv
		}
	}
	return nil
}

// RequestSignatures implements Signer. Each request is signed over the
// BIP143 fork-id preimage of unsignedTxHex, which does not cover other
// inputs' unlocking scripts.
func (k *KeySigner) RequestSignatures(ctx context.Context, unsignedTxHex string, reqs []SignatureRequest) ([]SignatureResponse, error) {
	sdkTx, err := transaction.NewTransactionFromHex(unsignedTxHex)
	if err != nil {
		return nil, fmt.Errorf("parse unsigned tx: %w", err)
	}

	// Attach every known source output before hashing.
	for i := range reqs {
		req := &reqs[i]
		if req.InputIndex < 0 || req.InputIndex >= len(sdkTx.Inputs) {
			return nil, fmt.Errorf("input index %d out of range", req.InputIndex)
		}
		lockingScript, err := hex.DecodeString(req.Script)
		if err != nil {
			return nil, fmt.Errorf("input %d script: %w", req.InputIndex, err)
		}
		sdkTx.Inputs[req.InputIndex].SetSourceTxOutput(&transaction.TransactionOutput{
			Satoshis:      req.Satoshis,
			LockingScript: script.NewFromBytes(lockingScript),
		})
	}

	resps := make([]SignatureResponse, 0, len(reqs))
	for i := range reqs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req := &reqs[i]
		priv := k.keyFor(req)
		if priv == nil {
			return nil, fmt.Errorf("no key for input %d (%v)", req.InputIndex, req.Addresses)
		}

		flag := req.SigHashType
		if flag == 0 {
			flag = sighash.AllForkID
		}
		hash, err := sdkTx.CalcInputSignatureHash(uint32(req.InputIndex), flag)
		if err != nil {
			return nil, fmt.Errorf("input %d sighash: %w", req.InputIndex, err)
		}
		sig, err := priv.Sign(hash)
		if err != nil {
			return nil, fmt.Errorf("input %d sign: %w", req.InputIndex, err)
		}

		resps = append(resps, SignatureResponse{
			InputIndex:  req.InputIndex,
			Signature:   hex.EncodeToString(append(sig.Serialize(), byte(flag))),
			PublicKey:   hex.EncodeToString(priv.PubKey().Compressed()),
			SigHashType: flag,
		})
	}
	return resps, nil
}
