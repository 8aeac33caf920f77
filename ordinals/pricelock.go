package ordinals

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/bsv-blockchain/go-sdk/script"

	"github.com/bitfsorg/libmarket-go/tx"
)

// PubKeyHashLen is the length of a HASH160 public key hash.
const PubKeyHashLen = 20

// Template is the compiled price-lock contract, split around its two
// parameters:
//
//	<Prefix> <sellerPKH> <payOutput> <Suffix>
//
// payOutput is a serialized transaction output (8-byte LE amount, varint
// length, P2PKH script) that a purchase must reproduce. The seller can
// cancel by signing with the key behind sellerPKH.
type Template struct {
	Prefix []byte
	Suffix []byte

	// Testnet selects the address encoding used by ParsePriceLock.
	Testnet bool
}

// NewTemplateFromHex decodes the prefix and suffix bytecode.
func NewTemplateFromHex(prefixHex, suffixHex string, testnet bool) (*Template, error) {
	prefix, err := hex.DecodeString(prefixHex)
	if err != nil {
		return nil, fmt.Errorf("%w: prefix: %w", ErrNoTemplate, err)
	}
	suffix, err := hex.DecodeString(suffixHex)
	if err != nil {
		return nil, fmt.Errorf("%w: suffix: %w", ErrNoTemplate, err)
	}
	if len(prefix) == 0 || len(suffix) == 0 {
		return nil, ErrNoTemplate
	}
	return &Template{Prefix: prefix, Suffix: suffix, Testnet: testnet}, nil
}

// PriceLock holds the parameters recovered from a price-lock script.
type PriceLock struct {
	SellerPKH      []byte
	SellerAddress  string
	PaymentScript  []byte
	PaymentAddress string
	Price          uint64
}

// PriceLockScript builds the listing script. It implements tx.PriceLocker.
func (t *Template) PriceLockScript(sellerAddress, paymentAddress string, priceSatoshis uint64) ([]byte, error) {
	if t == nil || len(t.Prefix) == 0 || len(t.Suffix) == 0 {
		return nil, ErrNoTemplate
	}
	seller, err := script.NewAddressFromString(sellerAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: seller %q: %w", ErrInvalidAddress, sellerAddress, err)
	}
	payScript, err := tx.BuildP2PKHLock(paymentAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: payment %q: %w", ErrInvalidAddress, paymentAddress, err)
	}

	payOutput, err := encodeOutput(priceSatoshis, payScript)
	if err != nil {
		return nil, err
	}

	s := &script.Script{}
	*s = append(*s, t.Prefix...)
	if err := s.AppendPushData([]byte(seller.PublicKeyHash)); err != nil {
		return nil, fmt.Errorf("%w: seller push: %w", tx.ErrScriptBuild, err)
	}
	if err := s.AppendPushData(payOutput); err != nil {
		return nil, fmt.Errorf("%w: payment output push: %w", tx.ErrScriptBuild, err)
	}
	*s = append(*s, t.Suffix...)
	return []byte(*s), nil
}

// ParsePriceLock recovers the seller, payment destination and price from a
// script built by PriceLockScript.
func (t *Template) ParsePriceLock(lock []byte) (*PriceLock, error) {
	if t == nil || len(t.Prefix) == 0 || len(t.Suffix) == 0 {
		return nil, ErrNoTemplate
	}
	if len(lock) < len(t.Prefix)+len(t.Suffix) ||
		!bytes.HasPrefix(lock, t.Prefix) || !bytes.HasSuffix(lock, t.Suffix) {
		return nil, ErrNotPriceLock
	}

	params := lock[len(t.Prefix) : len(lock)-len(t.Suffix)]
	chunks, err := script.NewFromBytes(params).Chunks()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotPriceLock, err)
	}
	if len(chunks) != 2 {
		return nil, fmt.Errorf("%w: expected 2 parameters, got %d", ErrNotPriceLock, len(chunks))
	}
	if len(chunks[0].Data) != PubKeyHashLen {
		return nil, fmt.Errorf("%w: seller hash must be %d bytes", ErrNotPriceLock, PubKeyHashLen)
	}

	price, payScript, err := decodeOutput(chunks[1].Data)
	if err != nil {
		return nil, err
	}
	payPKH, err := script.NewFromBytes(payScript).PublicKeyHash()
	if err != nil {
		return nil, fmt.Errorf("%w: payment script is not P2PKH: %w", ErrNotPriceLock, err)
	}

	sellerAddr, err := script.NewAddressFromPublicKeyHash(chunks[0].Data, !t.Testnet)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	payAddr, err := script.NewAddressFromPublicKeyHash(payPKH, !t.Testnet)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}

	return &PriceLock{
		SellerPKH:      chunks[0].Data,
		SellerAddress:  sellerAddr.AddressString,
		PaymentScript:  payScript,
		PaymentAddress: payAddr.AddressString,
		Price:          price,
	}, nil
}

func encodeOutput(satoshis uint64, lockingScript []byte) ([]byte, error) {
	l, err := tx.EncodeVarInt(uint64(len(lockingScript)))
	if err != nil {
		return nil, err
	}
	out := binary.LittleEndian.AppendUint64(make([]byte, 0, 8+len(l)+len(lockingScript)), satoshis)
	out = append(out, l...)
	return append(out, lockingScript...), nil
}

func decodeOutput(b []byte) (uint64, []byte, error) {
	if len(b) < 9 {
		return 0, nil, fmt.Errorf("%w: payment output too short", ErrNotPriceLock)
	}
	satoshis := binary.LittleEndian.Uint64(b[:8])
	l, n, err := tx.DecodeVarInt(b, 8)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", ErrNotPriceLock, err)
	}
	if uint64(len(b)-8-n) != l {
		return 0, nil, fmt.Errorf("%w: payment script length mismatch", ErrNotPriceLock)
	}
	return satoshis, b[8+n:], nil
}
