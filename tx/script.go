package tx

import (
	"fmt"

	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction/template/p2pkh"
)

// CompressedPubKeyLen is the length of a compressed public key.
const CompressedPubKeyLen = 33

// PriceLocker builds a price-locking script for a listing. Implementations
// are pure functions of their arguments.
type PriceLocker interface {
	PriceLockScript(sellerAddress, paymentAddress string, priceSatoshis uint64) ([]byte, error)
}

// BuildP2PKHLock returns the P2PKH locking script paying to address.
func BuildP2PKHLock(address string) ([]byte, error) {
	addr, err := script.NewAddressFromString(address)
	if err != nil {
		return nil, fmt.Errorf("%w: address %q: %w", ErrScriptBuild, address, err)
	}
	lockScript, err := p2pkh.Lock(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: P2PKH lock: %w", ErrScriptBuild, err)
	}
	return []byte(*lockScript), nil
}

// BuildP2PKHUnlock returns push(sig) push(pubKey). sig carries the trailing
// sighash byte.
func BuildP2PKHUnlock(sig, pubKey []byte) ([]byte, error) {
	if len(sig) == 0 {
		return nil, fmt.Errorf("%w: empty signature", ErrScriptBuild)
	}
	if len(pubKey) == 0 {
		return nil, fmt.Errorf("%w: empty public key", ErrScriptBuild)
	}
	s := &script.Script{}
	if err := s.AppendPushData(sig); err != nil {
		return nil, fmt.Errorf("%w: signature push: %w", ErrScriptBuild, err)
	}
	if err := s.AppendPushData(pubKey); err != nil {
		return nil, fmt.Errorf("%w: public key push: %w", ErrScriptBuild, err)
	}
	return []byte(*s), nil
}

// BuildListingLock builds the locking script placed at output 0 of a listing.
// The listing transaction spends the asset as input 0 and a funding UTXO as
// input 1, with change at output 1.
func BuildListingLock(locker PriceLocker, sellerAddress, paymentAddress string, priceSatoshis uint64) ([]byte, error) {
	if locker == nil {
		return nil, fmt.Errorf("%w: price locker", ErrNilParam)
	}
	if priceSatoshis == 0 {
		return nil, fmt.Errorf("%w: listing price must be positive", ErrInvalidParams)
	}
	s, err := locker.PriceLockScript(sellerAddress, paymentAddress, priceSatoshis)
	if err != nil {
		return nil, fmt.Errorf("%w: listing lock: %w", ErrScriptBuild, err)
	}
	if len(s) == 0 {
		return nil, fmt.Errorf("%w: listing lock is empty", ErrScriptBuild)
	}
	return s, nil
}
