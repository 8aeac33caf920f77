package wallet

import "errors"

var (
	// ErrInvalidMnemonic indicates the mnemonic fails BIP39 validation.
	ErrInvalidMnemonic = errors.New("wallet: invalid BIP39 mnemonic")

	// ErrInvalidWordCount indicates a mnemonic length BIP39 does not define.
	ErrInvalidWordCount = errors.New("wallet: mnemonic must have 12, 15, 18, 21 or 24 words")

	// ErrIndexOutOfRange indicates a derivation index exceeds BIP32 non-hardened max.
	ErrIndexOutOfRange = errors.New("wallet: derivation index out of range")

	// ErrDecryptionFailed indicates wrong password or corrupted wallet data.
	ErrDecryptionFailed = errors.New("wallet: seed decryption failed (wrong password or corrupted data)")

	// ErrUnsupportedSeedFile indicates a seed file in an unknown format or
	// with out-of-range key derivation parameters.
	ErrUnsupportedSeedFile = errors.New("wallet: unsupported seed file")

	// ErrEmptyPassword indicates an attempt to seal a seed without a password.
	ErrEmptyPassword = errors.New("wallet: empty seed password")

	// ErrInvalidNetwork indicates unknown network name with no custom config.
	ErrInvalidNetwork = errors.New("wallet: invalid network name")

	// ErrInvalidSeed indicates the seed is empty or invalid.
	ErrInvalidSeed = errors.New("wallet: invalid seed")

	// ErrDerivationFailed indicates BIP32 key derivation failed.
	ErrDerivationFailed = errors.New("wallet: key derivation failed")

	// ErrSeedFileExists indicates an encrypted seed file is already present.
	ErrSeedFileExists = errors.New("wallet: seed file already exists")

	// ErrInvalidOutpoint indicates an outpoint not of the form "txid:vout".
	ErrInvalidOutpoint = errors.New("wallet: invalid outpoint")

	// ErrNotOwned indicates an output not locked to a wallet address.
	ErrNotOwned = errors.New("wallet: output not held by this wallet")

	// ErrUtxoMismatch indicates the node's copy of an output differs from
	// the one the caller is about to spend.
	ErrUtxoMismatch = errors.New("wallet: utxo differs from node")

	// ErrSeedFileNotFound indicates no encrypted seed file at the given path.
	ErrSeedFileNotFound = errors.New("wallet: seed file not found")
)
