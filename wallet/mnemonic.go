// Package wallet holds the keys of a market participant: a BIP39 mnemonic,
// the BIP32 tree derived from it, the encrypted seed file, and Local, the
// node-backed wallet the transaction flows run against.
//
// Keys live at m/44'/236'/{account}'/{chain}/{index}. Account 0 holds
// payment funds, account 1 ordinal assets and account 2 the identity key.
package wallet

import (
	"fmt"
	"strings"

	"github.com/bsv-blockchain/go-sdk/compat/bip39"
)

// MnemonicWordCounts are the BIP39 sentence lengths GenerateMnemonic accepts.
var MnemonicWordCounts = []int{12, 15, 18, 21, 24}

// GenerateMnemonic returns a fresh mnemonic of the given number of words.
// Every three words carry 32 bits of entropy.
func GenerateMnemonic(words int) (string, error) {
	if words%3 != 0 || words < 12 || words > 24 {
		return "", fmt.Errorf("%w: %d", ErrInvalidWordCount, words)
	}
	entropy, err := bip39.NewEntropy(words / 3 * 32)
	if err != nil {
		return "", fmt.Errorf("wallet: entropy: %w", err)
	}
	m, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("wallet: mnemonic: %w", err)
	}
	return m, nil
}

// NormalizeMnemonic lowercases m and collapses runs of whitespace, so a
// phrase pasted across lines or with double spaces derives the same seed.
func NormalizeMnemonic(m string) string {
	return strings.Join(strings.Fields(strings.ToLower(m)), " ")
}

// ValidateMnemonic reports whether m, once normalized, is a BIP39 sentence
// with a correct checksum.
func ValidateMnemonic(m string) bool {
	return bip39.IsMnemonicValid(NormalizeMnemonic(m))
}

// SeedFromMnemonic returns the 64-byte BIP39 seed for m. An empty
// passphrase is valid and yields a different seed from any other.
func SeedFromMnemonic(m, passphrase string) ([]byte, error) {
	m = NormalizeMnemonic(m)
	if !bip39.IsMnemonicValid(m) {
		return nil, ErrInvalidMnemonic
	}
	seed, err := bip39.NewSeedWithErrorChecking(m, passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMnemonic, err)
	}
	return seed, nil
}
