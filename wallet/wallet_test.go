package wallet

import (
	"encoding/binary"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const abandonMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

// testKDF keeps argon2 cheap in tests.
var testKDF = KDFParams{Time: 1, MemoryKiB: 64, Threads: 1}

func TestGenerateMnemonic_WordCounts(t *testing.T) {
	for _, n := range MnemonicWordCounts {
		m, err := GenerateMnemonic(n)
		require.NoError(t, err, n)
		assert.Len(t, strings.Fields(m), n)
		assert.True(t, ValidateMnemonic(m))
	}

	for _, n := range []int{0, 11, 13, 27, 128} {
		_, err := GenerateMnemonic(n)
		assert.ErrorIs(t, err, ErrInvalidWordCount, n)
	}
}

func TestGenerateMnemonic_Unique(t *testing.T) {
	m1, err := GenerateMnemonic(12)
	require.NoError(t, err)
	m2, err := GenerateMnemonic(12)
	require.NoError(t, err)
	assert.NotEqual(t, m1, m2)
}

func TestValidateMnemonic(t *testing.T) {
	tests := []struct {
		name     string
		mnemonic string
		valid    bool
	}{
		{"valid", abandonMnemonic, true},
		{"pasted across lines", "  Abandon abandon abandon abandon\nabandon abandon abandon abandon\tabandon abandon abandon ABOUT ", true},
		{"bad checksum", strings.Repeat("abandon ", 12), false},
		{"not words", "foo bar baz qux quux corge grault garply waldo fred plugh xyzzy", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidateMnemonic(tt.mnemonic))
		})
	}
}

func TestSeedFromMnemonic_Vector(t *testing.T) {
	seed, err := SeedFromMnemonic(abandonMnemonic, "TREZOR")
	require.NoError(t, err)
	assert.Equal(t, "c55257c360c07c72029aebc1b53c05ed0362ada38ead3e3e9efa3708e53495531f09a6987599d18264c1e1c92f2cf141630c7a3c4ab7c81b2f001698e7463b04",
		hex.EncodeToString(seed))

	messy, err := SeedFromMnemonic("  "+strings.ToUpper(abandonMnemonic)+"\n", "TREZOR")
	require.NoError(t, err)
	assert.Equal(t, seed, messy, "normalization must not change the seed")

	other, err := SeedFromMnemonic(abandonMnemonic, "")
	require.NoError(t, err)
	assert.NotEqual(t, seed, other)

	_, err = SeedFromMnemonic("invalid mnemonic words here", "")
	assert.ErrorIs(t, err, ErrInvalidMnemonic)
}

// --- Seed file encryption ---

func testSeed() []byte {
	seed := make([]byte, 64)
	for i := range seed {
		seed[i] = byte(i)
	}
	return seed
}

func TestSealSeed_RoundTrip(t *testing.T) {
	sealed, err := sealSeed(testSeed(), "pw", testKDF)
	require.NoError(t, err)
	assert.Equal(t, seedMagic, sealed[:len(seedMagic)])
	assert.Equal(t, byte(seedVersion), sealed[len(seedMagic)])
	assert.Len(t, sealed, seedHeaderLen+64+16)

	got, err := DecryptSeed(sealed, "pw")
	require.NoError(t, err)
	assert.Equal(t, testSeed(), got)

	_, err = DecryptSeed(sealed, "wrong")
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestSealSeed_FreshSaltAndNonce(t *testing.T) {
	a, err := sealSeed(testSeed(), "pw", testKDF)
	require.NoError(t, err)
	b, err := sealSeed(testSeed(), "pw", testKDF)
	require.NoError(t, err)
	assert.NotEqual(t, a[seedHeaderLen-seedNonceLen-seedSaltLen:seedHeaderLen], b[seedHeaderLen-seedNonceLen-seedSaltLen:seedHeaderLen])
	assert.NotEqual(t, a, b)
}

func TestSealSeed_Rejects(t *testing.T) {
	_, err := sealSeed(nil, "pw", testKDF)
	assert.ErrorIs(t, err, ErrInvalidSeed)
	_, err = sealSeed(testSeed(), "", testKDF)
	assert.ErrorIs(t, err, ErrEmptyPassword)
	_, err = sealSeed(testSeed(), "pw", KDFParams{Time: 1, MemoryKiB: 64, Threads: 0})
	assert.ErrorIs(t, err, ErrUnsupportedSeedFile)
}

func TestDecryptSeed_TamperedHeader(t *testing.T) {
	sealed, err := sealSeed(testSeed(), "pw", testKDF)
	require.NoError(t, err)

	tests := []struct {
		name    string
		offset  int
		wantErr error
	}{
		{"magic", 0, ErrUnsupportedSeedFile},
		{"version", len(seedMagic), ErrUnsupportedSeedFile},
		{"kdf time", len(seedMagic) + 4, ErrDecryptionFailed},
		{"salt", seedHeaderLen - seedNonceLen - 1, ErrDecryptionFailed},
		{"nonce", seedHeaderLen - 1, ErrDecryptionFailed},
		{"ciphertext", seedHeaderLen, ErrDecryptionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := append([]byte(nil), sealed...)
			bad[tt.offset] ^= 0x02
			_, err := DecryptSeed(bad, "pw")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDecryptSeed_OutOfRangeCost(t *testing.T) {
	sealed, err := sealSeed(testSeed(), "pw", testKDF)
	require.NoError(t, err)
	// Memory field set to 4 GiB.
	binary.BigEndian.PutUint32(sealed[len(seedMagic)+5:], 1<<22)
	_, err = DecryptSeed(sealed, "pw")
	assert.ErrorIs(t, err, ErrUnsupportedSeedFile)
}

func TestDecryptSeed_Truncated(t *testing.T) {
	sealed, err := sealSeed(testSeed(), "pw", testKDF)
	require.NoError(t, err)

	_, err = DecryptSeed([]byte{0x01, 0x02, 0x03}, "pw")
	assert.ErrorIs(t, err, ErrUnsupportedSeedFile)
	_, err = DecryptSeed(sealed[:seedHeaderLen-1], "pw")
	assert.ErrorIs(t, err, ErrDecryptionFailed)
	_, err = DecryptSeed(sealed[:seedHeaderLen+8], "pw")
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

// --- HD Key Derivation tests ---

func abandonSeed(t *testing.T) []byte {
	t.Helper()
	seed, err := SeedFromMnemonic(abandonMnemonic, "")
	require.NoError(t, err)
	return seed
}

func newTestWallet(t *testing.T) *Wallet {
	t.Helper()
	w, err := NewWallet(abandonSeed(t), MainNet)
	require.NoError(t, err)
	return w
}


func TestNewWallet_EmptySeed(t *testing.T) {
	_, err := NewWallet([]byte{}, nil)
	assert.ErrorIs(t, err, ErrInvalidSeed)

	_, err = NewWallet(nil, MainNet)
	assert.ErrorIs(t, err, ErrInvalidSeed)
}

func TestNewWallet_DefaultsToMainnet(t *testing.T) {
	w, err := NewWallet(abandonSeed(t), nil)
	require.NoError(t, err)
	assert.Same(t, MainNet, w.Network())
}

func TestDerivePaymentKey(t *testing.T) {
	w := newTestWallet(t)

	kp, err := w.DerivePaymentKey(ExternalChain, 0)
	require.NoError(t, err)
	assert.NotNil(t, kp.PrivateKey)
	assert.NotNil(t, kp.PublicKey)
	assert.Equal(t, "m/44'/236'/0'/0/0", kp.Path)
	assert.True(t, strings.HasPrefix(kp.Address, "1"), "mainnet P2PKH address")

	change, err := w.DerivePaymentKey(InternalChain, 0)
	require.NoError(t, err)
	assert.Equal(t, "m/44'/236'/0'/1/0", change.Path)
	assert.NotEqual(t, kp.PublicKey.Compressed(), change.PublicKey.Compressed())
}

func TestDeriveKey_Deterministic(t *testing.T) {
	w1 := newTestWallet(t)
	w2 := newTestWallet(t)

	kp1, err := w1.DerivePaymentKey(ExternalChain, 5)
	require.NoError(t, err)
	kp2, err := w2.DerivePaymentKey(ExternalChain, 5)
	require.NoError(t, err)

	assert.Equal(t, kp1.PublicKey.Compressed(), kp2.PublicKey.Compressed())
	assert.Equal(t, kp1.Address, kp2.Address)
}

func TestDeriveKey_AccountsAreDistinct(t *testing.T) {
	w := newTestWallet(t)

	payment, err := w.DerivePaymentKey(ExternalChain, 0)
	require.NoError(t, err)
	ordinal, err := w.DeriveOrdinalKey(0)
	require.NoError(t, err)
	identity, err := w.DeriveIdentityKey()
	require.NoError(t, err)

	assert.Equal(t, "m/44'/236'/1'/0/0", ordinal.Path)
	assert.Equal(t, "m/44'/236'/2'/0/0", identity.Path)
	assert.NotEqual(t, payment.Address, ordinal.Address)
	assert.NotEqual(t, ordinal.Address, identity.Address)
}

func TestDeriveKey_OutOfRange(t *testing.T) {
	w := newTestWallet(t)

	_, err := w.DeriveKey(PaymentAccount, ExternalChain, MaxIndex+1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	_, err = w.DeriveKey(MaxIndex+1, ExternalChain, 0)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	_, err = w.DeriveKey(PaymentAccount, 2, 0)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestDeriveKey_TestnetAddress(t *testing.T) {
	w, err := NewWallet(abandonSeed(t), RegTest)
	require.NoError(t, err)

	kp, err := w.DerivePaymentKey(ExternalChain, 0)
	require.NoError(t, err)
	assert.True(t, kp.Address[0] == 'm' || kp.Address[0] == 'n', "testnet address %s", kp.Address)
}

func TestFormatPath(t *testing.T) {
	assert.Equal(t, "m", formatPath(nil))
	assert.Equal(t, "m/44'/236'/7'/1/42", formatPath([]uint32{44 + Hardened, 236 + Hardened, 7 + Hardened, 1, 42}))
}

// --- Network tests ---

func TestGetNetwork(t *testing.T) {
	for _, name := range []string{"mainnet", "testnet", "regtest"} {
		n, err := GetNetwork(name)
		require.NoError(t, err)
		assert.Equal(t, name, n.Name)
	}
	n, err := GetNetwork("RegTest")
	require.NoError(t, err)
	assert.Same(t, RegTest, n)
	_, err = GetNetwork("moonnet")
	assert.ErrorIs(t, err, ErrInvalidNetwork)

	assert.True(t, MainNet.IsMainnet())
	assert.False(t, TestNet.IsMainnet())
	assert.False(t, (*Network)(nil).IsMainnet())
}

// --- Seed file tests ---

func TestSeedFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", SeedFileName)
	seed := []byte("0123456789abcdef0123456789abcdef")

	require.NoError(t, SaveSeedFile(path, seed, "pw"))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	got, err := LoadSeedFile(path, "pw")
	require.NoError(t, err)
	assert.Equal(t, seed, got)

	_, err = LoadSeedFile(path, "wrong")
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	err = SaveSeedFile(path, []byte("other"), "pw")
	assert.ErrorIs(t, err, ErrSeedFileExists)
	got, err = LoadSeedFile(path, "pw")
	require.NoError(t, err)
	assert.Equal(t, seed, got, "existing file is left alone")
}

func TestLoadSeedFile_Missing(t *testing.T) {
	_, err := LoadSeedFile(filepath.Join(t.TempDir(), SeedFileName), "pw")
	assert.ErrorIs(t, err, ErrSeedFileNotFound)
}
