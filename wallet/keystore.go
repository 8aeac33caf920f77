package wallet

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
)

// SeedFileName is the encrypted seed file inside the data directory.
const SeedFileName = "wallet.enc"

// Seed file layout, integers big-endian:
//
//	magic(8) version(1) time(4) memoryKiB(4) threads(1) salt(16) nonce(12) ciphertext
//
// The key is argon2id(password, salt) with the recorded parameters and the
// ciphertext is AES-256-GCM over the seed with everything before it as
// additional data, so the parameters cannot be swapped without detection.
var seedMagic = []byte("MKTSEED\x00")

const (
	seedVersion   = 1
	seedSaltLen   = 16
	seedNonceLen  = 12
	seedKeyLen    = 32
	seedHeaderLen = 8 + 1 + 4 + 4 + 1 + seedSaltLen + seedNonceLen

	maxKDFTime      = 16
	maxKDFMemoryKiB = 1 << 20
)

// KDFParams are the argon2id cost parameters stored with a seed file.
type KDFParams struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
}

// DefaultKDFParams is used for new seed files.
var DefaultKDFParams = KDFParams{Time: 3, MemoryKiB: 64 * 1024, Threads: 4}

func (p KDFParams) valid() bool {
	return p.Time >= 1 && p.Time <= maxKDFTime &&
		p.MemoryKiB >= 8*uint32(p.Threads) && p.MemoryKiB <= maxKDFMemoryKiB &&
		p.Threads >= 1
}

// EncryptSeed seals seed under password with DefaultKDFParams.
func EncryptSeed(seed []byte, password string) ([]byte, error) {
	return sealSeed(seed, password, DefaultKDFParams)
}

func sealSeed(seed []byte, password string, p KDFParams) ([]byte, error) {
	if len(seed) == 0 {
		return nil, ErrInvalidSeed
	}
	if password == "" {
		return nil, ErrEmptyPassword
	}
	if !p.valid() {
		return nil, fmt.Errorf("%w: kdf parameters %+v", ErrUnsupportedSeedFile, p)
	}

	header := make([]byte, 0, seedHeaderLen)
	header = append(header, seedMagic...)
	header = append(header, seedVersion)
	header = binary.BigEndian.AppendUint32(header, p.Time)
	header = binary.BigEndian.AppendUint32(header, p.MemoryKiB)
	header = append(header, p.Threads)
	random := make([]byte, seedSaltLen+seedNonceLen)
	if _, err := rand.Read(random); err != nil {
		return nil, fmt.Errorf("wallet: read random: %w", err)
	}
	header = append(header, random...)
	salt := header[seedHeaderLen-seedNonceLen-seedSaltLen : seedHeaderLen-seedNonceLen]
	nonce := header[seedHeaderLen-seedNonceLen:]

	gcm, err := seedCipher(password, salt, p)
	if err != nil {
		return nil, err
	}
	return append(header, gcm.Seal(nil, nonce, seed, header)...), nil
}

// DecryptSeed opens a seed file produced by EncryptSeed. A wrong password
// and a damaged file both give ErrDecryptionFailed.
func DecryptSeed(data []byte, password string) ([]byte, error) {
	if len(data) < len(seedMagic) || !bytes.Equal(data[:len(seedMagic)], seedMagic) {
		return nil, fmt.Errorf("%w: not a seed file", ErrUnsupportedSeedFile)
	}
	if len(data) < seedHeaderLen {
		return nil, fmt.Errorf("%w: truncated header", ErrDecryptionFailed)
	}
	if v := data[len(seedMagic)]; v != seedVersion {
		return nil, fmt.Errorf("%w: version %d", ErrUnsupportedSeedFile, v)
	}

	rest := data[len(seedMagic)+1:]
	p := KDFParams{
		Time:      binary.BigEndian.Uint32(rest[0:4]),
		MemoryKiB: binary.BigEndian.Uint32(rest[4:8]),
		Threads:   rest[8],
	}
	if !p.valid() {
		return nil, fmt.Errorf("%w: kdf parameters %+v", ErrUnsupportedSeedFile, p)
	}
	header := data[:seedHeaderLen]
	salt := header[seedHeaderLen-seedNonceLen-seedSaltLen : seedHeaderLen-seedNonceLen]
	nonce := header[seedHeaderLen-seedNonceLen:]

	gcm, err := seedCipher(password, salt, p)
	if err != nil {
		return nil, err
	}
	seed, err := gcm.Open(nil, nonce, data[seedHeaderLen:], header)
	if err != nil || len(seed) == 0 {
		return nil, ErrDecryptionFailed
	}
	return seed, nil
}

func seedCipher(password string, salt []byte, p KDFParams) (cipher.AEAD, error) {
	key := argon2.IDKey([]byte(password), salt, p.Time, p.MemoryKiB, p.Threads, seedKeyLen)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("wallet: seed cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, seedNonceLen)
	if err != nil {
		return nil, fmt.Errorf("wallet: seed cipher: %w", err)
	}
	return gcm, nil
}

// SaveSeedFile encrypts seed with password and writes it to path with
// owner-only permissions. It refuses to overwrite an existing file.
func SaveSeedFile(path string, seed []byte, password string) error {
	sealed, err := EncryptSeed(seed, password)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("wallet: create directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %s", ErrSeedFileExists, path)
	}
	if err != nil {
		return fmt.Errorf("wallet: create seed file: %w", err)
	}
	if _, err := f.Write(sealed); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("wallet: write seed file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("wallet: sync seed file: %w", err)
	}
	return f.Close()
}

// LoadSeedFile reads and decrypts the seed stored at path.
func LoadSeedFile(path, password string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSeedFileNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("wallet: read seed file: %w", err)
	}
	return DecryptSeed(data, password)
}
