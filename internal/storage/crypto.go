package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"github.com/rowan/backstop/internal/core/domain"
)

const KeySize = 32

// LoadKey reads a hex-encoded 32-byte key from a key file written by keygen.
func LoadKey(keyFile string) ([]byte, error) {
	data, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("key file is not valid hex: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	return key, nil
}

// DeriveKey derives an archive key from a passphrase with scrypt. The salt is
// stored alongside the key material by the caller.
func DeriveKey(passphrase, salt []byte) ([]byte, error) {
	key, err := scrypt.Key(passphrase, salt, 1<<15, 8, 1, KeySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}

// WriteKeyFile persists a key hex-encoded with restrictive permissions.
func WriteKeyFile(keyFile string, key []byte) error {
	if err := os.WriteFile(keyFile, []byte(hex.EncodeToString(key)+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}

func newAEAD(algorithm domain.EncryptionAlgorithm, key []byte) (cipher.AEAD, error) {
	switch algorithm {
	case domain.EncryptionAlgorithmAESGCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	case domain.EncryptionAlgorithmChaCha20:
		return chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("unsupported encryption algorithm: %s", algorithm)
	}
}

// Seal encrypts plaintext, prefixing the random nonce.
func Seal(plaintext []byte, algorithm domain.EncryptionAlgorithm, key []byte) ([]byte, error) {
	aead, err := newAEAD(algorithm, key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a payload produced by Seal.
func Open(sealed []byte, algorithm domain.EncryptionAlgorithm, key []byte) ([]byte, error) {
	aead, err := newAEAD(algorithm, key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, fmt.Errorf("encrypted payload too short")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt payload: %w", err)
	}
	return plaintext, nil
}
