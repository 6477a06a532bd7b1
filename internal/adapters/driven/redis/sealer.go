package redis

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

const (
	sealVersion   = 0x01
	sealNonceSize = 12
	sealKeySize   = 32
)

var (
	ErrInvalidKeySize     = errors.New("encryption key must be 32 bytes")
	ErrSealedTooShort     = errors.New("sealed value is too short")
	ErrUnsupportedVersion = errors.New("unsupported sealed value version")
	ErrOpenFailed         = errors.New("failed to open sealed value")
)

// Sealer encrypts values stored in Redis with AES-256-GCM.
// Layout: version(1) || nonce(12) || ciphertext.
type Sealer struct {
	gcm cipher.AEAD
}

// NewSealer creates a sealer from a 32-byte key.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != sealKeySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Sealer{gcm: gcm}, nil
}

// Seal encrypts plaintext.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, sealNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	out := make([]byte, 0, 1+sealNonceSize+len(plaintext)+s.gcm.Overhead())
	out = append(out, sealVersion)
	out = append(out, nonce...)
	return s.gcm.Seal(out, nonce, plaintext, nil), nil
}

// Open decrypts a value produced by Seal.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < 1+sealNonceSize+s.gcm.Overhead() {
		return nil, ErrSealedTooShort
	}
	if sealed[0] != sealVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, sealed[0])
	}
	plaintext, err := s.gcm.Open(nil, sealed[1:1+sealNonceSize], sealed[1+sealNonceSize:], nil)
	if err != nil {
		return nil, ErrOpenFailed
	}
	return plaintext, nil
}
