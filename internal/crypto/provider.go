package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/rghv234/wolffia/internal/domain"
)

// DecryptionError marks a blob that could not be opened. It is treated as
// per-document corruption: surfaced for that document, never fatal to a
// reconciliation pass.
type DecryptionError struct {
	Err error
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("decryption failure: %v", e.Err)
}

func (e *DecryptionError) Unwrap() error { return e.Err }

// Provider is the opaque encrypt/decrypt capability consumed at the edges.
// The sync engine itself never inspects plaintext; it only compares blobs
// for byte equality.
type Provider interface {
	Encrypt(plaintext []byte) (domain.Blob, error)
	Decrypt(blob domain.Blob) ([]byte, error)
}

type aeadProvider struct {
	key []byte
}

// NewProvider returns a chacha20poly1305 provider. The key comes from the
// user's unlocked keychain; key derivation happens upstream.
func NewProvider(key []byte) (Provider, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &aeadProvider{key: key}, nil
}

func (p *aeadProvider) Encrypt(plaintext []byte) (domain.Blob, error) {
	aead, err := chacha20poly1305.NewX(p.key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (p *aeadProvider) Decrypt(blob domain.Blob) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(p.key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}

	if len(blob) < aead.NonceSize() {
		return nil, &DecryptionError{Err: fmt.Errorf("blob shorter than nonce")}
	}

	nonce, ciphertext := blob[:aead.NonceSize()], blob[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, &DecryptionError{Err: err}
	}

	return plaintext, nil
}
