package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func testKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestProviderRoundTrip(t *testing.T) {
	p, err := NewProvider(testKey())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	plaintext := []byte("markdown body")
	blob, err := p.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if blob.Equal(plaintext) {
		t.Error("ciphertext must differ from plaintext")
	}

	back, err := p.Decrypt(blob)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if !bytes.Equal(back, plaintext) {
		t.Errorf("round trip changed %q to %q", plaintext, back)
	}
}

func TestProviderNonceVariesPerEncrypt(t *testing.T) {
	p, _ := NewProvider(testKey())

	a, _ := p.Encrypt([]byte("same input"))
	b, _ := p.Encrypt([]byte("same input"))
	if a.Equal(b) {
		t.Error("two encryptions of the same input must not produce the same blob")
	}
}

func TestProviderTamperedBlob(t *testing.T) {
	p, _ := NewProvider(testKey())

	blob, _ := p.Encrypt([]byte("content"))
	blob[len(blob)-1] ^= 0xff

	_, err := p.Decrypt(blob)
	var decErr *DecryptionError
	if !errors.As(err, &decErr) {
		t.Errorf("expected DecryptionError for tampered blob, got %v", err)
	}
}

func TestProviderShortBlob(t *testing.T) {
	p, _ := NewProvider(testKey())

	_, err := p.Decrypt([]byte("tiny"))
	var decErr *DecryptionError
	if !errors.As(err, &decErr) {
		t.Errorf("expected DecryptionError for truncated blob, got %v", err)
	}
}

func TestProviderRejectsBadKeySize(t *testing.T) {
	if _, err := NewProvider([]byte("short")); err == nil {
		t.Error("expected error for undersized key")
	}
}
