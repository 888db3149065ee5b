package crypto

import (
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrDecrypt is returned when a ciphertext is malformed or was tampered with
var ErrDecrypt = errors.New("failed to decrypt value")

// Encryptor seals short string values for storage at rest
type Encryptor interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

type xchachaEncryptor struct {
	aead cipher.AEAD
}

// NewEncryptor returns an XChaCha20-Poly1305 encryptor. The key must be 32 bytes.
func NewEncryptor(key []byte) (Encryptor, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return &xchachaEncryptor{aead: aead}, nil
}

// Encrypt returns base64url(nonce || sealed)
func (e *xchachaEncryptor) Encrypt(plaintext string) (string, error) {
	nonce, err := RandomBytes(e.aead.NonceSize())
	if err != nil {
		return "", err
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (e *xchachaEncryptor) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	ns := e.aead.NonceSize()
	if len(raw) < ns+e.aead.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}
	plain, err := e.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return string(plain), nil
}
