package storage

import (
	"context"
	"fmt"

	"github.com/dgellow/minidp/internal/crypto"
)

var _ Store = (*EncryptedStore)(nil)

// EncryptedStore seals values before handing them to the inner store.
// Keys stay in the clear so prefix listing keeps working.
type EncryptedStore struct {
	inner     Store
	encryptor crypto.Encryptor
}

// NewEncryptedStore wraps inner
func NewEncryptedStore(inner Store, encryptor crypto.Encryptor) (*EncryptedStore, error) {
	if encryptor == nil {
		return nil, fmt.Errorf("encryptor is required")
	}
	return &EncryptedStore{inner: inner, encryptor: encryptor}, nil
}

// Inner returns the wrapped store
func (s *EncryptedStore) Inner() Store {
	return s.inner
}

// Plain returns the store under any encryption wrapper, for values that
// other readers must see in the clear
func Plain(s Store) Store {
	if enc, ok := s.(*EncryptedStore); ok {
		return enc.inner
	}
	return s
}

func (s *EncryptedStore) Get(ctx context.Context, key string) (string, error) {
	sealed, err := s.inner.Get(ctx, key)
	if err != nil {
		return "", err
	}
	plain, err := s.encryptor.Decrypt(sealed)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt %s: %w", key, err)
	}
	return plain, nil
}

func (s *EncryptedStore) Set(ctx context.Context, key, value string) error {
	sealed, err := s.encryptor.Encrypt(value)
	if err != nil {
		return fmt.Errorf("failed to encrypt %s: %w", key, err)
	}
	return s.inner.Set(ctx, key, sealed)
}

func (s *EncryptedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

func (s *EncryptedStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.Keys(ctx, prefix)
}

func (s *EncryptedStore) Close() error {
	return s.inner.Close()
}
