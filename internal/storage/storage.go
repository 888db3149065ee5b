package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key doesn't exist
var ErrNotFound = errors.New("key not found")

// Store is a string key-value store. Durable storage holds tokens and the
// legacy mirror; session storage holds per-login transient state.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Delete is a no-op for missing keys
	Delete(ctx context.Context, key string) error
	// Keys lists keys starting with prefix, in no particular order
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// Expirer is implemented by stores that can drop stale entries
type Expirer interface {
	DeleteOlderThan(ctx context.Context, age time.Duration) (int, error)
}

// DeletePrefix removes every key starting with prefix and returns how many
// were removed. It stops at the first failure.
func DeletePrefix(ctx context.Context, s Store, prefix string) (int, error) {
	keys, err := s.Keys(ctx, prefix)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, k := range keys {
		if err := s.Delete(ctx, k); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
