package storage

import (
	"context"
	"fmt"

	"github.com/dgellow/minidp/internal/config"
	"github.com/dgellow/minidp/internal/crypto"
	"github.com/dgellow/minidp/internal/log"
)

// OpenDurable builds the durable store described by cfg, wrapped in an
// EncryptedStore when an encryption key is configured
func OpenDurable(ctx context.Context, cfg config.DurableStorageConfig) (Store, error) {
	var store Store
	var err error

	switch cfg.Kind {
	case config.StorageKindMemory, "":
		store = NewMemoryStore()
	case config.StorageKindFile:
		store, err = NewFileStore(cfg.Path)
	case config.StorageKindSQLite:
		store, err = NewSQLiteStore(ctx, cfg.Path)
	case config.StorageKindRedis:
		store, err = NewRedisStore(ctx, string(cfg.RedisURL), cfg.Collection)
	case config.StorageKindFirestore:
		store, err = NewFirestoreStore(ctx, cfg.GCPProject, cfg.Database, cfg.Collection)
	default:
		return nil, fmt.Errorf("unknown durable storage kind: %s", cfg.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Kind, err)
	}

	if cfg.EncryptionKey == "" {
		return store, nil
	}
	encryptor, err := crypto.NewEncryptor([]byte(cfg.EncryptionKey))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}
	log.LogDebugWithFields("storage", "Encrypting durable storage values", map[string]any{
		"kind": string(cfg.Kind),
	})
	return NewEncryptedStore(store, encryptor)
}

// OpenSession builds the session store described by cfg
func OpenSession(cfg config.SessionStorageConfig) (Store, error) {
	switch cfg.Kind {
	case config.StorageKindMemory, "":
		return NewMemoryStore(), nil
	case config.StorageKindFile:
		return NewFileStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown session storage kind: %s", cfg.Kind)
	}
}
