package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgellow/minidp/internal/log"
	"github.com/dgellow/minidp/internal/storage"
)

// Key is where the TokenSet lives in durable storage
const Key = "sc_auth.tokens"

// Shadow receives a copy of every saved TokenSet for readers that expect
// another key layout
type Shadow interface {
	Mirror(ctx context.Context, tokens *TokenSet) error
	Clear(ctx context.Context) error
}

// Store persists the TokenSet. Read failures are logged and reported as
// "no tokens"; write failures are returned.
type Store struct {
	durable storage.Store
	shadow  Shadow
}

// New creates a token store; shadow may be nil
func New(durable storage.Store, shadow Shadow) *Store {
	return &Store{durable: durable, shadow: shadow}
}

// Get returns the stored tokens, or nil when absent or unreadable
func (s *Store) Get(ctx context.Context) *TokenSet {
	raw, err := s.durable.Get(ctx, Key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		log.LogWarnWithFields("tokenstore", "Failed to read tokens", map[string]any{
			"error": err.Error(),
		})
		return nil
	}

	var ts TokenSet
	if err := json.Unmarshal([]byte(raw), &ts); err != nil {
		log.LogWarnWithFields("tokenstore", "Ignoring corrupt token record", map[string]any{
			"error": err.Error(),
		})
		return nil
	}
	return &ts
}

// Save replaces the stored tokens and updates the shadow copy.
// A shadow failure is logged; the primary record is what counts.
func (s *Store) Save(ctx context.Context, ts *TokenSet) error {
	if ts == nil {
		return fmt.Errorf("token set cannot be nil")
	}
	data, err := json.Marshal(ts)
	if err != nil {
		return fmt.Errorf("failed to marshal tokens: %w", err)
	}
	if err := s.durable.Set(ctx, Key, string(data)); err != nil {
		return fmt.Errorf("failed to persist tokens: %w", err)
	}

	if s.shadow != nil {
		if err := s.shadow.Mirror(ctx, ts); err != nil {
			log.LogWarnWithFields("tokenstore", "Failed to mirror tokens", map[string]any{
				"error": err.Error(),
			})
		}
	}
	return nil
}

// Clear removes the tokens and the shadow copy
func (s *Store) Clear(ctx context.Context) error {
	err := s.durable.Delete(ctx, Key)
	if s.shadow != nil {
		if serr := s.shadow.Clear(ctx); serr != nil {
			log.LogWarnWithFields("tokenstore", "Failed to clear mirrored tokens", map[string]any{
				"error": serr.Error(),
			})
		}
	}
	if err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}
	return nil
}
