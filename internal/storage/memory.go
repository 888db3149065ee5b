package storage

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Ensure MemoryStore implements required interfaces
var _ Store = (*MemoryStore)(nil)
var _ Expirer = (*MemoryStore)(nil)

type memEntry struct {
	value   string
	updated time.Time
}

// MemoryStore keeps entries in process memory
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]memEntry
	now  func() time.Time
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]memEntry),
		now:  time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return e.value, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = memEntry{value: value, updated: s.now()}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

func (s *MemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (s *MemoryStore) DeleteOlderThan(_ context.Context, age time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-age)
	n := 0
	for k, e := range s.data {
		if e.updated.Before(cutoff) {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Close() error { return nil }
