package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var _ Store = (*FileStore)(nil)
var _ Expirer = (*FileStore)(nil)

type fileEntry struct {
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FileStore persists entries as a single JSON document. Every operation
// re-reads the file so separate CLI invocations observe each other's writes.
type FileStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewFileStore creates the parent directory if needed
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileStore{path: path, now: time.Now}, nil
}

func (s *FileStore) load() (map[string]fileEntry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]fileEntry), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read storage file: %w", err)
	}
	entries := make(map[string]fileEntry)
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse storage file: %w", err)
	}
	return entries, nil
}

// save writes to a temp file and renames it over the target
func (s *FileStore) save(entries map[string]fileEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal storage file: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".minidp-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace storage file: %w", err)
	}
	return nil
}

func (s *FileStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return "", err
	}
	e, ok := entries[key]
	if !ok {
		return "", ErrNotFound
	}
	return e.Value, nil
}

func (s *FileStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	entries[key] = fileEntry{Value: value, UpdatedAt: s.now().UTC()}
	return s.save(entries)
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return s.save(entries)
}

func (s *FileStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return nil, err
	}
	var keys []string
	for k := range entries {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (s *FileStore) DeleteOlderThan(_ context.Context, age time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return 0, err
	}
	cutoff := s.now().Add(-age)
	n := 0
	for k, e := range entries {
		if e.UpdatedAt.Before(cutoff) {
			delete(entries, k)
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, s.save(entries)
}

func (s *FileStore) Close() error { return nil }
