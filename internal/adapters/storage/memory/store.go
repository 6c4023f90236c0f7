// Package memory provides an in-process key/value storage driver.
package memory

import (
	"context"
	"sync"
)

// Store keeps items in a map guarded by a mutex.
type Store struct {
	mu    sync.RWMutex
	items map[string]string
}

// New constructs an empty store.
func New() *Store {
	return &Store{items: map[string]string{}}
}

// GetItem returns the value for key and whether it was set.
func (s *Store) GetItem(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok, nil
}

// SetItem stores value under key.
func (s *Store) SetItem(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
	return nil
}

// RemoveItem deletes key. Missing keys are ignored.
func (s *Store) RemoveItem(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

// Close is a no-op kept for parity with the persistent drivers.
func (s *Store) Close() error {
	return nil
}
