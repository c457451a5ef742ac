// Package memory provides an in-process implementation of dataset cache
// storage used by default and in tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"toolatlas/internal/dataset"
	"toolatlas/pkg/catalogapi"
)

// Compile-time contract assertion ensuring memory.Store satisfies dataset.Storage.
var _ dataset.Storage = (*Store)(nil)

// Store keeps cached entity collections in a map guarded by a RWMutex.
type Store struct {
	mu      sync.RWMutex
	entries map[string][]catalogapi.Entity
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[string][]catalogapi.Entity)}
}

// Load returns a copy of the collection stored under key.
func (s *Store) Load(_ context.Context, key string) ([]catalogapi.Entity, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entities, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	return cloneEntities(entities), true, nil
}

// Save stores a copy of entities under key, replacing any previous entry.
func (s *Store) Save(_ context.Context, key string, entities []catalogapi.Entity) error {
	s.mu.Lock()
	s.entries[key] = cloneEntities(entities)
	s.mu.Unlock()
	return nil
}

// Purge removes every entry.
func (s *Store) Purge(_ context.Context) error {
	s.mu.Lock()
	s.entries = make(map[string][]catalogapi.Entity)
	s.mu.Unlock()
	return nil
}

// Snapshot exports all entries for persistence layers that mirror this store.
func (s *Store) Snapshot() map[string][]catalogapi.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]catalogapi.Entity, len(s.entries))
	for key, entities := range s.entries {
		out[key] = cloneEntities(entities)
	}
	return out
}

// Import replaces the store contents with snapshot.
func (s *Store) Import(snapshot map[string][]catalogapi.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string][]catalogapi.Entity, len(snapshot))
	for key, entities := range snapshot {
		s.entries[key] = cloneEntities(entities)
	}
}

// Keys lists stored keys in ascending order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func cloneEntities(in []catalogapi.Entity) []catalogapi.Entity {
	out := make([]catalogapi.Entity, len(in))
	for i, e := range in {
		out[i] = e
		if e.Extensions != nil {
			ext := make(map[string]any, len(e.Extensions))
			for k, v := range e.Extensions {
				ext[k] = v
			}
			out[i].Extensions = ext
		}
	}
	return out
}
