package travel

import (
	"context"
	"sync"
)

// MemoryCacheStore is a process-local CacheStore.
type MemoryCacheStore struct {
	mu      sync.RWMutex
	entries map[LegKey]Entry
}

func NewMemoryCacheStore() *MemoryCacheStore {
	return &MemoryCacheStore{entries: make(map[LegKey]Entry)}
}

func (s *MemoryCacheStore) Get(_ context.Context, key LegKey) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok, nil
}

func (s *MemoryCacheStore) Put(_ context.Context, key LegKey, e Entry) error {
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return nil
}

func (s *MemoryCacheStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
