package reputation

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu       sync.RWMutex
	counters map[string]Counters
}

// NewMemoryStore returns a standalone concurrency-safe counter table. The
// ledger keeps its own table inside its transactions; this one serves tests
// and callers that score users outside a ledger.
func NewMemoryStore() Store {
	return &memoryStore{counters: make(map[string]Counters)}
}

func (s *memoryStore) Counters(_ context.Context, identity string) (Counters, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters[identity], nil
}

func (s *memoryStore) SaveCounters(_ context.Context, identity string, c Counters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[identity] = c
	return nil
}
