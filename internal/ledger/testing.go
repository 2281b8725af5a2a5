package ledger

import "github.com/congo-pay/microlend/internal/reputation"

// SeedCounters is a test helper that sets a user's reputation counters when
// using the in-memory store.
func SeedCounters(s Store, identity string, c reputation.Counters) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.counters[identity] = c
	}
}
