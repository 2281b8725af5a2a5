package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/congo-pay/microlend/internal/reputation"
)

type inMemoryStore struct {
	mu       sync.RWMutex
	lastID   int64
	loans    map[int64]Loan
	counters map[string]reputation.Counters
}

// NewInMemory creates a concurrency-safe in-memory store. Transactions are
// serialised by a single lock and their writes are staged until commit.
func NewInMemory() Store {
	return &inMemoryStore{
		loans:    make(map[int64]Loan),
		counters: make(map[string]reputation.Counters),
	}
}

func (s *inMemoryStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.begin(false)
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.commit(tx)
	return nil
}

func (s *inMemoryStore) View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(ctx, s.begin(true))
}

func (s *inMemoryStore) begin(readOnly bool) *memTx {
	return &memTx{
		store:    s,
		readOnly: readOnly,
		lastID:   s.lastID,
		loans:    make(map[int64]Loan),
		counters: make(map[string]reputation.Counters),
	}
}

func (s *inMemoryStore) commit(tx *memTx) {
	s.lastID = tx.lastID
	for id, l := range tx.loans {
		s.loans[id] = l
	}
	for identity, c := range tx.counters {
		s.counters[identity] = c
	}
}

// memTx reads through its staged writes to the store it was opened on. The
// store lock is held by the enclosing Atomic/View call.
type memTx struct {
	store    *inMemoryStore
	readOnly bool
	lastID   int64
	loans    map[int64]Loan
	counters map[string]reputation.Counters
}

func (t *memTx) NextLoanID(_ context.Context) (int64, error) {
	if t.readOnly {
		return 0, ErrReadOnly
	}
	t.lastID++
	return t.lastID, nil
}

func (t *memTx) InsertLoan(_ context.Context, loan Loan) error {
	if t.readOnly {
		return ErrReadOnly
	}
	if _, exists := t.lookup(loan.ID); exists {
		return fmt.Errorf("loan %d already exists", loan.ID)
	}
	t.loans[loan.ID] = loan
	return nil
}

func (t *memTx) GetLoan(_ context.Context, id int64) (Loan, error) {
	l, ok := t.lookup(id)
	if !ok {
		return Loan{}, fmt.Errorf("%w: %d", ErrLoanNotFound, id)
	}
	return l, nil
}

func (t *memTx) UpdateLoan(_ context.Context, loan Loan) error {
	if t.readOnly {
		return ErrReadOnly
	}
	if _, ok := t.lookup(loan.ID); !ok {
		return fmt.Errorf("%w: %d", ErrLoanNotFound, loan.ID)
	}
	t.loans[loan.ID] = loan
	return nil
}

func (t *memTx) ListLoans(_ context.Context, f Filter) ([]Loan, error) {
	seen := make(map[int64]struct{}, len(t.loans))
	out := make([]Loan, 0)
	for id, l := range t.loans {
		seen[id] = struct{}{}
		if f.match(l) {
			out = append(out, l)
		}
	}
	for id, l := range t.store.loans {
		if _, staged := seen[id]; staged {
			continue
		}
		if f.match(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (t *memTx) Counters(_ context.Context, identity string) (reputation.Counters, error) {
	if c, ok := t.counters[identity]; ok {
		return c, nil
	}
	return t.store.counters[identity], nil
}

func (t *memTx) SaveCounters(_ context.Context, identity string, c reputation.Counters) error {
	if t.readOnly {
		return ErrReadOnly
	}
	t.counters[identity] = c
	return nil
}

func (t *memTx) lookup(id int64) (Loan, bool) {
	if l, ok := t.loans[id]; ok {
		return l, true
	}
	l, ok := t.store.loans[id]
	return l, ok
}
