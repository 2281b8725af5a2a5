package reputation

import (
	"context"
	"errors"
)

// ErrCounterInvariant is returned when an update would let closed loans
// outnumber the loans a user has taken.
var ErrCounterInvariant = errors.New("reputation counters out of balance")

// Counters are the persisted per-user loan statistics. The score is always
// derived from them and never stored on its own.
type Counters struct {
	TotalLoans     int64
	RepaidLoans    int64
	DefaultedLoans int64
}

// Closed returns the number of loans that reached a terminal state.
func (c Counters) Closed() int64 {
	return c.RepaidLoans + c.DefaultedLoans
}

// Valid reports whether the counters satisfy repaid+defaulted <= total.
func (c Counters) Valid() bool {
	return c.TotalLoans >= 0 && c.RepaidLoans >= 0 && c.DefaultedLoans >= 0 && c.Closed() <= c.TotalLoans
}

// Reputation is the view returned to callers.
type Reputation struct {
	Identity       string `json:"identity"`
	TotalLoans     int64  `json:"total-loans"`
	RepaidLoans    int64  `json:"repaid-loans"`
	DefaultedLoans int64  `json:"defaulted-loans"`
	CurrentScore   int    `json:"current-score"`
}

// Store is the counter table as seen from inside a ledger transaction.
// Counters must return zero counters, not an error, for unseen identities.
type Store interface {
	Counters(ctx context.Context, identity string) (Counters, error)
	SaveCounters(ctx context.Context, identity string, c Counters) error
}
