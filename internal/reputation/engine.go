package reputation

import (
	"context"
	"fmt"
)

// Engine applies loan outcomes to per-user counters. It holds no state; the
// caller passes the Store view of the transaction it is running in, so a
// counter update commits or aborts together with the loan transition that
// caused it.
type Engine struct {
	policy Policy
}

// NewEngine builds an engine scoring with policy, or DefaultPolicy when nil.
func NewEngine(policy Policy) *Engine {
	if policy == nil {
		policy = DefaultPolicy
	}
	return &Engine{policy: policy}
}

// Score derives the current score for counters.
func (e *Engine) Score(c Counters) int {
	return e.policy.Score(c.TotalLoans, c.RepaidLoans)
}

// View builds the caller-facing reputation for identity.
func (e *Engine) View(identity string, c Counters) Reputation {
	return Reputation{
		Identity:       identity,
		TotalLoans:     c.TotalLoans,
		RepaidLoans:    c.RepaidLoans,
		DefaultedLoans: c.DefaultedLoans,
		CurrentScore:   e.Score(c),
	}
}

// Get returns the reputation of identity. Unseen identities get zero counters
// and the policy baseline.
func (e *Engine) Get(ctx context.Context, store Store, identity string) (Reputation, error) {
	c, err := store.Counters(ctx, identity)
	if err != nil {
		return Reputation{}, fmt.Errorf("load counters for %s: %w", identity, err)
	}
	return e.View(identity, c), nil
}

// RecordLoanRequested counts a new loan taken by identity.
func (e *Engine) RecordLoanRequested(ctx context.Context, store Store, identity string) error {
	return e.update(ctx, store, identity, func(c *Counters) {
		c.TotalLoans++
	})
}

// RecordLoanRepaid counts a successful repayment by identity.
func (e *Engine) RecordLoanRepaid(ctx context.Context, store Store, identity string) error {
	return e.update(ctx, store, identity, func(c *Counters) {
		c.RepaidLoans++
	})
}

// RecordLoanDefaulted counts a loan identity failed to repay.
func (e *Engine) RecordLoanDefaulted(ctx context.Context, store Store, identity string) error {
	return e.update(ctx, store, identity, func(c *Counters) {
		c.DefaultedLoans++
	})
}

func (e *Engine) update(ctx context.Context, store Store, identity string, apply func(*Counters)) error {
	c, err := store.Counters(ctx, identity)
	if err != nil {
		return fmt.Errorf("load counters for %s: %w", identity, err)
	}
	apply(&c)
	if !c.Valid() {
		return fmt.Errorf("%w: %s has %d closed of %d loans", ErrCounterInvariant, identity, c.Closed(), c.TotalLoans)
	}
	if err := store.SaveCounters(ctx, identity, c); err != nil {
		return fmt.Errorf("save counters for %s: %w", identity, err)
	}
	return nil
}
