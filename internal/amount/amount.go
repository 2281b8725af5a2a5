// Package amount holds the integer money rules shared by the loan ledger.
//
// All amounts are int64 counts of the smallest currency unit. Interest is
// simple and term-independent: total due = principal + floor(principal * rate / 100).
// Rounding is always toward zero (floor for the positive values accepted here),
// so the same inputs reproduce the same total on every backend.
package amount

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

const (
	// MaxRate is the highest accepted interest rate in percentage points.
	MaxRate = 100
)

var (
	// ErrInvalidAmount is returned for non-positive amounts or totals that do not fit in int64.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidRate is returned when an interest rate falls outside [0, MaxRate].
	ErrInvalidRate = errors.New("invalid interest rate")
	// ErrInvalidTerm is returned for non-positive terms.
	ErrInvalidTerm = errors.New("invalid term")
)

var maxTotal = decimal.NewFromInt(math.MaxInt64)

// ValidatePrincipal rejects amounts that cannot be lent.
func ValidatePrincipal(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: %d must be positive", ErrInvalidAmount, amount)
	}
	return nil
}

// ValidateTerm rejects loan terms that are not positive.
func ValidateTerm(term int64) error {
	if term <= 0 {
		return fmt.Errorf("%w: %d must be positive", ErrInvalidTerm, term)
	}
	return nil
}

// ValidateRate rejects rates outside [0, MaxRate].
func ValidateRate(rate int) error {
	if rate < 0 || rate > MaxRate {
		return fmt.Errorf("%w: %d outside [0, %d]", ErrInvalidRate, rate, MaxRate)
	}
	return nil
}

// Interest returns floor(amount * rate / 100) for already validated inputs.
func Interest(amount int64, rate int) decimal.Decimal {
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(int64(rate))).
		Shift(-2).
		Floor()
}

// CalculateTotalDue returns principal plus simple interest. The term is
// validated but does not change the result.
func CalculateTotalDue(amount int64, rate int, term int64) (int64, error) {
	if err := ValidatePrincipal(amount); err != nil {
		return 0, err
	}
	if err := ValidateRate(rate); err != nil {
		return 0, err
	}
	if err := ValidateTerm(term); err != nil {
		return 0, err
	}

	total := decimal.NewFromInt(amount).Add(Interest(amount, rate))
	if total.GreaterThan(maxTotal) {
		return 0, fmt.Errorf("%w: total due for %d at %d%% overflows", ErrInvalidAmount, amount, rate)
	}
	return total.IntPart(), nil
}
