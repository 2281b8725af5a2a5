package ledger

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"
)

// Status is the lifecycle position of a loan. Loans only move forward:
// Requested -> Funded -> Repaid | Defaulted.
type Status uint8

const (
	StatusRequested Status = iota + 1
	StatusFunded
	StatusRepaid
	StatusDefaulted
)

// String returns the stored name of the status.
func (s Status) String() string {
	switch s {
	case StatusRequested:
		return "requested"
	case StatusFunded:
		return "funded"
	case StatusRepaid:
		return "repaid"
	case StatusDefaulted:
		return "defaulted"
	default:
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(v string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "requested":
		return StatusRequested, nil
	case "funded":
		return StatusFunded, nil
	case "repaid":
		return StatusRepaid, nil
	case "defaulted":
		return StatusDefaulted, nil
	default:
		return 0, fmt.Errorf("unknown loan status %q", v)
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusRepaid || s == StatusDefaulted
}

// CanTransition reports whether moving from s to next is a legal step.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusRequested:
		return next == StatusFunded
	case StatusFunded:
		return next == StatusRepaid || next == StatusDefaulted
	case StatusRepaid, StatusDefaulted:
		return false
	default:
		return false
	}
}

// Loan is a single fixed-term loan record. Principal, Term and Fingerprint are
// fixed at request time; InterestRate is fixed at funding time.
type Loan struct {
	ID           int64
	Borrower     string
	Lender       string
	Principal    int64
	Term         int64
	InterestRate int
	Status       Status
	AmountPaid   int64
	Fingerprint  string
	RequestedAt  time.Time
	FundedAt     time.Time
	ClosedAt     time.Time
}

func newLoan(id int64, borrower string, principal, term int64, at time.Time) Loan {
	l := Loan{
		ID:          id,
		Borrower:    borrower,
		Principal:   principal,
		Term:        term,
		Status:      StatusRequested,
		RequestedAt: at,
	}
	l.Fingerprint = fingerprint(l)
	return l
}

// RateAssigned reports whether the loan has been priced.
func (l Loan) RateAssigned() bool {
	return l.Status != StatusRequested
}

// DueAt returns when a funded loan falls due, given the length of one term
// unit. ok is false for unfunded loans and for due dates beyond time.Time's
// range.
func (l Loan) DueAt(unit time.Duration) (due time.Time, ok bool) {
	if l.FundedAt.IsZero() || unit <= 0 {
		return time.Time{}, false
	}
	if l.Term > math.MaxInt64/int64(unit) {
		return time.Time{}, false
	}
	return l.FundedAt.Add(time.Duration(l.Term) * unit), true
}

// Overdue reports whether a funded loan is past its due time at now.
func (l Loan) Overdue(now time.Time, unit time.Duration) bool {
	if l.Status != StatusFunded {
		return false
	}
	due, ok := l.DueAt(unit)
	return ok && now.After(due)
}

// VerifyFingerprint reports whether the immutable fields still match the
// fingerprint taken at request time.
func (l Loan) VerifyFingerprint() bool {
	return l.Fingerprint != "" && l.Fingerprint == fingerprint(l)
}

func (l Loan) transition(next Status) (Loan, error) {
	if !l.Status.CanTransition(next) {
		return Loan{}, fmt.Errorf("%w: loan %d is %s, cannot become %s", ErrInvalidLoanState, l.ID, l.Status, next)
	}
	l.Status = next
	return l, nil
}

func (l Loan) fund(lender string, rate int, at time.Time) (Loan, error) {
	out, err := l.transition(StatusFunded)
	if err != nil {
		return Loan{}, err
	}
	out.Lender = lender
	out.InterestRate = rate
	out.FundedAt = at
	return out, nil
}

func (l Loan) repay(paid int64, at time.Time) (Loan, error) {
	out, err := l.transition(StatusRepaid)
	if err != nil {
		return Loan{}, err
	}
	out.AmountPaid = paid
	out.ClosedAt = at
	return out, nil
}

func (l Loan) markDefaulted(at time.Time) (Loan, error) {
	out, err := l.transition(StatusDefaulted)
	if err != nil {
		return Loan{}, err
	}
	out.ClosedAt = at
	return out, nil
}

// fingerprint is keccak256("id:borrower:principal:term") in hex.
func fingerprint(l Loan) string {
	h := sha3.NewLegacyKeccak256()
	_, _ = fmt.Fprintf(h, "%d:%s:%d:%d", l.ID, l.Borrower, l.Principal, l.Term)
	return hex.EncodeToString(h.Sum(nil))
}
