package ledger

import (
	"context"
	"errors"

	"github.com/congo-pay/microlend/internal/reputation"
)

var (
	// ErrLoanNotFound is returned when no loan has the requested id.
	ErrLoanNotFound = errors.New("loan not found")
	// ErrInvalidLoanState is returned for a transition the loan's status does not allow.
	ErrInvalidLoanState = errors.New("invalid loan state")
	// ErrInsufficientPayment is returned when a repayment is below the total due.
	ErrInsufficientPayment = errors.New("insufficient payment")
	// ErrUnauthorized is returned when the caller may not perform the operation.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotOverdue is returned when a lender tries to default a loan before its due time.
	ErrNotOverdue = errors.New("loan not overdue")
	// ErrReadOnly is returned for writes attempted inside Store.View.
	ErrReadOnly = errors.New("read-only transaction")
)

// Filter narrows ListLoans. Zero fields match everything.
type Filter struct {
	Borrower string
	Lender   string
	Status   Status
	Limit    int
}

func (f Filter) match(l Loan) bool {
	if f.Borrower != "" && l.Borrower != f.Borrower {
		return false
	}
	if f.Lender != "" && l.Lender != f.Lender {
		return false
	}
	if f.Status != 0 && l.Status != f.Status {
		return false
	}
	return true
}

// Tx is the view of loan and reputation tables inside one transaction.
type Tx interface {
	reputation.Store

	// NextLoanID reserves the next loan id. Ids start at 1 and have no gaps.
	NextLoanID(ctx context.Context) (int64, error)
	InsertLoan(ctx context.Context, loan Loan) error
	// GetLoan returns ErrLoanNotFound for unknown ids.
	GetLoan(ctx context.Context, id int64) (Loan, error)
	UpdateLoan(ctx context.Context, loan Loan) error
	// ListLoans returns matching loans ordered by id.
	ListLoans(ctx context.Context, f Filter) ([]Loan, error)
}

// Store runs ledger transactions. Atomic serialises every call against all
// others and commits only when fn returns nil; View runs fn read-only.
type Store interface {
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
