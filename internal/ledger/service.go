package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/congo-pay/microlend/internal/amount"
	"github.com/congo-pay/microlend/internal/interest"
	"github.com/congo-pay/microlend/internal/logging"
	"github.com/congo-pay/microlend/internal/notification"
	"github.com/congo-pay/microlend/internal/reputation"
)

// DefaultTermUnit is the wall-clock length of one loan term unit.
const DefaultTermUnit = 24 * time.Hour

// Service is the loan state machine. It is the only writer of loan records
// and of reputation counters.
type Service struct {
	store      Store
	reputation *reputation.Engine
	schedule   interest.Schedule
	notifier   notification.Notifier
	logger     *slog.Logger
	termUnit   time.Duration
	now        func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithSchedule overrides the interest tier table.
func WithSchedule(s interest.Schedule) Option {
	return func(svc *Service) { svc.schedule = s }
}

// WithTermUnit sets how long one term unit lasts when deciding whether a loan is overdue.
func WithTermUnit(d time.Duration) Option {
	return func(svc *Service) {
		if d > 0 {
			svc.termUnit = d
		}
	}
}

// WithClock overrides the service clock for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(svc *Service) {
		if now != nil {
			svc.now = now
		}
	}
}

// NewService builds a ledger service. A nil engine uses the default scoring
// policy; notifier and logger may be nil.
func NewService(store Store, engine *reputation.Engine, notifier notification.Notifier, logger *slog.Logger, opts ...Option) *Service {
	if engine == nil {
		engine = reputation.NewEngine(nil)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	svc := &Service{
		store:      store,
		reputation: engine,
		schedule:   interest.Default(),
		notifier:   notifier,
		logger:     logger,
		termUnit:   DefaultTermUnit,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// RequestLoan opens a loan for caller and returns its id.
func (s *Service) RequestLoan(ctx context.Context, caller string, principal, term int64) (int64, error) {
	if caller == "" {
		return 0, fmt.Errorf("%w: missing caller", ErrUnauthorized)
	}
	if err := amount.ValidatePrincipal(principal); err != nil {
		return 0, err
	}
	if err := amount.ValidateTerm(term); err != nil {
		return 0, err
	}
	// whatever rate funding assigns, the total due must stay representable
	if _, err := amount.CalculateTotalDue(principal, s.schedule.MaxRate(), term); err != nil {
		return 0, err
	}

	var id int64
	err := s.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		next, err := tx.NextLoanID(ctx)
		if err != nil {
			return err
		}
		if err := tx.InsertLoan(ctx, newLoan(next, caller, principal, term, s.now())); err != nil {
			return fmt.Errorf("insert loan %d: %w", next, err)
		}
		if err := s.reputation.RecordLoanRequested(ctx, tx, caller); err != nil {
			return err
		}
		id = next
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.InfoContext(ctx, "loan requested",
		slog.Int64("loan_id", id),
		slog.String("borrower", caller),
		slog.Int64("principal", principal),
		slog.Int64("term", term),
	)
	return id, nil
}

// FundLoan prices a requested loan from the borrower's current score and
// records caller as its lender.
func (s *Service) FundLoan(ctx context.Context, caller string, loanID int64) error {
	if caller == "" {
		return fmt.Errorf("%w: missing caller", ErrUnauthorized)
	}

	var funded Loan
	var score int
	err := s.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		loan, err := tx.GetLoan(ctx, loanID)
		if err != nil {
			return err
		}
		if !loan.Status.CanTransition(StatusFunded) {
			return fmt.Errorf("%w: loan %d is %s", ErrInvalidLoanState, loanID, loan.Status)
		}
		rep, err := s.reputation.Get(ctx, tx, loan.Borrower)
		if err != nil {
			return err
		}
		rate, err := s.schedule.Rate(rep.CurrentScore)
		if err != nil {
			return err
		}
		next, err := loan.fund(caller, rate, s.now())
		if err != nil {
			return err
		}
		if err := tx.UpdateLoan(ctx, next); err != nil {
			return err
		}
		funded, score = next, rep.CurrentScore
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "loan funded",
		slog.Int64("loan_id", funded.ID),
		slog.String("borrower", funded.Borrower),
		slog.String("lender", funded.Lender),
		slog.Int("score", score),
		slog.Int("rate", funded.InterestRate),
	)
	s.notify(ctx, notification.Message{
		Kind:        notification.KindLoanFunded,
		Destination: funded.Borrower,
		LoanID:      funded.ID,
		Body:        fmt.Sprintf("Loan %d was funded at %d%%", funded.ID, funded.InterestRate),
	})
	return nil
}

// RepayLoan closes a funded loan when paid covers the total due. Partial
// payments are rejected and leave the loan untouched.
func (s *Service) RepayLoan(ctx context.Context, caller string, loanID, paid int64) error {
	if caller == "" {
		return fmt.Errorf("%w: missing caller", ErrUnauthorized)
	}

	var repaid Loan
	var due int64
	err := s.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		loan, err := tx.GetLoan(ctx, loanID)
		if err != nil {
			return err
		}
		if !loan.Status.CanTransition(StatusRepaid) {
			return fmt.Errorf("%w: loan %d is %s", ErrInvalidLoanState, loanID, loan.Status)
		}
		if paid < 0 {
			return fmt.Errorf("%w: payment %d is negative", amount.ErrInvalidAmount, paid)
		}
		total, err := amount.CalculateTotalDue(loan.Principal, loan.InterestRate, loan.Term)
		if err != nil {
			return err
		}
		if paid < total {
			return fmt.Errorf("%w: paid %d of %d due on loan %d", ErrInsufficientPayment, paid, total, loanID)
		}
		next, err := loan.repay(paid, s.now())
		if err != nil {
			return err
		}
		if err := tx.UpdateLoan(ctx, next); err != nil {
			return err
		}
		if err := s.reputation.RecordLoanRepaid(ctx, tx, loan.Borrower); err != nil {
			return err
		}
		repaid, due = next, total
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "loan repaid",
		slog.Int64("loan_id", repaid.ID),
		slog.String("borrower", repaid.Borrower),
		slog.String("payer", caller),
		slog.Int64("due", due),
		slog.Int64("paid", paid),
	)
	s.notify(ctx, notification.Message{
		Kind:        notification.KindLoanRepaid,
		Destination: repaid.Lender,
		LoanID:      repaid.ID,
		Body:        fmt.Sprintf("Loan %d was repaid with %d", repaid.ID, paid),
	})
	return nil
}

// MarkDefault lets the lender of an overdue funded loan write it off.
func (s *Service) MarkDefault(ctx context.Context, caller string, loanID int64) error {
	if caller == "" {
		return fmt.Errorf("%w: missing caller", ErrUnauthorized)
	}

	var defaulted Loan
	err := s.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		loan, err := tx.GetLoan(ctx, loanID)
		if err != nil {
			return err
		}
		if !loan.Status.CanTransition(StatusDefaulted) {
			return fmt.Errorf("%w: loan %d is %s", ErrInvalidLoanState, loanID, loan.Status)
		}
		if loan.Lender != caller {
			return fmt.Errorf("%w: only the lender may default loan %d", ErrUnauthorized, loanID)
		}
		now := s.now()
		if !loan.Overdue(now, s.termUnit) {
			return fmt.Errorf("%w: loan %d", ErrNotOverdue, loanID)
		}
		next, err := s.applyDefault(ctx, tx, loan, now)
		if err != nil {
			return err
		}
		defaulted = next
		return nil
	})
	if err != nil {
		return err
	}

	s.afterDefault(ctx, defaulted)
	return nil
}

// DefaultOverdue defaults every funded loan past its due time and returns
// their ids. It is the system-side counterpart of MarkDefault.
func (s *Service) DefaultOverdue(ctx context.Context) ([]int64, error) {
	var defaulted []Loan
	err := s.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		funded, err := tx.ListLoans(ctx, Filter{Status: StatusFunded})
		if err != nil {
			return err
		}
		now := s.now()
		for _, loan := range funded {
			if !loan.Overdue(now, s.termUnit) {
				continue
			}
			next, err := s.applyDefault(ctx, tx, loan, now)
			if err != nil {
				return err
			}
			defaulted = append(defaulted, next)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(defaulted))
	for _, loan := range defaulted {
		s.afterDefault(ctx, loan)
		ids = append(ids, loan.ID)
	}
	return ids, nil
}

func (s *Service) applyDefault(ctx context.Context, tx Tx, loan Loan, at time.Time) (Loan, error) {
	next, err := loan.markDefaulted(at)
	if err != nil {
		return Loan{}, err
	}
	if err := tx.UpdateLoan(ctx, next); err != nil {
		return Loan{}, err
	}
	if err := s.reputation.RecordLoanDefaulted(ctx, tx, loan.Borrower); err != nil {
		return Loan{}, err
	}
	return next, nil
}

func (s *Service) afterDefault(ctx context.Context, loan Loan) {
	s.logger.WarnContext(ctx, "loan defaulted",
		slog.Int64("loan_id", loan.ID),
		slog.String("borrower", loan.Borrower),
		slog.String("lender", loan.Lender),
	)
	s.notify(ctx, notification.Message{
		Kind:        notification.KindLoanDefaulted,
		Destination: loan.Lender,
		LoanID:      loan.ID,
		Body:        fmt.Sprintf("Loan %d defaulted", loan.ID),
	})
}

// GetLoan returns a single loan.
func (s *Service) GetLoan(ctx context.Context, loanID int64) (Loan, error) {
	var loan Loan
	err := s.store.View(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		loan, err = tx.GetLoan(ctx, loanID)
		return err
	})
	return loan, err
}

// ListLoans returns loans matching f ordered by id.
func (s *Service) ListLoans(ctx context.Context, f Filter) ([]Loan, error) {
	var loans []Loan
	err := s.store.View(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		loans, err = tx.ListLoans(ctx, f)
		return err
	})
	return loans, err
}

// GetUserReputation returns identity's counters and current score. Unknown
// identities are not an error.
func (s *Service) GetUserReputation(ctx context.Context, identity string) (reputation.Reputation, error) {
	var rep reputation.Reputation
	err := s.store.View(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		rep, err = s.reputation.Get(ctx, tx, identity)
		return err
	})
	return rep, err
}

// InterestRate returns the rate this ledger offers for score.
func (s *Service) InterestRate(score int) (int, error) {
	return s.schedule.Rate(score)
}

// TermUnit returns the configured length of one term unit.
func (s *Service) TermUnit() time.Duration {
	return s.termUnit
}

func (s *Service) notify(ctx context.Context, msg notification.Message) {
	if s.notifier == nil || msg.Destination == "" {
		return
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "notification failed",
			slog.String("kind", msg.Kind),
			slog.Int64("loan_id", msg.LoanID),
			slog.Any("error", err),
		)
	}
}
