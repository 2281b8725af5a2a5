package ledger

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/congo-pay/microlend/internal/reputation"
)

//go:embed schema.sql
var schemaSQL string

// ledgerLockKey is the advisory lock taken by every write transaction so that
// all ledger mutations run in a single global order.
const ledgerLockKey int64 = 0x6c6f616e73

// PostgresStore persists loans and reputation counters in PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the ledger tables when they do not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply ledger schema: %w", err)
	}
	return nil
}

// Atomic runs fn in one database transaction holding the ledger lock.
func (s *PostgresStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, ledgerLockKey); err != nil {
		return fmt.Errorf("acquire ledger lock: %w", err)
	}
	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// View runs fn in a read-only transaction.
func (s *PostgresStore) View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(ctx, &pgTx{tx: tx, readOnly: true}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgTx struct {
	tx       pgx.Tx
	readOnly bool
}

const loanColumns = `id, borrower, lender, principal, term, interest_rate, status,
        amount_paid, fingerprint, requested_at, funded_at, closed_at`

func (t *pgTx) NextLoanID(ctx context.Context) (int64, error) {
	if t.readOnly {
		return 0, ErrReadOnly
	}
	var id int64
	if err := t.tx.QueryRow(ctx, `UPDATE loan_sequence SET last_id = last_id + 1 RETURNING last_id`).Scan(&id); err != nil {
		return 0, fmt.Errorf("reserve loan id: %w", err)
	}
	return id, nil
}

func (t *pgTx) InsertLoan(ctx context.Context, l Loan) error {
	if t.readOnly {
		return ErrReadOnly
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO loans (`+loanColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		l.ID, l.Borrower, l.Lender, l.Principal, l.Term, l.InterestRate, l.Status.String(),
		l.AmountPaid, l.Fingerprint, l.RequestedAt.UTC(), nullTime(l.FundedAt), nullTime(l.ClosedAt))
	return err
}

func (t *pgTx) GetLoan(ctx context.Context, id int64) (Loan, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, id)
	l, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Loan{}, fmt.Errorf("%w: %d", ErrLoanNotFound, id)
		}
		return Loan{}, err
	}
	return l, nil
}

// UpdateLoan writes only the fields a transition may change.
func (t *pgTx) UpdateLoan(ctx context.Context, l Loan) error {
	if t.readOnly {
		return ErrReadOnly
	}
	tag, err := t.tx.Exec(ctx, `UPDATE loans
        SET lender = $2, interest_rate = $3, status = $4, amount_paid = $5, funded_at = $6, closed_at = $7
        WHERE id = $1`,
		l.ID, l.Lender, l.InterestRate, l.Status.String(), l.AmountPaid, nullTime(l.FundedAt), nullTime(l.ClosedAt))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", ErrLoanNotFound, l.ID)
	}
	return nil
}

func (t *pgTx) ListLoans(ctx context.Context, f Filter) ([]Loan, error) {
	var (
		where []string
		args  []any
	)
	if f.Borrower != "" {
		args = append(args, f.Borrower)
		where = append(where, fmt.Sprintf("borrower = $%d", len(args)))
	}
	if f.Lender != "" {
		args = append(args, f.Lender)
		where = append(where, fmt.Sprintf("lender = $%d", len(args)))
	}
	if f.Status != 0 {
		args = append(args, f.Status.String())
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + loanColumns + ` FROM loans`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Loan, 0)
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (t *pgTx) Counters(ctx context.Context, identity string) (reputation.Counters, error) {
	var c reputation.Counters
	err := t.tx.QueryRow(ctx, `SELECT total_loans, repaid_loans, defaulted_loans
        FROM user_reputation WHERE identity = $1`, identity).Scan(&c.TotalLoans, &c.RepaidLoans, &c.DefaultedLoans)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return reputation.Counters{}, nil
		}
		return reputation.Counters{}, err
	}
	return c, nil
}

func (t *pgTx) SaveCounters(ctx context.Context, identity string, c reputation.Counters) error {
	if t.readOnly {
		return ErrReadOnly
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO user_reputation (identity, total_loans, repaid_loans, defaulted_loans, updated_at)
        VALUES ($1, $2, $3, $4, now())
        ON CONFLICT (identity) DO UPDATE
        SET total_loans = EXCLUDED.total_loans,
            repaid_loans = EXCLUDED.repaid_loans,
            defaulted_loans = EXCLUDED.defaulted_loans,
            updated_at = EXCLUDED.updated_at`,
		identity, c.TotalLoans, c.RepaidLoans, c.DefaultedLoans)
	return err
}

func scanLoan(row pgx.Row) (Loan, error) {
	var (
		l           Loan
		status      string
		requestedAt time.Time
		fundedAt    *time.Time
		closedAt    *time.Time
	)
	if err := row.Scan(&l.ID, &l.Borrower, &l.Lender, &l.Principal, &l.Term, &l.InterestRate, &status,
		&l.AmountPaid, &l.Fingerprint, &requestedAt, &fundedAt, &closedAt); err != nil {
		return Loan{}, err
	}
	st, err := ParseStatus(status)
	if err != nil {
		return Loan{}, err
	}
	l.Status = st
	l.RequestedAt = requestedAt.UTC()
	if fundedAt != nil {
		l.FundedAt = fundedAt.UTC()
	}
	if closedAt != nil {
		l.ClosedAt = closedAt.UTC()
	}
	return l, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
