package ledger

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/microlend/internal/amount"
	"github.com/congo-pay/microlend/internal/interest"
	"github.com/congo-pay/microlend/internal/middleware"
	"github.com/congo-pay/microlend/internal/reputation"
)

// Handler exposes the ledger operations over HTTP.
type Handler struct {
	service *Service
}

// NewHandler builds a ledger HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type requestLoanRequest struct {
	Amount int64 `json:"amount"`
	Term   int64 `json:"term"`
}

type repayLoanRequest struct {
	Amount int64 `json:"amount"`
}

type loanResponse struct {
	ID           int64      `json:"id"`
	Borrower     string     `json:"borrower"`
	Lender       string     `json:"lender,omitempty"`
	Principal    int64      `json:"principal"`
	Term         int64      `json:"term"`
	InterestRate *int       `json:"interest_rate,omitempty"`
	TotalDue     *int64     `json:"total_due,omitempty"`
	Status       Status     `json:"status"`
	AmountPaid   int64      `json:"amount_paid,omitempty"`
	Fingerprint  string     `json:"fingerprint"`
	RequestedAt  time.Time  `json:"requested_at"`
	FundedAt     *time.Time `json:"funded_at,omitempty"`
	DueAt        *time.Time `json:"due_at,omitempty"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
}

func success(c *fiber.Ctx, status int, value any) error {
	body := fiber.Map{"success": true}
	if value != nil {
		body["value"] = value
	}
	return c.Status(status).JSON(body)
}

// RequestLoan opens a loan for the caller.
func (h *Handler) RequestLoan(c *fiber.Ctx) error {
	var req requestLoanRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	id, err := h.service.RequestLoan(c.UserContext(), middleware.Caller(c), req.Amount, req.Term)
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusCreated, fiber.Map{"loan_id": id})
}

// FundLoan funds a requested loan with the caller as lender.
func (h *Handler) FundLoan(c *fiber.Ctx) error {
	id, err := loanID(c)
	if err != nil {
		return err
	}
	if err := h.service.FundLoan(c.UserContext(), middleware.Caller(c), id); err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, nil)
}

// RepayLoan repays a funded loan in full.
func (h *Handler) RepayLoan(c *fiber.Ctx) error {
	id, err := loanID(c)
	if err != nil {
		return err
	}
	var req repayLoanRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.RepayLoan(c.UserContext(), middleware.Caller(c), id, req.Amount); err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, nil)
}

// MarkDefault lets the lender default an overdue loan.
func (h *Handler) MarkDefault(c *fiber.Ctx) error {
	id, err := loanID(c)
	if err != nil {
		return err
	}
	if err := h.service.MarkDefault(c.UserContext(), middleware.Caller(c), id); err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, nil)
}

// GetLoan returns one loan record.
func (h *Handler) GetLoan(c *fiber.Ctx) error {
	id, err := loanID(c)
	if err != nil {
		return err
	}
	loan, err := h.service.GetLoan(c.UserContext(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, h.toResponse(loan))
}

// ListLoans lists loans filtered by borrower, lender and status query parameters.
func (h *Handler) ListLoans(c *fiber.Ctx) error {
	f := Filter{
		Borrower: c.Query("borrower"),
		Lender:   c.Query("lender"),
		Limit:    c.QueryInt("limit", 100),
	}
	if v := c.Query("status"); v != "" {
		st, err := ParseStatus(v)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		f.Status = st
	}
	if f.Limit <= 0 || f.Limit > 1000 {
		return fiber.NewError(http.StatusBadRequest, "limit must be between 1 and 1000")
	}

	loans, err := h.service.ListLoans(c.UserContext(), f)
	if err != nil {
		return toHTTPError(err)
	}
	out := make([]loanResponse, 0, len(loans))
	for _, l := range loans {
		out = append(out, h.toResponse(l))
	}
	return success(c, http.StatusOK, out)
}

// GetUserReputation returns counters and score for an identity.
func (h *Handler) GetUserReputation(c *fiber.Ctx) error {
	identity := c.Params("identity")
	if identity == "" {
		return fiber.NewError(http.StatusBadRequest, "identity is required")
	}
	rep, err := h.service.GetUserReputation(c.UserContext(), identity)
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, rep)
}

// CalculateInterestRate maps ?score= to the offered rate.
func (h *Handler) CalculateInterestRate(c *fiber.Ctx) error {
	score, err := strconv.Atoi(c.Query("score"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "score must be an integer")
	}
	rate, err := h.service.InterestRate(score)
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, rate)
}

// CalculateTotalDue computes ?amount=&interest_rate=&term= into the total owed.
func (h *Handler) CalculateTotalDue(c *fiber.Ctx) error {
	principal, err := strconv.ParseInt(c.Query("amount"), 10, 64)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "amount must be an integer")
	}
	rate, err := strconv.Atoi(c.Query("interest_rate"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "interest_rate must be an integer")
	}
	term, err := strconv.ParseInt(c.Query("term"), 10, 64)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "term must be an integer")
	}
	total, err := amount.CalculateTotalDue(principal, rate, term)
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, total)
}

func (h *Handler) toResponse(l Loan) loanResponse {
	out := loanResponse{
		ID:          l.ID,
		Borrower:    l.Borrower,
		Lender:      l.Lender,
		Principal:   l.Principal,
		Term:        l.Term,
		Status:      l.Status,
		AmountPaid:  l.AmountPaid,
		Fingerprint: l.Fingerprint,
		RequestedAt: l.RequestedAt,
	}
	if l.RateAssigned() {
		rate := l.InterestRate
		out.InterestRate = &rate
		if total, err := amount.CalculateTotalDue(l.Principal, l.InterestRate, l.Term); err == nil {
			out.TotalDue = &total
		}
	}
	if !l.FundedAt.IsZero() {
		funded := l.FundedAt
		out.FundedAt = &funded
		if due, ok := l.DueAt(h.service.TermUnit()); ok {
			out.DueAt = &due
		}
	}
	if !l.ClosedAt.IsZero() {
		closed := l.ClosedAt
		out.ClosedAt = &closed
	}
	return out
}

func loanID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("loanId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(http.StatusBadRequest, "loan id must be a positive integer")
	}
	return id, nil
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, amount.ErrInvalidAmount),
		errors.Is(err, amount.ErrInvalidTerm),
		errors.Is(err, amount.ErrInvalidRate),
		errors.Is(err, interest.ErrInvalidScore):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInsufficientPayment):
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrLoanNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidLoanState), errors.Is(err, ErrNotOverdue):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrUnauthorized):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, reputation.ErrCounterInvariant):
		return fiber.NewError(http.StatusConflict, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, "internal ledger error")
	}
}
