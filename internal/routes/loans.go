package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/microlend/internal/ledger"
)

// RegisterLoanRoutes wires loan lifecycle endpoints. writes guards the
// state-changing routes (idempotency, rate limiting).
func RegisterLoanRoutes(r fiber.Router, h *ledger.Handler, writes ...fiber.Handler) {
	post := func(path string, handler fiber.Handler) {
		r.Post(path, append(append([]fiber.Handler{}, writes...), handler)...)
	}

	post("/loans", h.RequestLoan)
	post("/loans/:loanId/fund", h.FundLoan)
	post("/loans/:loanId/repay", h.RepayLoan)
	post("/loans/:loanId/default", h.MarkDefault)

	r.Get("/loans", h.ListLoans)
	r.Get("/loans/:loanId", h.GetLoan)
}

// RegisterReputationRoutes wires the read-only scoring and pricing endpoints.
func RegisterReputationRoutes(r fiber.Router, h *ledger.Handler) {
	r.Get("/reputation/:identity", h.GetUserReputation)
	r.Get("/interest-rate", h.CalculateInterestRate)
	r.Get("/total-due", h.CalculateTotalDue)
}
