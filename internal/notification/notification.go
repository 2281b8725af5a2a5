package notification

import (
	"context"
	"log/slog"
)

const (
	// KindLoanFunded tells a borrower their loan was funded.
	KindLoanFunded = "loan_funded"
	// KindLoanRepaid tells a lender their loan was repaid.
	KindLoanRepaid = "loan_repaid"
	// KindLoanDefaulted tells a lender their loan was written off as defaulted.
	KindLoanDefaulted = "loan_defaulted"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	LoanID      int64
	Body        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(ctx context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.InfoContext(ctx, "notification",
		slog.String("kind", message.Kind),
		slog.String("destination", message.Destination),
		slog.Int64("loan_id", message.LoanID),
		slog.String("body", message.Body),
	)
	return nil
}
