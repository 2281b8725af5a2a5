package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/congo-pay/microlend/internal/logging"
)

// OverdueDefaulter defaults every overdue funded loan and returns their ids.
type OverdueDefaulter interface {
	DefaultOverdue(ctx context.Context) ([]int64, error)
}

// DefaultSweeper periodically writes off overdue loans on a cron schedule.
type DefaultSweeper struct {
	ledger  OverdueDefaulter
	logger  *slog.Logger
	timeout time.Duration
	cron    *cron.Cron
}

// NewDefaultSweeper builds a sweeper. Each run is bounded by timeout when it is positive.
func NewDefaultSweeper(ledger OverdueDefaulter, logger *slog.Logger, timeout time.Duration) *DefaultSweeper {
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.With(slog.String("job", "default_sweeper"))
	cl := cronLogger{logger: logger}
	return &DefaultSweeper{
		ledger:  ledger,
		logger:  logger,
		timeout: timeout,
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
}

// Schedule registers the sweep under spec, e.g. "@every 5m" or "*/10 * * * *".
func (s *DefaultSweeper) Schedule(spec string) error {
	if _, err := s.cron.AddFunc(spec, func() { _, _ = s.RunOnce(context.Background()) }); err != nil {
		return fmt.Errorf("schedule default sweeper %q: %w", spec, err)
	}
	return nil
}

// Start runs the scheduler in its own goroutine.
func (s *DefaultSweeper) Start() {
	s.cron.Start()
	s.logger.Info("default sweeper started")
}

// Stop halts scheduling and waits for a running sweep or ctx, whichever ends first.
func (s *DefaultSweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("default sweeper stop timed out")
	}
}

// RunOnce performs a single sweep.
func (s *DefaultSweeper) RunOnce(ctx context.Context) ([]int64, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	ids, err := s.ledger.DefaultOverdue(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "default sweep failed", slog.Any("error", err))
		return nil, err
	}
	if len(ids) > 0 {
		s.logger.InfoContext(ctx, "overdue loans defaulted",
			slog.Int("count", len(ids)),
			slog.Any("loan_ids", ids),
			slog.Duration("elapsed", time.Since(start)),
		)
	}
	return ids, nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
