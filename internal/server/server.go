package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/microlend/internal/config"
	"github.com/congo-pay/microlend/internal/jobs"
	"github.com/congo-pay/microlend/internal/routes"
)

// Server wraps the Fiber application, the default sweeper and shared dependencies.
type Server struct {
	app     *fiber.App
	cfg     config.Config
	db      *pgxpool.Pool
	cache   *redis.Client
	sweeper *jobs.DefaultSweeper
	logger  *slog.Logger
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: errorHandler,
	})

	ledgerSvc, err := routes.Setup(app, routes.Deps{Cfg: cfg, DB: db, Cache: cache, Logger: logger, AccessLog: cfg.IsDev()})
	if err != nil {
		return nil, err
	}

	s := &Server{app: app, cfg: cfg, db: db, cache: cache, logger: logger}
	if cfg.SweepSchedule != "" {
		s.sweeper = jobs.NewDefaultSweeper(ledgerSvc, logger, time.Minute)
		if err := s.sweeper.Schedule(cfg.SweepSchedule); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// App exposes the underlying Fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the default sweeper and the HTTP server.
func (s *Server) Listen() error {
	if s.sweeper != nil {
		s.sweeper.Start()
	}
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server, then the sweeper.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	if s.sweeper != nil {
		s.sweeper.Stop(ctx)
	}
	return err
}

// errorHandler renders every failure as {"success":false,"error":...}.
func errorHandler(c *fiber.Ctx, err error) error {
	code := http.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"success": false, "error": err.Error()})
}
