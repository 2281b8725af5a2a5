package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/microlend/internal/config"
	"github.com/congo-pay/microlend/internal/ledger"
	"github.com/congo-pay/microlend/internal/logging"
	"github.com/congo-pay/microlend/internal/middleware"
	"github.com/congo-pay/microlend/internal/notification"
	"github.com/congo-pay/microlend/internal/reputation"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
	// AccessLog toggles the plain text fiber access log.
	AccessLog bool
}

// Setup configures middlewares and all application routes and returns the
// ledger service the routes drive.
func Setup(app *fiber.App, d Deps) (*ledger.Service, error) {
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.AccessLog {
		// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.CallerIdentity(middleware.CallerConfig{
		Secret:      d.Cfg.CallerTokenSecret,
		TrustHeader: d.Cfg.IsDev() && d.Cfg.CallerTokenSecret == "",
	}))
	app.Use(middleware.Audit(d.Logger))

	// Health
	RegisterHealthRoutes(app, d)

	// Ledger backend
	var store ledger.Store
	if d.DB != nil {
		pg := ledger.NewPostgresStore(d.DB)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		store = pg
	} else {
		d.Logger.Warn("DATABASE_URL not set, using in-memory ledger")
		store = ledger.NewInMemory()
	}

	notifier := notification.NewLoggerNotifier(d.Logger)
	ledgerSvc := ledger.NewService(store, reputation.NewEngine(nil), notifier, d.Logger,
		ledger.WithTermUnit(d.Cfg.LoanTermUnit))
	ledgerHandler := ledger.NewHandler(ledgerSvc)

	// replays are answered before the limiter counts them
	var writes []fiber.Handler
	if d.Cache != nil {
		writes = append(writes, middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	if d.Cfg.RateLimitPerMinute > 0 {
		writes = append(writes, middleware.CallerRateLimit(d.Cache, d.Cfg.RateLimitPerMinute))
	}

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"caller":     middleware.Caller(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
	RegisterLoanRoutes(api, ledgerHandler, writes...)
	RegisterReputationRoutes(api, ledgerHandler)

	return ledgerSvc, nil
}
