package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	probeDisabled = "disabled"
	probeOK       = "ok"
)

// RegisterHealthRoutes reports the ledger backend and the reachability of its
// dependencies. Any failing probe turns the response into a 503.
func RegisterHealthRoutes(app *fiber.App, d Deps) {
	backend := "memory"
	if d.DB != nil {
		backend = "postgres"
	}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		checks := fiber.Map{"postgres": probeDisabled, "redis": probeDisabled}
		healthy := true
		if d.DB != nil {
			checks["postgres"] = probe(ctx, d.DB.Ping, &healthy)
		}
		if d.Cache != nil {
			checks["redis"] = probe(ctx, func(ctx context.Context) error { return d.Cache.Ping(ctx).Err() }, &healthy)
		}

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{
			"ledger":    backend,
			"status":    checks,
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}

func probe(ctx context.Context, ping func(context.Context) error, healthy *bool) string {
	if err := ping(ctx); err != nil {
		*healthy = false
		return err.Error()
	}
	return probeOK
}
