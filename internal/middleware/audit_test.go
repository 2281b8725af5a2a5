package middleware

import (
	"bytes"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestAuditLogsCallerAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	app := fiber.New()
	app.Use(RequestID())
	app.Use(CallerIdentity(CallerConfig{TrustHeader: true}))
	app.Use(Audit(logger))
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req := httptest.NewRequest(fiber.MethodGet, "/ping", nil)
	req.Header.Set(callerHeader, "ST1A")
	req.Header.Set(requestIDHeader, "req-1")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()

	if got := resp.Header.Get(requestIDHeader); got != "req-1" {
		t.Fatalf("expected echoed request id, got %q", got)
	}
	out := buf.String()
	for _, want := range []string{`"caller":"ST1A"`, `"request_id":"req-1"`, `"status":200`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}

func TestRequestIDGenerated(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString(RequestIDFrom(c)) })

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/ping", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	if len(resp.Header.Get(requestIDHeader)) != 36 {
		t.Fatalf("expected generated uuid, got %q", resp.Header.Get(requestIDHeader))
	}
}

func TestAuditRecordsErrorStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	app := fiber.New()
	app.Use(Audit(logger))
	app.Get("/loans/:id", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusNotFound, "loan not found") })

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/loans/9", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()

	out := buf.String()
	if !strings.Contains(out, `"status":404`) || !strings.Contains(out, `"level":"WARN"`) {
		t.Fatalf("unexpected audit line %s", out)
	}
}
