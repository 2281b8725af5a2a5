package routes

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/microlend/internal/config"
	"github.com/congo-pay/microlend/internal/logging"
)

func devConfig() config.Config {
	return config.Config{
		AppName:            "microlend-test",
		AppEnv:             "development",
		RateLimitPerMinute: 100,
	}
}

func newApp(t *testing.T, withCache bool) *fiber.App {
	t.Helper()
	return newAppWithConfig(t, devConfig(), withCache)
}

func newAppWithConfig(t *testing.T, cfg config.Config, withCache bool) *fiber.App {
	t.Helper()
	d := Deps{Cfg: cfg, Logger: logging.Discard()}
	if withCache {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		d.Cache = client
		d.Cfg.IdempotencyTTL = time.Minute
	}
	app := fiber.New()
	if _, err := Setup(app, d); err != nil {
		t.Fatalf("setup: %v", err)
	}
	return app
}

func do(t *testing.T, app *fiber.App, method, path, caller, key, body string) (int, string) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if caller != "" {
		req.Header.Set("X-Caller-Identity", caller)
	}
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(raw)
}

func TestSetupRequiresBackendsOutsideDev(t *testing.T) {
	cfg := devConfig()
	cfg.AppEnv = "production"
	if _, err := Setup(fiber.New(), Deps{Cfg: cfg}); err == nil {
		t.Fatal("expected error without database in production")
	}
}

func TestHealthzWithoutBackends(t *testing.T) {
	app := newApp(t, false)
	status, body := do(t, app, fiber.MethodGet, "/healthz", "", "", "")
	if status != http.StatusOK || !strings.Contains(body, `"postgres":"disabled"`) || !strings.Contains(body, `"ledger":"memory"`) {
		t.Fatalf("unexpected health: %d %s", status, body)
	}

	app = newApp(t, true)
	status, body = do(t, app, fiber.MethodGet, "/healthz", "", "", "")
	if status != http.StatusOK || !strings.Contains(body, `"redis":"ok"`) {
		t.Fatalf("unexpected health with cache: %d %s", status, body)
	}
}

func TestLoanFlowInMemory(t *testing.T) {
	app := newApp(t, false)

	status, body := do(t, app, fiber.MethodPost, "/api/v1/loans", "alice", "", `{"amount":2000,"term":30}`)
	if status != http.StatusCreated || !strings.Contains(body, `"loan_id":1`) {
		t.Fatalf("request: %d %s", status, body)
	}
	if status, body := do(t, app, fiber.MethodPost, "/api/v1/loans/1/fund", "bob", "", ""); status != http.StatusOK {
		t.Fatalf("fund: %d %s", status, body)
	}
	if status, body := do(t, app, fiber.MethodPost, "/api/v1/loans/1/repay", "carol", "", `{"amount":2180}`); status != http.StatusOK {
		t.Fatalf("repay by third party: %d %s", status, body)
	}
	status, body = do(t, app, fiber.MethodGet, "/api/v1/reputation/alice", "", "", "")
	if status != http.StatusOK || !strings.Contains(body, `"repaid-loans":1`) {
		t.Fatalf("reputation: %d %s", status, body)
	}
	status, body = do(t, app, fiber.MethodGet, "/api/v1/ping", "alice", "", "")
	if status != http.StatusOK || !strings.Contains(body, `"caller":"alice"`) {
		t.Fatalf("ping: %d %s", status, body)
	}
}

func TestLoanWritesAreIdempotentWithCache(t *testing.T) {
	app := newApp(t, true)

	if status, _ := do(t, app, fiber.MethodPost, "/api/v1/loans", "alice", "", `{"amount":100,"term":1}`); status != http.StatusBadRequest {
		t.Fatalf("expected missing key to be rejected, got %d", status)
	}

	_, first := do(t, app, fiber.MethodPost, "/api/v1/loans", "alice", "req-1", `{"amount":100,"term":1}`)
	_, second := do(t, app, fiber.MethodPost, "/api/v1/loans", "alice", "req-1", `{"amount":100,"term":1}`)
	if first != second {
		t.Fatalf("replay differs: %s vs %s", first, second)
	}

	status, body := do(t, app, fiber.MethodGet, "/api/v1/loans?borrower=alice", "", "", "")
	if status != http.StatusOK {
		t.Fatalf("list: %d %s", status, body)
	}
	var env struct {
		Value []json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(env.Value) != 1 {
		t.Fatalf("expected a single loan after retry, got %d", len(env.Value))
	}
}

func TestReplayedWritesDoNotSpendRateLimit(t *testing.T) {
	cfg := devConfig()
	cfg.RateLimitPerMinute = 2
	app := newAppWithConfig(t, cfg, true)

	for i := 0; i < 5; i++ {
		status, body := do(t, app, fiber.MethodPost, "/api/v1/loans", "alice", "req-1", `{"amount":100,"term":1}`)
		if status != http.StatusCreated {
			t.Fatalf("attempt %d: expected replayed 201, got %d %s", i, status, body)
		}
	}
	if status, body := do(t, app, fiber.MethodPost, "/api/v1/loans", "alice", "req-2", `{"amount":100,"term":1}`); status != http.StatusCreated {
		t.Fatalf("second distinct write: expected 201, got %d %s", status, body)
	}
	if status, _ := do(t, app, fiber.MethodPost, "/api/v1/loans", "alice", "req-3", `{"amount":100,"term":1}`); status != http.StatusTooManyRequests {
		t.Fatalf("third distinct write: expected 429, got %d", status)
	}
}
