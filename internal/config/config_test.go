package config

import (
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_NAME", "APP_ENV", "PORT", "LOG_LEVEL", "DATABASE_URL", "REDIS_URL",
		shutdownSecondsEnvVar, shutdownDurationEnvVar, idemTTLSecondsEnvVar, idemTTLDurEnvVar,
		"CALLER_TOKEN_SECRET", termUnitEnvVar, rateLimitEnvVar,
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDevelopmentDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.IsDev() {
		t.Fatalf("expected development environment, got %q", cfg.AppEnv)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address %q", cfg.Address())
	}
	if cfg.LoanTermUnit != 24*time.Hour || cfg.ShutdownPeriod != 10*time.Second || cfg.IdempotencyTTL != 24*time.Hour {
		t.Fatalf("unexpected durations: %+v", cfg)
	}
	if cfg.RateLimitPerMinute != 30 {
		t.Fatalf("unexpected rate limit %d", cfg.RateLimitPerMinute)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", ":9000")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv(shutdownSecondsEnvVar, "3")
	t.Setenv(shutdownDurationEnvVar, "1m")
	t.Setenv(idemTTLDurEnvVar, "90m")
	t.Setenv(termUnitEnvVar, "1h")
	t.Setenv(sweepScheduleEnvVar, "")
	t.Setenv(rateLimitEnvVar, "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address() != ":9000" || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected basics: %+v", cfg)
	}
	if cfg.ShutdownPeriod != 3*time.Second {
		t.Fatalf("seconds variable should win, got %s", cfg.ShutdownPeriod)
	}
	if cfg.IdempotencyTTL != 90*time.Minute || cfg.LoanTermUnit != time.Hour {
		t.Fatalf("unexpected durations: %+v", cfg)
	}
	if cfg.SweepSchedule != "" || cfg.RateLimitPerMinute != 0 {
		t.Fatalf("expected sweeper and rate limit disabled: %+v", cfg)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		termUnitEnvVar:        "-1h",
		rateLimitEnvVar:       "many",
		shutdownSecondsEnvVar: "soon",
		idemTTLDurEnvVar:      "forever",
	}
	for key, value := range cases {
		clearEnv(t)
		t.Setenv(key, value)
		if _, err := Load(); err == nil || !strings.Contains(err.Error(), key) {
			t.Fatalf("%s=%q: expected error naming the variable, got %v", key, value, err)
		}
	}
}

func TestLoadProductionRequiresBackends(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("expected DATABASE_URL error, got %v", err)
	}
	t.Setenv("DATABASE_URL", "postgres://ledger@localhost/ledger")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "REDIS_URL") {
		t.Fatalf("expected REDIS_URL error, got %v", err)
	}
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "CALLER_TOKEN_SECRET") {
		t.Fatalf("expected CALLER_TOKEN_SECRET error, got %v", err)
	}
	t.Setenv("CALLER_TOKEN_SECRET", "s3cret")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.IsDev() {
		t.Fatal("production must not count as development")
	}
}
