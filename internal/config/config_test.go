package config

import (
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"APP_ENV", "DATABASE_URL", "REDIS_URL", "LEDGER_BACKEND", "BALANCE_CEILING",
		"STRIPE_WEBHOOK_SECRET", "STORE_TIMEOUT", "WEBHOOK_TOLERANCE", "PURCHASE_RATE_LIMIT",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDevelopmentDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LedgerBackend != BackendMemory {
		t.Fatalf("expected memory backend without DATABASE_URL, got %q", cfg.LedgerBackend)
	}
	if cfg.BalanceCeiling != maxCeiling {
		t.Fatalf("expected default ceiling, got %d", cfg.BalanceCeiling)
	}
	if cfg.WebhookTolerance != 5*time.Minute || cfg.StoreTimeout != 3*time.Second {
		t.Fatalf("unexpected durations: %v %v", cfg.WebhookTolerance, cfg.StoreTimeout)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address %q", cfg.Address())
	}
}

func TestLoadProductionRequiresSecrets(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"DATABASE_URL", "REDIS_URL", "STRIPE_WEBHOOK_SECRET"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in %v", want, err)
		}
	}
}

func TestLoadProduction(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://ledger@db/ledger")
	t.Setenv("REDIS_URL", "redis://cache:6379/0")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_x")
	t.Setenv("BALANCE_CEILING", "100000")
	t.Setenv("STORE_TIMEOUT", "750ms")
	t.Setenv("WEBHOOK_TOLERANCE", "120")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LedgerBackend != BackendPostgres || cfg.BalanceCeiling != 100_000 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.StoreTimeout != 750*time.Millisecond || cfg.WebhookTolerance != 2*time.Minute {
		t.Fatalf("unexpected durations: %v %v", cfg.StoreTimeout, cfg.WebhookTolerance)
	}
}

func TestLoadRejectsBadCeilingAndBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "development")

	t.Setenv("BALANCE_CEILING", "0")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "BALANCE_CEILING") {
		t.Fatalf("expected ceiling error, got %v", err)
	}

	t.Setenv("BALANCE_CEILING", "9007199254740992")
	if _, err := Load(); err == nil {
		t.Fatal("expected error above 2^53-1")
	}

	t.Setenv("BALANCE_CEILING", "")
	t.Setenv("LEDGER_BACKEND", "sqlite")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "LEDGER_BACKEND") {
		t.Fatalf("expected backend error, got %v", err)
	}
}
