package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName        = "balance-ledger"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultCurrency       = "usd"
	defaultExchange       = "ledger.events"
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
	defaultStoreTimeout   = 3 * time.Second
	defaultTolerance      = 5 * time.Minute
	defaultPurchaseLimit  = 30

	// maxCeiling mirrors ledger.MaxAmount (2^53-1).
	maxCeiling int64 = 1<<53 - 1
)

// Ledger backends.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName  string
	AppEnv   string
	Port     string
	LogLevel string

	DatabaseURL string
	RedisURL    string
	AMQPURL     string
	Exchange    string

	LedgerBackend  string
	BalanceCeiling int64
	Currency       string

	StripeWebhookSecret string
	StripeSecretKey     string
	WebhookTolerance    time.Duration

	JWTSecret       string
	OperatorKeyHash string
	PurchaseLimit   int

	StoreTimeout   time.Duration
	IdempotencyTTL time.Duration
	ShutdownPeriod time.Duration

	OTLPEndpoint string
}

// Load reads configuration from the environment. In development a local .env file is
// loaded first; variables already set in the environment win.
func Load() (Config, error) {
	if getEnv("APP_ENV", defaultAppEnv) == defaultAppEnv {
		_ = godotenv.Load()
	}

	cfg := Config{
		AppName:             getEnv("APP_NAME", defaultAppName),
		AppEnv:              getEnv("APP_ENV", defaultAppEnv),
		Port:                getEnv("PORT", defaultPort),
		LogLevel:            strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisURL:            os.Getenv("REDIS_URL"),
		AMQPURL:             os.Getenv("AMQP_URL"),
		Exchange:            getEnv("NOTIFICATIONS_EXCHANGE", defaultExchange),
		LedgerBackend:       strings.ToLower(getEnv("LEDGER_BACKEND", "")),
		BalanceCeiling:      maxCeiling,
		Currency:            strings.ToLower(getEnv("CURRENCY", defaultCurrency)),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		OperatorKeyHash:     os.Getenv("OPERATOR_KEY_HASH"),
		OTLPEndpoint:        os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	var err error
	if cfg.WebhookTolerance, err = getDuration("WEBHOOK_TOLERANCE", defaultTolerance); err != nil {
		return Config{}, err
	}
	if cfg.StoreTimeout, err = getDuration("STORE_TIMEOUT", defaultStoreTimeout); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = getDuration("IDEMPOTENCY_TTL", defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownPeriod, err = getDuration("SHUTDOWN_TIMEOUT", defaultShutdownDelay); err != nil {
		return Config{}, err
	}

	if v := os.Getenv("BALANCE_CEILING"); v != "" {
		ceiling, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid BALANCE_CEILING: %w", err)
		}
		cfg.BalanceCeiling = ceiling
	}
	if v := os.Getenv("PURCHASE_RATE_LIMIT"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PURCHASE_RATE_LIMIT: %w", err)
		}
		cfg.PurchaseLimit = limit
	} else {
		cfg.PurchaseLimit = defaultPurchaseLimit
	}

	if cfg.LedgerBackend == "" {
		cfg.LedgerBackend = BackendPostgres
		if cfg.DatabaseURL == "" && cfg.IsDevelopment() {
			cfg.LedgerBackend = BackendMemory
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c Config) Validate() error {
	var errs []error
	if c.BalanceCeiling < 1 || c.BalanceCeiling > maxCeiling {
		errs = append(errs, fmt.Errorf("BALANCE_CEILING must be between 1 and %d", maxCeiling))
	}
	switch c.LedgerBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL must be set for the postgres ledger"))
		}
	case BackendRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL must be set for the redis ledger"))
		}
	case BackendMemory:
		if !c.IsDevelopment() {
			errs = append(errs, errors.New("the memory ledger is only allowed in development"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LEDGER_BACKEND %q", c.LedgerBackend))
	}
	if !c.IsDevelopment() {
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL must be set"))
		}
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL must be set"))
		}
		if c.StripeWebhookSecret == "" {
			errs = append(errs, errors.New("STRIPE_WEBHOOK_SECRET must be set"))
		}
	}
	return errors.Join(errs...)
}

// IsDevelopment reports whether the service runs in the development environment.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == defaultAppEnv
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getDuration accepts a Go duration ("90s") or a bare number of seconds ("90").
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	if seconds, err := strconv.Atoi(v); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
