package infra

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// BrokerStatus is implemented by broker connections that can report liveness.
type BrokerStatus interface {
	Healthy() bool
}

// Health checks the configured dependencies. Nil dependencies are reported as "disabled".
type Health struct {
	DB      *pgxpool.Pool
	Cache   *redis.Client
	Broker  BrokerStatus
	Timeout time.Duration
}

// Check returns per-dependency status and whether every configured dependency is up.
func (h Health) Check(ctx context.Context) (map[string]string, bool) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	status := map[string]string{"postgres": "disabled", "redis": "disabled", "broker": "disabled"}
	healthy := true

	if h.DB != nil {
		status["postgres"] = "ok"
		if err := h.DB.Ping(ctx); err != nil {
			status["postgres"] = "error"
			healthy = false
		}
	}
	if h.Cache != nil {
		status["redis"] = "ok"
		if err := h.Cache.Ping(ctx).Err(); err != nil {
			status["redis"] = "error"
			healthy = false
		}
	}
	if h.Broker != nil {
		status["broker"] = "ok"
		if !h.Broker.Healthy() {
			status["broker"] = "error"
			healthy = false
		}
	}
	return status, healthy
}
