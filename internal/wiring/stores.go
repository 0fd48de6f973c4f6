package wiring

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/loyalty-pay/balance_ledger/internal/config"
	"github.com/loyalty-pay/balance_ledger/internal/deposit"
	"github.com/loyalty-pay/balance_ledger/internal/ledger"
	"github.com/loyalty-pay/balance_ledger/internal/purchase"
)

// Stores groups the persistence backends selected by configuration.
type Stores struct {
	Ledger    ledger.Ledger
	Deposits  deposit.Repository
	Purchases purchase.Repository
}

// NewStores picks the ledger backend named by cfg.LedgerBackend. Deposits and purchases
// live in Postgres whenever a pool is available, in memory otherwise.
func NewStores(cfg config.Config, db *pgxpool.Pool, cache *redis.Client) (Stores, error) {
	var s Stores
	if db != nil {
		s.Deposits = deposit.NewPostgresRepository(db)
		s.Purchases = purchase.NewPostgresRepository(db)
	} else {
		s.Deposits = deposit.NewMemoryRepository()
		s.Purchases = purchase.NewMemoryRepository()
	}

	switch cfg.LedgerBackend {
	case config.BackendPostgres:
		if db == nil {
			return Stores{}, fmt.Errorf("postgres ledger requires a database connection")
		}
		s.Ledger = ledger.NewPostgresLedger(db, cfg.BalanceCeiling)
	case config.BackendRedis:
		if cache == nil {
			return Stores{}, fmt.Errorf("redis ledger requires a redis connection")
		}
		s.Ledger = ledger.NewRedisLedger(cache, cfg.BalanceCeiling)
	case config.BackendMemory:
		s.Ledger = ledger.NewInMemoryWithCeiling(cfg.BalanceCeiling)
	default:
		return Stores{}, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
	}
	return s, nil
}
