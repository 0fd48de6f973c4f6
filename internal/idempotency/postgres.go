package idempotency

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is satisfied by *pgxpool.Pool and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// PostgresGuard claims keys in the processed_event_keys table. The primary key on
// idempotency_key is what makes concurrent claims of the same key safe: the second
// insert blocks on the first transaction and resolves to a conflict once it commits.
type PostgresGuard struct{}

// NewPostgresGuard builds a guard over the processed_event_keys table.
func NewPostgresGuard() *PostgresGuard {
	return &PostgresGuard{}
}

// TryApply claims rec.Key through q, which should be the caller's transaction so the
// claim commits or rolls back together with the effect it protects.
func (g *PostgresGuard) TryApply(ctx context.Context, q Execer, rec Record) (Result, error) {
	if rec.Key == "" {
		return 0, ErrMissingKey
	}
	cmd, err := q.Exec(ctx, `INSERT INTO processed_event_keys (idempotency_key, user_id, location_id, delta, applied_at)
        VALUES ($1, $2, $3, $4, now())
        ON CONFLICT (idempotency_key) DO NOTHING`, rec.Key, rec.UserID, rec.LocationID, rec.Delta)
	if err != nil {
		return 0, fmt.Errorf("claim idempotency key %s: %w", rec.Key, err)
	}
	if cmd.RowsAffected() == 0 {
		return AlreadyApplied, nil
	}
	return Applied, nil
}
