package purchase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loyalty-pay/balance_ledger/internal/ledger"
)

// ErrNotFound is returned when no purchase exists for a request id.
var ErrNotFound = errors.New("purchase not found")

// Repository persists purchases keyed by request id.
type Repository interface {
	// Reserve stores p as pending unless its RequestID exists, in which case it returns the
	// stored row and created=false.
	Reserve(ctx context.Context, p Purchase) (stored Purchase, created bool, err error)
	// UpdateStatus moves a purchase to status and returns the stored row. Completed is
	// terminal: a completed purchase is returned unchanged.
	UpdateStatus(ctx context.Context, requestID string, status Status) (Purchase, error)
	CompletedTotalsByAccount(ctx context.Context) (map[ledger.Account]int64, error)
}

// PostgresRepository stores purchases in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Reserve inserts a pending purchase or loads the one already stored for the request id.
func (r *PostgresRepository) Reserve(ctx context.Context, p Purchase) (Purchase, bool, error) {
	id, err := uuid.Parse(p.ID)
	if err != nil {
		return Purchase{}, false, err
	}
	var returned uuid.UUID
	err = r.db.QueryRow(ctx, `INSERT INTO purchases (id, request_id, user_id, location_id, item_id, price, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
        ON CONFLICT (request_id) DO NOTHING
        RETURNING id`, id, p.RequestID, p.UserID, p.LocationID, p.ItemID, p.Price, string(StatusPending), p.CreatedAt.UTC()).Scan(&returned)
	if err == nil {
		p.Status = StatusPending
		p.UpdatedAt = p.CreatedAt
		return p, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Purchase{}, false, err
	}
	stored, err := r.get(ctx, p.RequestID)
	if err != nil {
		return Purchase{}, false, err
	}
	return stored, false, nil
}

const purchaseColumns = `id, request_id, user_id, location_id, item_id, price, status, created_at, updated_at`

func (r *PostgresRepository) get(ctx context.Context, requestID string) (Purchase, error) {
	return scanPurchase(r.db.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE request_id = $1`, requestID))
}

func scanPurchase(row pgx.Row) (Purchase, error) {
	var p Purchase
	var id uuid.UUID
	var status string
	var createdAt, updatedAt time.Time
	if err := row.Scan(&id, &p.RequestID, &p.UserID, &p.LocationID, &p.ItemID, &p.Price, &status, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Purchase{}, ErrNotFound
		}
		return Purchase{}, err
	}
	p.ID = id.String()
	p.Status = Status(status)
	p.CreatedAt = createdAt.UTC()
	p.UpdatedAt = updatedAt.UTC()
	return p, nil
}

// UpdateStatus moves a purchase to a new status unless it is already completed, in which
// case the completed row is returned as stored.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, requestID string, status Status) (Purchase, error) {
	p, err := scanPurchase(r.db.QueryRow(ctx, `UPDATE purchases SET status = $2, updated_at = now()
        WHERE request_id = $1 AND status <> $3
        RETURNING `+purchaseColumns, requestID, string(status), string(StatusCompleted)))
	if errors.Is(err, ErrNotFound) {
		return r.get(ctx, requestID)
	}
	return p, err
}

// CompletedTotalsByAccount sums completed purchase prices per (user, location).
func (r *PostgresRepository) CompletedTotalsByAccount(ctx context.Context) (map[ledger.Account]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT user_id, location_id, SUM(price)::bigint
        FROM purchases WHERE status = $1 GROUP BY user_id, location_id`, string(StatusCompleted))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[ledger.Account]int64)
	for rows.Next() {
		var account ledger.Account
		var total int64
		if err := rows.Scan(&account.UserID, &account.LocationID, &total); err != nil {
			return nil, err
		}
		totals[account] = total
	}
	return totals, rows.Err()
}
