package deposit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loyalty-pay/balance_ledger/internal/ledger"
)

// ErrNotFound is returned when no deposit exists for a payment id.
var ErrNotFound = errors.New("deposit not found")

// Repository persists deposits. Insert must be atomic on SourcePaymentID: it reports
// inserted=false, without error, when a row for that payment already exists.
type Repository interface {
	Insert(ctx context.Context, d Deposit) (inserted bool, err error)
	GetBySourcePaymentID(ctx context.Context, sourcePaymentID string) (Deposit, error)
	TotalsByAccount(ctx context.Context) (map[ledger.Account]int64, error)
}

// PostgresRepository stores deposits in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert writes the deposit unless its source payment id is already stored.
func (r *PostgresRepository) Insert(ctx context.Context, d Deposit) (bool, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return false, err
	}
	var stored uuid.UUID
	err = r.db.QueryRow(ctx, `INSERT INTO deposits (id, user_id, location_id, amount, source_payment_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (source_payment_id) DO NOTHING
        RETURNING id`, id, d.UserID, d.LocationID, d.Amount, d.SourcePaymentID, d.CreatedAt.UTC()).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetBySourcePaymentID fetches the deposit recorded for a processor payment.
func (r *PostgresRepository) GetBySourcePaymentID(ctx context.Context, sourcePaymentID string) (Deposit, error) {
	row := r.db.QueryRow(ctx, `SELECT id, user_id, location_id, amount, source_payment_id, created_at
        FROM deposits WHERE source_payment_id = $1`, sourcePaymentID)
	var d Deposit
	var id uuid.UUID
	var createdAt time.Time
	if err := row.Scan(&id, &d.UserID, &d.LocationID, &d.Amount, &d.SourcePaymentID, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Deposit{}, ErrNotFound
		}
		return Deposit{}, err
	}
	d.ID = id.String()
	d.CreatedAt = createdAt.UTC()
	return d, nil
}

// TotalsByAccount sums deposit amounts per (user, location).
func (r *PostgresRepository) TotalsByAccount(ctx context.Context) (map[ledger.Account]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT user_id, location_id, SUM(amount)::bigint
        FROM deposits GROUP BY user_id, location_id`)
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
