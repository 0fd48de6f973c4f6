package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loyalty-pay/balance_ledger/internal/idempotency"
)

// PostgresLedger keeps balances in the balances table. Each posting is one
// transaction holding the idempotency claim and a single conditional upsert/update, so
// the row-level write is the only serialization point between concurrent writers.
type PostgresLedger struct {
	db      *pgxpool.Pool
	guard   *idempotency.PostgresGuard
	ceiling int64
}

// NewPostgresLedger constructs a Postgres-backed ledger with the given balance ceiling.
func NewPostgresLedger(db *pgxpool.Pool, ceiling int64) *PostgresLedger {
	return &PostgresLedger{db: db, guard: idempotency.NewPostgresGuard(), ceiling: normalizeCeiling(ceiling)}
}

// Credit increases the balance by p.Amount unless p.Key was already applied.
func (l *PostgresLedger) Credit(ctx context.Context, p Posting) (Outcome, error) {
	if err := validatePosting(p, l.ceiling); err != nil {
		return Outcome{}, err
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Outcome{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	res, err := l.guard.TryApply(ctx, tx, idempotency.Record{
		Key: p.Key, UserID: p.Account.UserID, LocationID: p.Account.LocationID, Delta: p.Amount,
	})
	if err != nil {
		return Outcome{}, err
	}
	if res == idempotency.AlreadyApplied {
		balance, err := balanceFor(ctx, tx, p.Account)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Status: StatusAlreadyApplied, Balance: balance}, nil
	}

	const upsert = `
        INSERT INTO balances (user_id, location_id, balance, version, updated_at)
        VALUES ($1, $2, $3, 1, now())
        ON CONFLICT (user_id, location_id) DO UPDATE
            SET balance = balances.balance + EXCLUDED.balance,
                version = balances.version + 1,
                updated_at = now()
            WHERE balances.balance <= $4 - EXCLUDED.balance
        RETURNING balance`
	var balance int64
	if err := tx.QueryRow(ctx, upsert, p.Account.UserID, p.Account.LocationID, p.Amount, l.ceiling).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Outcome{}, fmt.Errorf("credit %s: %w", p.Account, ErrBalanceOverflow)
		}
		return Outcome{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Outcome{}, err
	}
	return Outcome{Status: StatusApplied, Balance: balance}, nil
}

// Debit decreases the balance by p.Amount when funds suffice. On ErrInsufficientFunds the
// transaction rolls back, so the key stays unclaimed.
func (l *PostgresLedger) Debit(ctx context.Context, p Posting) (Outcome, error) {
	if err := validatePosting(p, l.ceiling); err != nil {
		return Outcome{}, err
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Outcome{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	res, err := l.guard.TryApply(ctx, tx, idempotency.Record{
		Key: p.Key, UserID: p.Account.UserID, LocationID: p.Account.LocationID, Delta: -p.Amount,
	})
	if err != nil {
		return Outcome{}, err
	}
	if res == idempotency.AlreadyApplied {
		balance, err := balanceFor(ctx, tx, p.Account)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Status: StatusAlreadyApplied, Balance: balance}, nil
	}

	const update = `
        UPDATE balances
        SET balance = balance - $3, version = version + 1, updated_at = now()
        WHERE user_id = $1 AND location_id = $2 AND balance >= $3
        RETURNING balance`
	var balance int64
	if err := tx.QueryRow(ctx, update, p.Account.UserID, p.Account.LocationID, p.Amount).Scan(&balance); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return Outcome{}, err
		}
		if err := tx.Rollback(ctx); err != nil {
			return Outcome{}, err
		}
		current, err := l.Balance(ctx, p.Account)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Balance: current}, ErrInsufficientFunds
	}

	if err := tx.Commit(ctx); err != nil {
		return Outcome{}, err
	}
	return Outcome{Status: StatusApplied, Balance: balance}, nil
}

// Balance returns the stored balance, zero when the account has never been posted to.
func (l *PostgresLedger) Balance(ctx context.Context, account Account) (int64, error) {
	return balanceFor(ctx, l.db, account)
}

// Balances returns every stored balance.
func (l *PostgresLedger) Balances(ctx context.Context) (map[Account]int64, error) {
	rows, err := l.db.Query(ctx, `SELECT user_id, location_id, balance FROM balances`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[Account]int64)
	for rows.Next() {
		var (
			account Account
			balance int64
		)
		if err := rows.Scan(&account.UserID, &account.LocationID, &balance); err != nil {
			return nil, err
		}
		out[account] = balance
	}
	return out, rows.Err()
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func balanceFor(ctx context.Context, q rowQuerier, account Account) (int64, error) {
	const query = `SELECT balance FROM balances WHERE user_id = $1 AND location_id = $2`
	var balance int64
	if err := q.QueryRow(ctx, query, account.UserID, account.LocationID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}
