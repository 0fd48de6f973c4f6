package ledger

import (
	"context"
	"sync"

	"github.com/loyalty-pay/balance_ledger/internal/idempotency"
)

type inMemoryLedger struct {
	mu       sync.Mutex
	ceiling  int64
	balances map[Account]int64
	guard    *idempotency.MemoryGuard
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests and
// local development, using MaxAmount as the ceiling.
func NewInMemory() Ledger {
	return NewInMemoryWithCeiling(MaxAmount)
}

// NewInMemoryWithCeiling creates an in-memory ledger with a custom balance ceiling.
func NewInMemoryWithCeiling(ceiling int64) Ledger {
	return &inMemoryLedger{
		ceiling:  normalizeCeiling(ceiling),
		balances: make(map[Account]int64),
		guard:    idempotency.NewMemoryGuard(),
	}
}

func (l *inMemoryLedger) Credit(ctx context.Context, p Posting) (Outcome, error) {
	if err := validatePosting(p, l.ceiling); err != nil {
		return Outcome{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	current := l.balances[p.Account]
	res, err := l.guard.TryApply(ctx, idempotency.Record{
		Key: p.Key, UserID: p.Account.UserID, LocationID: p.Account.LocationID, Delta: p.Amount,
	})
	if err != nil {
		return Outcome{}, err
	}
	if res == idempotency.AlreadyApplied {
		return Outcome{Status: StatusAlreadyApplied, Balance: current}, nil
	}

	if current > l.ceiling-p.Amount {
		l.guard.Release(p.Key)
		return Outcome{Balance: current}, ErrBalanceOverflow
	}

	current += p.Amount
	l.balances[p.Account] = current
	return Outcome{Status: StatusApplied, Balance: current}, nil
}

func (l *inMemoryLedger) Debit(ctx context.Context, p Posting) (Outcome, error) {
	if err := validatePosting(p, l.ceiling); err != nil {
		return Outcome{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	current := l.balances[p.Account]
	res, err := l.guard.TryApply(ctx, idempotency.Record{
		Key: p.Key, UserID: p.Account.UserID, LocationID: p.Account.LocationID, Delta: -p.Amount,
	})
	if err != nil {
		return Outcome{}, err
	}
	if res == idempotency.AlreadyApplied {
		return Outcome{Status: StatusAlreadyApplied, Balance: current}, nil
	}

	if current < p.Amount {
		l.guard.Release(p.Key)
		return Outcome{Balance: current}, ErrInsufficientFunds
	}

	current -= p.Amount
	l.balances[p.Account] = current
	return Outcome{Status: StatusApplied, Balance: current}, nil
}

func (l *inMemoryLedger) Balance(_ context.Context, account Account) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account], nil
}

func (l *inMemoryLedger) Balances(_ context.Context) (map[Account]int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[Account]int64, len(l.balances))
	for account, balance := range l.balances {
		out[account] = balance
	}
	return out, nil
}
