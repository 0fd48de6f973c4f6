package deposit

import (
	"context"
	"sync"

	"github.com/loyalty-pay/balance_ledger/internal/ledger"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Deposit
}

// NewMemoryRepository constructs an in-memory repository for tests and local runs.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[string]Deposit)}
}

func (r *memoryRepository) Insert(_ context.Context, d Deposit) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.storage[d.SourcePaymentID]; exists {
		return false, nil
	}
	r.storage[d.SourcePaymentID] = d
	return true, nil
}

func (r *memoryRepository) GetBySourcePaymentID(_ context.Context, sourcePaymentID string) (Deposit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.storage[sourcePaymentID]
	if !ok {
		return Deposit{}, ErrNotFound
	}
	return d, nil
}

func (r *memoryRepository) TotalsByAccount(_ context.Context) (map[ledger.Account]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	totals := make(map[ledger.Account]int64)
	for _, d := range r.storage {
		totals[ledger.Account{UserID: d.UserID, LocationID: d.LocationID}] += d.Amount
	}
	return totals, nil
}
