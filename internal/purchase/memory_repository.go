package purchase

import (
	"context"
	"sync"
	"time"

	"github.com/loyalty-pay/balance_ledger/internal/ledger"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Purchase
}

// NewMemoryRepository constructs an in-memory repository for tests and local runs.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[string]Purchase)}
}

func (r *memoryRepository) Reserve(_ context.Context, p Purchase) (Purchase, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stored, exists := r.storage[p.RequestID]; exists {
		return stored, false, nil
	}
	p.Status = StatusPending
	p.UpdatedAt = p.CreatedAt
	r.storage[p.RequestID] = p
	return p, true, nil
}

func (r *memoryRepository) UpdateStatus(_ context.Context, requestID string, status Status) (Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.storage[requestID]
	if !ok {
		return Purchase{}, ErrNotFound
	}
	if p.Status == StatusCompleted {
		return p, nil
	}
	p.Status = status
	p.UpdatedAt = time.Now().UTC()
	r.storage[requestID] = p
	return p, nil
}

func (r *memoryRepository) CompletedTotalsByAccount(_ context.Context) (map[ledger.Account]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	totals := make(map[ledger.Account]int64)
	for _, p := range r.storage {
		if p.Status != StatusCompleted {
			continue
		}
		totals[ledger.Account{UserID: p.UserID, LocationID: p.LocationID}] += p.Price
	}
	return totals, nil
}
