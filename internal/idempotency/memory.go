package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryGuard keeps claimed keys in process memory. It only suits tests and local
// development; a multi-instance deployment needs PostgresGuard.
type MemoryGuard struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryGuard builds an empty in-memory guard.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{records: make(map[string]Record)}
}

// TryApply claims rec.Key if it has not been claimed yet.
func (g *MemoryGuard) TryApply(_ context.Context, rec Record) (Result, error) {
	if rec.Key == "" {
		return 0, ErrMissingKey
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.records[rec.Key]; exists {
		return AlreadyApplied, nil
	}
	rec.AppliedAt = time.Now().UTC()
	g.records[rec.Key] = rec
	return Applied, nil
}

// Release forgets a claim whose effect was abandoned.
func (g *MemoryGuard) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.records, key)
}

// Lookup returns the record claimed for key.
func (g *MemoryGuard) Lookup(key string) (Record, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.records[key]
	return rec, ok
}
