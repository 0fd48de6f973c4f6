package ledger

// SeedBalance is a test helper that sets the balance for an account when using the
// in-memory ledger. It bypasses the idempotency guard.
func SeedBalance(l Ledger, account Account, amount int64) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.balances[account] = amount
	}
}
