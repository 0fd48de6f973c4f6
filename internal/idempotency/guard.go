package idempotency

import (
	"errors"
	"time"
)

// ErrMissingKey is returned when a record carries no idempotency key.
var ErrMissingKey = errors.New("idempotency key is required")

// Result reports whether a key was applied by this call or by an earlier one.
type Result int

const (
	// Applied means the key was claimed now and the caller must perform the effect.
	Applied Result = iota + 1
	// AlreadyApplied means the key was claimed before; the effect must not be repeated.
	AlreadyApplied
)

func (r Result) String() string {
	switch r {
	case Applied:
		return "applied"
	case AlreadyApplied:
		return "already_applied"
	default:
		return "unknown"
	}
}

// Record is the processed-event row claimed for a key.
type Record struct {
	Key        string
	UserID     string
	LocationID string
	Delta      int64
	AppliedAt  time.Time
}
