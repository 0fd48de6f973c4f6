package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrInsufficientFunds occurs when a debit exceeds the available balance.
	// The balance is left unchanged.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAmount rejects zero or negative postings.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrAmountAboveCeiling rejects a single posting larger than the configured ceiling.
	ErrAmountAboveCeiling = errors.New("amount exceeds balance ceiling")

	// ErrBalanceOverflow means a credit would push a balance past the ceiling. It is a
	// configuration problem and must surface to operators, never wrap silently.
	ErrBalanceOverflow = errors.New("balance would exceed ceiling")

	// ErrMissingKey rejects postings without an idempotency key.
	ErrMissingKey = errors.New("idempotency key is required")

	// ErrMissingAccount rejects postings without a user or location.
	ErrMissingAccount = errors.New("user id and location id are required")
)

// MaxAmount is the largest balance or posting the ledger accepts (2^53-1), the range in
// which every client runtime still represents minor units exactly.
const MaxAmount int64 = 1<<53 - 1

// Status tells the caller whether a posting changed the balance.
type Status string

const (
	// StatusApplied means this call applied the delta.
	StatusApplied Status = "applied"
	// StatusAlreadyApplied means the key had been applied before and nothing changed.
	StatusAlreadyApplied Status = "already_applied"
)

// Account identifies a balance: one per user per location.
type Account struct {
	UserID     string
	LocationID string
}

func (a Account) String() string {
	return a.UserID + "@" + a.LocationID
}

// field encodes the account as a single token that survives ids containing separators.
func (a Account) field() string {
	return url.PathEscape(a.UserID) + "/" + url.PathEscape(a.LocationID)
}

func parseField(f string) (Account, error) {
	user, location, ok := strings.Cut(f, "/")
	if !ok {
		return Account{}, fmt.Errorf("malformed balance field %q", f)
	}
	u, err := url.PathUnescape(user)
	if err != nil {
		return Account{}, err
	}
	l, err := url.PathUnescape(location)
	if err != nil {
		return Account{}, err
	}
	return Account{UserID: u, LocationID: l}, nil
}

// Posting is one credit or debit request.
type Posting struct {
	Account Account
	Amount  int64
	Key     string
}

// Outcome captures the balance after a posting.
type Outcome struct {
	Status  Status
	Balance int64
}

// Ledger is the contract implemented by balance backends (Postgres, Redis, memory).
// Credit and Debit are each a single atomic step that claims Key and moves the balance;
// re-running a posting with an applied key returns StatusAlreadyApplied.
type Ledger interface {
	Credit(ctx context.Context, p Posting) (Outcome, error)
	Debit(ctx context.Context, p Posting) (Outcome, error)
	Balance(ctx context.Context, account Account) (int64, error)
	Balances(ctx context.Context) (map[Account]int64, error)
}

// ValidateCeiling checks a configured ceiling against MaxAmount.
func ValidateCeiling(ceiling int64) error {
	if ceiling <= 0 || ceiling > MaxAmount {
		return fmt.Errorf("balance ceiling must be between 1 and %d, got %d", MaxAmount, ceiling)
	}
	return nil
}

func validatePosting(p Posting, ceiling int64) error {
	if p.Account.UserID == "" || p.Account.LocationID == "" {
		return ErrMissingAccount
	}
	if p.Key == "" {
		return ErrMissingKey
	}
	if p.Amount <= 0 {
		return ErrInvalidAmount
	}
	if p.Amount > ceiling {
		return ErrAmountAboveCeiling
	}
	return nil
}

func normalizeCeiling(ceiling int64) int64 {
	if ceiling <= 0 || ceiling > MaxAmount {
		return MaxAmount
	}
	return ceiling
}
