package deposit

import "time"

// Deposit is the immutable record of one succeeded processor payment. At most one exists
// per SourcePaymentID.
type Deposit struct {
	ID              string
	UserID          string
	LocationID      string
	Amount          int64
	SourcePaymentID string
	CreatedAt       time.Time
}

// Status reports whether RecordDeposit wrote a new row.
type Status string

const (
	StatusRecorded        Status = "recorded"
	StatusAlreadyRecorded Status = "already_recorded"
)

// Outcome is the result of RecordDeposit. Deposit is always the stored row.
type Outcome struct {
	Status  Status
	Deposit Deposit
}
