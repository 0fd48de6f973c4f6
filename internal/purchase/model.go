package purchase

import "time"

// Status is the lifecycle state of a purchase.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusDenied    Status = "denied"
)

// Purchase is a client request to spend balance on an item. RequestID is unique and is
// the purchase's idempotency key.
type Purchase struct {
	ID         string
	RequestID  string
	UserID     string
	LocationID string
	ItemID     string
	Price      int64
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// sameRequest reports whether p describes the same purchase as other.
func (p Purchase) sameRequest(other Purchase) bool {
	return p.UserID == other.UserID &&
		p.LocationID == other.LocationID &&
		p.ItemID == other.ItemID &&
		p.Price == other.Price
}
