package domain

import "time"

// BidStatus is the lifecycle state of an offer against a task.
type BidStatus string

const (
	BidActive            BidStatus = "active"
	BidAccepted          BidStatus = "accepted"
	BidRejected          BidStatus = "rejected"
	BidWithdrawn         BidStatus = "withdrawn"
	BidRevisionRequested BidStatus = "revision_requested"
)

func ValidBidStatus(s BidStatus) bool {
	switch s {
	case BidActive, BidAccepted, BidRejected, BidWithdrawn, BidRevisionRequested:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the bid has left the running state. A
// terminal bid never becomes active again; the bidder submits a fresh one.
func (s BidStatus) IsTerminal() bool {
	return s != BidActive
}

// Bid represents a priced offer from a tiler against exactly one task.
type Bid struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	TilerID   string    `json:"tiler_id"`
	Amount    float64   `json:"amount"`
	Message   string    `json:"message,omitempty"`
	Status    BidStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *Bid) IsActive() bool {
	return b != nil && b.Status == BidActive
}
