package repository

import (
	"context"

	"github.com/tilebid/backend/domain"
)

type BidRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Bid, error)
	ListForTask(ctx context.Context, taskID string) ([]domain.Bid, error)
	ListForBidder(ctx context.Context, tilerID string) ([]domain.Bid, error)
	// Create inserts the bid with status=active. A still-active bid by the
	// same tiler on the same task makes the insert fail with
	// domain.ErrDuplicateActiveBid via the storage uniqueness constraint,
	// closing the read-check/write race.
	Create(ctx context.Context, bid *domain.Bid) (*domain.Bid, error)
	// UpdateStatus transitions the bid to `to` only while its current
	// status is one of `from`. Returns domain.ErrBidNotFound for absent
	// bids and domain.ErrInvalidTransition when the row exists outside
	// the `from` set.
	UpdateStatus(ctx context.Context, id string, from []domain.BidStatus, to domain.BidStatus) error
	// RejectOtherActive marks every active bid on the task except keepID
	// as rejected. Idempotent.
	RejectOtherActive(ctx context.Context, taskID, keepID string) error
}
