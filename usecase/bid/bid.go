package bid

import (
	"context"

	"go.uber.org/zap"

	"github.com/tilebid/backend/domain"
	"github.com/tilebid/backend/repository"
)

// UseCase is the sole legitimate entry point for creating and retiring
// bids. Every gate here is re-checked server-side regardless of what the
// client UI already prevents: the caller's role comes from the
// authoritative profile record, never from the request.
type UseCase struct {
	bids   repository.BidRepository
	tasks  repository.TaskRepository
	users  repository.UserRepository
	logger *zap.Logger
}

func New(bids repository.BidRepository, tasks repository.TaskRepository, users repository.UserRepository, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		bids:   bids,
		tasks:  tasks,
		users:  users,
		logger: logger,
	}
}

// Submit validates and inserts a bid against an open task.
func (uc *UseCase) Submit(ctx context.Context, callerID, taskID string, amount float64, message string) (*domain.Bid, error) {
	caller, err := uc.users.GetByID(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if !caller.IsTiler() {
		return nil, domain.ErrNotTiler
	}

	if amount <= 0 {
		return nil, domain.NewError(domain.ErrCodeInvalid, "bid amount must be a positive number")
	}

	task, err := uc.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.IsOpen() {
		return nil, domain.ErrTaskNotOpen
	}
	if task.IsOwnedBy(callerID) {
		return nil, domain.ErrSelfBid
	}

	// Read-side duplicate check for a precise error message. The partial
	// unique index re-enforces this at write time, so a concurrent
	// duplicate still fails inside Create.
	existing, err := uc.bids.ListForBidder(ctx, callerID)
	if err != nil {
		return nil, err
	}
	for i := range existing {
		if existing[i].TaskID == taskID && existing[i].IsActive() {
			return nil, domain.ErrDuplicateActiveBid
		}
	}

	created, err := uc.bids.Create(ctx, &domain.Bid{
		TaskID:  taskID,
		TilerID: callerID,
		Amount:  amount,
		Message: message,
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("bid submitted",
		zap.String("bid_id", created.ID),
		zap.String("task_id", taskID),
		zap.String("tiler_id", callerID),
	)
	return created, nil
}

// Withdraw retires the caller's own active bid. The slot frees up: the
// tiler may submit a fresh bid on the same task afterwards.
func (uc *UseCase) Withdraw(ctx context.Context, callerID, bidID string) (*domain.Bid, error) {
	return uc.retire(ctx, callerID, bidID, domain.BidWithdrawn)
}

// RequestRevision lets the task owner send an active bid back to its
// author. The bid leaves the active state and the tiler submits a new one.
func (uc *UseCase) RequestRevision(ctx context.Context, callerID, bidID string) (*domain.Bid, error) {
	bid, err := uc.bids.GetByID(ctx, bidID)
	if err != nil {
		return nil, err
	}
	task, err := uc.tasks.GetByID(ctx, bid.TaskID)
	if err != nil {
		return nil, err
	}
	if !task.IsOwnedBy(callerID) {
		return nil, domain.ErrNotTaskOwner
	}

	if err := uc.bids.UpdateStatus(ctx, bidID, []domain.BidStatus{domain.BidActive}, domain.BidRevisionRequested); err != nil {
		return nil, err
	}
	bid.Status = domain.BidRevisionRequested
	return bid, nil
}

// ListForTask returns all bids on a task, restricted to the task owner
// and admins (competing tilers must not see each other's prices).
func (uc *UseCase) ListForTask(ctx context.Context, callerID, taskID string) ([]domain.Bid, error) {
	task, err := uc.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.IsOwnedBy(callerID) {
		caller, err := uc.users.GetByID(ctx, callerID)
		if err != nil || !caller.IsAdmin() {
			return nil, domain.ErrNotTaskOwner
		}
	}
	return uc.bids.ListForTask(ctx, taskID)
}

// ListMine returns the caller's own bids across tasks.
func (uc *UseCase) ListMine(ctx context.Context, callerID string) ([]domain.Bid, error) {
	return uc.bids.ListForBidder(ctx, callerID)
}

func (uc *UseCase) retire(ctx context.Context, callerID, bidID string, to domain.BidStatus) (*domain.Bid, error) {
	bid, err := uc.bids.GetByID(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if bid.TilerID != callerID {
		return nil, domain.NewError(domain.ErrCodeForbidden, "caller does not own this bid")
	}

	if err := uc.bids.UpdateStatus(ctx, bidID, []domain.BidStatus{domain.BidActive}, to); err != nil {
		return nil, err
	}
	bid.Status = to

	uc.logger.Info("bid retired",
		zap.String("bid_id", bidID),
		zap.String("status", string(to)),
	)
	return bid, nil
}
