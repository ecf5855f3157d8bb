package award

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/tilebid/backend/domain"
	"github.com/tilebid/backend/repository"
)

// UseCase orchestrates accept-bid → close-bidding → provision-conversation
// as one logical operation. The three writes are not wrapped in a storage
// transaction; instead every step is a conditional, idempotent write, so a
// caller that hit a mid-sequence infrastructure failure simply re-invokes
// Accept and the run completes the missing steps, converging on the same
// conversation.
type UseCase struct {
	bids          repository.BidRepository
	tasks         repository.TaskRepository
	conversations repository.ConversationRepository
	logger        *zap.Logger
}

func New(bids repository.BidRepository, tasks repository.TaskRepository, conversations repository.ConversationRepository, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		bids:          bids,
		tasks:         tasks,
		conversations: conversations,
		logger:        logger,
	}
}

// Result reports the awarded state and the provisioned channel.
type Result struct {
	Task         *domain.Task         `json:"task"`
	Bid          *domain.Bid          `json:"bid"`
	Conversation *domain.Conversation `json:"conversation"`
}

// Accept awards the task to the chosen bid.
func (uc *UseCase) Accept(ctx context.Context, callerID, taskID, bidID string) (*Result, error) {
	task, err := uc.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.IsOwnedBy(callerID) {
		return nil, domain.ErrNotTaskOwner
	}

	bid, err := uc.bids.GetByID(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if bid.TaskID != taskID {
		return nil, domain.ErrBidTaskMismatch
	}

	switch task.Status {
	case domain.TaskOpen:
		// First run, or a re-run whose previous attempt failed before the
		// task flip.
	case domain.TaskAwarded:
		// Re-run after a partial failure: only the bid that won the first
		// time may pass through, anything else is a second award attempt.
		if bid.Status != domain.BidAccepted {
			return nil, domain.ErrInvalidTransition
		}
	default:
		return nil, domain.ErrInvalidTransition
	}

	// Step 1: bid active→accepted. Accepting an already-accepted bid is a
	// no-op so retries survive. The single-winner index rejects a second
	// accepted bid on the task even under concurrent accepts.
	if bid.Status != domain.BidAccepted {
		if err := uc.bids.UpdateStatus(ctx, bidID, []domain.BidStatus{domain.BidActive}, domain.BidAccepted); err != nil {
			return nil, wrapStep("accept bid", err)
		}
		bid.Status = domain.BidAccepted
	}

	// Step 2: task open→awarded, conditional on still being open. A
	// concurrent accept of a different bid loses here with
	// InvalidTransition instead of silently overwriting the award.
	if task.Status == domain.TaskOpen {
		if err := uc.tasks.AdvanceStatus(ctx, taskID, domain.TaskOpen, domain.TaskAwarded); err != nil {
			return nil, wrapStep("award task", err)
		}
		task.Status = domain.TaskAwarded
	}

	// Step 3: competing active bids are retired. Idempotent bulk update.
	if err := uc.bids.RejectOtherActive(ctx, taskID, bidID); err != nil {
		return nil, wrapStep("reject competing bids", err)
	}

	// Step 4: provision the channel between the two parties.
	conv, err := uc.conversations.FindOrCreate(ctx, task.OwnerID, bid.TilerID, &taskID)
	if err != nil {
		return nil, wrapStep("provision conversation", err)
	}

	uc.logger.Info("bid accepted",
		zap.String("task_id", taskID),
		zap.String("bid_id", bidID),
		zap.String("tiler_id", bid.TilerID),
		zap.String("conversation_id", conv.ID),
	)

	return &Result{Task: task, Bid: bid, Conversation: conv}, nil
}

// wrapStep surfaces a mid-sequence infrastructure failure with the failed
// step named, so the client can distinguish a partial award (retry the
// same call) from a business-rule rejection. Domain errors pass through
// untouched.
func wrapStep(step string, err error) error {
	var dErr *domain.Error
	if errors.As(err, &dErr) {
		return err
	}
	return domain.WrapError(domain.ErrCodeInternal, "award incomplete at step: "+step, err)
}
