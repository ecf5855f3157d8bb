package task

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/tilebid/backend/domain"
	"github.com/tilebid/backend/repository"
)

// CreateInput carries the owner-supplied fields of a new task posting.
type CreateInput struct {
	Title       string
	Description string
	Location    string
	BudgetMin   *float64
	BudgetMax   *float64
}

type UseCase struct {
	tasks  repository.TaskRepository
	users  repository.UserRepository
	logger *zap.Logger
}

func New(tasks repository.TaskRepository, users repository.UserRepository, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		tasks:  tasks,
		users:  users,
		logger: logger,
	}
}

// CreateTask validates the posting and inserts it with status=open.
func (uc *UseCase) CreateTask(ctx context.Context, ownerID string, input CreateInput) (*domain.Task, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "title is required")
	}
	if strings.TrimSpace(input.Description) == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "description is required")
	}
	if strings.TrimSpace(input.Location) == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "project address is required")
	}
	if input.BudgetMin != nil && *input.BudgetMin < 0 {
		return nil, domain.NewError(domain.ErrCodeInvalid, "budget must not be negative")
	}
	if input.BudgetMin != nil && input.BudgetMax != nil && *input.BudgetMax < *input.BudgetMin {
		return nil, domain.NewError(domain.ErrCodeInvalid, "budget range is inverted")
	}

	owner, err := uc.users.GetByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if !owner.IsActive() {
		return nil, domain.NewError(domain.ErrCodeForbidden, "account is not active")
	}
	if owner.IsTiler() {
		return nil, domain.NewError(domain.ErrCodeForbidden, "tiler accounts cannot post tasks")
	}

	task := &domain.Task{
		OwnerID:     ownerID,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Location:    strings.TrimSpace(input.Location),
		BudgetMin:   input.BudgetMin,
		BudgetMax:   input.BudgetMax,
		Status:      domain.TaskOpen,
	}

	created, err := uc.tasks.Create(ctx, task)
	if err != nil {
		return nil, err
	}
	uc.logger.Info("task posted", zap.String("task_id", created.ID), zap.String("owner_id", ownerID))
	return created, nil
}

func (uc *UseCase) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	return uc.tasks.GetByID(ctx, id)
}

func (uc *UseCase) ListTasks(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	if filter.Status != "" && !domain.ValidTaskStatus(filter.Status) {
		return nil, domain.NewError(domain.ErrCodeInvalid, "unknown task status")
	}
	return uc.tasks.List(ctx, filter)
}

// CloseTask moves an awarded task to closed. Owner-only; admins may close
// on the owner's behalf. Closing a task that was never awarded is an
// invalid transition.
func (uc *UseCase) CloseTask(ctx context.Context, callerID, taskID string) (*domain.Task, error) {
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

	if err := uc.tasks.AdvanceStatus(ctx, taskID, domain.TaskAwarded, domain.TaskClosed); err != nil {
		return nil, err
	}
	task.Status = domain.TaskClosed

	uc.logger.Info("task closed", zap.String("task_id", taskID))
	return task, nil
}
