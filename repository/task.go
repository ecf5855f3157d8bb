package repository

import (
	"context"

	"github.com/tilebid/backend/domain"
)

type TaskFilter struct {
	OwnerID string
	Status  domain.TaskStatus
	Keyword string
	Limit   int
	Offset  int
}

type TaskRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	Create(ctx context.Context, task *domain.Task) (*domain.Task, error)
	// AdvanceStatus moves the task from exactly `from` to `to` in a single
	// conditional write. Returns domain.ErrInvalidTransition when the row
	// exists but is no longer in `from`, so concurrent award attempts lose
	// deterministically instead of overwriting each other.
	AdvanceStatus(ctx context.Context, id string, from, to domain.TaskStatus) error
}
