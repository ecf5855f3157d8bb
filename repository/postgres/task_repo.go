package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tilebid/backend/domain"
	"github.com/tilebid/backend/repository"
)

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository returns a Postgres-backed implementation of TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool) repository.TaskRepository {
	return &taskRepository{pool: pool}
}

func (r *taskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	const query = `
	SELECT id, owner_id, title, description, location, budget_min, budget_max, status, created_at, updated_at
	FROM tasks
	WHERE id = $1
	`
	row := r.pool.QueryRow(ctx, query, id)
	return scanTask(row)
}

func (r *taskRepository) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	const query = `
	SELECT id, owner_id, title, description, location, budget_min, budget_max, status, created_at, updated_at
	FROM tasks
	WHERE ($1 = '' OR owner_id = $1)
	  AND ($2 = '' OR status = $2)
	  AND ($3 = '' OR title ILIKE '%' || $3 || '%' OR description ILIKE '%' || $3 || '%')
	ORDER BY created_at DESC
	LIMIT $4 OFFSET $5
	`
	rows, err := r.pool.Query(ctx, query,
		filter.OwnerID,
		string(filter.Status),
		filter.Keyword,
		clampLimit(filter.Limit),
		clampOffset(filter.Offset),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.Status = domain.TaskOpen

	const query = `
	INSERT INTO tasks (id, owner_id, title, description, location, budget_min, budget_max, status)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING created_at, updated_at
	`

	if err := r.pool.QueryRow(ctx, query,
		task.ID,
		task.OwnerID,
		task.Title,
		task.Description,
		task.Location,
		task.BudgetMin,
		task.BudgetMax,
		string(task.Status),
	).Scan(&task.CreatedAt, &task.UpdatedAt); err != nil {
		return nil, err
	}

	return task, nil
}

// AdvanceStatus is a conditional write: the row moves to `to` only while
// it is still in `from`. Zero rows affected is re-read to distinguish a
// missing task from a lost race.
func (r *taskRepository) AdvanceStatus(ctx context.Context, id string, from, to domain.TaskStatus) error {
	const query = `
	UPDATE tasks
	SET status = $3, updated_at = NOW()
	WHERE id = $1 AND status = $2
	`
	tag, err := r.pool.Exec(ctx, query, id, string(from), string(to))
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return domain.ErrInvalidTransition
}

func scanTask(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Task, error) {
	var task domain.Task
	var status string

	if err := row.Scan(
		&task.ID,
		&task.OwnerID,
		&task.Title,
		&task.Description,
		&task.Location,
		&task.BudgetMin,
		&task.BudgetMax,
		&status,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}

	task.Status = domain.TaskStatus(status)
	return &task, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 100
	}
	return limit
}

// clampOffset floors negative offsets to zero; Postgres rejects a
// negative OFFSET outright.
func clampOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
