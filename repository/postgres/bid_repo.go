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

type bidRepository struct {
	pool *pgxpool.Pool
}

// NewBidRepository returns a Postgres-backed implementation of BidRepository.
func NewBidRepository(pool *pgxpool.Pool) repository.BidRepository {
	return &bidRepository{pool: pool}
}

func (r *bidRepository) GetByID(ctx context.Context, id string) (*domain.Bid, error) {
	const query = `
	SELECT id, task_id, tiler_id, amount, message, status, created_at, updated_at
	FROM bids
	WHERE id = $1
	`
	row := r.pool.QueryRow(ctx, query, id)
	return scanBid(row)
}

func (r *bidRepository) ListForTask(ctx context.Context, taskID string) ([]domain.Bid, error) {
	const query = `
	SELECT id, task_id, tiler_id, amount, message, status, created_at, updated_at
	FROM bids
	WHERE task_id = $1
	ORDER BY created_at ASC
	`
	return r.list(ctx, query, taskID)
}

func (r *bidRepository) ListForBidder(ctx context.Context, tilerID string) ([]domain.Bid, error) {
	const query = `
	SELECT id, task_id, tiler_id, amount, message, status, created_at, updated_at
	FROM bids
	WHERE tiler_id = $1
	ORDER BY created_at DESC
	`
	return r.list(ctx, query, tilerID)
}

func (r *bidRepository) Create(ctx context.Context, bid *domain.Bid) (*domain.Bid, error) {
	if bid == nil {
		return nil, domain.ErrInvalidPayload
	}
	if bid.Amount <= 0 {
		return nil, domain.NewError(domain.ErrCodeInvalid, "bid amount must be positive")
	}
	if bid.ID == "" {
		bid.ID = uuid.NewString()
	}
	bid.Status = domain.BidActive

	const query = `
	INSERT INTO bids (id, task_id, tiler_id, amount, message, status)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING created_at, updated_at
	`

	if err := r.pool.QueryRow(ctx, query,
		bid.ID,
		bid.TaskID,
		bid.TilerID,
		bid.Amount,
		bid.Message,
		string(bid.Status),
	).Scan(&bid.CreatedAt, &bid.UpdatedAt); err != nil {
		// The partial unique index on (task_id, tiler_id) WHERE
		// status='active' makes the second concurrent submitter fail here
		// even when both passed the read-side duplicate check.
		if isUniqueViolation(err) {
			return nil, domain.ErrDuplicateActiveBid
		}
		return nil, err
	}

	return bid, nil
}

func (r *bidRepository) UpdateStatus(ctx context.Context, id string, from []domain.BidStatus, to domain.BidStatus) error {
	states := make([]string, 0, len(from))
	for _, s := range from {
		states = append(states, string(s))
	}

	const query = `
	UPDATE bids
	SET status = $3, updated_at = NOW()
	WHERE id = $1 AND status = ANY($2)
	`
	tag, err := r.pool.Exec(ctx, query, id, states, string(to))
	if err != nil {
		if isUniqueViolation(err) {
			// A second accepted bid on the task tripped the single-winner
			// index.
			return domain.ErrInvalidTransition
		}
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

func (r *bidRepository) RejectOtherActive(ctx context.Context, taskID, keepID string) error {
	const query = `
	UPDATE bids
	SET status = $3, updated_at = NOW()
	WHERE task_id = $1 AND id <> $2 AND status = $4
	`
	_, err := r.pool.Exec(ctx, query, taskID, keepID, string(domain.BidRejected), string(domain.BidActive))
	return err
}

func (r *bidRepository) list(ctx context.Context, query string, arg interface{}) ([]domain.Bid, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []domain.Bid
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, *bid)
	}
	return bids, rows.Err()
}

func scanBid(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Bid, error) {
	var bid domain.Bid
	var status string

	if err := row.Scan(
		&bid.ID,
		&bid.TaskID,
		&bid.TilerID,
		&bid.Amount,
		&bid.Message,
		&status,
		&bid.CreatedAt,
		&bid.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBidNotFound
		}
		return nil, err
	}

	bid.Status = domain.BidStatus(status)
	return &bid, nil
}
