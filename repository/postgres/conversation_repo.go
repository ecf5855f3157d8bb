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

type conversationRepository struct {
	pool *pgxpool.Pool
}

// NewConversationRepository returns a Postgres-backed implementation of ConversationRepository.
func NewConversationRepository(pool *pgxpool.Pool) repository.ConversationRepository {
	return &conversationRepository{pool: pool}
}

func (r *conversationRepository) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	const query = `
	SELECT id, task_id, homeowner_id, tiler_id, created_at
	FROM conversations
	WHERE id = $1
	`
	row := r.pool.QueryRow(ctx, query, id)
	return scanConversation(row)
}

func (r *conversationRepository) ListForUser(ctx context.Context, userID string) ([]domain.Conversation, error) {
	const query = `
	SELECT id, task_id, homeowner_id, tiler_id, created_at
	FROM conversations
	WHERE homeowner_id = $1 OR tiler_id = $1
	ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []domain.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, *conv)
	}
	return convs, rows.Err()
}

// FindOrCreate inserts with ON CONFLICT DO NOTHING and re-selects, so two
// concurrent callers for the same key both land on the single surviving
// row instead of racing a look-before-insert check.
func (r *conversationRepository) FindOrCreate(ctx context.Context, homeownerID, tilerID string, taskID *string) (*domain.Conversation, error) {
	if homeownerID == "" || tilerID == "" {
		return nil, domain.ErrInvalidPayload
	}

	const insert = `
	INSERT INTO conversations (id, task_id, homeowner_id, tiler_id)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, insert, uuid.NewString(), taskID, homeownerID, tilerID); err != nil {
		return nil, err
	}

	const selectQuery = `
	SELECT id, task_id, homeowner_id, tiler_id, created_at
	FROM conversations
	WHERE homeowner_id = $1 AND tiler_id = $2
	  AND (($3::text IS NULL AND task_id IS NULL) OR task_id = $3)
	`
	row := r.pool.QueryRow(ctx, selectQuery, homeownerID, tilerID, taskID)
	return scanConversation(row)
}

func (r *conversationRepository) AppendMessage(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	if msg == nil || msg.IsEmpty() {
		return nil, domain.ErrInvalidPayload
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO messages (id, conversation_id, sender_id, body, attachment_url)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING created_at
	`
	if err := r.pool.QueryRow(ctx, query,
		msg.ID,
		msg.ConversationID,
		msg.SenderID,
		msg.Body,
		msg.AttachmentURL,
	).Scan(&msg.CreatedAt); err != nil {
		return nil, err
	}
	return msg, nil
}

func (r *conversationRepository) ListMessages(ctx context.Context, conversationID string, filter repository.MessageFilter) ([]domain.Message, error) {
	const query = `
	SELECT id, conversation_id, sender_id, body, attachment_url, created_at
	FROM messages
	WHERE conversation_id = $1
	  AND ($2 = '' OR (created_at, id) > (SELECT created_at, id FROM messages WHERE id = $2))
	ORDER BY created_at ASC, id ASC
	LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, conversationID, filter.AfterID, clampLimit(filter.Limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.SenderID,
			&msg.Body,
			&msg.AttachmentURL,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func scanConversation(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Conversation, error) {
	var conv domain.Conversation
	if err := row.Scan(
		&conv.ID,
		&conv.TaskID,
		&conv.HomeownerID,
		&conv.TilerID,
		&conv.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	return &conv, nil
}
