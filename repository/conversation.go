package repository

import (
	"context"

	"github.com/tilebid/backend/domain"
)

type MessageFilter struct {
	AfterID string
	Limit   int
}

type ConversationRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Conversation, error)
	ListForUser(ctx context.Context, userID string) ([]domain.Conversation, error)
	// FindOrCreate returns the conversation for the (homeowner, tiler,
	// task) key, inserting it when absent. taskID == nil addresses the
	// pre-bid inquiry thread, keyed separately from task-scoped threads.
	// Concurrent callers converge on the same row via the storage
	// uniqueness constraint.
	FindOrCreate(ctx context.Context, homeownerID, tilerID string, taskID *string) (*domain.Conversation, error)

	AppendMessage(ctx context.Context, msg *domain.Message) (*domain.Message, error)
	// ListMessages returns messages in ascending (created_at, id) order,
	// optionally starting after a known message id for reconnect
	// reconciliation.
	ListMessages(ctx context.Context, conversationID string, filter MessageFilter) ([]domain.Message, error)
}
