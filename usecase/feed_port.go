package usecase

import (
	"context"

	"github.com/tilebid/backend/domain"
)

// MessageFeed abstracts the realtime delivery pipeline so the chat use
// case stays transport-agnostic. Publish must not fail the caller when
// realtime delivery is degraded; implementations park undeliverable
// events for later replay.
type MessageFeed interface {
	Publish(ctx context.Context, msg *domain.Message) error
}

// FeedStream is a live sequence of newly appended messages for one
// conversation. Close is idempotent and releases the underlying
// subscription; after Close the Messages channel is drained and closed.
type FeedStream interface {
	Messages() <-chan domain.Message
	Close() error
}

// FeedListener opens live streams. Delivery is at-least-once: consumers
// reconcile against their last-seen message id on reconnect.
type FeedListener interface {
	Listen(ctx context.Context, conversationID string) (FeedStream, error)
}
