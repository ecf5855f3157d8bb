package chat

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/tilebid/backend/domain"
	"github.com/tilebid/backend/repository"
	"github.com/tilebid/backend/usecase"
)

type UseCase struct {
	conversations repository.ConversationRepository
	users         repository.UserRepository
	feed          usecase.MessageFeed
	listener      usecase.FeedListener
	logger        *zap.Logger
}

func New(
	conversations repository.ConversationRepository,
	users repository.UserRepository,
	feed usecase.MessageFeed,
	listener usecase.FeedListener,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		conversations: conversations,
		users:         users,
		feed:          feed,
		listener:      listener,
		logger:        logger,
	}
}

// OpenInquiry finds or creates the pre-bid thread between the caller and
// the counterpart. The homeowner/tiler sides of the key are resolved from
// the authoritative profile records, so the same pair always converges on
// one thread no matter which side initiates.
func (uc *UseCase) OpenInquiry(ctx context.Context, callerID, counterpartID string) (*domain.Conversation, error) {
	if counterpartID == "" || counterpartID == callerID {
		return nil, domain.NewError(domain.ErrCodeInvalid, "counterpart is required")
	}

	caller, err := uc.users.GetByID(ctx, callerID)
	if err != nil {
		return nil, err
	}
	counterpart, err := uc.users.GetByID(ctx, counterpartID)
	if err != nil {
		return nil, err
	}

	// Exactly one side must be a tiler; the other lands in the homeowner
	// slot of the thread key.
	homeownerID, tilerID := callerID, counterpartID
	switch {
	case caller.IsTiler() && counterpart.IsTiler():
		return nil, domain.NewError(domain.ErrCodeInvalid, "an inquiry connects a homeowner with a tiler")
	case caller.IsTiler():
		homeownerID, tilerID = counterpartID, callerID
	case !counterpart.IsTiler():
		return nil, domain.NewError(domain.ErrCodeInvalid, "an inquiry connects a homeowner with a tiler")
	}

	return uc.conversations.FindOrCreate(ctx, homeownerID, tilerID, nil)
}

// ListConversations returns the caller's inbox.
func (uc *UseCase) ListConversations(ctx context.Context, callerID string) ([]domain.Conversation, error) {
	return uc.conversations.ListForUser(ctx, callerID)
}

// Send appends a message with a server-assigned timestamp and pushes it
// onto the live feed. At least one of body/attachmentURL must be present.
func (uc *UseCase) Send(ctx context.Context, callerID, conversationID, body, attachmentURL string) (*domain.Message, error) {
	if strings.TrimSpace(body) == "" && strings.TrimSpace(attachmentURL) == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "message needs text or an attachment")
	}

	conv, err := uc.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(callerID) {
		return nil, domain.ErrNotParticipant
	}

	msg, err := uc.conversations.AppendMessage(ctx, &domain.Message{
		ConversationID: conversationID,
		SenderID:       callerID,
		Body:           strings.TrimSpace(body),
		AttachmentURL:  strings.TrimSpace(attachmentURL),
	})
	if err != nil {
		return nil, err
	}

	// The row is durable at this point. Feed delivery is best-effort here;
	// the publisher parks undeliverable events in the outbox, so a total
	// publish failure only delays delivery, it never loses the message.
	if uc.feed != nil {
		if err := uc.feed.Publish(ctx, msg); err != nil {
			uc.logger.Warn("message feed publish failed",
				zap.String("conversation_id", conversationID),
				zap.Error(err),
			)
		}
	}

	return msg, nil
}

// History returns messages ascending by server creation time. afterID
// lets a reconnecting subscriber resume past its last-seen message.
func (uc *UseCase) History(ctx context.Context, callerID, conversationID, afterID string, limit int) ([]domain.Message, error) {
	conv, err := uc.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(callerID) {
		return nil, domain.ErrNotParticipant
	}
	return uc.conversations.ListMessages(ctx, conversationID, repository.MessageFilter{
		AfterID: afterID,
		Limit:   limit,
	})
}

// Subscribe opens a live stream of new messages. The returned stream is
// owned by the caller and must be closed when done.
func (uc *UseCase) Subscribe(ctx context.Context, callerID, conversationID string) (usecase.FeedStream, error) {
	if uc.listener == nil {
		return nil, domain.NewError(domain.ErrCodeInternal, "live feed unavailable")
	}

	conv, err := uc.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(callerID) {
		return nil, domain.ErrNotParticipant
	}

	return uc.listener.Listen(ctx, conversationID)
}
