package services

import (
	"context"
	"encoding/json"
	"sync"

	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tilebid/backend/domain"
	"github.com/tilebid/backend/internal/infrastructure/outbox"
	"github.com/tilebid/backend/usecase"
)

// FeedPublisher pushes appended messages onto per-conversation Redis
// pub/sub channels. A failed publish is parked in the durable outbox and
// replayed by the dispatcher, so delivery to live subscribers is
// at-least-once rather than fire-and-forget.
type FeedPublisher struct {
	client *redislib.Client
	outbox *outbox.Store
	logger *zap.Logger
}

func NewFeedPublisher(client *redislib.Client, ob *outbox.Store, logger *zap.Logger) *FeedPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedPublisher{
		client: client,
		outbox: ob,
		logger: logger,
	}
}

func (p *FeedPublisher) Publish(ctx context.Context, msg *domain.Message) error {
	if msg == nil {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	if err := p.publishRaw(ctx, msg.ConversationID, payload); err != nil {
		p.logger.Warn("feed publish failed, parking in outbox",
			zap.String("conversation_id", msg.ConversationID),
			zap.Error(err),
		)
		if p.outbox == nil {
			return err
		}
		return p.outbox.Enqueue(outbox.Item{
			ID:             msg.ID,
			ConversationID: msg.ConversationID,
			Payload:        payload,
		})
	}
	return nil
}

// Replay re-publishes a parked outbox item.
func (p *FeedPublisher) Replay(ctx context.Context, item outbox.Item) error {
	return p.publishRaw(ctx, item.ConversationID, item.Payload)
}

// Listen opens a live stream for one conversation. The stream terminates
// when the caller closes it or ctx is cancelled.
func (p *FeedPublisher) Listen(ctx context.Context, conversationID string) (usecase.FeedStream, error) {
	if p.client == nil {
		return nil, domain.NewError(domain.ErrCodeInternal, "live feed unavailable")
	}

	pubsub := p.client.Subscribe(ctx, feedChannel(conversationID))
	// Force the SUBSCRIBE round trip so a dead Redis fails the caller now
	// instead of yielding a silently empty stream.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	stream := &redisStream{
		pubsub: pubsub,
		out:    make(chan domain.Message, 16),
		logger: p.logger,
	}
	go stream.pump(ctx)
	return stream, nil
}

func (p *FeedPublisher) publishRaw(ctx context.Context, conversationID string, payload []byte) error {
	if p.client == nil {
		return domain.NewError(domain.ErrCodeInternal, "feed transport not configured")
	}
	return p.client.Publish(ctx, feedChannel(conversationID), payload).Err()
}

func feedChannel(conversationID string) string {
	return "conversation:" + conversationID + ":feed"
}

type redisStream struct {
	pubsub *redislib.PubSub
	out    chan domain.Message
	logger *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

func (s *redisStream) Messages() <-chan domain.Message {
	return s.out
}

func (s *redisStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.pubsub.Close()
	})
	return s.closeErr
}

func (s *redisStream) pump(ctx context.Context) {
	defer close(s.out)
	defer s.Close()

	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-ch:
			if !ok {
				return
			}
			var msg domain.Message
			if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
				s.logger.Warn("malformed feed payload dropped", zap.Error(err))
				continue
			}
			select {
			case s.out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

var (
	_ usecase.MessageFeed  = (*FeedPublisher)(nil)
	_ usecase.FeedListener = (*FeedPublisher)(nil)
)
