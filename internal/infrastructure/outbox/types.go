package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Item is a feed event whose realtime publish has not been confirmed yet.
// It stays parked on disk until the dispatcher re-publishes it, giving the
// message feed its at-least-once delivery guarantee.
type Item struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	Payload        json.RawMessage `json:"payload"`
	Retries        int             `json:"retries"`
	Timestamp      time.Time       `json:"timestamp"`

	bucketKey []byte
}

func (i *Item) normalize() {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now()
	}
}
