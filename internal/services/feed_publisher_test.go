package services

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/tilebid/backend/domain"
	"github.com/tilebid/backend/internal/infrastructure/outbox"
)

func TestPublishParksInOutboxWhenTransportIsDown(t *testing.T) {
	store, err := outbox.Open(filepath.Join(t.TempDir(), "outbox.db"), "test")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	p := NewFeedPublisher(nil, store, nil)

	msg := &domain.Message{
		ID:             "m1",
		ConversationID: "conv-1",
		SenderID:       "tiler",
		Body:           "hello",
	}
	if err := p.Publish(context.Background(), msg); err != nil {
		t.Fatalf("publish must degrade to the outbox, got %v", err)
	}

	batch, err := store.GetBatch(10)
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if len(batch) != 1 {
		t.Fatalf("expected 1 parked item, got %d", len(batch))
	}
	item := batch[0]
	if item.ID != "m1" || item.ConversationID != "conv-1" {
		t.Errorf("parked item misidentified: %+v", item)
	}

	var parked domain.Message
	if err := json.Unmarshal(item.Payload, &parked); err != nil {
		t.Fatalf("payload must round-trip: %v", err)
	}
	if parked.Body != "hello" {
		t.Errorf("payload body lost: %q", parked.Body)
	}
}

func TestPublishRejectsNilMessage(t *testing.T) {
	p := NewFeedPublisher(nil, nil, nil)
	if err := p.Publish(context.Background(), nil); !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestPublishSurfacesErrorWithoutOutbox(t *testing.T) {
	p := NewFeedPublisher(nil, nil, nil)
	err := p.Publish(context.Background(), &domain.Message{ID: "m1", ConversationID: "conv-1", Body: "hi"})
	if !domain.IsDomainError(err, domain.ErrCodeInternal) {
		t.Fatalf("without an outbox the transport error must surface, got %v", err)
	}
}
