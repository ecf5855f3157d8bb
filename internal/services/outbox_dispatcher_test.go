package services

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tilebid/backend/internal/infrastructure/outbox"
)

type fakeHealth struct {
	online bool
}

func (h *fakeHealth) RedisOnline() bool { return h.online }

type fakeReplayer struct {
	mu       sync.Mutex
	replayed []string
	fail     map[string]bool
}

func (r *fakeReplayer) Replay(ctx context.Context, item outbox.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replayed = append(r.replayed, item.ID)
	if r.fail[item.ID] {
		return errors.New("broker unavailable")
	}
	return nil
}

func newDispatcherFixture(t *testing.T, online bool, maxRetries int) (*OutboxDispatcher, *outbox.Store, *fakeReplayer) {
	t.Helper()
	store, err := outbox.Open(filepath.Join(t.TempDir(), "outbox.db"), "test")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	replayer := &fakeReplayer{fail: make(map[string]bool)}
	d := NewOutboxDispatcher(store, &fakeHealth{online: online}, replayer, nil, DispatcherConfig{
		Interval:   time.Minute,
		BatchSize:  10,
		MaxRetries: maxRetries,
	})
	return d, store, replayer
}

func park(t *testing.T, store *outbox.Store, id string, at time.Time) {
	t.Helper()
	err := store.Enqueue(outbox.Item{
		ID:             id,
		ConversationID: "conv-1",
		Payload:        json.RawMessage(`{"body":"hi"}`),
		Timestamp:      at,
	})
	if err != nil {
		t.Fatalf("enqueue %s: %v", id, err)
	}
}

func TestDrainReplaysInOrderAndEmptiesQueue(t *testing.T) {
	d, store, replayer := newDispatcherFixture(t, true, 3)

	base := time.Now()
	park(t, store, "a", base)
	park(t, store, "b", base.Add(time.Millisecond))
	park(t, store, "c", base.Add(2*time.Millisecond))

	if err := d.Drain(context.Background()); err != nil {
		t.Fatalf("drain failed: %v", err)
	}

	want := []string{"a", "b", "c"}
	if len(replayer.replayed) != len(want) {
		t.Fatalf("expected %d replays, got %v", len(want), replayer.replayed)
	}
	for i := range want {
		if replayer.replayed[i] != want[i] {
			t.Errorf("replay %d: got %q, want %q", i, replayer.replayed[i], want[i])
		}
	}

	size, err := store.Size()
	if err != nil {
		t.Fatalf("size failed: %v", err)
	}
	if size != 0 {
		t.Errorf("expected empty queue after clean drain, got %d items", size)
	}
}

func TestDrainSkipsWhileTransportOffline(t *testing.T) {
	d, store, replayer := newDispatcherFixture(t, false, 3)
	park(t, store, "waiting", time.Now())

	if err := d.Drain(context.Background()); err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	if len(replayer.replayed) != 0 {
		t.Errorf("offline transport must not be touched, got replays %v", replayer.replayed)
	}
	size, _ := store.Size()
	if size != 1 {
		t.Errorf("item must stay parked, queue size %d", size)
	}
}

func TestDrainRequeuesFailedItem(t *testing.T) {
	d, store, replayer := newDispatcherFixture(t, true, 3)
	park(t, store, "flaky", time.Now())
	replayer.fail["flaky"] = true

	if err := d.Drain(context.Background()); err != nil {
		t.Fatalf("drain failed: %v", err)
	}

	batch, err := store.GetBatch(10)
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if len(batch) != 1 {
		t.Fatalf("expected item back in queue, got %d items", len(batch))
	}
	if batch[0].Retries != 1 {
		t.Errorf("expected retry count 1, got %d", batch[0].Retries)
	}

	// The broker recovers; the next drain delivers the event.
	replayer.fail["flaky"] = false
	if err := d.Drain(context.Background()); err != nil {
		t.Fatalf("second drain failed: %v", err)
	}
	size, _ := store.Size()
	if size != 0 {
		t.Errorf("recovered item must be delivered and removed, queue size %d", size)
	}
}

func TestDrainDropsItemPastRetryBudget(t *testing.T) {
	d, store, replayer := newDispatcherFixture(t, true, 2)
	park(t, store, "doomed", time.Now())
	replayer.fail["doomed"] = true

	// First drain requeues (retries 0 -> 1), second drain hits the budget.
	for i := 0; i < 2; i++ {
		if err := d.Drain(context.Background()); err != nil {
			t.Fatalf("drain %d failed: %v", i, err)
		}
	}

	size, err := store.Size()
	if err != nil {
		t.Fatalf("size failed: %v", err)
	}
	if size != 0 {
		t.Errorf("exhausted item must be dropped, queue size %d", size)
	}
	if len(replayer.replayed) != 2 {
		t.Errorf("expected exactly 2 replay attempts, got %v", replayer.replayed)
	}
}

func TestSubSecondIntervalStillSchedules(t *testing.T) {
	store, err := outbox.Open(filepath.Join(t.TempDir(), "outbox.db"), "test")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	d := NewOutboxDispatcher(store, &fakeHealth{online: true}, &fakeReplayer{}, nil, DispatcherConfig{
		Interval: 200 * time.Millisecond,
	})

	if d.cfg.Interval != time.Second {
		t.Errorf("sub-second interval must be floored to 1s, got %v", d.cfg.Interval)
	}
	if len(d.cron.Entries()) != 1 {
		t.Errorf("expected 1 scheduled drain, got %d", len(d.cron.Entries()))
	}
}

func TestDrainStopsOnCanceledContext(t *testing.T) {
	d, store, replayer := newDispatcherFixture(t, true, 3)
	park(t, store, "pending", time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := d.Drain(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(replayer.replayed) != 0 {
		t.Errorf("canceled drain must not replay, got %v", replayer.replayed)
	}
}
