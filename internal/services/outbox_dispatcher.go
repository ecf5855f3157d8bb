package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/tilebid/backend/internal/infrastructure/outbox"
)

// ConnectionHealth gates the drain loop on the feed transport being up.
type ConnectionHealth interface {
	RedisOnline() bool
}

// Replayer re-publishes a parked feed event.
type Replayer interface {
	Replay(ctx context.Context, item outbox.Item) error
}

// DispatcherConfig controls how frequently the outbox is drained.
type DispatcherConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
}

// OutboxDispatcher replays parked feed events once the transport is back.
type OutboxDispatcher struct {
	store     *outbox.Store
	monitor   ConnectionHealth
	publisher Replayer
	logger    *zap.Logger
	cron      *cron.Cron
	cfg       DispatcherConfig
}

func NewOutboxDispatcher(
	store *outbox.Store,
	monitor ConnectionHealth,
	publisher Replayer,
	logger *zap.Logger,
	cfg DispatcherConfig,
) *OutboxDispatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	// The schedule is expressed in whole seconds; anything shorter would
	// render as "@every 0s", which cron rejects.
	if cfg.Interval < time.Second {
		cfg.Interval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &OutboxDispatcher{
		store:     store,
		monitor:   monitor,
		publisher: publisher,
		logger:    logger,
		cfg:       cfg,
		cron:      cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	if _, err := d.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := d.Drain(ctx); err != nil {
			d.logger.Error("outbox drain failed", zap.Error(err))
		}
	}); err != nil {
		d.logger.Error("outbox drain schedule rejected",
			zap.String("schedule", schedule),
			zap.Error(err),
		)
	}

	return d
}

// Start launches the cron scheduler.
func (d *OutboxDispatcher) Start() {
	if d == nil || d.cron == nil {
		return
	}
	d.cron.Start()
	d.logger.Info("outbox dispatcher started")
}

// Stop gracefully stops the scheduler.
func (d *OutboxDispatcher) Stop(ctx context.Context) {
	if d == nil || d.cron == nil {
		return
	}
	stopCtx := d.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	d.logger.Info("outbox dispatcher stopped")
}

// Drain replays one batch of parked events. Items that keep failing past
// the retry budget are dropped: subscribers recover them from message
// history on their next reconcile, the row itself is never at risk.
func (d *OutboxDispatcher) Drain(ctx context.Context) error {
	if d.monitor != nil && !d.monitor.RedisOnline() {
		return nil
	}

	items, err := d.store.GetBatch(d.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := d.publisher.Replay(ctx, item); err != nil {
			if item.Retries+1 >= d.cfg.MaxRetries {
				d.logger.Warn("outbox item dropped after retries",
					zap.String("item_id", item.ID),
					zap.String("conversation_id", item.ConversationID),
					zap.Int("retries", item.Retries),
				)
				if err := d.store.Remove(item); err != nil {
					return err
				}
				continue
			}
			if err := d.store.Requeue(item); err != nil {
				return err
			}
			continue
		}

		if err := d.store.Remove(item); err != nil {
			return err
		}
	}
	return nil
}
