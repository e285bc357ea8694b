package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fableforge/directorq/internal/domain"
	"github.com/fableforge/directorq/internal/ratelimiter"
	"github.com/fableforge/directorq/internal/store"
	"github.com/fableforge/directorq/internal/transport"
)

// DeliveryWorker is a single goroutine serving one (world, queue) pair: it
// pushes that world's pending items to the connected Director, sleeping on
// the store's notifier between batches.
//
// The delivered set is local to the worker and dies with it, so a Director
// reconnect (which spawns fresh workers) redelivers the entire backlog.
type DeliveryWorker struct {
	store       store.QueueStore
	worldID     string
	director    transport.Director
	limiter     *ratelimiter.QueueLimiters
	waitTimeout time.Duration
	logger      *zap.Logger

	// Hook for metrics — injected by the hub so the worker stays metrics-agnostic.
	onDeliveryFailed func(domain.QueueName)

	delivered map[string]struct{}
}

// NewDeliveryWorker constructs a worker. onDeliveryFailed is optional (nil = no-op).
func NewDeliveryWorker(
	st store.QueueStore,
	worldID string,
	director transport.Director,
	limiter *ratelimiter.QueueLimiters,
	waitTimeout time.Duration,
	logger *zap.Logger,
	onDeliveryFailed func(domain.QueueName),
) *DeliveryWorker {
	if onDeliveryFailed == nil {
		onDeliveryFailed = func(domain.QueueName) {}
	}
	return &DeliveryWorker{
		store:            st,
		worldID:          worldID,
		director:         director,
		limiter:          limiter,
		waitTimeout:      waitTimeout,
		logger:           logger,
		onDeliveryFailed: onDeliveryFailed,
		delivered:        make(map[string]struct{}),
	}
}

// Run blocks until ctx is cancelled, delivering the current backlog and then
// waiting for the next enqueue. The timeout on the wait is the recovery path
// for missed wake-ups and transient storage failures.
func (w *DeliveryWorker) Run(ctx context.Context) {
	log := w.logger.With(
		zap.String("world_id", w.worldID),
		zap.String("queue", string(w.store.Name())),
	)
	log.Info("delivery worker started")

	sub := w.store.Notifier().Subscribe()
	defer w.store.Notifier().Unsubscribe(sub)

	for {
		w.deliverBacklog(ctx, log)
		if !w.store.Notifier().Wait(ctx, sub, w.waitTimeout) {
			log.Info("delivery worker stopping")
			return
		}
	}
}

func (w *DeliveryWorker) deliverBacklog(ctx context.Context, log *zap.Logger) {
	items, err := w.store.ListByWorld(ctx, w.worldID)
	if err != nil {
		// A storage failure is not an empty queue: keep the delivered set
		// intact and retry on the next wake-up.
		log.Error("failed to list pending items", zap.Error(err))
		return
	}

	for _, item := range items {
		if _, done := w.delivered[item.ID]; done {
			continue
		}
		if err := w.limiter.Wait(ctx, w.store.Name()); err != nil {
			return // ctx cancelled while waiting
		}

		delivery := domain.PendingDelivery{
			ItemID:    item.ID,
			QueueName: item.QueueName,
			WorldID:   item.WorldID,
			Priority:  item.Priority,
			Payload:   item.Payload,
			CreatedAt: item.CreatedAt,
		}
		if err := w.director.DeliverPending(ctx, w.worldID, delivery); err != nil {
			w.onDeliveryFailed(w.store.Name())
			log.Warn("delivery to director failed",
				zap.String("item_id", item.ID), zap.Error(err))
			continue
		}

		w.delivered[item.ID] = struct{}{}
		if item.Status == domain.StatusPending {
			if _, err := w.store.MarkProcessing(ctx, item.ID); err != nil {
				log.Error("failed to claim delivered item",
					zap.String("item_id", item.ID), zap.Error(err))
			}
		}
		log.Debug("pending item delivered", zap.String("item_id", item.ID))
	}
}
