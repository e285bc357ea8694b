package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fableforge/directorq/internal/domain"
	"github.com/fableforge/directorq/internal/service"
)

// SweepWorker periodically expires items stuck in processing: claimed for
// delivery but never decided, typically because the Director vanished
// mid-session. Expiry makes the stall visible instead of leaving items in
// limbo forever.
type SweepWorker struct {
	svc       *service.ApprovalService
	interval  time.Duration
	threshold time.Duration
	logger    *zap.Logger
	onExpired func(count int)
	onDepths  func(map[domain.QueueName]int)
}

// NewSweepWorker constructs the sweeper. The hooks are optional (nil = no-op).
func NewSweepWorker(
	svc *service.ApprovalService,
	interval time.Duration,
	threshold time.Duration,
	logger *zap.Logger,
	onExpired func(int),
	onDepths func(map[domain.QueueName]int),
) *SweepWorker {
	if onExpired == nil {
		onExpired = func(int) {}
	}
	if onDepths == nil {
		onDepths = func(map[domain.QueueName]int) {}
	}
	return &SweepWorker{
		svc:       svc,
		interval:  interval,
		threshold: threshold,
		logger:    logger,
		onExpired: onExpired,
		onDepths:  onDepths,
	}
}

// Run ticks every interval and sweeps stale items across all queues.
// Stops cleanly when ctx is cancelled.
func (sw *SweepWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	sw.logger.Info("sweep worker started",
		zap.Duration("interval", sw.interval),
		zap.Duration("threshold", sw.threshold))

	for {
		select {
		case <-ctx.Done():
			sw.logger.Info("sweep worker stopping")
			return
		case <-ticker.C:
			sw.sweep(ctx)
		}
	}
}

func (sw *SweepWorker) sweep(ctx context.Context) {
	expired, err := sw.svc.ExpireStale(ctx, sw.threshold)
	if err != nil {
		sw.logger.Error("stale sweep error", zap.Error(err))
		return
	}
	if expired > 0 {
		sw.onExpired(expired)
		sw.logger.Info("expired stale items", zap.Int("count", expired))
	}

	depths, err := sw.svc.PendingDepths(ctx)
	if err != nil {
		sw.logger.Error("depth sample error", zap.Error(err))
		return
	}
	sw.onDepths(depths)
}
