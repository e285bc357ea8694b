package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/fableforge/directorq/internal/domain"
)

// QueueLimiters holds one token bucket limiter per approval queue.
// Each limiter caps how fast pending items are pushed at a connected
// Director, so a burst of resolutions never floods the approval UI.
// Burst is set equal to the rate so no extra burst capacity is allowed
// beyond the configured per-second maximum.
type QueueLimiters struct {
	limiters map[domain.QueueName]*rate.Limiter
}

// New creates a QueueLimiters with ratePerSec tokens per second per queue.
func New(ratePerSec int) *QueueLimiters {
	r := rate.Limit(ratePerSec)
	burst := ratePerSec

	limiters := make(map[domain.QueueName]*rate.Limiter, len(domain.ApprovalQueues))
	for _, name := range domain.ApprovalQueues {
		limiters[name] = rate.NewLimiter(r, burst)
	}
	return &QueueLimiters{limiters: limiters}
}

// Wait blocks until the queue's limiter grants a token.
// Called by each delivery worker immediately before pushing to the Director.
// Returns a non-nil error only if ctx is cancelled while waiting.
func (ql *QueueLimiters) Wait(ctx context.Context, q domain.QueueName) error {
	return ql.limiters[q].Wait(ctx)
}
