package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fableforge/directorq/internal/domain"
	"github.com/fableforge/directorq/internal/ratelimiter"
	"github.com/fableforge/directorq/internal/store"
	"github.com/fableforge/directorq/internal/transport"
)

// Hub tracks which worlds have a Director connected and manages the delivery
// workers serving them: one worker per (world, queue).
//
// Connect always starts workers with a fresh delivered set, so a reconnecting
// Director receives the full backlog of every approval queue again.
type Hub struct {
	stores      []store.QueueStore
	director    transport.Director
	limiter     *ratelimiter.QueueLimiters
	waitTimeout time.Duration
	logger      *zap.Logger

	onDeliveryFailed func(domain.QueueName)

	mu       sync.Mutex
	baseCtx  context.Context
	sessions map[string]context.CancelFunc
	wg       sync.WaitGroup
}

func NewHub(
	stores []store.QueueStore,
	director transport.Director,
	limiter *ratelimiter.QueueLimiters,
	waitTimeout time.Duration,
	logger *zap.Logger,
	onDeliveryFailed func(domain.QueueName),
) *Hub {
	return &Hub{
		stores:           stores,
		director:         director,
		limiter:          limiter,
		waitTimeout:      waitTimeout,
		logger:           logger,
		onDeliveryFailed: onDeliveryFailed,
		sessions:         make(map[string]context.CancelFunc),
	}
}

// Start fixes the base context every session derives from. Cancelling it
// shuts down all workers; call Wait afterwards to let them drain.
func (h *Hub) Start(ctx context.Context) {
	h.mu.Lock()
	h.baseCtx = ctx
	h.mu.Unlock()
}

// Connect registers a Director for the world and spawns its delivery
// workers. An existing session for the same world is replaced, which resets
// the delivered set and redelivers the backlog.
func (h *Hub) Connect(worldID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cancel, ok := h.sessions[worldID]; ok {
		cancel()
	}

	base := h.baseCtx
	if base == nil {
		base = context.Background()
	}
	ctx, cancel := context.WithCancel(base)
	h.sessions[worldID] = cancel

	for _, st := range h.stores {
		w := NewDeliveryWorker(
			st, worldID, h.director, h.limiter, h.waitTimeout,
			h.logger, h.onDeliveryFailed,
		)
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			w.Run(ctx)
		}()
	}

	h.logger.Info("director connected", zap.String("world_id", worldID))
}

// Disconnect cancels the world's delivery workers. Unknown worlds are a no-op.
func (h *Hub) Disconnect(worldID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cancel, ok := h.sessions[worldID]
	if !ok {
		return
	}
	cancel()
	delete(h.sessions, worldID)
	h.logger.Info("director disconnected", zap.String("world_id", worldID))
}

// Connected reports whether the world currently has a Director session.
func (h *Hub) Connected(worldID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.sessions[worldID]
	return ok
}

// Wait blocks until every worker has returned after the base context is
// cancelled. Call this during shutdown to ensure in-flight pushes finish.
func (h *Hub) Wait() {
	h.wg.Wait()
}
