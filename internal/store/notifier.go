package store

import (
	"context"
	"sync"
	"time"
)

// Notifier is the wake-up signal a queue backend raises after every enqueue,
// letting delivery workers sleep instead of busy-polling. It fans out to one
// buffered channel per subscriber so each per-world worker gets its own
// wake-up, and a slow worker never blocks the enqueuer.
type Notifier struct {
	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[chan struct{}]struct{})}
}

// Subscribe registers a new wake-up channel. The caller must Unsubscribe it
// when its worker stops.
func (n *Notifier) Subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	n.subs[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

func (n *Notifier) Unsubscribe(ch chan struct{}) {
	n.mu.Lock()
	delete(n.subs, ch)
	n.mu.Unlock()
}

// Notify wakes every subscriber. Non-blocking: a subscriber that already has
// a pending wake-up is skipped, which coalesces bursts of enqueues into a
// single list pass.
func (n *Notifier) Notify() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Wait blocks on the given subscription until a wake-up arrives, the bounded
// timeout elapses, or ctx is cancelled. The timeout is the fallback against
// missed wake-ups; it returns false only on ctx cancellation.
func (n *Notifier) Wait(ctx context.Context, sub chan struct{}, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-sub:
		return true
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
