package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fableforge/directorq/internal/domain"
)

// QueueStore defines all persistence operations for one logical queue.
// The pgx implementation is in pg_queue_store.go; tests and DB-less
// deployments use the in-memory implementation (memory_queue_store.go).
//
// The store is the sole serialization point for item state: every caller
// goes through claim/mark operations, never mutates records directly.
type QueueStore interface {
	// Name returns the queue this store backs.
	Name() domain.QueueName

	// Enqueue persists a new item with Pending status. The item's WorldID
	// must already be extracted from the payload; it is stored alongside so
	// listing can filter without decoding payloads.
	Enqueue(ctx context.Context, item *domain.QueueItem) error

	GetByID(ctx context.Context, id string) (*domain.QueueItem, error)

	// ListByWorld returns Pending and Processing items for exactly the given
	// world, ordered by priority descending then created_at ascending.
	// Returning another world's items is a correctness violation: it would
	// leak one Director's approval queue into another world's session.
	ListByWorld(ctx context.Context, worldID string) ([]*domain.QueueItem, error)

	// History returns terminal-status items for the world, most recent first.
	History(ctx context.Context, worldID string, limit int) ([]*domain.QueueItem, error)

	// MarkProcessing claims a Pending item for delivery, incrementing its
	// attempt counter. Returns false when the item is not claimable
	// (already Processing or terminal), ErrNotFound when it does not exist.
	MarkProcessing(ctx context.Context, id string) (bool, error)

	// MarkComplete transitions the item to Completed and writes the resolved
	// outcome in the same statement, so the terminal status and its paired
	// result record commit together or not at all. Returns whether this call
	// caused the transition: false (no error) when already terminal,
	// ErrNotFound when the row does not exist. A zero-row update against a
	// missing item is an error, never a silent no-op.
	MarkComplete(ctx context.Context, id string, result json.RawMessage) (bool, error)

	MarkFailed(ctx context.Context, id string, reason string) (bool, error)
	MarkExpired(ctx context.Context, id string) (bool, error)

	// StaleProcessingIDs lists Processing items whose updated_at is older
	// than the threshold. The sweep filters out IDs with a live decision
	// claim before expiring the rest, so an item mid-decision is never
	// expired out from under the Director.
	StaleProcessingIDs(ctx context.Context, olderThan time.Duration) ([]string, error)

	// PendingCount reports the current Pending depth for the snapshot endpoint.
	PendingCount(ctx context.Context) (int, error)

	// Notifier returns the wake-up signal for this queue. Each store instance
	// owns its own notifier so multiple queues and worlds never cross-wake.
	Notifier() *Notifier
}
