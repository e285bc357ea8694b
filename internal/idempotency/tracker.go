// Package idempotency guards decision application: each queue item accepts
// exactly one Director decision, no matter how many times the request is
// retried or double-submitted from the UI.
package idempotency

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fableforge/directorq/internal/domain"
)

// Tracker records which item IDs have already had a decision applied.
//
// Claim INSERTS the ID into the processed set and reports whether this call
// performed the insertion. The set only grows during normal operation:
// claiming must never remove an ID, since removal would re-open the item to a
// second, conflicting decision.
type Tracker interface {
	// Claim returns true exactly once per ID. Every later call returns false.
	Claim(ctx context.Context, itemID string) (bool, error)

	// IsProcessed reports membership without mutating the set.
	IsProcessed(ctx context.Context, itemID string) (bool, error)

	// Release removes a claim. Used only to roll back when decision
	// application fails after the claim, so the Director can retry.
	Release(ctx context.Context, itemID string) error
}

// MemoryTracker is the map-backed Tracker paired with the in-memory queue
// backend.
type MemoryTracker struct {
	mu        sync.Mutex
	processed map[string]struct{}
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{processed: make(map[string]struct{})}
}

func (t *MemoryTracker) Claim(_ context.Context, itemID string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, seen := t.processed[itemID]; seen {
		return false, nil
	}
	t.processed[itemID] = struct{}{}
	return true, nil
}

func (t *MemoryTracker) IsProcessed(_ context.Context, itemID string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, seen := t.processed[itemID]
	return seen, nil
}

func (t *MemoryTracker) Release(_ context.Context, itemID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.processed, itemID)
	return nil
}

// PgTracker stores claims in the processed_decisions table. The primary-key
// conflict makes Claim atomic across service instances sharing a database.
type PgTracker struct {
	pool *pgxpool.Pool
}

func NewPgTracker(pool *pgxpool.Pool) *PgTracker {
	return &PgTracker{pool: pool}
}

func (t *PgTracker) Claim(ctx context.Context, itemID string) (bool, error) {
	tag, err := t.pool.Exec(ctx, `
		INSERT INTO processed_decisions (item_id, claimed_at)
		VALUES ($1, NOW())
		ON CONFLICT (item_id) DO NOTHING`, itemID)
	if err != nil {
		return false, domain.ErrStorageUnavailable
	}
	return tag.RowsAffected() == 1, nil
}

func (t *PgTracker) IsProcessed(ctx context.Context, itemID string) (bool, error) {
	var exists bool
	err := t.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM processed_decisions WHERE item_id = $1)`, itemID,
	).Scan(&exists)
	if err != nil {
		return false, domain.ErrStorageUnavailable
	}
	return exists, nil
}

func (t *PgTracker) Release(ctx context.Context, itemID string) error {
	_, err := t.pool.Exec(ctx,
		`DELETE FROM processed_decisions WHERE item_id = $1`, itemID)
	if err != nil {
		return domain.ErrStorageUnavailable
	}
	return nil
}

var (
	_ Tracker = (*MemoryTracker)(nil)
	_ Tracker = (*PgTracker)(nil)
)
