package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fableforge/directorq/internal/domain"
)

type pgQueueStore struct {
	pool     *pgxpool.Pool
	name     domain.QueueName
	table    string
	notifier *Notifier
}

// NewPgQueueStore returns a QueueStore backed by PostgreSQL. Each queue has
// its own table; the table name is derived from the queue name, which is a
// closed set of internal constants, never user input.
func NewPgQueueStore(pool *pgxpool.Pool, name domain.QueueName) QueueStore {
	return &pgQueueStore{
		pool:     pool,
		name:     name,
		table:    "queue_" + string(name),
		notifier: NewNotifier(),
	}
}

func (s *pgQueueStore) Name() domain.QueueName { return s.name }

func (s *pgQueueStore) Notifier() *Notifier { return s.notifier }

func (s *pgQueueStore) Enqueue(ctx context.Context, item *domain.QueueItem) error {
	now := time.Now().UTC()
	item.QueueName = s.name
	item.Status = domain.StatusPending
	item.CreatedAt = now
	item.UpdatedAt = now

	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s
			(id, world_id, payload, status, priority, attempts, max_attempts,
			 error_message, result, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`, s.table),
		item.ID, item.WorldID, item.Payload, item.Status, item.Priority,
		item.Attempts, item.MaxAttempts, item.ErrorMessage, item.Result,
		item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return storageErr("enqueue item", err)
	}
	s.notifier.Notify()
	return nil
}

func (s *pgQueueStore) GetByID(ctx context.Context, id string) (*domain.QueueItem, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT id, world_id, payload, status, priority, attempts, max_attempts,
		       error_message, result, created_at, updated_at
		FROM %s WHERE id = $1`, s.table), id)

	item, err := s.scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get item", err)
	}
	return item, nil
}

func (s *pgQueueStore) ListByWorld(ctx context.Context, worldID string) ([]*domain.QueueItem, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, world_id, payload, status, priority, attempts, max_attempts,
		       error_message, result, created_at, updated_at
		FROM %s
		WHERE world_id = $1 AND status IN ('pending','processing')
		ORDER BY priority DESC, created_at ASC`, s.table), worldID)
	if err != nil {
		return nil, storageErr("list items", err)
	}
	defer rows.Close()
	return s.scanItems(rows)
}

func (s *pgQueueStore) History(ctx context.Context, worldID string, limit int) ([]*domain.QueueItem, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, world_id, payload, status, priority, attempts, max_attempts,
		       error_message, result, created_at, updated_at
		FROM %s
		WHERE world_id = $1 AND status IN ('completed','failed','expired')
		ORDER BY updated_at DESC
		LIMIT $2`, s.table), worldID, limit)
	if err != nil {
		return nil, storageErr("list history", err)
	}
	defer rows.Close()
	return s.scanItems(rows)
}

func (s *pgQueueStore) MarkProcessing(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE %s
		SET status = 'processing', attempts = attempts + 1, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`, s.table), id)
	if err != nil {
		return false, storageErr("mark processing", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	return false, s.explainZeroRows(ctx, id)
}

func (s *pgQueueStore) MarkComplete(ctx context.Context, id string, result json.RawMessage) (bool, error) {
	// Terminal status and the resolved outcome commit in one statement, so a
	// completed item always carries its result.
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE %s
		SET status = 'completed', result = $2, updated_at = NOW()
		WHERE id = $1 AND status IN ('pending','processing')`, s.table), id, result)
	if err != nil {
		return false, storageErr("mark complete", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	return false, s.explainZeroRows(ctx, id)
}

func (s *pgQueueStore) MarkFailed(ctx context.Context, id string, reason string) (bool, error) {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE %s
		SET status = 'failed', error_message = $2, updated_at = NOW()
		WHERE id = $1 AND status IN ('pending','processing')`, s.table), id, reason)
	if err != nil {
		return false, storageErr("mark failed", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	return false, s.explainZeroRows(ctx, id)
}

func (s *pgQueueStore) MarkExpired(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE %s
		SET status = 'expired', updated_at = NOW()
		WHERE id = $1 AND status IN ('pending','processing')`, s.table), id)
	if err != nil {
		return false, storageErr("mark expired", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	return false, s.explainZeroRows(ctx, id)
}

func (s *pgQueueStore) StaleProcessingIDs(ctx context.Context, olderThan time.Duration) ([]string, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT id FROM %s
		WHERE status = 'processing' AND updated_at < $1`, s.table), cutoff)
	if err != nil {
		return nil, storageErr("list stale items", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storageErr("scan stale item", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("read stale items", err)
	}
	return ids, nil
}

func (s *pgQueueStore) PendingCount(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE status = 'pending'`, s.table),
	).Scan(&count)
	if err != nil {
		return 0, storageErr("count pending", err)
	}
	return count, nil
}

// ---- helpers ----

// explainZeroRows distinguishes "row does not exist" from "row exists but the
// guarded transition did not apply". A zero-row update is never treated as a
// silent success.
func (s *pgQueueStore) explainZeroRows(ctx context.Context, id string) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1)`, s.table), id,
	).Scan(&exists)
	if err != nil {
		return storageErr("check item exists", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return nil
}

func (s *pgQueueStore) scanItem(row pgx.Row) (*domain.QueueItem, error) {
	item := domain.QueueItem{QueueName: s.name}
	err := row.Scan(
		&item.ID, &item.WorldID, &item.Payload, &item.Status, &item.Priority,
		&item.Attempts, &item.MaxAttempts, &item.ErrorMessage, &item.Result,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *pgQueueStore) scanItems(rows pgx.Rows) ([]*domain.QueueItem, error) {
	var result []*domain.QueueItem
	for rows.Next() {
		item, err := s.scanItem(rows)
		if err != nil {
			return nil, storageErr("scan item", err)
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("read items", err)
	}
	return result, nil
}

// storageErr wraps a database failure so callers can detect it with
// errors.Is(err, domain.ErrStorageUnavailable) instead of mistaking it for an
// empty queue.
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorageUnavailable, err)
}
