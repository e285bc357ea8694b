package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/fableforge/directorq/internal/domain"
)

// MemoryQueueStore is the in-memory QueueStore used in tests and in DB-less
// deployments. It holds no durable state; the Postgres implementation is the
// production backend. No caller branches on which backend is active.
type MemoryQueueStore struct {
	mu       sync.RWMutex
	name     domain.QueueName
	items    map[string]*domain.QueueItem
	notifier *Notifier
	now      func() time.Time

	// Optional error overrides — set in tests to simulate storage failures.
	EnqueueErr      error
	GetByIDErr      error
	ListByWorldErr  error
	MarkCompleteErr error
}

func NewMemoryQueueStore(name domain.QueueName) *MemoryQueueStore {
	return &MemoryQueueStore{
		name:     name,
		items:    make(map[string]*domain.QueueItem),
		notifier: NewNotifier(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the store's clock. Tests use it to age items past the
// stale threshold without sleeping.
func (s *MemoryQueueStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *MemoryQueueStore) Name() domain.QueueName { return s.name }

func (s *MemoryQueueStore) Notifier() *Notifier { return s.notifier }

func (s *MemoryQueueStore) Enqueue(_ context.Context, item *domain.QueueItem) error {
	if s.EnqueueErr != nil {
		return s.EnqueueErr
	}
	s.mu.Lock()
	now := s.now()
	clone := *item
	clone.QueueName = s.name
	clone.Status = domain.StatusPending
	clone.CreatedAt = now
	clone.UpdatedAt = now
	s.items[clone.ID] = &clone
	s.mu.Unlock()

	// Mirror the stored record back to the caller, then wake workers.
	*item = clone
	s.notifier.Notify()
	return nil
}

func (s *MemoryQueueStore) GetByID(_ context.Context, id string) (*domain.QueueItem, error) {
	if s.GetByIDErr != nil {
		return nil, s.GetByIDErr
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *item
	return &clone, nil
}

func (s *MemoryQueueStore) ListByWorld(_ context.Context, worldID string) ([]*domain.QueueItem, error) {
	if s.ListByWorldErr != nil {
		return nil, s.ListByWorldErr
	}
	s.mu.RLock()
	var result []*domain.QueueItem
	for _, item := range s.items {
		if item.WorldID != worldID {
			continue
		}
		if item.Status != domain.StatusPending && item.Status != domain.StatusProcessing {
			continue
		}
		clone := *item
		result = append(result, &clone)
	}
	s.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Priority != result[j].Priority {
			return result[i].Priority > result[j].Priority
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *MemoryQueueStore) History(_ context.Context, worldID string, limit int) ([]*domain.QueueItem, error) {
	s.mu.RLock()
	var result []*domain.QueueItem
	for _, item := range s.items {
		if item.WorldID != worldID || !item.Status.IsTerminal() {
			continue
		}
		clone := *item
		result = append(result, &clone)
	}
	s.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *MemoryQueueStore) MarkProcessing(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if item.Status != domain.StatusPending {
		return false, nil
	}
	item.Status = domain.StatusProcessing
	item.Attempts++
	item.UpdatedAt = s.now()
	return true, nil
}

func (s *MemoryQueueStore) MarkComplete(_ context.Context, id string, result json.RawMessage) (bool, error) {
	if s.MarkCompleteErr != nil {
		return false, s.MarkCompleteErr
	}
	return s.terminal(id, domain.StatusCompleted, func(item *domain.QueueItem) {
		item.Result = result
	})
}

func (s *MemoryQueueStore) MarkFailed(_ context.Context, id string, reason string) (bool, error) {
	return s.terminal(id, domain.StatusFailed, func(item *domain.QueueItem) {
		item.ErrorMessage = &reason
	})
}

func (s *MemoryQueueStore) MarkExpired(_ context.Context, id string) (bool, error) {
	return s.terminal(id, domain.StatusExpired, nil)
}

// terminal applies a terminal transition under one lock so the status change
// and its paired record (result or error message) are observed together.
func (s *MemoryQueueStore) terminal(id string, status domain.Status, mutate func(*domain.QueueItem)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if item.Status.IsTerminal() {
		return false, nil
	}
	item.Status = status
	if mutate != nil {
		mutate(item)
	}
	item.UpdatedAt = s.now()
	return true, nil
}

func (s *MemoryQueueStore) StaleProcessingIDs(_ context.Context, olderThan time.Duration) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := s.now().Add(-olderThan)
	var ids []string
	for _, item := range s.items {
		if item.Status == domain.StatusProcessing && item.UpdatedAt.Before(cutoff) {
			ids = append(ids, item.ID)
		}
	}
	return ids, nil
}

func (s *MemoryQueueStore) PendingCount(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, item := range s.items {
		if item.Status == domain.StatusPending {
			count++
		}
	}
	return count, nil
}

// compile-time check
var _ QueueStore = (*MemoryQueueStore)(nil)
