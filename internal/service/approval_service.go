package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fableforge/directorq/internal/broadcast"
	"github.com/fableforge/directorq/internal/domain"
	"github.com/fableforge/directorq/internal/idempotency"
	"github.com/fableforge/directorq/internal/store"
)

// MetricHooks are optional callbacks fired on queue activity. Keeping them as
// plain functions means this package never imports prometheus directly.
type MetricHooks struct {
	OnEnqueued func(domain.QueueName)
	OnDecided  func(domain.QueueName, domain.DecisionKind, time.Duration)
}

// ApprovalService coordinates the queue stores, the idempotency tracker, and
// the broadcast router. All business rules (at-most-once decisions, decision
// translation, terminal-write discipline) live here. HTTP handlers and
// workers depend on this service, not on each other.
type ApprovalService struct {
	stores  map[domain.QueueName]store.QueueStore
	tracker idempotency.Tracker
	router  broadcast.Router
	logger  *zap.Logger
	hooks   MetricHooks

	// results caches resolved outcomes by item ID so a duplicate decision can
	// be answered with the original result instead of an opaque conflict.
	mu      sync.Mutex
	results map[string]*domain.ResolvedOutcome
}

func NewApprovalService(
	stores []store.QueueStore,
	tracker idempotency.Tracker,
	router broadcast.Router,
	logger *zap.Logger,
	hooks MetricHooks,
) *ApprovalService {
	byName := make(map[domain.QueueName]store.QueueStore, len(stores))
	for _, s := range stores {
		byName[s.Name()] = s
	}
	return &ApprovalService{
		stores:  byName,
		tracker: tracker,
		router:  router,
		logger:  logger,
		hooks:   hooks,
		results: make(map[string]*domain.ResolvedOutcome),
	}
}

// Store returns the QueueStore backing the named queue.
func (s *ApprovalService) Store(name domain.QueueName) (store.QueueStore, error) {
	st, ok := s.stores[name]
	if !ok {
		return nil, domain.ErrInvalidQueue
	}
	return st, nil
}

// QueueChallengeOutcome places a computed challenge outcome on the approval
// queue. Every resolution passes through here; nothing reaches players until
// a Director decides.
func (s *ApprovalService) QueueChallengeOutcome(ctx context.Context, payload *domain.ChallengeApproval) (resolutionID, itemID string, err error) {
	if payload.ResolutionID == "" {
		payload.ResolutionID = uuid.New().String()
	}
	for i := range payload.OutcomeTriggers {
		if payload.OutcomeTriggers[i].ID == "" {
			payload.OutcomeTriggers[i].ID = uuid.New().String()
		}
	}
	if err := payload.Validate(); err != nil {
		return "", "", err
	}

	itemID, err = s.enqueue(ctx, domain.QueueChallengeOutcomes, payload.WorldID, domain.PriorityHigh, payload)
	if err != nil {
		return "", "", err
	}
	return payload.ResolutionID, itemID, nil
}

// QueueDialogueSuggestion places LLM-proposed NPC dialogue on the approval
// queue.
func (s *ApprovalService) QueueDialogueSuggestion(ctx context.Context, payload *domain.DialogueApproval) (string, error) {
	for i := range payload.ProposedTriggers {
		if payload.ProposedTriggers[i].ID == "" {
			payload.ProposedTriggers[i].ID = uuid.New().String()
		}
	}
	if err := payload.Validate(); err != nil {
		return "", err
	}
	return s.enqueue(ctx, domain.QueueDirectorApprovals, payload.WorldID, domain.PriorityNormal, payload)
}

func (s *ApprovalService) enqueue(ctx context.Context, queue domain.QueueName, worldID string, priority domain.Priority, payload any) (string, error) {
	st, err := s.Store(queue)
	if err != nil {
		return "", err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	item := &domain.QueueItem{
		ID:          uuid.New().String(),
		WorldID:     worldID,
		Payload:     raw,
		Priority:    priority,
		MaxAttempts: 3,
	}
	if err := st.Enqueue(ctx, item); err != nil {
		return "", fmt.Errorf("enqueue on %s: %w", queue, err)
	}

	if s.hooks.OnEnqueued != nil {
		s.hooks.OnEnqueued(queue)
	}
	s.logger.Info("item queued for approval",
		zap.String("queue", string(queue)),
		zap.String("world_id", worldID),
		zap.String("item_id", item.ID),
		zap.Int("priority", int(priority)))
	return item.ID, nil
}

// ApplyDecision applies a Director decision to a pending item, exactly once.
//
// The idempotency claim happens before anything else, so a concurrent
// duplicate loses immediately and an in-flight decision can never be expired
// out from under us. When a duplicate arrives after the first decision
// finished, the cached outcome is returned alongside ErrDuplicateDecision so
// the caller can answer it as a no-op success.
func (s *ApprovalService) ApplyDecision(ctx context.Context, itemID string, decision *domain.Decision) (*domain.ResolvedOutcome, error) {
	if err := decision.Validate(); err != nil {
		return nil, err
	}

	claimed, err := s.tracker.Claim(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("claim decision: %w", err)
	}
	if !claimed {
		return s.cachedResult(itemID), domain.ErrDuplicateDecision
	}

	item, st, err := s.findItem(ctx, itemID)
	if err != nil {
		s.releaseClaim(ctx, itemID)
		return nil, err
	}
	if item.Status.IsTerminal() {
		// Terminal by another path (expiry sweep, delivery failure) — the
		// claim must not survive a decision that was never applied.
		s.releaseClaim(ctx, itemID)
		return nil, domain.ErrAlreadyTerminal
	}

	outcome, err := s.translate(item, decision)
	if err != nil {
		s.releaseClaim(ctx, itemID)
		return nil, err
	}

	result, err := json.Marshal(outcome)
	if err != nil {
		s.releaseClaim(ctx, itemID)
		return nil, fmt.Errorf("marshal outcome: %w", err)
	}

	changed, err := st.MarkComplete(ctx, itemID, result)
	if err != nil {
		// The outcome was computed but never became durable. Reporting
		// success here would strand the item in processing forever, so the
		// whole operation fails and the claim is rolled back for a retry.
		s.releaseClaim(ctx, itemID)
		return nil, fmt.Errorf("%w: %w", domain.ErrQueueCleanupFailure, err)
	}
	if !changed {
		s.releaseClaim(ctx, itemID)
		return nil, domain.ErrAlreadyTerminal
	}

	s.mu.Lock()
	s.results[itemID] = outcome
	s.mu.Unlock()

	s.publish(ctx, item, outcome)

	if s.hooks.OnDecided != nil {
		s.hooks.OnDecided(st.Name(), decision.Kind, time.Since(item.CreatedAt))
	}
	s.logger.Info("decision applied",
		zap.String("queue", string(st.Name())),
		zap.String("world_id", item.WorldID),
		zap.String("item_id", itemID),
		zap.String("decision", string(decision.Kind)))
	return outcome, nil
}

// PendingForWorld merges the pending backlog of every approval queue for one
// world, ordered by priority descending then age.
func (s *ApprovalService) PendingForWorld(ctx context.Context, worldID string) ([]*domain.QueueItem, error) {
	var merged []*domain.QueueItem
	for _, name := range domain.ApprovalQueues {
		items, err := s.stores[name].ListByWorld(ctx, worldID)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", name, err)
		}
		merged = append(merged, items...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Priority != merged[j].Priority {
			return merged[i].Priority > merged[j].Priority
		}
		return merged[i].CreatedAt.Before(merged[j].CreatedAt)
	})
	return merged, nil
}

// HistoryForWorld merges resolved items across queues, most recent first.
func (s *ApprovalService) HistoryForWorld(ctx context.Context, worldID string, limit int) ([]*domain.QueueItem, error) {
	var merged []*domain.QueueItem
	for _, name := range domain.ApprovalQueues {
		items, err := s.stores[name].History(ctx, worldID, limit)
		if err != nil {
			return nil, fmt.Errorf("history %s: %w", name, err)
		}
		merged = append(merged, items...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].UpdatedAt.After(merged[j].UpdatedAt)
	})
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// ExpireStale sweeps every queue, returning the total number of items moved
// to expired. Items with a live decision claim are skipped: a claim means a
// decision is being applied right now, and expiry only targets items nobody
// is deciding on.
func (s *ApprovalService) ExpireStale(ctx context.Context, olderThan time.Duration) (int, error) {
	total := 0
	for _, name := range domain.ApprovalQueues {
		st := s.stores[name]
		ids, err := st.StaleProcessingIDs(ctx, olderThan)
		if err != nil {
			return total, fmt.Errorf("expire %s: %w", name, err)
		}
		for _, id := range ids {
			claimed, err := s.tracker.IsProcessed(ctx, id)
			if err != nil {
				return total, fmt.Errorf("expire %s: %w", name, err)
			}
			if claimed {
				continue
			}
			changed, err := st.MarkExpired(ctx, id)
			if err != nil {
				return total, fmt.Errorf("expire %s: %w", name, err)
			}
			if changed {
				total++
			}
		}
	}
	return total, nil
}

// PendingDepths reports the current pending count per queue.
func (s *ApprovalService) PendingDepths(ctx context.Context) (map[domain.QueueName]int, error) {
	depths := make(map[domain.QueueName]int, len(s.stores))
	for _, name := range domain.ApprovalQueues {
		count, err := s.stores[name].PendingCount(ctx)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", name, err)
		}
		depths[name] = count
	}
	return depths, nil
}

// ---- private helpers ----

// findItem searches every queue for the item, since decision requests carry
// only the item ID.
func (s *ApprovalService) findItem(ctx context.Context, itemID string) (*domain.QueueItem, store.QueueStore, error) {
	for _, name := range domain.ApprovalQueues {
		st := s.stores[name]
		item, err := st.GetByID(ctx, itemID)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		return item, st, nil
	}
	return nil, nil, domain.ErrNotFound
}

// translate turns a decision into the resolved outcome. The switch is
// exhaustive over the closed decision set; Validate has already rejected
// unknown kinds.
func (s *ApprovalService) translate(item *domain.QueueItem, decision *domain.Decision) (*domain.ResolvedOutcome, error) {
	description, triggers, challengeID, err := decodeApprovalPayload(item)
	if err != nil {
		return nil, err
	}

	outcome := &domain.ResolvedOutcome{
		ItemID:      item.ID,
		ChallengeID: challengeID,
		Decision:    decision.Kind,
	}

	switch decision.Kind {
	case domain.DecisionAccept:
		outcome.OutcomeDescription = description
		outcome.StateChanges = triggerChanges(triggers, nil)
	case domain.DecisionModify:
		outcome.OutcomeDescription = decision.ModifiedText
		outcome.StateChanges = triggerChanges(triggers, decision.ApprovedTriggerIDs)
	case domain.DecisionReject:
		// Still a completed item: the rejection is the resolution, with no
		// side effects and the feedback preserved for the narrative engine.
		outcome.OutcomeDescription = description
		outcome.StateChanges = []domain.StateChange{}
		outcome.Feedback = decision.Feedback
	case domain.DecisionTakeOver:
		outcome.OutcomeDescription = decision.ReplacementText
		outcome.StateChanges = []domain.StateChange{}
	default:
		return nil, domain.ErrInvalidDecision
	}
	return outcome, nil
}

// publish broadcasts the resolution to players. Broadcast failure never fails
// the decision: the outcome is already durable, and the session layer can
// recover from history.
func (s *ApprovalService) publish(ctx context.Context, item *domain.QueueItem, outcome *domain.ResolvedOutcome) {
	if item.QueueName != domain.QueueChallengeOutcomes {
		return
	}
	var payload domain.ChallengeApproval
	if err := json.Unmarshal(item.Payload, &payload); err != nil {
		s.logger.Error("undecodable challenge payload", zap.String("item_id", item.ID), zap.Error(err))
		return
	}
	resolved := *item
	resolved.Status = domain.StatusCompleted
	view := broadcast.PlayerView(&resolved, &payload)
	if err := s.router.PublishResolved(ctx, item.WorldID, view, *outcome); err != nil {
		s.logger.Warn("resolution broadcast failed",
			zap.String("world_id", item.WorldID),
			zap.String("item_id", item.ID),
			zap.Error(err))
	}
}

func (s *ApprovalService) cachedResult(itemID string) *domain.ResolvedOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results[itemID]
}

func (s *ApprovalService) releaseClaim(ctx context.Context, itemID string) {
	if err := s.tracker.Release(ctx, itemID); err != nil {
		s.logger.Error("failed to release decision claim", zap.String("item_id", itemID), zap.Error(err))
	}
}

// decodeApprovalPayload extracts the fields decision translation needs from
// either payload shape.
func decodeApprovalPayload(item *domain.QueueItem) (description string, triggers []domain.OutcomeTrigger, challengeID string, err error) {
	switch item.QueueName {
	case domain.QueueChallengeOutcomes:
		var p domain.ChallengeApproval
		if err := json.Unmarshal(item.Payload, &p); err != nil {
			return "", nil, "", fmt.Errorf("decode challenge payload: %w", err)
		}
		return p.OutcomeDescription, p.OutcomeTriggers, p.ChallengeID, nil
	case domain.QueueDirectorApprovals:
		var p domain.DialogueApproval
		if err := json.Unmarshal(item.Payload, &p); err != nil {
			return "", nil, "", fmt.Errorf("decode dialogue payload: %w", err)
		}
		return p.ProposedDialogue, p.ProposedTriggers, "", nil
	}
	return "", nil, "", domain.ErrInvalidQueue
}

// triggerChanges converts triggers to state changes. With a nil filter every
// trigger is approved; otherwise only the listed IDs survive.
func triggerChanges(triggers []domain.OutcomeTrigger, approvedIDs []string) []domain.StateChange {
	var approved map[string]struct{}
	if approvedIDs != nil {
		approved = make(map[string]struct{}, len(approvedIDs))
		for _, id := range approvedIDs {
			approved[id] = struct{}{}
		}
	}

	changes := make([]domain.StateChange, 0, len(triggers))
	for _, tr := range triggers {
		if approved != nil {
			if _, ok := approved[tr.ID]; !ok {
				continue
			}
		}
		changes = append(changes, domain.StateChange{Kind: tr.Kind, Description: tr.Description})
	}
	return changes
}
