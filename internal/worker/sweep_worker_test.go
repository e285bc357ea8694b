package worker_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/fableforge/directorq/internal/domain"
	"github.com/fableforge/directorq/internal/idempotency"
	"github.com/fableforge/directorq/internal/service"
	"github.com/fableforge/directorq/internal/store"
	"github.com/fableforge/directorq/internal/worker"
)

type noopRouter struct{}

func (noopRouter) PublishResolved(context.Context, string, domain.PlayerResolution, domain.ResolvedOutcome) error {
	return nil
}

// TestSweepWorker_ExpiresStaleProcessing verifies the ticker loop moves
// abandoned processing items to expired and reports the count.
func TestSweepWorker_ExpiresStaleProcessing(t *testing.T) {
	challenges := store.NewMemoryQueueStore(domain.QueueChallengeOutcomes)
	dialogue := store.NewMemoryQueueStore(domain.QueueDirectorApprovals)
	svc := service.NewApprovalService(
		[]store.QueueStore{challenges, dialogue},
		idempotency.NewMemoryTracker(), noopRouter{}, zap.NewNop(), service.MetricHooks{},
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id := enqueue(t, challenges, "world-w")
	if _, err := challenges.MarkProcessing(ctx, id); err != nil {
		t.Fatal(err)
	}

	expired := make(chan int, 1)
	sw := worker.NewSweepWorker(svc, 10*time.Millisecond, -time.Second, zap.NewNop(),
		func(count int) {
			select {
			case expired <- count:
			default:
			}
		}, nil)
	go sw.Run(ctx)

	select {
	case count := <-expired:
		if count != 1 {
			t.Fatalf("expected 1 expired item, got %d", count)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sweep never fired")
	}

	item, err := challenges.GetByID(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if item.Status != domain.StatusExpired {
		t.Fatalf("expected expired, got %s", item.Status)
	}

	// Expired items disappear from the pending listing.
	pending, err := svc.PendingForWorld(ctx, "world-w")
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected empty pending listing, got %d items", len(pending))
	}
}
