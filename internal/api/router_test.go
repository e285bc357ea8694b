package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fableforge/directorq/internal/api"
	"github.com/fableforge/directorq/internal/domain"
	"github.com/fableforge/directorq/internal/idempotency"
	"github.com/fableforge/directorq/internal/ratelimiter"
	"github.com/fableforge/directorq/internal/service"
	"github.com/fableforge/directorq/internal/store"
	"github.com/fableforge/directorq/internal/worker"
)

type nullDirector struct{}

func (nullDirector) DeliverPending(context.Context, string, domain.PendingDelivery) error {
	return nil
}

type nullRouter struct{}

func (nullRouter) PublishResolved(context.Context, string, domain.PlayerResolution, domain.ResolvedOutcome) error {
	return nil
}

func newTestServer(t *testing.T) (http.Handler, *service.ApprovalService, *store.MemoryQueueStore) {
	t.Helper()
	challenges := store.NewMemoryQueueStore(domain.QueueChallengeOutcomes)
	dialogue := store.NewMemoryQueueStore(domain.QueueDirectorApprovals)
	stores := []store.QueueStore{challenges, dialogue}

	svc := service.NewApprovalService(
		stores, idempotency.NewMemoryTracker(), nullRouter{}, zap.NewNop(), service.MetricHooks{},
	)
	hub := worker.NewHub(stores, nullDirector{}, ratelimiter.New(100),
		100*time.Millisecond, zap.NewNop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub.Start(ctx)

	return api.NewRouter(svc, hub, 100, prometheus.NewRegistry(), zap.NewNop()), svc, challenges
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func resolveRequest() map[string]any {
	return map[string]any{
		"world_id":       "world-1",
		"challenge_id":   "ch-1",
		"challenge_name": "Pick the Vault Lock",
		"character_id":   "pc-1",
		"character_name": "Sable",
		"roll":           15,
		"modifier":       3,
		"difficulty":     map[string]any{"kind": "dc", "target": 15},
		"outcomes": map[string]any{
			"success": map[string]any{
				"description": "the lock clicks open",
				"triggers": []map[string]string{
					{"kind": "reveal_area", "description": "vault interior"},
				},
			},
			"failure": map[string]any{"description": "the pick snaps"},
		},
	}
}

func TestResolveEndpoint_QueuesOutcome(t *testing.T) {
	h, _, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/challenges/resolve", resolveRequest())
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if id, _ := resp["item_id"].(string); id == "" {
		t.Fatalf("expected item_id in response, got %v", resp)
	}
	if id, _ := resp["resolution_id"].(string); id == "" {
		t.Fatalf("expected resolution_id in response, got %v", resp)
	}
	if resp["outcome_type"] != "success" {
		t.Fatalf("expected success outcome, got %v", resp["outcome_type"])
	}
	if resp["status"] != "pending" {
		t.Fatalf("the outcome must await approval, got status %v", resp["status"])
	}
}

func TestResolveEndpoint_RejectsUnknownDifficulty(t *testing.T) {
	h, _, _ := newTestServer(t)

	body := resolveRequest()
	body["difficulty"] = map[string]any{"kind": "coinflip"}
	rec := doJSON(t, h, http.MethodPost, "/api/v1/challenges/resolve", body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestDecisionEndpoint_FullCycle(t *testing.T) {
	h, _, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/challenges/resolve", resolveRequest())
	var created map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	itemID := created["item_id"].(string)

	// Pending listing shows the item.
	rec = doJSON(t, h, http.MethodGet, "/api/v1/worlds/world-1/approvals", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var pending struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &pending); err != nil {
		t.Fatal(err)
	}
	if pending.Count != 1 {
		t.Fatalf("expected 1 pending item, got %d", pending.Count)
	}

	// Accept it.
	rec = doJSON(t, h, http.MethodPost, "/api/v1/approvals/"+itemID+"/decision",
		map[string]string{"type": "accept"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var outcome domain.ResolvedOutcome
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatal(err)
	}
	if outcome.Decision != domain.DecisionAccept || len(outcome.StateChanges) != 1 {
		t.Fatalf("unexpected outcome %+v", outcome)
	}

	// A duplicate decision answers 200 with the original outcome.
	rec = doJSON(t, h, http.MethodPost, "/api/v1/approvals/"+itemID+"/decision",
		map[string]string{"type": "reject", "feedback": "no"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected duplicate to be a no-op success, got %d", rec.Code)
	}
	var replay domain.ResolvedOutcome
	if err := json.Unmarshal(rec.Body.Bytes(), &replay); err != nil {
		t.Fatal(err)
	}
	if replay.Decision != domain.DecisionAccept {
		t.Fatalf("expected cached accept outcome, got %s", replay.Decision)
	}

	// The item moved to history.
	rec = doJSON(t, h, http.MethodGet, "/api/v1/worlds/world-1/approvals/history", nil)
	var history struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &history); err != nil {
		t.Fatal(err)
	}
	if history.Count != 1 {
		t.Fatalf("expected 1 history item, got %d", history.Count)
	}
}

func TestDecisionEndpoint_ErrorMapping(t *testing.T) {
	h, _, challenges := newTestServer(t)

	// Unknown item → 404.
	rec := doJSON(t, h, http.MethodPost, "/api/v1/approvals/missing/decision",
		map[string]string{"type": "accept"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	// Invalid decision → 422.
	created := doJSON(t, h, http.MethodPost, "/api/v1/challenges/resolve", resolveRequest())
	var resp map[string]any
	if err := json.Unmarshal(created.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	itemID := resp["item_id"].(string)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/approvals/"+itemID+"/decision",
		map[string]string{"type": "reject"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for reject without feedback, got %d", rec.Code)
	}

	// Expired item → 409.
	if _, err := challenges.MarkExpired(context.Background(), itemID); err != nil {
		t.Fatal(err)
	}
	rec = doJSON(t, h, http.MethodPost, "/api/v1/approvals/"+itemID+"/decision",
		map[string]string{"type": "accept"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for terminal item, got %d", rec.Code)
	}
}

func TestSuggestionEndpoint(t *testing.T) {
	h, _, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/suggestions", map[string]any{
		"world_id":          "world-1",
		"speaker_id":        "npc-1",
		"speaker_name":      "Innkeeper",
		"proposed_dialogue": "Rooms are two silver a night.",
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	// Missing dialogue → 422.
	rec = doJSON(t, h, http.MethodPost, "/api/v1/suggestions", map[string]any{
		"world_id":     "world-1",
		"speaker_name": "Innkeeper",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestMetricsSnapshot(t *testing.T) {
	h, _, _ := newTestServer(t)

	doJSON(t, h, http.MethodPost, "/api/v1/challenges/resolve", resolveRequest())

	rec := doJSON(t, h, http.MethodGet, "/api/v1/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var snapshot struct {
		PendingDepth map[string]int `json:"pending_depth"`
		Total        int            `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatal(err)
	}
	if snapshot.Total != 1 || snapshot.PendingDepth["challenge_outcomes"] != 1 {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
}

func TestDirectorConnectDisconnect(t *testing.T) {
	h, _, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/worlds/world-1/director/connect", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/worlds/world-1/director/disconnect", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	h, _, _ := newTestServer(t)
	rec := doJSON(t, h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
