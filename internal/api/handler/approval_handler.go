package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/fableforge/directorq/internal/api/middleware"
	"github.com/fableforge/directorq/internal/domain"
	"github.com/fableforge/directorq/internal/service"
	"github.com/fableforge/directorq/internal/worker"
)

// ApprovalHandler serves the Director-facing surface: pending listings,
// decisions, history, and session connect/disconnect.
type ApprovalHandler struct {
	svc          *service.ApprovalService
	hub          *worker.Hub
	historyLimit int
	logger       *zap.Logger
}

func NewApprovalHandler(svc *service.ApprovalService, hub *worker.Hub, historyLimit int, logger *zap.Logger) *ApprovalHandler {
	return &ApprovalHandler{svc: svc, hub: hub, historyLimit: historyLimit, logger: logger}
}

// Decide handles POST /api/v1/approvals/{id}/decision
//
// A duplicate decision with a cached outcome is answered 200 with that
// outcome, exactly as if it were the first: double-clicking "approve" is not
// an error the Director should see.
func (h *ApprovalHandler) Decide(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")

	var decision domain.Decision
	if err := json.NewDecoder(r.Body).Decode(&decision); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	outcome, err := h.svc.ApplyDecision(r.Context(), itemID, &decision)
	if errors.Is(err, domain.ErrDuplicateDecision) {
		if outcome != nil {
			respondJSON(w, http.StatusOK, outcome)
			return
		}
		// Claimed but no cached outcome: another decision is mid-flight.
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		h.logger.Warn("apply decision failed",
			apimw.CorrelationField(r.Context()),
			zap.String("item_id", itemID),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, outcome)
}

// Pending handles GET /api/v1/worlds/{id}/approvals
func (h *ApprovalHandler) Pending(w http.ResponseWriter, r *http.Request) {
	worldID := chi.URLParam(r, "id")
	items, err := h.svc.PendingForWorld(r.Context(), worldID)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"world_id": worldID,
		"items":    items,
		"count":    len(items),
	})
}

// History handles GET /api/v1/worlds/{id}/approvals/history
func (h *ApprovalHandler) History(w http.ResponseWriter, r *http.Request) {
	worldID := chi.URLParam(r, "id")
	limit := h.historyLimit
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= h.historyLimit {
		limit = l
	}

	items, err := h.svc.HistoryForWorld(r.Context(), worldID, limit)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"world_id": worldID,
		"items":    items,
		"count":    len(items),
	})
}

// Connect handles POST /api/v1/worlds/{id}/director/connect
func (h *ApprovalHandler) Connect(w http.ResponseWriter, r *http.Request) {
	worldID := chi.URLParam(r, "id")
	h.hub.Connect(worldID)
	respondJSON(w, http.StatusOK, map[string]string{
		"world_id": worldID,
		"status":   "connected",
	})
}

// Disconnect handles POST /api/v1/worlds/{id}/director/disconnect
func (h *ApprovalHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	worldID := chi.URLParam(r, "id")
	h.hub.Disconnect(worldID)
	respondJSON(w, http.StatusOK, map[string]string{
		"world_id": worldID,
		"status":   "disconnected",
	})
}
