package handler

import (
	"net/http"

	"github.com/fableforge/directorq/internal/domain"
	"github.com/fableforge/directorq/internal/service"
)

// MetricsHandler serves a human-readable JSON queue snapshot.
// Raw Prometheus metrics (counters, histograms) are available at /metrics
// via promhttp.Handler and are separate from this endpoint.
type MetricsHandler struct {
	svc *service.ApprovalService
}

func NewMetricsHandler(svc *service.ApprovalService) *MetricsHandler {
	return &MetricsHandler{svc: svc}
}

// GetMetrics handles GET /api/v1/metrics
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	depths, err := h.svc.PendingDepths(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}

	total := 0
	byQueue := make(map[string]int, len(depths))
	for name, count := range depths {
		byQueue[string(name)] = count
		total += count
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"pending_depth": byQueue,
		"total":         total,
		"queues":        len(domain.ApprovalQueues),
	})
}
