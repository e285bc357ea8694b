package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fableforge/directorq/internal/api/handler"
	apimw "github.com/fableforge/directorq/internal/api/middleware"
	"github.com/fableforge/directorq/internal/service"
	"github.com/fableforge/directorq/internal/worker"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(
	svc *service.ApprovalService,
	hub *worker.Hub,
	historyLimit int,
	reg prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)          // recover panics, return 500
	r.Use(chimw.RealIP)             // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1<<20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)      // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	rh := handler.NewResolutionHandler(svc, logger)
	ah := handler.NewApprovalHandler(svc, hub, historyLimit, logger)
	mh := handler.NewMetricsHandler(svc)
	hh := handler.NewHealthHandler()

	// --- routes ---
	r.Get("/health", hh.Health)

	// Raw Prometheus scrape endpoint (for Prometheus server / Grafana)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		// Engine-facing: computed outcomes and LLM suggestions enter the queue.
		r.Post("/challenges/resolve", rh.Resolve)
		r.Post("/suggestions", rh.Suggest)

		// Director-facing.
		r.Post("/approvals/{id}/decision", ah.Decide)
		r.Route("/worlds/{id}", func(r chi.Router) {
			r.Get("/approvals", ah.Pending)
			r.Get("/approvals/history", ah.History)
			r.Post("/director/connect", ah.Connect)
			r.Post("/director/disconnect", ah.Disconnect)
		})

		// JSON metrics snapshot
		r.Get("/metrics", mh.GetMetrics)
	})

	return r
}
