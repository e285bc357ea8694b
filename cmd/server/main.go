package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/fableforge/directorq/internal/api"
	"github.com/fableforge/directorq/internal/broadcast"
	"github.com/fableforge/directorq/internal/config"
	"github.com/fableforge/directorq/internal/db"
	"github.com/fableforge/directorq/internal/domain"
	"github.com/fableforge/directorq/internal/idempotency"
	"github.com/fableforge/directorq/internal/metrics"
	"github.com/fableforge/directorq/internal/ratelimiter"
	"github.com/fableforge/directorq/internal/service"
	"github.com/fableforge/directorq/internal/store"
	"github.com/fableforge/directorq/internal/transport"
	"github.com/fableforge/directorq/internal/worker"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg := config.Load()
	ctx := context.Background()

	// ---- queue backend ----
	// The backend is chosen once here; no other component branches on it.
	var stores []store.QueueStore
	var tracker idempotency.Tracker

	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()

		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
		logger.Info("database migrations applied")

		for _, name := range domain.ApprovalQueues {
			stores = append(stores, store.NewPgQueueStore(pool, name))
		}
		tracker = idempotency.NewPgTracker(pool)
	} else {
		logger.Warn("DATABASE_URL not set: using in-memory queue backend")
		for _, name := range domain.ApprovalQueues {
			stores = append(stores, store.NewMemoryQueueStore(name))
		}
		tracker = idempotency.NewMemoryTracker()
	}

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	onEnqueued, onDecided := m.ServiceHooks()
	onDeliveryFailed, onExpired, onDepths := m.WorkerHooks()

	router := broadcast.NewLogRouter(logger)
	svc := service.NewApprovalService(stores, tracker, router, logger, service.MetricHooks{
		OnEnqueued: onEnqueued,
		OnDecided:  onDecided,
	})

	director := transport.NewWebhookDirector(cfg.DirectorBaseURL, cfg.DirectorTimeout)
	limiter := ratelimiter.New(cfg.RateLimit)

	// ---- background workers ----
	// Context for all background goroutines; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	hub := worker.NewHub(stores, director, limiter, cfg.WakeTimeout, logger, onDeliveryFailed)
	hub.Start(workerCtx)

	sweeper := worker.NewSweepWorker(svc, cfg.SweepInterval, cfg.StaleThreshold, logger, onExpired, onDepths)
	go sweeper.Run(workerCtx)

	// ---- HTTP server ----
	httpRouter := api.NewRouter(svc, hub, cfg.HistoryLimit, reg, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      httpRouter,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Signal delivery and sweep workers to stop.
	cancelWorkers()

	// 3. Wait for in-flight pushes to finish.
	hub.Wait()

	logger.Info("server stopped cleanly")
}
