package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lumenmfb/backend/internal/config"
	"github.com/lumenmfb/backend/internal/db"
	"github.com/lumenmfb/backend/internal/domain/admin"
	"github.com/lumenmfb/backend/internal/domain/document"
	"github.com/lumenmfb/backend/internal/jobs"
	"github.com/lumenmfb/backend/internal/messaging"
	"github.com/lumenmfb/backend/internal/observability"
	postgresrepo "github.com/lumenmfb/backend/internal/repository/postgres"
	"github.com/lumenmfb/backend/internal/storage"
)

func main() {
	cfg := config.Load()
	logger := observability.NewLogger(cfg.Env, "worker")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg, "lumen-worker")
	if err != nil {
		logger.Error("failed to connect postgres", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	store, err := storage.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to configure object storage", "err", err)
		os.Exit(1)
	}

	var publisher messaging.Publisher = messaging.NewLogPublisher(logger)
	if len(cfg.KafkaBrokers) > 0 {
		publisher = messaging.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		logger.Info("publishing events to kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	defer func() { _ = publisher.Close() }()

	worker := jobs.NewWorker(postgresrepo.NewOutboxRepository(pool), publisher)

	adminService := admin.NewService(
		postgresrepo.NewAdminActionRepository(pool),
		postgresrepo.NewSettingsRepository(pool),
		postgresrepo.NewAdminAuditRepository(pool),
	)
	cleanup := jobs.NewCleanup(
		postgresrepo.NewMaintenanceRepository(pool),
		adminService,
		document.NewService(store, cfg.SignedURLTTL),
		logger,
	)
	scheduler, err := jobs.NewScheduler(cfg.CleanupSchedule, cleanup, logger)
	if err != nil {
		logger.Error("failed to schedule cleanup", "err", err)
		os.Exit(1)
	}

	interval := cfg.WorkerPollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		scheduler.Run(sigCtx)
	}()

	logger.Info("worker started", "interval", interval.String(), "batch_size", cfg.WorkerBatchSize)
	for {
		select {
		case <-sigCtx.Done():
			<-schedulerDone
			logger.Info("worker stopped")
			return
		case <-ticker.C:
			runCtx, runCancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := worker.RunOnce(runCtx, cfg.WorkerBatchSize)
			runCancel()
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("worker run failed", "err", err)
			}
		}
	}
}
