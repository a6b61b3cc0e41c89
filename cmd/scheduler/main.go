package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/welfare-savings-ledger/internal/config"
	"github.com/welfare-savings-ledger/internal/domain/shared"
	"github.com/welfare-savings-ledger/internal/logger"
	"github.com/welfare-savings-ledger/internal/platform/messaging/producers"
)

// The scheduler only publishes run requests; execution and idempotency live
// in the processor, so a crashed scheduler never leaves a half-applied run.
func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("scheduler")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Group Run Scheduler",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
		"contribution_spec", cfg.Scheduler.ContributionSpec,
		"deduction_spec", cfg.Scheduler.DeductionSpec,
	)

	// Initialize Kafka producer for group-run requests
	runProducer, err := producers.NewGroupRunMessageProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize group run Kafka producer", "error", err)
		os.Exit(1)
	}

	// Cron specs carry a seconds field
	c := cron.New(cron.WithSeconds())

	_, err = c.AddFunc(cfg.Scheduler.ContributionSpec, func() {
		publishRun(appCtx, log, runProducer, shared.EntryKindDeposit, "monthly contribution run")
	})
	if err != nil {
		log.Error("Failed to schedule contribution run", "spec", cfg.Scheduler.ContributionSpec, "error", err)
		os.Exit(1)
	}

	_, err = c.AddFunc(cfg.Scheduler.DeductionSpec, func() {
		publishRun(appCtx, log, runProducer, shared.EntryKindRepayment, "monthly deduction run")
	})
	if err != nil {
		log.Error("Failed to schedule deduction run", "spec", cfg.Scheduler.DeductionSpec, "error", err)
		os.Exit(1)
	}

	c.Start()
	log.Info("Scheduler started")

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-quit
	log.Info("Shutdown signal received")

	// Cancel the application context
	cancelAppCtx()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Wait for in-flight jobs to finish
	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
		log.Info("All scheduled jobs finished")
	case <-time.After(30 * time.Second):
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	if err = runProducer.Close(); err != nil {
		log.Error("Error closing Kafka producer", "error", err)
		os.Exit(1)
	}

	log.Info("Scheduler shutdown completed successfully")
}

// publishRun emits one group-run request. Each firing gets a fresh run ID;
// the default per-account amounts are resolved by the processor.
func publishRun(ctx context.Context, log *slog.Logger, producer producers.MessagePublisher, kind shared.EntryKind, notes string) {
	now := time.Now()
	run := &shared.GroupRunRequest{
		RunID:      uuid.New(),
		Kind:       kind,
		OccurredAt: now,
		Notes:      notes,
		Timestamp:  now,
	}

	if err := producer.Publish(ctx, run.RunID.String(), run); err != nil {
		log.Error("Failed to publish scheduled group run",
			"run_id", run.RunID.String(),
			"kind", string(kind),
			"error", err,
		)
		return
	}

	log.Info("Published scheduled group run",
		"run_id", run.RunID.String(),
		"kind", string(kind),
	)
}
