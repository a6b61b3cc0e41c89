package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/welfare-savings-ledger/internal/api"
	"github.com/welfare-savings-ledger/internal/api/service"
	"github.com/welfare-savings-ledger/internal/config"
	"github.com/welfare-savings-ledger/internal/data/mongo"
	"github.com/welfare-savings-ledger/internal/data/postgres"
	"github.com/welfare-savings-ledger/internal/data/redis"
	"github.com/welfare-savings-ledger/internal/engine/allocator"
	"github.com/welfare-savings-ledger/internal/engine/history"
	"github.com/welfare-savings-ledger/internal/logger"
	"github.com/welfare-savings-ledger/internal/platform/messaging/producers"
	"github.com/welfare-savings-ledger/internal/platform/persistence"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("server")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// Initialize Redis cache for schedules and history exports
	cache, err := redis.NewScheduleCache(appCtx, log, &cfg.Redis)
	if err != nil {
		log.Error("Failed to initialize Redis cache", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka producer for group-run requests
	runProducer, err := producers.NewGroupRunMessageProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize group run Kafka producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	loanRepo := postgres.NewLoanRepository(log, postgresDB)
	savingsRepo := postgres.NewSavingsRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	ledgerRepo := mongo.NewLedgerRepository(log, mongoDB.Database())

	// The allocator posts synchronously so API callers get precise
	// validation errors
	alloc := allocator.NewAllocator(log, postgresDB, loanRepo, savingsRepo, outboxRepo)

	// Initialize services
	savingsService := service.NewSavingsService(log, savingsRepo, alloc)
	loanService := service.NewLoanService(log, loanRepo, cache)
	postingService := service.NewPostingService(log, alloc, ledgerRepo, cache)
	historyService := history.NewService(log, loanRepo, savingsRepo, ledgerRepo, cache)
	runService := service.NewRunService(log, runProducer)

	// Initialize REST server
	server := api.NewServer(log, cfg, savingsService, loanService, postingService, historyService, runService)
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Shutdown HTTP server
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if err = runProducer.Close(); err != nil {
		log.Error("Error closing Kafka producer", "error", err)
	}

	if err = cache.Close(); err != nil {
		log.Error("Error closing Redis connection", "error", err)
	}

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
