package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/otakon/companion/internal/config"
	"github.com/otakon/companion/internal/database"
	"github.com/otakon/companion/internal/logger"
	"github.com/otakon/companion/internal/queue"
	"github.com/otakon/companion/internal/workers"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = zapLogger.Sync()
	}()

	zapLogger.Info("Starting recorder worker",
		zap.Bool("debug_mode", debugMode),
		zap.Int("prefetch", cfg.RabbitMQPrefetch),
	)

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("Failed to close database connection", zap.Error(err))
		}
	}()

	zapLogger.Info("Connected to database")

	usageRepo := database.NewGroundingUsageRepository(db)
	feedbackRepo := database.NewFeedbackRepository(db)

	// Unlike the API process, the worker has no direct-write fallback:
	// its whole job is draining the queue, so RabbitMQ is required.
	if cfg.RabbitMQURL == "" {
		zapLogger.Fatal("RABBITMQ_URL must be configured for the worker")
	}
	jobQueue, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL)
	if err != nil {
		zapLogger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("Failed to close RabbitMQ connection", zap.Error(err))
		}
	}()

	zapLogger.Info("Connected to RabbitMQ")

	recorder := workers.NewRecorder(usageRepo, feedbackRepo, jobQueue, zapLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		zapLogger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	zapLogger.Info("Worker started, consuming messages from queue")

	if err := recorder.Run(ctx, jobQueue, cfg.RabbitMQPrefetch); err != nil && err != context.Canceled {
		zapLogger.Fatal("Worker stopped with error", zap.Error(err))
	}

	zapLogger.Info("Worker shut down gracefully")
}
