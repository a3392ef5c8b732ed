package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"

	"github.com/otakon/companion/internal/config"
	"github.com/otakon/companion/internal/database"
	"github.com/otakon/companion/internal/handlers"
	"github.com/otakon/companion/internal/logger"
	"github.com/otakon/companion/internal/middleware"
	"github.com/otakon/companion/internal/models"
	"github.com/otakon/companion/internal/queue"
	"github.com/otakon/companion/internal/services/ai"
	"github.com/otakon/companion/internal/services/auth"
	"github.com/otakon/companion/internal/services/behavior"
	"github.com/otakon/companion/internal/services/chat"
	"github.com/otakon/companion/internal/services/classify"
	"github.com/otakon/companion/internal/services/correction"
	"github.com/otakon/companion/internal/services/grounding"
	"github.com/otakon/companion/internal/services/summarize"
	"github.com/otakon/companion/internal/services/tags"
	"github.com/otakon/companion/internal/telemetry"
	"github.com/otakon/companion/internal/workers"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug mode for LLM API logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = zapLogger.Sync()
	}()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.String("ai_provider", cfg.AIProvider),
		zap.String("ai_model", cfg.AIModel),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	applyOverrides(cfg, zapLogger)

	// Initialize OpenTelemetry if enabled
	var tracerProvider interface{ Shutdown(context.Context) error }
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(context.Background(), "companion-api", cfg.OTELEndpoint)
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				tracerProvider = tp
				zapLogger.Info("otel_tracer_initialized",
					zap.String("endpoint", cfg.OTELEndpoint),
				)
				defer func() {
					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer shutdownCancel()
					if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
		}
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_database")

	redisLimiter, err := middleware.NewRedisRateLimiter(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
	}
	defer func() {
		if err := redisLimiter.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_redis")

	// RabbitMQ is optional for the API process: without it, grounding usage
	// and feedback records are written to the database synchronously.
	jobQueue := connectQueue(cfg, zapLogger)
	if jobQueue != nil {
		defer func() {
			if err := jobQueue.Close(); err != nil {
				zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
			}
		}()
	}

	// Repositories
	behaviorRepo := database.NewBehaviorRepository(db)
	usageRepo := database.NewGroundingUsageRepository(db)
	feedbackRepo := database.NewFeedbackRepository(db)

	// Queue-backed write paths with direct-write fallback
	usageStore := workers.NewQueuedUsageStore(usageRepo, jobQueue, zapLogger)
	feedbackSink := workers.NewQueuedFeedbackSink(feedbackRepo, jobQueue, zapLogger)

	aiProvider, err := createAIProvider(cfg, zapLogger, debugMode)
	if err != nil {
		zapLogger.Fatal("failed_to_create_ai_provider", zap.Error(err))
	}

	// Services
	quotaManager := grounding.NewQuotaManager(usageStore, zapLogger)
	behaviorStore := behavior.NewStore(behaviorRepo, zapLogger)
	summarizer := summarize.NewSummarizer(aiProvider, zapLogger)
	correctionService := correction.NewService(behaviorStore, aiProvider, feedbackSink, zapLogger)
	pipeline := chat.NewPipeline(quotaManager, summarizer, behaviorStore, aiProvider, tags.NewParser(zapLogger), zapLogger)

	// Token verification
	if cfg.JWKSURL == "" || cfg.JWTIssuer == "" {
		zapLogger.Fatal("jwks_url_and_jwt_issuer_must_be_configured")
	}
	verifier := auth.NewVerifier(auth.NewJWKSCache(cfg.JWKSURL), cfg.JWTIssuer)

	// Handlers
	chatHandler := handlers.NewChatHandler(pipeline, zapLogger)
	correctionsHandler := handlers.NewCorrectionsHandler(correctionService, behaviorStore, zapLogger)
	preferencesHandler := handlers.NewPreferencesHandler(behaviorStore, zapLogger)
	usageHandler := handlers.NewUsageHandler(usageStore, zapLogger)
	healthChecker := handlers.NewHealthChecker(db, jobQueue)

	r := mux.NewRouter()

	if cfg.OTELEnabled && tracerProvider != nil {
		r.Use(otelmux.Middleware("companion-api"))
	}
	r.Use(middleware.CORS(cfg.FrontendURL))
	r.Use(middleware.Timeout(middleware.DefaultRequestTimeout))
	r.Use(middleware.Recovery(zapLogger))
	r.Use(middleware.Logging(zapLogger))

	// Public routes
	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")

	rateLimitMW, err := redisLimiter.RateLimit(middleware.DefaultRateLimit)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limit_middleware", zap.Error(err))
	}

	// API v1 routes (authenticated, rate limited)
	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(middleware.Auth(verifier, zapLogger))
	apiRouter.Use(rateLimitMW)
	chatHandler.RegisterRoutes(apiRouter)
	correctionsHandler.RegisterRoutes(apiRouter)
	preferencesHandler.RegisterRoutes(apiRouter)
	usageHandler.RegisterRoutes(apiRouter)

	// Preflight requests fall through to CORS middleware headers.
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   middleware.DefaultRequestTimeout + 5*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	gcCtx, gcCancel := context.WithCancel(context.Background())
	defer gcCancel()

	// DLQ garbage collector: run every hour, retain messages for 24 hours
	if dlqPurger, ok := jobQueue.(queue.DLQPurger); ok {
		dlqGC := queue.NewGarbageCollector(dlqPurger, 1*time.Hour, 24*time.Hour, zapLogger)
		go func() {
			if err := dlqGC.Start(gcCtx); err != nil && err != context.Canceled {
				zapLogger.Error("dlq_garbage_collector_stopped_with_error", zap.Error(err))
			}
		}()
		zapLogger.Info("started_dlq_garbage_collector",
			zap.Duration("interval", 1*time.Hour),
			zap.Duration("retention", 24*time.Hour),
		)
	}

	go func() {
		zapLogger.Info("server_starting",
			zap.String("port", cfg.ServerPort),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	gcCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Fatal("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

// applyOverrides installs optional YAML-sourced tier quotas and curated
// classifier title lists. Must run before any request is served.
func applyOverrides(cfg *config.Config, zapLogger *zap.Logger) {
	if len(cfg.Overrides.TierQuotas) > 0 {
		quotas := make(map[models.Tier]int, len(cfg.Overrides.TierQuotas))
		for tier, quota := range cfg.Overrides.TierQuotas {
			quotas[models.Tier(tier)] = quota
		}
		models.SetGroundingQuotaOverrides(quotas)
		zapLogger.Info("applied_tier_quota_overrides",
			zap.Int("tiers", len(quotas)),
		)
	}
	if len(cfg.Overrides.PostCutoffTitles) > 0 || len(cfg.Overrides.LiveServiceTitles) > 0 {
		classify.OverrideCuratedTitles(cfg.Overrides.PostCutoffTitles, cfg.Overrides.LiveServiceTitles)
		zapLogger.Info("applied_curated_title_overrides",
			zap.Int("post_cutoff", len(cfg.Overrides.PostCutoffTitles)),
			zap.Int("live_service", len(cfg.Overrides.LiveServiceTitles)),
		)
	}
}

// connectQueue dials RabbitMQ with exponential backoff. Returns nil when
// no URL is configured or every attempt fails; callers degrade to direct
// database writes.
func connectQueue(cfg *config.Config, zapLogger *zap.Logger) queue.JobQueue {
	if cfg.RabbitMQURL == "" {
		zapLogger.Warn("rabbitmq_not_configured_using_direct_writes")
		return nil
	}

	const maxRetries = 10
	const initialDelay = 2 * time.Second

	for attempt := 0; attempt < maxRetries; attempt++ {
		jobQueue, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL)
		if err == nil {
			zapLogger.Info("connected_to_rabbitmq")
			return jobQueue
		}

		delay := initialDelay * time.Duration(1<<uint(attempt))
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
			zap.Duration("retry_delay", delay),
		)
		time.Sleep(delay)
	}

	zapLogger.Warn("rabbitmq_unavailable_after_retries_using_direct_writes",
		zap.Int("max_retries", maxRetries),
	)
	return nil
}

// createAIProvider creates an AI provider based on configuration
func createAIProvider(cfg *config.Config, logger *zap.Logger, debugMode bool) (ai.AIProvider, error) {
	if cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not configured")
	}

	providerType := cfg.AIProvider
	if providerType == "" {
		providerType = "openai"
	}

	// Create provider directly with logger support
	if providerType == "openai" {
		return ai.NewOpenAIProviderWithLogger(
			cfg.OpenAIKey,
			cfg.AIBaseURL,
			cfg.AIModel,
			logger,
			debugMode,
		), nil
	}

	// Fallback to registry for other providers (without logger)
	registry := ai.NewProviderRegistry()
	ai.RegisterOpenAI(registry)

	config := map[string]string{
		"api_key":  cfg.OpenAIKey,
		"model":    cfg.AIModel,
		"base_url": cfg.AIBaseURL,
	}

	return registry.GetProvider(providerType, config)
}
