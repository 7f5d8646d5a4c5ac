package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/inthetow/backend/internal/adapters/cache"
	"github.com/inthetow/backend/internal/adapters/events"
	"github.com/inthetow/backend/internal/api/handlers"
	"github.com/inthetow/backend/internal/api/middleware"
	"github.com/inthetow/backend/internal/api/routes"
	"github.com/inthetow/backend/internal/application/services"
	"github.com/inthetow/backend/internal/bootstrap"
	"github.com/inthetow/backend/internal/domain/providers"
	redisclient "github.com/inthetow/backend/internal/infrastructure/clients/redis"
	"github.com/inthetow/backend/internal/infrastructure/observability"
	"github.com/inthetow/backend/pkg/auth"
)

func main() {
	cfg, vault, err := bootstrap.LoadConfig(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env, observability.LoggerOptions{
		File:         cfg.Log.File,
		MaxSizeMB:    cfg.Log.MaxSizeMB,
		MaxBackups:   cfg.Log.MaxBackups,
		ExportToOTEL: cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "",
	})
	if vault.Loaded > 0 || vault.Skipped > 0 {
		log.Info().Int("loaded", vault.Loaded).Int("skipped", vault.Skipped).Msg("Applied Vault secrets")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	redisClient := bootstrap.OpenRedis(ctx, cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}
	cacheProvider := bootstrap.CacheFor(redisClient)

	storage, err := bootstrap.OpenStorage(ctx, cfg, cacheProvider)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := storage.Close(ctx); err != nil {
			log.Error().Err(err).Msg("Error closing storage")
		}
	}()

	searchRepo := bootstrap.OpenSearch(ctx, cfg)

	mediaStore, diskStore, err := bootstrap.OpenMedia(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open media store")
	}

	var (
		eventBus providers.EventBus
		tracker  providers.ActivityTracker
	)
	if redisClient != nil {
		eventBus = events.NewRedisEventBus(redisClient)
		tracker = cache.NewRedisActivityTracker(redisClient)
	}

	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	aggregateService := services.NewAggregateService(storage.Facilities, storage.Reviews, searchRepo, metrics, services.AggregateConfig{
		MaxAttempts:   cfg.Scoring.MaxUpdateAttempts,
		RecentRatings: cfg.Scoring.RecentRatings,
	})
	facilityService := services.NewFacilityService(storage.Facilities, searchRepo, storage.Reviews, tracker, eventBus)
	reviewService := services.NewReviewService(
		storage.Reviews,
		storage.Users,
		storage.Facilities,
		aggregateService,
		mediaStore,
		eventBus,
		metrics,
		cfg.Media.URLTTL,
	)
	questionService := services.NewQuestionService(storage.Questions, storage.Reviews, storage.Users)
	userService := services.NewUserService(storage.Users, tokens, mediaStore, cfg.Media.URLTTL)

	var (
		activityService          *services.ActivityService
		cacheInvalidationService *services.CacheInvalidationService
	)
	if eventBus != nil {
		activityService = services.NewActivityService(tracker, eventBus)
		if err := activityService.Start(); err != nil {
			log.Warn().Err(err).Msg("Failed to start activity service")
			activityService = nil
		}
		if cacheProvider != nil {
			cacheInvalidationService = services.NewCacheInvalidationService(cacheProvider, eventBus)
			if err := cacheInvalidationService.Start(); err != nil {
				log.Warn().Err(err).Msg("Failed to start cache invalidation service")
				cacheInvalidationService = nil
			}
		}
	}

	if tracker != nil && cacheProvider != nil && cfg.Cache.WarmInterval > 0 {
		services.NewCacheWarmingService(storage.Facilities, tracker, cfg.Cache.WarmCount).
			StartPeriodicWarming(ctx, cfg.Cache.WarmInterval)
	}

	h := routes.Handlers{
		Facility: handlers.NewFacilityHandler(facilityService),
		Review:   handlers.NewReviewHandler(reviewService),
		Question: handlers.NewQuestionHandler(questionService),
		User:     handlers.NewUserHandler(userService),
	}
	if diskStore != nil {
		h.Media = handlers.NewMediaHandler(diskStore)
	}

	var cacheMiddleware *middleware.CacheMiddleware
	if cacheProvider != nil {
		cacheMiddleware = middleware.NewCacheMiddleware(cacheProvider, metrics)
	}

	router := routes.NewRouter(h, routes.Deps{
		Tokens:         tokens,
		Facilities:     storage.Facilities,
		Users:          storage.Users,
		Cache:          cacheMiddleware,
		Metrics:        metrics,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Checks:         readinessChecks(storage, redisClient),
	})

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}

	if activityService != nil {
		activityService.Stop()
	}
	if cacheInvalidationService != nil {
		cacheInvalidationService.Stop()
	}
	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing event bus")
		}
	}

	log.Info().Msg("Server stopped")
}

func readinessChecks(storage *bootstrap.Storage, redisClient *redisclient.Client) map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{"database": storage.Ping}
	if redisClient != nil {
		checks["redis"] = redisClient.Ping
	}
	return checks
}
