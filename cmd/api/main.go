package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mytegroup/billtracker/internal/adapters/cache"
	"github.com/mytegroup/billtracker/internal/adapters/database"
	"github.com/mytegroup/billtracker/internal/adapters/events"
	"github.com/mytegroup/billtracker/internal/adapters/search"
	"github.com/mytegroup/billtracker/internal/adapters/storage"
	"github.com/mytegroup/billtracker/internal/api/handlers"
	"github.com/mytegroup/billtracker/internal/api/middleware"
	"github.com/mytegroup/billtracker/internal/api/routes"
	"github.com/mytegroup/billtracker/internal/application/enrichment"
	"github.com/mytegroup/billtracker/internal/application/services"
	"github.com/mytegroup/billtracker/internal/domain/providers"
	"github.com/mytegroup/billtracker/internal/infrastructure/clients/openai"
	"github.com/mytegroup/billtracker/internal/infrastructure/clients/postgres"
	"github.com/mytegroup/billtracker/internal/infrastructure/clients/redis"
	"github.com/mytegroup/billtracker/internal/infrastructure/clients/typesense"
	"github.com/mytegroup/billtracker/internal/infrastructure/notifications"
	"github.com/mytegroup/billtracker/internal/infrastructure/observability"
	"github.com/mytegroup/billtracker/pkg/config"
	"github.com/mytegroup/billtracker/pkg/secrets"
)

func main() {
	if _, err := secrets.NewLoader(secrets.LoadVaultConfigFromEnv()).Apply(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to load secrets from vault")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	observability.InitLogger(observability.LoggerOptions{
		Service:     cfg.OTEL.ServiceName,
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			log.Info().Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	store := storage.NewJSONBillStore(cfg.Storage.BillsPath())
	log.Info().Str("path", cfg.Storage.BillsPath()).Msg("bill store ready")

	// Redis backs the cache and the event bus; both are optional.
	var cacheProvider providers.CacheProvider
	var rateCounter providers.CounterProvider
	var eventBus providers.EventBus
	redisClient, err := redis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, running without cache and events")
	} else {
		defer redisClient.Close()
		adapter := cache.NewRedisAdapter(redisClient)
		cacheProvider = adapter
		rateCounter = adapter
		eventBus = events.NewRedisEventBus(redisClient)
		log.Info().Str("addr", cfg.Redis.RedisAddr()).Msg("Redis client initialized")
	}

	var searchIndex providers.BillSearchIndex
	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		log.Warn().Err(err).Msg("Typesense unavailable, search disabled")
	} else {
		adapter := search.NewTypesenseAdapter(tsClient)
		if err := adapter.InitSchema(ctx, false); err != nil {
			log.Warn().Err(err).Msg("failed to init Typesense schema")
		}
		searchIndex = adapter
	}

	var generator providers.TextGenerator
	if cfg.OpenAI.APIKey == "" {
		log.Warn().Msg("OPENAI_API_KEY is not set; enrichment and thread summaries disabled")
	} else {
		client, err := openai.NewClient(&cfg.OpenAI)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize OpenAI client")
		} else {
			defer client.Close()
			generator = client
		}
	}

	dashboardService := services.NewDashboardService(store, cacheProvider)

	var enricher handlers.EnrichmentRunner
	if generator != nil {
		billEnricher := services.NewBillEnrichmentService(enrichment.DefaultRegistry(), generator, cfg.Enrichment)
		batch := services.NewBatchEnrichmentService(store, billEnricher, cfg.Enrichment)
		if eventBus != nil {
			batch.SetEventBus(eventBus)
		}
		if searchIndex != nil {
			batch.SetSearchIndex(searchIndex)
		}
		enricher = batch
	}

	var subscriptionHandler *handlers.SubscriptionHandler
	var discussionHandler *handlers.DiscussionHandler
	var notificationService *services.NotificationService

	pgClient, err := postgres.NewClient(ctx, &cfg.Database)
	if err != nil {
		log.Warn().Err(err).Msg("PostgreSQL unavailable, subscriptions and discussions disabled")
	} else {
		defer pgClient.Close()
		if err := pgClient.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to apply database schema")
		}

		subscriptionRepo := database.NewSubscriptionAdapter(pgClient)
		deliveryRepo := database.NewDeliveryAdapter(pgClient)

		notificationService = services.NewNotificationService(subscriptionRepo, deliveryRepo, cfg.Notifications, buildSenders(cfg, eventBus)...)
		subscriptionService := services.NewSubscriptionService(subscriptionRepo, store, notificationService)
		discussionService := services.NewDiscussionService(database.NewDiscussionAdapter(pgClient), store, generator)

		subscriptionHandler = handlers.NewSubscriptionHandler(subscriptionService, deliveryRepo)
		discussionHandler = handlers.NewDiscussionHandler(discussionService, rateCounter)
		log.Info().Msg("PostgreSQL client initialized")
	}

	if eventBus != nil {
		if notificationService != nil {
			notificationService.SetEventBus(eventBus)
			if err := notificationService.Start(); err != nil {
				log.Warn().Err(err).Msg("failed to start notification listener")
			}
			defer notificationService.Stop()
		}
		if cacheProvider != nil {
			invalidator := services.NewCacheInvalidationService(cacheProvider, eventBus)
			if err := invalidator.Start(); err != nil {
				log.Warn().Err(err).Msg("failed to start cache invalidation service")
			}
			defer invalidator.Stop()
		}
	}

	var cacheMiddleware *middleware.CacheMiddleware
	if cacheProvider != nil {
		cacheMiddleware = middleware.NewCacheMiddleware(cacheProvider, metrics)
		services.NewCacheWarmingService(dashboardService).StartPeriodicWarming(ctx, cfg.Server.CacheWarmInterval)
	}

	var sseHandler *handlers.SSEHandler
	if eventBus != nil {
		sseHandler = handlers.NewSSEHandler(eventBus)
	}

	router := routes.NewRouter(
		handlers.NewBillHandler(dashboardService, enricher, searchIndex),
		subscriptionHandler,
		discussionHandler,
		sseHandler,
		cacheMiddleware,
		metrics,
		cfg.Server.AllowedOrigins,
	)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			log.Error().Err(err).Msg("error closing event bus")
		}
	}

	log.Info().Msg("server stopped")
}

// buildSenders returns a sender for every channel whose provider is configured.
func buildSenders(cfg *config.Config, bus providers.EventBus) []providers.NotificationSender {
	var senders []providers.NotificationSender

	if email, err := notifications.NewEmailSender(cfg.Notifications); err != nil {
		log.Warn().Err(err).Msg("email notifications disabled")
	} else {
		senders = append(senders, email)
	}

	if whatsapp, err := notifications.NewWhatsAppSender(cfg.Notifications); err != nil {
		log.Warn().Err(err).Msg("sms notifications disabled")
	} else {
		senders = append(senders, whatsapp)
	}

	if bus != nil {
		senders = append(senders, notifications.NewInAppSender(bus))
	}
	return senders
}
