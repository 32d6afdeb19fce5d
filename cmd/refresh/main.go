package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mytegroup/billtracker/internal/adapters/events"
	"github.com/mytegroup/billtracker/internal/adapters/search"
	"github.com/mytegroup/billtracker/internal/adapters/storage"
	"github.com/mytegroup/billtracker/internal/application/enrichment"
	"github.com/mytegroup/billtracker/internal/application/services"
	"github.com/mytegroup/billtracker/internal/domain/providers"
	"github.com/mytegroup/billtracker/internal/infrastructure/clients/openai"
	"github.com/mytegroup/billtracker/internal/infrastructure/clients/redis"
	"github.com/mytegroup/billtracker/internal/infrastructure/clients/typesense"
	"github.com/mytegroup/billtracker/internal/infrastructure/observability"
	"github.com/mytegroup/billtracker/pkg/config"
	"github.com/mytegroup/billtracker/pkg/secrets"
)

func main() {
	var input string
	var intervalFlag string
	var enrich bool
	flag.StringVar(&input, "input", "", "scrape file to merge (defaults to the configured scrape file)")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for the merge (e.g. 6h, 30m)")
	flag.BoolVar(&enrich, "enrich", false, "run the enrichment batch after each merge")
	flag.Parse()

	if _, err := secrets.NewLoader(secrets.LoadVaultConfigFromEnv()).Apply(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to load secrets from vault")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	observability.InitLogger(observability.LoggerOptions{
		Service:     "bill-refresh",
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
	})

	if input == "" {
		input = cfg.Storage.ScrapePath()
	}

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("REFRESH_INTERVAL"))
	}
	var interval time.Duration
	if intervalValue != "" {
		interval, err = time.ParseDuration(intervalValue)
		if err != nil {
			log.Fatal().Err(err).Str("interval", intervalValue).Msg("invalid interval")
		}
		if interval <= 0 {
			log.Fatal().Msg("interval must be greater than zero")
		}
	}

	var generator *openai.Client
	if enrich {
		generator, err = openai.NewClient(&cfg.OpenAI)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize OpenAI client")
		}
		defer generator.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := storage.NewJSONBillStore(cfg.Storage.BillsPath())
	refresher := services.NewBillRefreshService(store)

	var eventBus providers.EventBus
	if redisClient, err := redis.NewClient(ctx, &cfg.Redis); err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, bill events will not be published")
	} else {
		defer redisClient.Close()
		eventBus = events.NewRedisEventBus(redisClient)
		defer eventBus.Close()
		refresher.SetEventBus(eventBus)
	}

	var batch *services.BatchEnrichmentService
	if generator != nil {
		billEnricher := services.NewBillEnrichmentService(enrichment.DefaultRegistry(), generator, cfg.Enrichment)
		batch = services.NewBatchEnrichmentService(store, billEnricher, cfg.Enrichment)
		if eventBus != nil {
			batch.SetEventBus(eventBus)
		}
		if tsClient, err := typesense.NewClient(&cfg.Typesense); err != nil {
			log.Warn().Err(err).Msg("Typesense unavailable, search index will not be refreshed")
		} else {
			batch.SetSearchIndex(search.NewTypesenseAdapter(tsClient))
		}
	}

	for {
		if err := refreshOnce(ctx, refresher, batch, input); err != nil {
			log.Error().Err(err).Str("input", input).Msg("refresh failed")
		}

		if interval <= 0 {
			break
		}

		log.Info().Dur("interval", interval).Msg("refresh complete, waiting for next run")
		select {
		case <-ctx.Done():
			log.Info().Msg("refresher shutting down")
			return
		case <-time.After(interval):
		}
	}
}

func refreshOnce(ctx context.Context, refresher *services.BillRefreshService, batch *services.BatchEnrichmentService, input string) error {
	scraped, err := storage.LoadScrapeFile(input)
	if err != nil {
		return err
	}

	summary, err := refresher.Refresh(ctx, scraped)
	if err != nil {
		return err
	}
	log.Info().
		Int("new", summary.New).
		Int("changed", summary.Changed).
		Int("unchanged", summary.Unchanged).
		Int("invalid", summary.Invalid).
		Strs("changed_hrefs", summary.ChangedHrefs).
		Msg("scrape merged")

	if batch == nil || ctx.Err() != nil {
		return nil
	}

	result, err := batch.Run(ctx, services.BatchOptions{})
	if err != nil {
		return err
	}
	log.Info().
		Int("enriched", result.Enriched).
		Int("failed", result.Failed).
		Int("already_enriched", result.AlreadyEnriched).
		Bool("cancelled", result.Cancelled).
		Msg("enrichment after refresh finished")
	return nil
}
