package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/mytegroup/billtracker/internal/adapters/events"
	"github.com/mytegroup/billtracker/internal/adapters/search"
	"github.com/mytegroup/billtracker/internal/adapters/storage"
	"github.com/mytegroup/billtracker/internal/application/enrichment"
	"github.com/mytegroup/billtracker/internal/application/services"
	"github.com/mytegroup/billtracker/internal/domain/entities"
	"github.com/mytegroup/billtracker/internal/infrastructure/clients/openai"
	"github.com/mytegroup/billtracker/internal/infrastructure/clients/redis"
	"github.com/mytegroup/billtracker/internal/infrastructure/clients/typesense"
	"github.com/mytegroup/billtracker/internal/infrastructure/observability"
	"github.com/mytegroup/billtracker/pkg/config"
	"github.com/mytegroup/billtracker/pkg/secrets"
)

func main() {
	os.Exit(run())
}

func run() int {
	var all bool
	var bill string
	var multiplier int
	flag.BoolVar(&all, "all", false, "re-enrich bills that already carry enrichment")
	flag.StringVar(&bill, "bill", "", "enrich only the bill with this href")
	flag.IntVar(&multiplier, "workers-multiplier", 0, "concurrent bills per CPU (overrides ENRICHMENT_CONCURRENCY_MULTIPLIER)")
	flag.Parse()

	if _, err := secrets.NewLoader(secrets.LoadVaultConfigFromEnv()).Apply(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to load secrets from vault")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	observability.InitLogger(observability.LoggerOptions{
		Service:     "bill-enrich",
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
		Out:         os.Stderr,
	})

	if multiplier > 0 {
		cfg.Enrichment.ConcurrencyMultiplier = multiplier
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	generator, err := openai.NewClient(&cfg.OpenAI)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize OpenAI client")
		return 1
	}
	defer generator.Close()

	store := storage.NewJSONBillStore(cfg.Storage.BillsPath())
	billEnricher := services.NewBillEnrichmentService(enrichment.DefaultRegistry(), generator, cfg.Enrichment)
	batch := services.NewBatchEnrichmentService(store, billEnricher, cfg.Enrichment)

	if redisClient, err := redis.NewClient(ctx, &cfg.Redis); err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, bill_enriched events will not be published")
	} else {
		defer redisClient.Close()
		batch.SetEventBus(events.NewRedisEventBus(redisClient))
	}

	if tsClient, err := typesense.NewClient(&cfg.Typesense); err != nil {
		log.Warn().Err(err).Msg("Typesense unavailable, search index will not be refreshed")
	} else {
		batch.SetSearchIndex(search.NewTypesenseAdapter(tsClient))
	}

	if bill != "" {
		outcome, err := batch.RunSingle(ctx, bill)
		if err != nil {
			log.Error().Err(err).Str("href", bill).Msg("enrichment failed")
			return 1
		}
		printJSON(outcome)
		if outcome.Status == services.EnrichmentStatusFailed {
			return 1
		}
		return 0
	}

	opts := services.BatchOptions{}
	if all {
		opts.SkipEnriched = entities.BoolPtr(false)
	}

	log.Info().Int("concurrency", batch.Concurrency()).Bool("all", all).Msg("starting enrichment batch")
	summary, err := batch.Run(ctx, opts)
	if err != nil {
		log.Error().Err(err).Msg("enrichment batch failed")
		return 1
	}
	printJSON(summary)
	if summary.Cancelled {
		return 130
	}
	return 0
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("failed to encode result")
		return
	}
	fmt.Println(string(out))
}
