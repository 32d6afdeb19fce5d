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

	"github.com/mytegroup/billtracker/internal/adapters/search"
	"github.com/mytegroup/billtracker/internal/adapters/storage"
	"github.com/mytegroup/billtracker/internal/infrastructure/clients/typesense"
	"github.com/mytegroup/billtracker/internal/infrastructure/observability"
	"github.com/mytegroup/billtracker/pkg/config"
	"github.com/mytegroup/billtracker/pkg/secrets"
)

func main() {
	var reset bool
	var intervalFlag string
	flag.BoolVar(&reset, "reset", false, "delete existing Typesense collection before reindexing")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for reindexing (e.g. 6h, 30m)")
	flag.Parse()

	if _, err := secrets.NewLoader(secrets.LoadVaultConfigFromEnv()).Apply(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to load secrets from vault")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	observability.InitLogger(observability.LoggerOptions{
		Service:     "bill-indexer",
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
	})

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("REINDEX_INTERVAL"))
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if os.Getenv("RESET_TYPESENSE") == "true" {
		reset = true
	}

	for {
		if err := indexOnce(ctx, cfg, reset); err != nil {
			log.Error().Err(err).Msg("reindex failed")
		}

		if interval <= 0 {
			break
		}

		reset = false
		log.Info().Dur("interval", interval).Msg("reindex complete, waiting for next run")

		select {
		case <-ctx.Done():
			log.Info().Msg("reindexer shutting down")
			return
		case <-time.After(interval):
		}
	}
}

func indexOnce(ctx context.Context, cfg *config.Config, reset bool) error {
	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		return err
	}
	index := search.NewTypesenseAdapter(tsClient)

	if reset {
		log.Info().Str("collection", typesense.BillsCollection).Msg("resetting collection")
	}
	if err := index.InitSchema(ctx, reset); err != nil {
		return err
	}

	bills, err := storage.NewJSONBillStore(cfg.Storage.BillsPath()).List(ctx)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := index.Index(ctx, bills); err != nil {
		return err
	}
	log.Info().Int("bills", len(bills)).Dur("took", time.Since(start)).Msg("bills indexed")
	return nil
}
