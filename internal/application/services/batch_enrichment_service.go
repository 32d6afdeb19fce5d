package services

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"

	"github.com/mytegroup/billtracker/internal/domain/entities"
	"github.com/mytegroup/billtracker/internal/domain/providers"
	"github.com/mytegroup/billtracker/internal/domain/repositories"
	"github.com/mytegroup/billtracker/internal/infrastructure/observability"
	"github.com/mytegroup/billtracker/pkg/config"
	apperrors "github.com/mytegroup/billtracker/pkg/errors"
)

// BatchOptions narrows a batch run.
type BatchOptions struct {
	// SkipEnriched overrides the configured skip-if-present policy when set.
	SkipEnriched *bool
	// Hrefs limits the run to these bills. Empty means every stored bill.
	Hrefs []string
}

// BatchSummary is the user-visible result of a batch run.
type BatchSummary struct {
	Total           int           `json:"total"`
	Candidates      int           `json:"candidates"`
	Enriched        int           `json:"enriched"`
	Skipped         int           `json:"skipped"`
	AlreadyEnriched int           `json:"already_enriched"`
	Failed          int           `json:"failed"`
	Degraded        int           `json:"degraded"`
	Dropped         int           `json:"dropped"`
	Cancelled       bool          `json:"cancelled"`
	FailedHrefs     []string      `json:"failed_hrefs,omitempty"`
	Duration        time.Duration `json:"duration"`
}

// Processed is the number of bills the orchestrator ran on.
func (s *BatchSummary) Processed() int {
	return s.Enriched + s.Skipped + s.Failed
}

// BatchEnrichmentService enriches stored bills with bounded concurrency and
// writes the results back with a single store merge.
type BatchEnrichmentService struct {
	store        repositories.BillStore
	enricher     BillEnricher
	eventBus     providers.EventBus
	searchIndex  providers.BillSearchIndex
	concurrency  int
	skipEnriched bool
}

// NewBatchEnrichmentService creates a new batch enrichment service
func NewBatchEnrichmentService(store repositories.BillStore, enricher BillEnricher, cfg config.EnrichmentConfig) *BatchEnrichmentService {
	multiplier := cfg.ConcurrencyMultiplier
	if multiplier <= 0 {
		multiplier = 1
	}
	concurrency := runtime.NumCPU() * multiplier
	if concurrency < 1 {
		concurrency = 1
	}
	return &BatchEnrichmentService{
		store:        store,
		enricher:     enricher,
		concurrency:  concurrency,
		skipEnriched: cfg.SkipEnriched,
	}
}

// SetEventBus enables bill_enriched events after each successful write.
func (s *BatchEnrichmentService) SetEventBus(bus providers.EventBus) {
	s.eventBus = bus
}

// SetSearchIndex enables reindexing of enriched bills.
func (s *BatchEnrichmentService) SetSearchIndex(index providers.BillSearchIndex) {
	s.searchIndex = index
}

// Concurrency returns the maximum number of bills enriched at once.
func (s *BatchEnrichmentService) Concurrency() int {
	return s.concurrency
}

// Run enriches every candidate bill. Cancelling ctx stops dispatch: bills
// already running finish and are saved, the rest are counted as dropped and
// the summary is returned with Cancelled set.
func (s *BatchEnrichmentService) Run(ctx context.Context, opts BatchOptions) (*BatchSummary, error) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "enrichment.batch")
	defer span.End()
	logger := observability.LoggerFromContext(ctx)

	bills, err := s.store.List(ctx)
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("failed to load bills: %w", err)
	}

	skip := s.skipEnriched
	if opts.SkipEnriched != nil {
		skip = *opts.SkipEnriched
	}

	summary := &BatchSummary{Total: len(bills)}
	selected := bills
	if len(opts.Hrefs) > 0 {
		var missing []string
		selected, missing = selectBills(bills, opts.Hrefs)
		for _, href := range missing {
			logger.Error().Str("href", href).Msg("requested bill is not in the store")
			summary.Failed++
			summary.FailedHrefs = append(summary.FailedHrefs, href)
		}
	}

	candidates := make([]*entities.BillRecord, 0, len(selected))
	for _, bill := range selected {
		if skip && bill.IsEnriched() {
			summary.AlreadyEnriched++
			continue
		}
		candidates = append(candidates, bill)
	}
	summary.Candidates = len(candidates)
	observability.SetSpanAttributes(span,
		attribute.Int("batch.candidates", summary.Candidates),
		attribute.Int("batch.concurrency", s.concurrency),
	)

	outcomes := s.dispatch(ctx, candidates, summary)

	var enriched []*entities.BillRecord
	for i, outcome := range outcomes {
		if outcome == nil {
			continue
		}
		switch outcome.Status {
		case EnrichmentStatusEnriched:
			summary.Enriched++
			if outcome.Degraded {
				summary.Degraded++
				if candidates[i].IsEnriched() {
					logger.Warn().Str("href", outcome.Href).Msg("every enrichment call failed, keeping the previous enrichment")
					continue
				}
				logger.Warn().Str("href", outcome.Href).Msg("bill saved with defaults only, it stays a candidate")
			}
			enriched = append(enriched, storedResult(outcome))
		case EnrichmentStatusSkipped:
			summary.Skipped++
			logger.Debug().Str("href", outcome.Href).Str("reason", outcome.Reason).Msg("bill skipped")
		default:
			summary.Failed++
			summary.FailedHrefs = append(summary.FailedHrefs, outcome.Href)
			logger.Error().
				Str("href", outcome.Href).
				Str("bill_number", outcome.BillNumber).
				Str("reason", outcome.Reason).
				Msg("bill enrichment failed")
		}
	}

	if len(enriched) > 0 {
		// The write must happen even if ctx was cancelled while bills were in flight.
		saveCtx := context.WithoutCancel(ctx)
		if err := s.store.MergeAndSave(saveCtx, enrichmentUpdates(enriched)); err != nil {
			observability.RecordError(span, err)
			return summary, fmt.Errorf("failed to save enriched bills: %w", err)
		}
		s.announce(saveCtx, enriched)
	}

	summary.Duration = time.Since(start)
	observability.RecordBatchDuration(ctx, summary.Duration)
	logger.Info().
		Int("total", summary.Total).
		Int("candidates", summary.Candidates).
		Int("enriched", summary.Enriched).
		Int("skipped", summary.Skipped).
		Int("already_enriched", summary.AlreadyEnriched).
		Int("failed", summary.Failed).
		Int("degraded", summary.Degraded).
		Int("dropped", summary.Dropped).
		Bool("cancelled", summary.Cancelled).
		Dur("duration", summary.Duration).
		Msg("enrichment batch finished")

	return summary, nil
}

// RunSingle enriches one bill regardless of the skip-if-present policy.
func (s *BatchEnrichmentService) RunSingle(ctx context.Context, href string) (*EnrichmentOutcome, error) {
	bills, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load bills: %w", err)
	}
	bill, ok := bills[href]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("bill %s not found", href))
	}

	outcome := s.enricher.Enrich(ctx, bill)
	if outcome.Status != EnrichmentStatusEnriched || (outcome.Degraded && bill.IsEnriched()) {
		return outcome, nil
	}

	saveCtx := context.WithoutCancel(ctx)
	result := storedResult(outcome)
	if err := s.store.MergeAndSave(saveCtx, enrichmentUpdates([]*entities.BillRecord{result})); err != nil {
		return outcome, fmt.Errorf("failed to save enriched bill: %w", err)
	}
	s.announce(saveCtx, []*entities.BillRecord{result})
	return outcome, nil
}

// dispatch runs the orchestrator on candidates with at most s.concurrency in flight.
func (s *BatchEnrichmentService) dispatch(ctx context.Context, candidates []*entities.BillRecord, summary *BatchSummary) []*EnrichmentOutcome {
	outcomes := make([]*EnrichmentOutcome, len(candidates))
	sem := semaphore.NewWeighted(int64(s.concurrency))
	workCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	dispatched := 0
	for i, bill := range candidates {
		if ctx.Err() != nil {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		dispatched++
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			outcomes[i] = s.enricher.Enrich(workCtx, bill)
		}()
	}
	wg.Wait()

	summary.Dropped = len(candidates) - dispatched
	summary.Cancelled = summary.Dropped > 0 || ctx.Err() != nil
	return outcomes
}

func (s *BatchEnrichmentService) announce(ctx context.Context, bills []*entities.BillRecord) {
	logger := observability.LoggerFromContext(ctx)
	if s.eventBus != nil {
		for _, bill := range bills {
			event := entities.NewBillEvent(bill, entities.BillEventEnriched, nil)
			if err := s.eventBus.Publish(ctx, providers.EventChannelBillUpdates, event); err != nil {
				logger.Warn().Err(err).Str("href", bill.Href).Msg("failed to publish bill_enriched event")
			}
		}
	}
	if s.searchIndex != nil {
		if err := s.searchIndex.Index(ctx, bills); err != nil {
			logger.Warn().Err(err).Int("bills", len(bills)).Msg("failed to reindex enriched bills")
		}
	}
}

// enrichmentUpdates keeps only what the orchestrator produced so that scraped
// attributes changed by a concurrent refresh are not overwritten with stale values.
// storedResult is the bill to write for an enriched outcome. A degraded bill
// keeps its defaults but not the enhancement date, so skip-if-present retries
// it on the next run instead of keeping an all-default record forever. Callers
// never store a degraded result over an earlier enrichment.
func storedResult(outcome *EnrichmentOutcome) *entities.BillRecord {
	if !outcome.Degraded {
		return outcome.Bill
	}
	bill := outcome.Bill.Clone()
	bill.AIEnhancementDate = nil
	return bill
}

func enrichmentUpdates(bills []*entities.BillRecord) []*entities.BillRecord {
	updates := make([]*entities.BillRecord, 0, len(bills))
	for _, bill := range bills {
		update := &entities.BillRecord{
			Href:              bill.Href,
			AIEnhancementDate: bill.AIEnhancementDate,
		}
		for _, field := range entities.AllEnrichmentFields() {
			if v, ok := bill.EnrichmentValue(field); ok {
				update.SetEnrichment(field, v)
			}
		}
		updates = append(updates, update)
	}
	return updates
}

func selectBills(bills []*entities.BillRecord, hrefs []string) ([]*entities.BillRecord, []string) {
	byHref := make(map[string]*entities.BillRecord, len(bills))
	for _, b := range bills {
		byHref[b.Href] = b
	}
	var selected []*entities.BillRecord
	var missing []string
	seen := make(map[string]struct{}, len(hrefs))
	for _, href := range hrefs {
		if _, dup := seen[href]; dup {
			continue
		}
		seen[href] = struct{}{}
		if b, ok := byHref[href]; ok {
			selected = append(selected, b)
		} else {
			missing = append(missing, href)
		}
	}
	return selected, missing
}
