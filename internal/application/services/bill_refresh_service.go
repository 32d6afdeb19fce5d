package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mytegroup/billtracker/internal/domain/entities"
	"github.com/mytegroup/billtracker/internal/domain/providers"
	"github.com/mytegroup/billtracker/internal/domain/repositories"
	"github.com/mytegroup/billtracker/internal/infrastructure/observability"
)

// RefreshSummary reports the result of merging one scrape.
type RefreshSummary struct {
	TotalScraped int      `json:"total_scraped"`
	New          int      `json:"new"`
	Changed      int      `json:"changed"`
	Unchanged    int      `json:"unchanged"`
	Invalid      int      `json:"invalid"`
	NewHrefs     []string `json:"new_hrefs,omitempty"`
	ChangedHrefs []string `json:"changed_hrefs,omitempty"`
}

// BillRefreshService merges fresh scrape output into the store and flags
// which bills changed.
type BillRefreshService struct {
	store    repositories.BillStore
	eventBus providers.EventBus
}

// NewBillRefreshService creates a new bill refresh service
func NewBillRefreshService(store repositories.BillStore) *BillRefreshService {
	return &BillRefreshService{store: store}
}

// SetEventBus enables bill_created and bill_changed events after each write.
func (s *BillRefreshService) SetEventBus(bus providers.EventBus) {
	s.eventBus = bus
}

// Refresh compares each scraped bill with its stored version on the tracked
// attributes and sets change_status accordingly. Stored enrichment fields are
// kept. Within one scrape a repeated href replaces the earlier record.
func (s *BillRefreshService) Refresh(ctx context.Context, scraped []*entities.BillRecord) (*RefreshSummary, error) {
	ctx, span := observability.StartSpan(ctx, "bills.refresh")
	defer span.End()
	logger := observability.LoggerFromContext(ctx)

	summary := &RefreshSummary{TotalScraped: len(scraped)}
	var events []*entities.BillEvent

	err := s.store.Update(ctx, func(existing map[string]*entities.BillRecord) ([]*entities.BillRecord, error) {
		order, latest := dedupeScrape(scraped, summary, logger)

		updates := make([]*entities.BillRecord, 0, len(order))
		for _, href := range order {
			incoming := latest[href]
			update := incoming.Clone()

			prior, known := existing[href]
			if !known {
				update.ChangeStatus = entities.BoolPtr(true)
				summary.New++
				summary.NewHrefs = append(summary.NewHrefs, href)
				events = append(events, entities.NewBillEvent(update, entities.BillEventCreated, nil))
				updates = append(updates, update)
				continue
			}

			changed := prior.ChangedFields(incoming)
			update.ChangeStatus = entities.BoolPtr(len(changed) > 0)
			if len(changed) > 0 {
				summary.Changed++
				summary.ChangedHrefs = append(summary.ChangedHrefs, href)
				merged := prior.Clone()
				merged.MergeFrom(update)
				events = append(events, entities.NewBillEvent(merged, entities.BillEventChanged, changed))
			} else {
				summary.Unchanged++
			}
			updates = append(updates, update)
		}
		return updates, nil
	})
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("failed to merge scraped bills: %w", err)
	}

	if s.eventBus != nil {
		for _, event := range events {
			if err := s.eventBus.Publish(ctx, providers.EventChannelBillUpdates, event); err != nil {
				logger.Warn().Err(err).Str("href", event.Href).Str("event_type", string(event.EventType)).Msg("failed to publish bill event")
			}
		}
	}

	logger.Info().
		Int("total_scraped", summary.TotalScraped).
		Int("new", summary.New).
		Int("changed", summary.Changed).
		Int("unchanged", summary.Unchanged).
		Int("invalid", summary.Invalid).
		Msg("scrape merged")

	return summary, nil
}

func dedupeScrape(scraped []*entities.BillRecord, summary *RefreshSummary, logger *zerolog.Logger) ([]string, map[string]*entities.BillRecord) {
	var order []string
	latest := make(map[string]*entities.BillRecord, len(scraped))
	for i, bill := range scraped {
		if bill == nil || bill.Href == "" {
			summary.Invalid++
			logger.Warn().Int("position", i).Msg("scraped bill has no href")
			continue
		}
		if _, seen := latest[bill.Href]; !seen {
			order = append(order, bill.Href)
		}
		latest[bill.Href] = bill
	}
	return order, latest
}
