package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mytegroup/billtracker/internal/domain/entities"
	"github.com/mytegroup/billtracker/internal/domain/providers"
	"github.com/mytegroup/billtracker/internal/domain/repositories"
	"github.com/mytegroup/billtracker/internal/infrastructure/observability"
	apperrors "github.com/mytegroup/billtracker/pkg/errors"
)

const (
	// DashboardCachePrefix namespaces every cached dashboard aggregate
	DashboardCachePrefix = "dashboard:"

	dashboardCacheTTLSeconds = 300
	unknownBucket            = "Unknown"
)

// BillFilter narrows dashboard queries. Empty fields match everything.
type BillFilter struct {
	Status  string `json:"status,omitempty"`
	Sponsor string `json:"sponsor,omitempty"`
	Topic   string `json:"topic,omitempty"`
}

func (f BillFilter) cacheKey() string {
	return fmt.Sprintf("%saggregate:status=%s|sponsor=%s|topic=%s",
		DashboardCachePrefix, f.Status, strings.ToLower(f.Sponsor), strings.ToLower(f.Topic))
}

// BillAggregates are the dashboard counters over a filtered set of bills.
type BillAggregates struct {
	TotalBills     int            `json:"total_bills"`
	ActiveBills    int            `json:"active_bills"`
	ChangedBills   int            `json:"changed_bills"`
	EnrichedBills  int            `json:"enriched_bills"`
	BillsByStatus  map[string]int `json:"bills_by_status"`
	BillsBySponsor map[string]int `json:"bills_by_sponsor"`
	BillsByTopic   map[string]int `json:"bills_by_topic"`
}

// DashboardService answers read-only queries over the bill store.
type DashboardService struct {
	store repositories.BillStore
	cache providers.CacheProvider
}

// NewDashboardService creates a new dashboard service. cache may be nil.
func NewDashboardService(store repositories.BillStore, cache providers.CacheProvider) *DashboardService {
	return &DashboardService{store: store, cache: cache}
}

// List returns the stored bills matching filter in store order.
func (s *DashboardService) List(ctx context.Context, filter BillFilter) ([]*entities.BillRecord, error) {
	bills, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	out := make([]*entities.BillRecord, 0, len(bills))
	for _, bill := range bills {
		if matchesFilter(bill, filter) {
			out = append(out, bill)
		}
	}
	return out, nil
}

// Get returns the bill identified by href.
func (s *DashboardService) Get(ctx context.Context, href string) (*entities.BillRecord, error) {
	if strings.TrimSpace(href) == "" {
		return nil, apperrors.NewValidationError("href is required")
	}
	bills, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load bills: %w", err)
	}
	bill, ok := bills[href]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("bill %s not found", href))
	}
	return bill, nil
}

// Changed returns the bills flagged as changed by the last refresh.
func (s *DashboardService) Changed(ctx context.Context) ([]*entities.BillRecord, error) {
	bills, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	var changed []*entities.BillRecord
	for _, bill := range bills {
		if bill.ChangeStatus != nil && *bill.ChangeStatus {
			changed = append(changed, bill)
		}
	}
	return changed, nil
}

// Aggregate counts the filtered bills by status, sponsor and topic. Results are
// cached until the next bill event or for five minutes.
func (s *DashboardService) Aggregate(ctx context.Context, filter BillFilter) (*BillAggregates, error) {
	logger := observability.LoggerFromContext(ctx)
	key := filter.cacheKey()

	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key); err == nil {
			var cached BillAggregates
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached, nil
			}
			logger.Warn().Str("key", key).Msg("discarding unreadable dashboard cache entry")
		}
	}

	bills, err := s.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	agg := aggregate(bills)

	if s.cache != nil {
		if data, err := json.Marshal(agg); err == nil {
			if err := s.cache.Set(ctx, key, data, dashboardCacheTTLSeconds); err != nil {
				logger.Warn().Err(err).Str("key", key).Msg("failed to cache dashboard aggregates")
			}
		}
	}
	return agg, nil
}

func aggregate(bills []*entities.BillRecord) *BillAggregates {
	agg := &BillAggregates{
		TotalBills:     len(bills),
		BillsByStatus:  make(map[string]int),
		BillsBySponsor: make(map[string]int),
		BillsByTopic:   make(map[string]int),
	}
	for _, bill := range bills {
		agg.BillsByStatus[bucket(bill.CurrentStatus)]++
		agg.BillsBySponsor[bucket(bill.Sponsor)]++

		topics := bill.Topics()
		if len(topics) == 0 {
			agg.BillsByTopic[unknownBucket]++
		}
		for _, topic := range topics {
			agg.BillsByTopic[topic]++
		}

		if bill.RoyalAssent != entities.ReadingCompleted {
			agg.ActiveBills++
		}
		if bill.ChangeStatus != nil && *bill.ChangeStatus {
			agg.ChangedBills++
		}
		if bill.IsEnriched() {
			agg.EnrichedBills++
		}
	}
	return agg
}

func bucket(value string) string {
	if strings.TrimSpace(value) == "" {
		return unknownBucket
	}
	return value
}

func matchesFilter(bill *entities.BillRecord, filter BillFilter) bool {
	if filter.Status != "" && bill.CurrentStatus != filter.Status {
		return false
	}
	if filter.Sponsor != "" && !strings.Contains(strings.ToLower(bill.Sponsor), strings.ToLower(filter.Sponsor)) {
		return false
	}
	if filter.Topic != "" {
		for _, topic := range bill.Topics() {
			if strings.EqualFold(topic, filter.Topic) {
				return true
			}
		}
		return false
	}
	return true
}
