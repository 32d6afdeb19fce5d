package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// warmStatusLimit caps how many per-status aggregates are precomputed.
const warmStatusLimit = 5

// CacheWarmingService precomputes the dashboard aggregates most readers ask for
type CacheWarmingService struct {
	dashboard *DashboardService
}

// NewCacheWarmingService creates a new cache warming service
func NewCacheWarmingService(dashboard *DashboardService) *CacheWarmingService {
	return &CacheWarmingService{dashboard: dashboard}
}

// WarmCache computes the unfiltered aggregate and one aggregate per most
// common status, which stores each of them in the dashboard cache.
func (s *CacheWarmingService) WarmCache(ctx context.Context) (int, error) {
	all, err := s.dashboard.Aggregate(ctx, BillFilter{})
	if err != nil {
		return 0, fmt.Errorf("failed to warm dashboard aggregate: %w", err)
	}
	warmed := 1

	for _, status := range topStatuses(all.BillsByStatus, warmStatusLimit) {
		if status == unknownBucket {
			continue
		}
		if _, err := s.dashboard.Aggregate(ctx, BillFilter{Status: status}); err != nil {
			log.Warn().Err(err).Str("status", status).Msg("failed to warm status aggregate")
			continue
		}
		warmed++
	}
	return warmed, nil
}

// StartPeriodicWarming warms once, then again every interval until ctx ends
func (s *CacheWarmingService) StartPeriodicWarming(ctx context.Context, interval time.Duration) {
	if n, err := s.WarmCache(ctx); err != nil {
		log.Warn().Err(err).Msg("initial cache warming failed")
	} else {
		log.Info().Int("aggregates", n).Msg("dashboard cache warmed")
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("stopping cache warming service")
				return
			case <-ticker.C:
				if _, err := s.WarmCache(ctx); err != nil {
					log.Warn().Err(err).Msg("periodic cache warming failed")
				}
			}
		}
	}()
	log.Info().Dur("interval", interval).Msg("started periodic cache warming")
}

func topStatuses(counts map[string]int, limit int) []string {
	statuses := make([]string, 0, len(counts))
	for status := range counts {
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool {
		if counts[statuses[i]] != counts[statuses[j]] {
			return counts[statuses[i]] > counts[statuses[j]]
		}
		return statuses[i] < statuses[j]
	})
	if len(statuses) > limit {
		statuses = statuses[:limit]
	}
	return statuses
}
