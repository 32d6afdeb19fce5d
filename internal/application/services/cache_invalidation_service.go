package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mytegroup/billtracker/internal/domain/entities"
	"github.com/mytegroup/billtracker/internal/domain/providers"
)

const (
	// DashboardCachePattern matches every cached dashboard aggregate
	DashboardCachePattern = DashboardCachePrefix + "*"

	// BillResponseCachePattern matches cached HTTP responses of the bill routes
	BillResponseCachePattern = "http:cache:*/api/bills*"
)

// CacheInvalidationService handles cache invalidation based on events
type CacheInvalidationService struct {
	cache    providers.CacheProvider
	eventBus providers.EventBus
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewCacheInvalidationService creates a new cache invalidation service
func NewCacheInvalidationService(cache providers.CacheProvider, eventBus providers.EventBus) *CacheInvalidationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CacheInvalidationService{
		cache:    cache,
		eventBus: eventBus,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins listening for events and invalidating cache
func (s *CacheInvalidationService) Start() error {
	eventChan, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelBillUpdates)
	if err != nil {
		return fmt.Errorf("failed to subscribe to bill updates: %w", err)
	}

	go s.processEvents(eventChan)
	log.Info().Msg("Cache invalidation service started")
	return nil
}

// Stop stops the cache invalidation service
func (s *CacheInvalidationService) Stop() {
	s.cancel()
	log.Info().Msg("Cache invalidation service stopped")
}

// processEvents processes bill events and invalidates cache accordingly
func (s *CacheInvalidationService) processEvents(eventChan <-chan *entities.BillEvent) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			s.handleEvent(event)
		}
	}
}

// handleEvent handles a single bill event
func (s *CacheInvalidationService) handleEvent(event *entities.BillEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log.Debug().
		Str("event_id", event.ID).
		Str("href", event.Href).
		Str("event_type", string(event.EventType)).
		Msg("processing cache invalidation")

	// Aggregates span every bill, so any bill event makes them stale.
	if err := s.InvalidateBillCaches(ctx); err != nil {
		log.Warn().Err(err).Str("href", event.Href).Msg("failed to invalidate bill caches")
	}
}

// InvalidateBillCaches drops the dashboard aggregates and cached bill responses
func (s *CacheInvalidationService) InvalidateBillCaches(ctx context.Context) error {
	for _, pattern := range []string{DashboardCachePattern, BillResponseCachePattern} {
		if err := s.cache.DeletePattern(ctx, pattern); err != nil {
			return fmt.Errorf("failed to invalidate pattern %s: %w", pattern, err)
		}
		log.Debug().Str("pattern", pattern).Msg("invalidated cache pattern")
	}
	return nil
}
