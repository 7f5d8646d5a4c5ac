package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/inthetow/backend/internal/domain/entities"
	"github.com/inthetow/backend/internal/domain/providers"
)

// CacheInvalidationService drops cached facilities when another process changes them
type CacheInvalidationService struct {
	cache    providers.CacheProvider
	eventBus providers.EventBus
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
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
	eventChan, err := s.eventBus.Subscribe(s.ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to facility updates: %w", err)
	}

	s.done = make(chan struct{})
	go s.processEvents(eventChan)
	log.Info().Msg("Cache invalidation service started")
	return nil
}

// Stop stops the cache invalidation service
func (s *CacheInvalidationService) Stop() {
	s.cancel()
	if s.done != nil {
		<-s.done
	}
	log.Info().Msg("Cache invalidation service stopped")
}

func (s *CacheInvalidationService) processEvents(eventChan <-chan *entities.FacilityEvent) {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event != nil {
				s.handleEvent(event)
			}
		}
	}
}

func (s *CacheInvalidationService) handleEvent(event *entities.FacilityEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log.Debug().
		Str("event_id", event.ID).
		Str("facility_id", event.FacilityID).
		Str("event_type", string(event.Type)).
		Msg("Processing cache invalidation")

	if err := s.InvalidateFacilityCache(ctx, event.FacilityID); err != nil {
		log.Warn().Err(err).Str("facility_id", event.FacilityID).Msg("Failed to invalidate facility cache")
	}

	// Lists are ordered by score, so any review or delete can reorder them.
	if err := s.InvalidateListCaches(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to invalidate facility list caches")
	}
}

// InvalidateListCaches drops cached facility lists and search results
func (s *CacheInvalidationService) InvalidateListCaches(ctx context.Context) error {
	for _, pattern := range []string{providers.FacilityListCachePattern, providers.FacilitySearchCachePattern} {
		if err := s.cache.DeletePattern(ctx, pattern); err != nil {
			return fmt.Errorf("failed to invalidate pattern %s: %w", pattern, err)
		}
	}
	return nil
}

// InvalidateFacilityCache drops one cached facility
func (s *CacheInvalidationService) InvalidateFacilityCache(ctx context.Context, facilityID string) error {
	if err := s.cache.Delete(ctx, providers.FacilityCacheKey(facilityID)); err != nil {
		return fmt.Errorf("failed to invalidate facility cache: %w", err)
	}
	return nil
}
