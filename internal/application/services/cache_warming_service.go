package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/inthetow/backend/internal/domain/providers"
	"github.com/inthetow/backend/internal/domain/repositories"
)

// DefaultWarmCount is how many leaderboard facilities are preloaded
const DefaultWarmCount = 50

// CacheWarmingService preloads the facility cache with the most active facilities.
// facilities is expected to be the read-through cached repository, so loading
// the facilities by id is what fills the cache.
type CacheWarmingService struct {
	facilities repositories.FacilityRepository
	tracker    providers.ActivityTracker
	count      int
	done       chan struct{}
}

// NewCacheWarmingService creates a new cache warming service
func NewCacheWarmingService(facilities repositories.FacilityRepository, tracker providers.ActivityTracker, count int) *CacheWarmingService {
	if count <= 0 {
		count = DefaultWarmCount
	}
	return &CacheWarmingService{
		facilities: facilities,
		tracker:    tracker,
		count:      count,
	}
}

// WarmCache loads the current top facilities and returns how many were found
func (s *CacheWarmingService) WarmCache(ctx context.Context) (int, error) {
	top, err := s.tracker.Top(ctx, s.count)
	if err != nil {
		return 0, fmt.Errorf("failed to read activity leaderboard: %w", err)
	}
	if len(top) == 0 {
		return 0, nil
	}

	ids := make([]string, len(top))
	for i, entry := range top {
		ids[i] = entry.FacilityID
	}

	facilities, err := s.facilities.GetByIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to load active facilities: %w", err)
	}
	return len(facilities), nil
}

// StartPeriodicWarming warms once, then again every interval until ctx is done
func (s *CacheWarmingService) StartPeriodicWarming(ctx context.Context, interval time.Duration) {
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		s.warm(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.warm(ctx)
			}
		}
	}()
	log.Info().Dur("interval", interval).Msg("Started periodic cache warming")
}

// Wait blocks until the periodic loop has exited
func (s *CacheWarmingService) Wait() {
	if s.done != nil {
		<-s.done
	}
}

func (s *CacheWarmingService) warm(ctx context.Context) {
	n, err := s.WarmCache(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Cache warming failed")
		return
	}
	log.Debug().Int("facilities", n).Msg("Warmed facility cache")
}
