package services

import (
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/inthetow/backend/internal/domain/entities"
	"github.com/inthetow/backend/internal/domain/repositories"
	"github.com/inthetow/backend/internal/domain/scoring"
	"github.com/inthetow/backend/internal/infrastructure/observability"
	apperrors "github.com/inthetow/backend/pkg/errors"
	"github.com/inthetow/backend/pkg/retry"
)

// AggregateConfig tunes the aggregate updater
type AggregateConfig struct {
	MaxAttempts   int
	RecentRatings int
}

// AggregateService folds reviews into facility aggregates.
// Writes for one facility are serialized in-process and guarded by the facility version.
type AggregateService struct {
	facilities repositories.FacilityRepository
	reviews    repositories.ReviewRepository
	searchRepo repositories.FacilitySearchRepository
	metrics    *observability.Metrics
	cfg        AggregateConfig
	locks      *keyedMutex
}

// NewAggregateService creates a new aggregate service. searchRepo and metrics may be nil.
func NewAggregateService(
	facilities repositories.FacilityRepository,
	reviews repositories.ReviewRepository,
	searchRepo repositories.FacilitySearchRepository,
	metrics *observability.Metrics,
	cfg AggregateConfig,
) *AggregateService {
	if cfg.RecentRatings <= 0 {
		cfg.RecentRatings = scoring.RecentRatingsWindow
	}
	return &AggregateService{
		facilities: facilities,
		reviews:    reviews,
		searchRepo: searchRepo,
		metrics:    metrics,
		cfg:        cfg,
		locks:      newKeyedMutex(),
	}
}

func isConflict(err error) bool {
	return apperrors.IsType(err, apperrors.ErrorTypeConflict)
}

// ApplyReview folds an already persisted review into its facility and rescores it.
// A missing facility surfaces as NOT_FOUND; exhausted version collisions as CONFLICT.
func (s *AggregateService) ApplyReview(ctx context.Context, review *entities.Review) (*entities.Facility, error) {
	ctx, span := observability.StartSpan(ctx, "AggregateService.ApplyReview")
	defer span.End()

	unlock := s.locks.Lock(review.FacilityID)
	defer unlock()

	obs := scoring.ObservationFromReview(review)

	var updated *entities.Facility
	err := retry.Do(ctx, retry.ConflictConfig(s.cfg.MaxAttempts, isConflict), func() error {
		facility, err := s.current(ctx, review.FacilityID)
		if err != nil {
			return err
		}
		// already folded in, e.g. by a rebuild that ran first
		if slices.Contains(facility.ReviewIDs, review.ID) {
			updated = facility
			return nil
		}

		stats := facility.FacilityStats
		scoring.ApplyReview(&stats, obs)

		linked := append(slices.Clone(facility.ReviewIDs), review.ID)
		recent, err := s.reviews.RecentRatings(ctx, facility.ID, linked, s.cfg.RecentRatings)
		if err != nil {
			return err
		}
		scoring.Rescore(&stats, recent)

		if err := s.facilities.UpdateAggregates(ctx, facility.ID, facility.Version, stats, review.ID); err != nil {
			if isConflict(err) {
				observability.RecordAggregateConflict(ctx, s.metrics, facility.ID)
				log.Debug().Str("facility_id", facility.ID).Int64("version", facility.Version).Msg("Aggregate update collided, retrying")
			}
			return err
		}

		facility.FacilityStats = stats
		facility.ReviewIDs = append(facility.ReviewIDs, review.ID)
		facility.Version++
		updated = facility
		return nil
	})
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	s.reindex(ctx, updated)
	return updated, nil
}

// Rebuild recomputes a facility's aggregates by replaying its stored reviews
// oldest first and committing the result in one version-guarded write.
// A review applied while the replay runs bumps the version, so the replay restarts.
func (s *AggregateService) Rebuild(ctx context.Context, facilityID string) (*entities.Facility, error) {
	ctx, span := observability.StartSpan(ctx, "AggregateService.Rebuild")
	defer span.End()

	unlock := s.locks.Lock(facilityID)
	defer unlock()

	var rebuilt *entities.Facility
	err := retry.Do(ctx, retry.ConflictConfig(s.cfg.MaxAttempts, isConflict), func() error {
		facility, err := s.current(ctx, facilityID)
		if err != nil {
			return err
		}
		reviews, err := s.reviews.List(ctx, repositories.ReviewFilter{FacilityID: facilityID, Ascending: true})
		if err != nil {
			return err
		}

		stats, reviewIDs := s.replay(reviews)
		if err := s.facilities.ReplaceAggregates(ctx, facilityID, facility.Version, stats, reviewIDs); err != nil {
			if isConflict(err) {
				observability.RecordAggregateConflict(ctx, s.metrics, facilityID)
				log.Debug().Str("facility_id", facilityID).Int64("version", facility.Version).Msg("Rebuild collided, replaying again")
			}
			return err
		}

		facility.FacilityStats = stats
		facility.ReviewIDs = reviewIDs
		facility.Version++
		rebuilt = facility
		return nil
	})
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	log.Info().Str("facility_id", facilityID).Int("reviews", len(rebuilt.ReviewIDs)).Float64("score", rebuilt.InTheTowScore).Msg("Rebuilt facility aggregates")
	s.reindex(ctx, rebuilt)
	return rebuilt, nil
}

// replay folds the facility's stored reviews into fresh stats
func (s *AggregateService) replay(reviews []*entities.Review) (entities.FacilityStats, []string) {
	var stats entities.FacilityStats
	reviewIDs := make([]string, 0, len(reviews))
	var window []int
	for _, review := range reviews {
		if slices.Contains(reviewIDs, review.ID) {
			continue
		}
		scoring.ApplyReview(&stats, scoring.ObservationFromReview(review))
		window = pushRecent(window, review.Rating, s.cfg.RecentRatings)
		scoring.Rescore(&stats, window)
		reviewIDs = append(reviewIDs, review.ID)
	}
	return stats, reviewIDs
}

// RebuildAll replays every facility, batchSize facilities at a time, and
// returns how many were rebuilt. It stops at the first failure.
func (s *AggregateService) RebuildAll(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = MaxPageSize
	}

	rebuilt := 0
	for offset := 0; ; offset += batchSize {
		batch, err := s.facilities.List(ctx, repositories.FacilityFilter{Limit: batchSize, Offset: offset})
		if err != nil {
			return rebuilt, err
		}
		for _, f := range batch {
			if _, err := s.Rebuild(ctx, f.ID); err != nil {
				return rebuilt, fmt.Errorf("rebuild facility %s: %w", f.ID, err)
			}
			rebuilt++
		}
		if len(batch) < batchSize {
			return rebuilt, nil
		}
	}
}

// pushRecent prepends rating and keeps the newest n
func pushRecent(window []int, rating, n int) []int {
	window = append([]int{rating}, window...)
	if len(window) > n {
		window = window[:n]
	}
	return window
}

// current reads the facility row of record, skipping any read-through cache
func (s *AggregateService) current(ctx context.Context, id string) (*entities.Facility, error) {
	if r, ok := s.facilities.(repositories.UncachedFacilityReader); ok {
		return r.GetByIDUncached(ctx, id)
	}
	return s.facilities.GetByID(ctx, id)
}

func (s *AggregateService) reindex(ctx context.Context, facility *entities.Facility) {
	if s.searchRepo == nil {
		return
	}
	if err := s.searchRepo.Index(ctx, facility); err != nil {
		log.Warn().Err(err).Str("facility_id", facility.ID).Msg("Failed to reindex facility")
	}
}
