package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/inthetow/backend/internal/domain/entities"
	"github.com/inthetow/backend/internal/domain/providers"
	"github.com/inthetow/backend/internal/domain/repositories"
	apperrors "github.com/inthetow/backend/pkg/errors"
)

// CachedFacilityAdapter wraps a FacilityRepository with read-through caching.
// Writes go straight to the wrapped repository and invalidate synchronously.
type CachedFacilityAdapter struct {
	adapter repositories.FacilityRepository
	cache   providers.CacheProvider
}

// NewCachedFacilityAdapter creates a new cached facility adapter
func NewCachedFacilityAdapter(adapter repositories.FacilityRepository, cache providers.CacheProvider) repositories.FacilityRepository {
	return &CachedFacilityAdapter{
		adapter: adapter,
		cache:   cache,
	}
}

// Cache TTLs (in seconds)
const (
	facilityByIDTTL   = 300 // 5 minutes for single facility
	facilitiesListTTL = 180 // 3 minutes for lists
	searchResultsTTL  = 120 // 2 minutes for search results
)

func facilitiesListCacheKey(filter repositories.FacilityFilter) string {
	return fmt.Sprintf("facilities:list:%s:%d:%d", filter.State, filter.Limit, filter.Offset)
}

func facilitiesSearchCacheKey(params repositories.SearchParams) string {
	return fmt.Sprintf("facilities:search:%s:%d:%d", params.Query, params.Limit, params.Offset)
}

// cachedFacility keeps the version, which the API representation hides
type cachedFacility struct {
	*entities.Facility
	Version int64 `json:"version"`
}

func encodeFacility(f *entities.Facility) ([]byte, error) {
	return json.Marshal(cachedFacility{Facility: f, Version: f.Version})
}

func decodeFacility(data []byte) (*entities.Facility, error) {
	var c cachedFacility
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if c.Facility == nil {
		return nil, fmt.Errorf("empty cached facility")
	}
	c.Facility.Version = c.Version
	return c.Facility, nil
}

// GetByID retrieves a facility by ID with caching
func (a *CachedFacilityAdapter) GetByID(ctx context.Context, id string) (*entities.Facility, error) {
	cacheKey := providers.FacilityCacheKey(id)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		facility, err := decodeFacility(cached)
		if err == nil {
			return facility, nil
		}
		log.Warn().Err(err).Str("facility_id", id).Msg("Failed to decode cached facility")
	}

	facility, err := a.adapter.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := encodeFacility(facility); err == nil {
		if err := a.cache.Set(ctx, cacheKey, data, facilityByIDTTL); err != nil {
			log.Warn().Err(err).Str("facility_id", id).Msg("Failed to cache facility")
		}
	}
	return facility, nil
}

// GetByIDUncached reads the row of record, skipping and not filling the cache
func (a *CachedFacilityAdapter) GetByIDUncached(ctx context.Context, id string) (*entities.Facility, error) {
	return a.adapter.GetByID(ctx, id)
}

// GetByIDs retrieves multiple facilities by IDs with batch caching
func (a *CachedFacilityAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.Facility, error) {
	if len(ids) == 0 {
		return []*entities.Facility{}, nil
	}

	cacheKeys := make([]string, len(ids))
	for i, id := range ids {
		cacheKeys[i] = providers.FacilityCacheKey(id)
	}

	cached, err := a.cache.GetMulti(ctx, cacheKeys)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read facilities from cache")
	}

	facilities := make([]*entities.Facility, 0, len(ids))
	missingIDs := make([]string, 0)
	for i, id := range ids {
		if data, ok := cached[cacheKeys[i]]; ok {
			if facility, err := decodeFacility(data); err == nil {
				facilities = append(facilities, facility)
				continue
			}
		}
		missingIDs = append(missingIDs, id)
	}

	if len(missingIDs) == 0 {
		return facilities, nil
	}

	dbFacilities, err := a.adapter.GetByIDs(ctx, missingIDs)
	if err != nil {
		return nil, err
	}

	items := make(map[string][]byte, len(dbFacilities))
	for _, facility := range dbFacilities {
		if data, err := encodeFacility(facility); err == nil {
			items[providers.FacilityCacheKey(facility.ID)] = data
		}
	}
	if len(items) > 0 {
		if err := a.cache.SetMulti(ctx, items, facilityByIDTTL); err != nil {
			log.Warn().Err(err).Msg("Failed to batch cache facilities")
		}
	}

	return append(facilities, dbFacilities...), nil
}

// List retrieves a list of facilities with caching
func (a *CachedFacilityAdapter) List(ctx context.Context, filter repositories.FacilityFilter) ([]*entities.Facility, error) {
	return a.cachedList(ctx, facilitiesListCacheKey(filter), facilitiesListTTL, func() ([]*entities.Facility, error) {
		return a.adapter.List(ctx, filter)
	})
}

// Search searches for facilities with caching
func (a *CachedFacilityAdapter) Search(ctx context.Context, params repositories.SearchParams) ([]*entities.Facility, error) {
	return a.cachedList(ctx, facilitiesSearchCacheKey(params), searchResultsTTL, func() ([]*entities.Facility, error) {
		return a.adapter.Search(ctx, params)
	})
}

func (a *CachedFacilityAdapter) cachedList(ctx context.Context, cacheKey string, ttl int, load func() ([]*entities.Facility, error)) ([]*entities.Facility, error) {
	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var facilities []*entities.Facility
		if err := json.Unmarshal(cached, &facilities); err == nil {
			return facilities, nil
		}
		log.Warn().Str("key", cacheKey).Msg("Failed to decode cached facilities list")
	}

	facilities, err := load()
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(facilities); err == nil {
		if err := a.cache.Set(ctx, cacheKey, data, ttl); err != nil {
			log.Warn().Err(err).Str("key", cacheKey).Msg("Failed to cache facilities list")
		}
	}
	return facilities, nil
}

// Create creates a facility and invalidates list caches
func (a *CachedFacilityAdapter) Create(ctx context.Context, facility *entities.Facility) error {
	if err := a.adapter.Create(ctx, facility); err != nil {
		return err
	}
	a.invalidateLists(ctx)
	return nil
}

// Update updates a facility and invalidates its cache
func (a *CachedFacilityAdapter) Update(ctx context.Context, facility *entities.Facility) error {
	if err := a.adapter.Update(ctx, facility); err != nil {
		return err
	}
	a.invalidate(ctx, facility.ID)
	return nil
}

// UpdateAggregates writes through and invalidates the facility. A version
// conflict also evicts it, so the caller's re-read reaches the database.
func (a *CachedFacilityAdapter) UpdateAggregates(ctx context.Context, id string, expectedVersion int64, stats entities.FacilityStats, reviewID string) error {
	err := a.adapter.UpdateAggregates(ctx, id, expectedVersion, stats, reviewID)
	a.afterAggregateWrite(ctx, id, err)
	return err
}

// ReplaceAggregates writes through and invalidates the facility, also on conflict
func (a *CachedFacilityAdapter) ReplaceAggregates(ctx context.Context, id string, expectedVersion int64, stats entities.FacilityStats, reviewIDs []string) error {
	err := a.adapter.ReplaceAggregates(ctx, id, expectedVersion, stats, reviewIDs)
	a.afterAggregateWrite(ctx, id, err)
	return err
}

func (a *CachedFacilityAdapter) afterAggregateWrite(ctx context.Context, id string, err error) {
	switch {
	case err == nil:
		a.invalidate(ctx, id)
	case apperrors.IsType(err, apperrors.ErrorTypeConflict):
		if delErr := a.cache.Delete(ctx, providers.FacilityCacheKey(id)); delErr != nil {
			log.Warn().Err(delErr).Str("facility_id", id).Msg("Failed to evict stale facility after conflict")
		}
	}
}

// Delete deletes a facility and invalidates its cache
func (a *CachedFacilityAdapter) Delete(ctx context.Context, id string) error {
	if err := a.adapter.Delete(ctx, id); err != nil {
		return err
	}
	a.invalidate(ctx, id)
	return nil
}

func (a *CachedFacilityAdapter) invalidate(ctx context.Context, id string) {
	if err := a.cache.Delete(ctx, providers.FacilityCacheKey(id)); err != nil {
		log.Warn().Err(err).Str("facility_id", id).Msg("Failed to invalidate facility cache")
	}
	a.invalidateLists(ctx)
}

func (a *CachedFacilityAdapter) invalidateLists(ctx context.Context) {
	for _, pattern := range []string{providers.FacilityListCachePattern, providers.FacilitySearchCachePattern} {
		if err := a.cache.DeletePattern(ctx, pattern); err != nil {
			log.Warn().Err(err).Str("pattern", pattern).Msg("Failed to invalidate facilities cache")
		}
	}
}
