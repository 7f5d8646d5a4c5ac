package providers

import (
	"context"
	"errors"
)

// Facility cache key patterns
const (
	FacilityListCachePattern   = "facilities:list:*"
	FacilitySearchCachePattern = "facilities:search:*"
)

// FacilityCacheKey returns the cache key of a single facility
func FacilityCacheKey(id string) string {
	return "facility:" + id
}

// ErrCacheMiss is returned by Get when the key is absent
var ErrCacheMiss = errors.New("cache miss")

// CacheProvider is a byte-value cache with per-key expiry. Get reports
// ErrCacheMiss for absent keys.
type CacheProvider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, expirationSeconds int) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// DeletePattern removes every key matching a glob pattern
	DeletePattern(ctx context.Context, pattern string) error
	// GetMulti omits missing keys from the result
	GetMulti(ctx context.Context, keys []string) (map[string][]byte, error)
	SetMulti(ctx context.Context, items map[string][]byte, expirationSeconds int) error
}
