package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/inthetow/backend/internal/domain/providers"
	"github.com/inthetow/backend/internal/infrastructure/observability"
)

// cachedRoute is a public GET route whose 200 responses are cached
type cachedRoute struct {
	ttlSeconds int
	// prefix comes from a providers invalidation pattern so facility writes drop stale pages
	prefix string
}

// CacheMiddleware serves facility listings and searches from the shared cache
type CacheMiddleware struct {
	cache   providers.CacheProvider
	metrics *observability.Metrics
	routes  map[string]cachedRoute
}

// NewCacheMiddleware creates a new cache middleware. metrics may be nil.
func NewCacheMiddleware(cache providers.CacheProvider, metrics *observability.Metrics) *CacheMiddleware {
	return &CacheMiddleware{
		cache:   cache,
		metrics: metrics,
		routes: map[string]cachedRoute{
			"/api/facilities":        {ttlSeconds: 300, prefix: strings.TrimSuffix(providers.FacilityListCachePattern, "*")},
			"/api/facilities/search": {ttlSeconds: 120, prefix: strings.TrimSuffix(providers.FacilitySearchCachePattern, "*")},
		},
	}
}

// Middleware returns the cache middleware handler
func (m *CacheMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, ok := m.routes[r.URL.Path]
		if !ok || r.Method != http.MethodGet || m.cache == nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		key := route.prefix + queryDigest(r.URL.RawQuery)
		if body, err := m.cache.Get(ctx, key); err == nil {
			observability.RecordCacheHit(ctx, m.metrics, r.URL.Path)
			h := w.Header()
			h.Set("X-Cache", "HIT")
			h.Set("Content-Type", "application/json")
			_, _ = w.Write(body)
			return
		}

		observability.RecordCacheMiss(ctx, m.metrics, r.URL.Path)
		w.Header().Set("X-Cache", "MISS")
		sw := newStatusWriter(w)
		sw.tee = &bytes.Buffer{}
		next.ServeHTTP(sw, r)

		if sw.Status() != http.StatusOK || sw.tee.Len() == 0 {
			return
		}
		if err := m.cache.Set(ctx, key, sw.tee.Bytes(), route.ttlSeconds); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to cache response")
		}
	})
}

// queryDigest keys a page by its raw query string
func queryDigest(rawQuery string) string {
	sum := sha256.Sum256([]byte(rawQuery))
	return hex.EncodeToString(sum[:16])
}
