package cache

import (
	"context"
	"fmt"

	"github.com/inthetow/backend/internal/domain/providers"
	redisclient "github.com/inthetow/backend/internal/infrastructure/clients/redis"
)

// ActiveFacilitiesKey is the sorted set holding facility activity counts
const ActiveFacilitiesKey = "activeFacilities"

// RedisActivityTracker keeps facility activity in a Redis sorted set
type RedisActivityTracker struct {
	client *redisclient.Client
	key    string
}

// NewRedisActivityTracker creates an activity tracker on the default key
func NewRedisActivityTracker(client *redisclient.Client) *RedisActivityTracker {
	return &RedisActivityTracker{client: client, key: ActiveFacilitiesKey}
}

var _ providers.ActivityTracker = (*RedisActivityTracker)(nil)

// Increment adds amount to the facility's activity score
func (t *RedisActivityTracker) Increment(ctx context.Context, facilityID string, amount float64) error {
	if err := t.client.Client().ZIncrBy(ctx, t.key, amount, facilityID).Err(); err != nil {
		return fmt.Errorf("failed to increment activity for %s: %w", facilityID, err)
	}
	return nil
}

// Top returns the n highest scored facilities
func (t *RedisActivityTracker) Top(ctx context.Context, n int) ([]providers.ActivityScore, error) {
	if n <= 0 {
		return []providers.ActivityScore{}, nil
	}
	entries, err := t.client.Client().ZRevRangeWithScores(ctx, t.key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read activity leaderboard: %w", err)
	}

	scores := make([]providers.ActivityScore, 0, len(entries))
	for _, e := range entries {
		id, ok := e.Member.(string)
		if !ok {
			continue
		}
		scores = append(scores, providers.ActivityScore{FacilityID: id, Score: e.Score})
	}
	return scores, nil
}
