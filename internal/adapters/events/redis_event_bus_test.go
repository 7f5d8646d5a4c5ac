package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inthetow/backend/internal/domain/entities"
	redisclient "github.com/inthetow/backend/internal/infrastructure/clients/redis"
)

func newTestBus(t *testing.T) *RedisEventBus {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redisclient.NewClientFromRedis(redis.NewClient(&redis.Options{Addr: srv.Addr()}))
	bus := NewRedisEventBus(client)
	t.Cleanup(func() { _ = bus.Close() })
	return bus
}

func receive(t *testing.T, events <-chan *entities.FacilityEvent) *entities.FacilityEvent {
	t.Helper()
	select {
	case got := <-events:
		return got
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
		return nil
	}
}

func TestRedisEventBus_PublishSubscribe(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	sent := entities.NewReviewSubmittedEvent(&entities.Facility{ID: "f-1", FacilityStats: entities.FacilityStats{InTheTowScore: 82.5, NumRatings: 3}}, "r-1")
	require.NoError(t, bus.Publish(context.Background(), sent))

	got := receive(t, events)
	require.NotNil(t, got)
	assert.Equal(t, sent.ID, got.ID)
	assert.Equal(t, "f-1", got.FacilityID)
	assert.Equal(t, entities.FacilityEventTypeReviewSubmitted, got.Type)
	assert.Equal(t, "r-1", got.ReviewID)
	assert.InDelta(t, 82.5, got.InTheTowScore, 1e-9)
}

func TestRedisEventBus_FiltersByType(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reviews, err := bus.Subscribe(ctx, entities.FacilityEventTypeReviewSubmitted)
	require.NoError(t, err)
	all, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, entities.NewFacilityEvent("f-1", entities.FacilityEventTypeUpdated, nil)))
	require.NoError(t, bus.Publish(ctx, entities.NewFacilityEvent("f-2", entities.FacilityEventTypeReviewSubmitted, nil)))

	assert.Equal(t, entities.FacilityEventTypeUpdated, receive(t, all).Type)
	assert.Equal(t, entities.FacilityEventTypeReviewSubmitted, receive(t, all).Type)

	got := receive(t, reviews)
	assert.Equal(t, "f-2", got.FacilityID)
}

func TestRedisEventBus_ContextCancelClosesChannel(t *testing.T) {
	bus := newTestBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	events, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	cancel()

	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-events:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRedisEventBus_SubscribeAfterClose(t *testing.T) {
	bus := newTestBus(t)
	require.NoError(t, bus.Close())

	_, err := bus.Subscribe(context.Background())
	assert.ErrorIs(t, err, ErrBusClosed)
	assert.NoError(t, bus.Close())
}
