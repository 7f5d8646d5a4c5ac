package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/inthetow/backend/internal/domain/entities"
	"github.com/inthetow/backend/internal/domain/providers"
	redisclient "github.com/inthetow/backend/internal/infrastructure/clients/redis"
)

const listenerBuffer = 100

// ErrBusClosed is returned by Subscribe after Close
var ErrBusClosed = errors.New("event bus closed")

// RedisEventBus fans facility events out over one Redis pub/sub channel.
// A single subscription is shared by all local listeners.
type RedisEventBus struct {
	client  *redisclient.Client
	channel string

	mu        sync.Mutex
	pubsub    *redis.PubSub
	listeners map[*listener]struct{}
	closed    bool
}

type listener struct {
	ch    chan *entities.FacilityEvent
	types map[entities.FacilityEventType]bool
}

func (l *listener) wants(t entities.FacilityEventType) bool {
	return len(l.types) == 0 || l.types[t]
}

// NewRedisEventBus creates a new Redis-based event bus on providers.FacilityEventsChannel
func NewRedisEventBus(client *redisclient.Client) *RedisEventBus {
	return &RedisEventBus{
		client:    client,
		channel:   providers.FacilityEventsChannel,
		listeners: make(map[*listener]struct{}),
	}
}

// Publish publishes an event to every instance
func (b *RedisEventBus) Publish(ctx context.Context, event *entities.FacilityEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.client.Client().Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Debug().Str("event_id", event.ID).Str("facility_id", event.FacilityID).Str("event_type", string(event.Type)).Msg("Published event")
	return nil
}

// Subscribe registers a local listener, opening the Redis subscription on first use
func (b *RedisEventBus) Subscribe(ctx context.Context, types ...entities.FacilityEventType) (<-chan *entities.FacilityEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}
	if b.pubsub == nil {
		pubsub := b.client.Client().Subscribe(context.Background(), b.channel)
		if _, err := pubsub.Receive(ctx); err != nil {
			_ = pubsub.Close()
			return nil, fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
		}
		b.pubsub = pubsub
		go b.dispatch(pubsub.Channel())
	}

	l := &listener{ch: make(chan *entities.FacilityEvent, listenerBuffer)}
	if len(types) > 0 {
		l.types = make(map[entities.FacilityEventType]bool, len(types))
		for _, t := range types {
			l.types[t] = true
		}
	}
	b.listeners[l] = struct{}{}
	log.Info().Int("listeners", len(b.listeners)).Msg("Subscribed to facility events")

	go func() {
		<-ctx.Done()
		b.remove(l)
	}()
	return l.ch, nil
}

func (b *RedisEventBus) dispatch(msgs <-chan *redis.Message) {
	defer b.closeListeners()

	for msg := range msgs {
		var event entities.FacilityEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			log.Warn().Err(err).Msg("Failed to unmarshal facility event")
			continue
		}

		b.mu.Lock()
		for l := range b.listeners {
			if !l.wants(event.Type) {
				continue
			}
			select {
			case l.ch <- &event:
			default:
				log.Warn().Str("event_id", event.ID).Msg("Listener full, dropping facility event")
			}
		}
		b.mu.Unlock()
	}
}

func (b *RedisEventBus) remove(l *listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.listeners[l]; ok {
		delete(b.listeners, l)
		close(l.ch)
	}
}

func (b *RedisEventBus) closeListeners() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for l := range b.listeners {
		close(l.ch)
	}
	b.listeners = make(map[*listener]struct{})
}

// Close ends the subscription; every listener channel is closed
func (b *RedisEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	pubsub := b.pubsub
	b.mu.Unlock()

	if pubsub == nil {
		return nil
	}
	if err := pubsub.Close(); err != nil {
		return fmt.Errorf("failed to close subscription: %w", err)
	}
	log.Info().Msg("Event bus closed")
	return nil
}
