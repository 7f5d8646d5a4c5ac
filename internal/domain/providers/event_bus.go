package providers

import (
	"context"

	"github.com/inthetow/backend/internal/domain/entities"
)

// FacilityEventsChannel is the pub/sub topic that carries every facility event
const FacilityEventsChannel = "inthetow:facility-events"

// EventBus carries committed facility changes to the background listeners of
// every API instance.
type EventBus interface {
	// Publish announces a change that has already been committed
	Publish(ctx context.Context, event *entities.FacilityEvent) error

	// Subscribe delivers events of the given types, or all events when none are
	// given. The channel is closed when ctx ends or the bus is closed.
	Subscribe(ctx context.Context, types ...entities.FacilityEventType) (<-chan *entities.FacilityEvent, error)

	Close() error
}
