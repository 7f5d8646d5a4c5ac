package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/inthetow/backend/internal/domain/entities"
	"github.com/inthetow/backend/internal/domain/providers"
)

// ActivityService counts review submissions per facility for the active-facilities leaderboard
type ActivityService struct {
	tracker  providers.ActivityTracker
	eventBus providers.EventBus
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewActivityService creates a new activity service
func NewActivityService(tracker providers.ActivityTracker, eventBus providers.EventBus) *ActivityService {
	ctx, cancel := context.WithCancel(context.Background())
	return &ActivityService{
		tracker:  tracker,
		eventBus: eventBus,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins listening for review events
func (s *ActivityService) Start() error {
	eventChan, err := s.eventBus.Subscribe(s.ctx, entities.FacilityEventTypeReviewSubmitted)
	if err != nil {
		return fmt.Errorf("failed to subscribe to facility updates: %w", err)
	}

	s.done = make(chan struct{})
	go s.processEvents(eventChan)
	log.Info().Msg("Activity service started")
	return nil
}

// Stop stops the activity service and waits for the event loop to exit
func (s *ActivityService) Stop() {
	s.cancel()
	if s.done != nil {
		<-s.done
	}
	log.Info().Msg("Activity service stopped")
}

func (s *ActivityService) processEvents(eventChan <-chan *entities.FacilityEvent) {
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

func (s *ActivityService) handleEvent(event *entities.FacilityEvent) {
	if event.Type != entities.FacilityEventTypeReviewSubmitted {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.tracker.Increment(ctx, event.FacilityID, 1); err != nil {
		log.Warn().Err(err).Str("facility_id", event.FacilityID).Msg("Failed to record facility activity")
	}
}
