package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/inthetow/backend/internal/domain/entities"
	"github.com/inthetow/backend/internal/domain/providers"
	"github.com/inthetow/backend/internal/domain/repositories"
	"github.com/inthetow/backend/internal/infrastructure/observability"
	apperrors "github.com/inthetow/backend/pkg/errors"
)

const compensationTimeout = 5 * time.Second

// Review submission outcomes recorded on the submissions counter
const (
	outcomeCreated    = "created"
	outcomeRejected   = "rejected"
	outcomeRolledBack = "rolled_back"
)

// CreateReviewInput is a review as submitted by a driver
type CreateReviewInput struct {
	FacilityID       string        `json:"facility_id" validate:"required"`
	Rating           int           `json:"rating" validate:"required,min=1,max=5"`
	Safety           *int          `json:"safety,omitempty" validate:"omitnil,min=1,max=5"`
	ReviewText       string        `json:"review_text" validate:"max=5000"`
	AppointmentTime  string        `json:"appointment_time,omitempty"`
	StartTime        string        `json:"start_time,omitempty"`
	EndTime          string        `json:"end_time,omitempty"`
	HasLumper        *bool         `json:"has_lumper,omitempty"`
	OvernightParking *bool         `json:"overnight_parking,omitempty"`
	Photos           []PhotoUpload `json:"-"`
}

// ReviewService runs the review submission workflow and serves review reads
type ReviewService struct {
	reviews     repositories.ReviewRepository
	users       repositories.UserRepository
	facilities  repositories.FacilityRepository
	aggregates  *AggregateService
	media       providers.MediaStore
	eventBus    providers.EventBus
	metrics     *observability.Metrics
	mediaURLTTL time.Duration
}

// NewReviewService creates a new review service. media, eventBus and metrics may be nil.
func NewReviewService(
	reviews repositories.ReviewRepository,
	users repositories.UserRepository,
	facilities repositories.FacilityRepository,
	aggregates *AggregateService,
	media providers.MediaStore,
	eventBus providers.EventBus,
	metrics *observability.Metrics,
	mediaURLTTL time.Duration,
) *ReviewService {
	return &ReviewService{
		reviews:     reviews,
		users:       users,
		facilities:  facilities,
		aggregates:  aggregates,
		media:       media,
		eventBus:    eventBus,
		metrics:     metrics,
		mediaURLTTL: mediaURLTTL,
	}
}

// Create validates and stores a review, then folds it into the facility aggregates.
// Once the review row exists, any later failure deletes it and unlinks it from the author
// before the original error is returned.
func (s *ReviewService) Create(ctx context.Context, authorID string, in CreateReviewInput) (*entities.ReviewView, error) {
	ctx, span := observability.StartSpan(ctx, "ReviewService.Create")
	defer span.End()

	review, err := s.draft(in)
	if err != nil {
		observability.RecordReviewSubmission(ctx, s.metrics, outcomeRejected)
		return nil, err
	}
	photoTypes, err := validatePhotos(in.Photos)
	if err != nil {
		observability.RecordReviewSubmission(ctx, s.metrics, outcomeRejected)
		return nil, err
	}

	author, err := s.users.GetByID(ctx, authorID)
	if err != nil {
		observability.RecordReviewSubmission(ctx, s.metrics, outcomeRejected)
		return nil, err
	}

	review.Photos, err = storePhotos(ctx, s.media, in.Photos, photoTypes)
	if err != nil {
		observability.RecordError(span, err)
		observability.RecordReviewSubmission(ctx, s.metrics, outcomeRejected)
		return nil, err
	}

	now := time.Now().UTC()
	review.ID = uuid.New().String()
	review.UserID = author.ID
	review.UserDisplayName = author.DisplayName
	review.QuestionIDs = []string{}
	review.CreatedAt = now
	review.UpdatedAt = now

	if err := s.reviews.Create(ctx, review); err != nil {
		observability.RecordError(span, err)
		observability.RecordReviewSubmission(ctx, s.metrics, outcomeRejected)
		return nil, err
	}

	if err := s.users.AppendReview(ctx, author.ID, review.ID); err != nil {
		s.compensate(ctx, review, false, err)
		observability.RecordError(span, err)
		return nil, err
	}

	facility, err := s.aggregates.ApplyReview(ctx, review)
	if err != nil {
		s.compensate(ctx, review, true, err)
		observability.RecordError(span, err)
		return nil, err
	}

	s.publishSubmitted(ctx, facility, review)
	observability.RecordReviewSubmission(ctx, s.metrics, outcomeCreated)

	log.Info().
		Str("review_id", review.ID).
		Str("facility_id", facility.ID).
		Int("rating", review.Rating).
		Float64("score", facility.InTheTowScore).
		Msg("Review submitted")

	summary := facility.Summary()
	return &entities.ReviewView{
		Review:    review,
		PhotoURLs: photoURLs(ctx, s.media, review.Photos, s.mediaURLTTL),
		Facility:  &summary,
	}, nil
}

// draft validates the submitted fields and builds the review they describe
func (s *ReviewService) draft(in CreateReviewInput) (*entities.Review, error) {
	in.FacilityID = strings.TrimSpace(in.FacilityID)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	appointment, err := parseInstant("appointment_time", in.AppointmentTime)
	if err != nil {
		return nil, err
	}
	start, err := parseInstant("start_time", in.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := parseInstant("end_time", in.EndTime)
	if err != nil {
		return nil, err
	}
	if (start == nil) != (end == nil) {
		return nil, apperrors.NewValidationError("start_time and end_time must be supplied together")
	}
	if start != nil && !end.After(*start) {
		return nil, apperrors.NewValidationError("end_time must be after start_time")
	}

	return &entities.Review{
		FacilityID:       in.FacilityID,
		Rating:           in.Rating,
		Safety:           in.Safety,
		ReviewText:       strings.TrimSpace(in.ReviewText),
		AppointmentTime:  appointment,
		StartTime:        start,
		EndTime:          end,
		HasLumper:        in.HasLumper,
		OvernightParking: in.OvernightParking,
	}, nil
}

func parseInstant(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("%s must be an RFC 3339 timestamp", field))
	}
	t = t.UTC()
	return &t, nil
}

// compensate undoes a partially submitted review. It runs detached from ctx so a
// cancelled request still cleans up.
func (s *ReviewService) compensate(ctx context.Context, review *entities.Review, linked bool, cause error) {
	observability.RecordReviewSubmission(ctx, s.metrics, outcomeRolledBack)

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if linked {
		if err := s.users.RemoveReview(cctx, review.UserID, review.ID); err != nil {
			log.Error().Err(err).Str("review_id", review.ID).Str("user_id", review.UserID).Msg("Failed to unlink review during rollback")
		}
	}
	if err := s.reviews.Delete(cctx, review.ID); err != nil {
		log.Error().Err(err).Str("review_id", review.ID).Msg("Failed to delete review during rollback")
	}

	log.Warn().Err(cause).Str("review_id", review.ID).Str("facility_id", review.FacilityID).Msg("Review submission rolled back")
}

func (s *ReviewService) publishSubmitted(ctx context.Context, facility *entities.Facility, review *entities.Review) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.Publish(ctx, entities.NewReviewSubmittedEvent(facility, review.ID)); err != nil {
		log.Warn().Err(err).Str("facility_id", facility.ID).Msg("Failed to publish review event")
	}
}

// Get returns one review
func (s *ReviewService) Get(ctx context.Context, id string) (*entities.ReviewView, error) {
	review, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	views, err := s.present(ctx, []*entities.Review{review}, false)
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// List returns all reviews, newest first
func (s *ReviewService) List(ctx context.Context, limit, offset int) ([]*entities.ReviewView, error) {
	limit, offset = pageBounds(limit, offset)
	reviews, err := s.reviews.List(ctx, repositories.ReviewFilter{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return s.present(ctx, reviews, true)
}

// ListByFacility returns a facility's reviews, newest first
func (s *ReviewService) ListByFacility(ctx context.Context, facilityID string, limit, offset int) ([]*entities.ReviewView, error) {
	if _, err := s.facilities.GetByID(ctx, facilityID); err != nil {
		return nil, err
	}
	limit, offset = pageBounds(limit, offset)
	reviews, err := s.reviews.List(ctx, repositories.ReviewFilter{FacilityID: facilityID, Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return s.present(ctx, reviews, false)
}

// ListMine returns the user's reviews with facility summaries
func (s *ReviewService) ListMine(ctx context.Context, userID string) ([]*entities.ReviewView, error) {
	reviews, err := s.reviews.List(ctx, repositories.ReviewFilter{UserID: userID})
	if err != nil {
		return nil, err
	}
	return s.present(ctx, reviews, true)
}

func (s *ReviewService) present(ctx context.Context, reviews []*entities.Review, withFacility bool) ([]*entities.ReviewView, error) {
	var facilities map[string]*entities.Facility
	if withFacility && len(reviews) > 0 {
		facilityLoader := newFacilityLoader(s.facilities)
		if loaders := For(ctx); loaders != nil {
			facilityLoader = loaders.FacilityLoader
		}
		ids := make([]string, len(reviews))
		for i, r := range reviews {
			ids[i] = r.FacilityID
		}
		var err error
		if facilities, err = loadAll(ctx, facilityLoader, ids); err != nil {
			return nil, err
		}
	}

	views := make([]*entities.ReviewView, len(reviews))
	for i, r := range reviews {
		view := &entities.ReviewView{
			Review:    r,
			PhotoURLs: photoURLs(ctx, s.media, r.Photos, s.mediaURLTTL),
		}
		if f, ok := facilities[r.FacilityID]; ok {
			summary := f.Summary()
			view.Facility = &summary
		}
		views[i] = view
	}
	return views, nil
}

// Page bounds for list endpoints
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
