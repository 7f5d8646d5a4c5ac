package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/inthetow/backend/internal/domain/entities"
	"github.com/inthetow/backend/internal/domain/providers"
	"github.com/inthetow/backend/internal/domain/repositories"
	"github.com/inthetow/backend/internal/domain/scoring"
	apperrors "github.com/inthetow/backend/pkg/errors"
)

// Leaderboard sizes
const (
	DefaultActiveFacilities = 10
	MaxActiveFacilities     = 50
)

// CreateFacilityInput is the body of a create-facility request
type CreateFacilityInput struct {
	Name          string `json:"name" validate:"required,max=200"`
	Street        string `json:"street" validate:"max=200"`
	City          string `json:"city" validate:"required,max=100"`
	State         string `json:"state" validate:"required,max=50"`
	ZipCode       string `json:"zip_code" validate:"max=20"`
	PhoneNumber   string `json:"phone_number" validate:"max=30"`
	GooglePlaceID string `json:"google_place_id" validate:"max=200"`
}

// UpdateFacilityInput carries the descriptive fields to change; nil fields are kept
type UpdateFacilityInput struct {
	Name          *string `json:"name,omitempty" validate:"omitnil,min=1,max=200"`
	Street        *string `json:"street,omitempty" validate:"omitnil,max=200"`
	City          *string `json:"city,omitempty" validate:"omitnil,min=1,max=100"`
	State         *string `json:"state,omitempty" validate:"omitnil,min=1,max=50"`
	ZipCode       *string `json:"zip_code,omitempty" validate:"omitnil,max=20"`
	PhoneNumber   *string `json:"phone_number,omitempty" validate:"omitnil,max=30"`
	GooglePlaceID *string `json:"google_place_id,omitempty" validate:"omitnil,max=200"`
}

// FacilityService handles business logic for facilities
type FacilityService struct {
	repo       repositories.FacilityRepository
	searchRepo repositories.FacilitySearchRepository
	reviews    repositories.ReviewRepository
	activity   providers.ActivityTracker
	eventBus   providers.EventBus
}

// NewFacilityService creates a new facility service. searchRepo, activity and eventBus may be nil.
func NewFacilityService(
	repo repositories.FacilityRepository,
	searchRepo repositories.FacilitySearchRepository,
	reviews repositories.ReviewRepository,
	activity providers.ActivityTracker,
	eventBus providers.EventBus,
) *FacilityService {
	return &FacilityService{
		repo:       repo,
		searchRepo: searchRepo,
		reviews:    reviews,
		activity:   activity,
		eventBus:   eventBus,
	}
}

// Create creates a new facility with empty aggregates and indexes it
func (s *FacilityService) Create(ctx context.Context, in CreateFacilityInput) (*entities.Facility, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	facility := &entities.Facility{
		ID:   uuid.New().String(),
		Name: strings.TrimSpace(in.Name),
		Address: entities.Address{
			Street:  strings.TrimSpace(in.Street),
			City:    strings.TrimSpace(in.City),
			State:   strings.TrimSpace(in.State),
			ZipCode: strings.TrimSpace(in.ZipCode),
		},
		PhoneNumber:   in.PhoneNumber,
		GooglePlaceID: in.GooglePlaceID,
		PhotoRefs:     []string{},
		ReviewIDs:     []string{},
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	scoring.Rescore(&facility.FacilityStats, nil)

	if err := s.repo.Create(ctx, facility); err != nil {
		return nil, err
	}
	s.index(ctx, facility)
	return facility, nil
}

// GetByID retrieves a facility by ID
func (s *FacilityService) GetByID(ctx context.Context, id string) (*entities.Facility, error) {
	return s.repo.GetByID(ctx, id)
}

// Update changes descriptive fields. Aggregates cannot be set through here.
func (s *FacilityService) Update(ctx context.Context, id string, in UpdateFacilityInput) (*entities.Facility, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	facility, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	changed := map[string]interface{}{}
	set := func(field string, dst *string, src *string) {
		if src == nil {
			return
		}
		*dst = strings.TrimSpace(*src)
		changed[field] = *dst
	}
	set("name", &facility.Name, in.Name)
	set("street", &facility.Address.Street, in.Street)
	set("city", &facility.Address.City, in.City)
	set("state", &facility.Address.State, in.State)
	set("zip_code", &facility.Address.ZipCode, in.ZipCode)
	set("phone_number", &facility.PhoneNumber, in.PhoneNumber)
	set("google_place_id", &facility.GooglePlaceID, in.GooglePlaceID)

	if len(changed) == 0 {
		return facility, nil
	}
	if err := s.repo.Update(ctx, facility); err != nil {
		return nil, err
	}

	s.index(ctx, facility)
	s.publish(ctx, facility.ID, entities.FacilityEventTypeUpdated, changed)
	return facility, nil
}

// Delete deletes a facility and removes it from the index
func (s *FacilityService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if s.searchRepo != nil {
		if err := s.searchRepo.Delete(ctx, id); err != nil {
			log.Warn().Err(err).Str("facility_id", id).Msg("Failed to delete facility from index")
		}
	}
	s.publish(ctx, id, entities.FacilityEventTypeDeleted, nil)
	return nil
}

// List retrieves facilities, best scored first
func (s *FacilityService) List(ctx context.Context, filter repositories.FacilityFilter) ([]*entities.Facility, error) {
	filter.Limit, filter.Offset = pageBounds(filter.Limit, filter.Offset)
	return s.repo.List(ctx, filter)
}

// Search searches facilities using the search engine if available, falling back to the database
func (s *FacilityService) Search(ctx context.Context, params repositories.SearchParams) ([]*entities.Facility, error) {
	params.Query = strings.TrimSpace(params.Query)
	if params.Query == "" {
		return nil, apperrors.NewValidationError("q is required")
	}
	if params.Limit <= 0 || params.Limit > repositories.MaxSearchResults {
		params.Limit = repositories.MaxSearchResults
	}

	if s.searchRepo != nil {
		hits, err := s.searchRepo.Search(ctx, params)
		if err == nil {
			return s.hydrate(ctx, hits)
		}
		log.Warn().Err(err).Str("query", params.Query).Msg("Search engine failed, falling back to database")
	}
	return s.repo.Search(ctx, params)
}

// hydrate replaces index documents with stored facilities, keeping hit order
func (s *FacilityService) hydrate(ctx context.Context, hits []*entities.Facility) ([]*entities.Facility, error) {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return s.inOrder(ctx, ids)
}

func (s *FacilityService) inOrder(ctx context.Context, ids []string) ([]*entities.Facility, error) {
	facilities, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*entities.Facility, len(facilities))
	for _, f := range facilities {
		byID[f.ID] = f
	}
	ordered := make([]*entities.Facility, 0, len(ids))
	for _, id := range ids {
		if f, ok := byID[id]; ok {
			ordered = append(ordered, f)
		}
	}
	return ordered, nil
}

// Active returns the facilities with the most review activity
func (s *FacilityService) Active(ctx context.Context, limit int) ([]*entities.ActiveFacility, error) {
	if s.activity == nil {
		return []*entities.ActiveFacility{}, nil
	}
	if limit <= 0 {
		limit = DefaultActiveFacilities
	}
	if limit > MaxActiveFacilities {
		limit = MaxActiveFacilities
	}

	top, err := s.activity.Top(ctx, limit)
	if err != nil {
		return nil, apperrors.NewExternalError("failed to read facility activity", err)
	}
	ids := make([]string, len(top))
	for i, t := range top {
		ids[i] = t.FacilityID
	}
	facilities, err := s.inOrder(ctx, ids)
	if err != nil {
		return nil, err
	}

	scores := make(map[string]float64, len(top))
	for _, t := range top {
		scores[t.FacilityID] = t.Score
	}
	active := make([]*entities.ActiveFacility, len(facilities))
	for i, f := range facilities {
		active[i] = &entities.ActiveFacility{Facility: f, Activity: scores[f.ID]}
	}
	return active, nil
}

// Score explains the facility's current InTheTow Score
func (s *FacilityService) Score(ctx context.Context, id string) (*scoring.ScoreBreakdown, error) {
	facility, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	recent, err := s.reviews.RecentRatings(ctx, id, facility.ReviewIDs, scoring.RecentRatingsWindow)
	if err != nil {
		return nil, err
	}
	breakdown := scoring.Breakdown(scoring.InputFromStats(facility.FacilityStats, recent))
	return &breakdown, nil
}

// Reindex pushes every stored facility into the search index
func (s *FacilityService) Reindex(ctx context.Context, batchSize int) (int, error) {
	if s.searchRepo == nil {
		return 0, apperrors.NewValidationError("search is not enabled")
	}
	if batchSize <= 0 {
		batchSize = MaxPageSize
	}

	indexed := 0
	for offset := 0; ; offset += batchSize {
		batch, err := s.repo.List(ctx, repositories.FacilityFilter{Limit: batchSize, Offset: offset})
		if err != nil {
			return indexed, err
		}
		for _, f := range batch {
			if err := s.searchRepo.Index(ctx, f); err != nil {
				return indexed, apperrors.NewExternalError("failed to index facility "+f.ID, err)
			}
			indexed++
		}
		if len(batch) < batchSize {
			return indexed, nil
		}
	}
}

func (s *FacilityService) index(ctx context.Context, facility *entities.Facility) {
	if s.searchRepo == nil {
		return
	}
	if err := s.searchRepo.Index(ctx, facility); err != nil {
		log.Warn().Err(err).Str("facility_id", facility.ID).Msg("Failed to index facility")
	}
}

func (s *FacilityService) publish(ctx context.Context, facilityID string, eventType entities.FacilityEventType, changed map[string]interface{}) {
	if s.eventBus == nil {
		return
	}
	event := entities.NewFacilityEvent(facilityID, eventType, changed)
	if err := s.eventBus.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("facility_id", facilityID).Msg("Failed to publish facility event")
	}
}
