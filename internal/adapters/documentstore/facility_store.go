package documentstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/inthetow/backend/internal/domain/entities"
	"github.com/inthetow/backend/internal/domain/repositories"
	apperrors "github.com/inthetow/backend/pkg/errors"
)

// FacilityStore implements FacilityRepository on a MongoDB collection
type FacilityStore struct {
	coll *mongo.Collection
}

// NewFacilityStore creates a facility store
func NewFacilityStore(db *mongo.Database) *FacilityStore {
	return &FacilityStore{coll: db.Collection(FacilitiesCollection)}
}

var _ repositories.FacilityRepository = (*FacilityStore)(nil)

func (s *FacilityStore) Create(ctx context.Context, facility *entities.Facility) error {
	facility.PhotoRefs = nonNil(facility.PhotoRefs)
	facility.ReviewIDs = nonNil(facility.ReviewIDs)
	if _, err := s.coll.InsertOne(ctx, facility); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.NewConflictError(fmt.Sprintf("facility with id %s already exists", facility.ID))
		}
		return apperrors.NewInternalError("failed to create facility", err)
	}
	return nil
}

func (s *FacilityStore) GetByID(ctx context.Context, id string) (*entities.Facility, error) {
	return findOne[entities.Facility](ctx, s.coll, bson.M{"_id": id}, "facility", id)
}

func (s *FacilityStore) GetByIDs(ctx context.Context, ids []string) ([]*entities.Facility, error) {
	if len(ids) == 0 {
		return []*entities.Facility{}, nil
	}
	return findAll[entities.Facility](ctx, s.coll, bson.M{"_id": bson.M{"$in": ids}}, nil, "facilities")
}

// Update updates the descriptive fields only
func (s *FacilityStore) Update(ctx context.Context, facility *entities.Facility) error {
	facility.UpdatedAt = time.Now()
	update := bson.M{"$set": bson.M{
		"name":            facility.Name,
		"address":         facility.Address,
		"phone_number":    facility.PhoneNumber,
		"google_place_id": facility.GooglePlaceID,
		"photo_refs":      nonNil(facility.PhotoRefs),
		"updated_at":      facility.UpdatedAt,
	}}
	return updateOne(ctx, s.coll, bson.M{"_id": facility.ID}, update, "failed to update facility",
		apperrors.NewNotFoundError(fmt.Sprintf("facility with id %s not found", facility.ID)))
}

// UpdateAggregates applies stats only when the stored version equals expectedVersion
func (s *FacilityStore) UpdateAggregates(ctx context.Context, id string, expectedVersion int64, stats entities.FacilityStats, reviewID string) error {
	set := statsSet(stats)
	set["updated_at"] = time.Now()
	update := bson.M{
		"$set":  set,
		"$push": bson.M{"review_ids": reviewID},
		"$inc":  bson.M{"version": 1},
	}
	return updateOne(ctx, s.coll, bson.M{"_id": id, "version": expectedVersion}, update,
		"failed to update facility aggregates",
		apperrors.NewConflictError(fmt.Sprintf("facility %s changed since version %d", id, expectedVersion)))
}

// ReplaceAggregates overwrites stats and review ids when the stored version equals expectedVersion
func (s *FacilityStore) ReplaceAggregates(ctx context.Context, id string, expectedVersion int64, stats entities.FacilityStats, reviewIDs []string) error {
	set := statsSet(stats)
	set["review_ids"] = nonNil(reviewIDs)
	set["updated_at"] = time.Now()
	update := bson.M{"$set": set, "$inc": bson.M{"version": 1}}
	return updateOne(ctx, s.coll, bson.M{"_id": id, "version": expectedVersion}, update,
		"failed to replace facility aggregates",
		apperrors.NewConflictError(fmt.Sprintf("facility %s changed since version %d", id, expectedVersion)))
}

func (s *FacilityStore) Delete(ctx context.Context, id string) error {
	result, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return apperrors.NewInternalError("failed to delete facility", err)
	}
	if result.DeletedCount == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("facility with id %s not found", id))
	}
	return nil
}

// List returns facilities best scored first
func (s *FacilityStore) List(ctx context.Context, filter repositories.FacilityFilter) ([]*entities.Facility, error) {
	query := bson.M{}
	if filter.State != "" {
		query["address.state"] = filter.State
	}
	opts := page(filter.Limit, filter.Offset).
		SetSort(bson.D{{Key: "in_the_tow_score", Value: -1}, {Key: "name", Value: 1}})
	return findAll[entities.Facility](ctx, s.coll, query, opts, "facilities")
}

// Search matches the query case-insensitively against name, street, city and zip code
func (s *FacilityStore) Search(ctx context.Context, params repositories.SearchParams) ([]*entities.Facility, error) {
	limit := params.Limit
	if limit <= 0 || limit > repositories.MaxSearchResults {
		limit = repositories.MaxSearchResults
	}
	opts := page(limit, params.Offset).SetSort(bson.D{{Key: "in_the_tow_score", Value: -1}})
	return findAll[entities.Facility](ctx, s.coll, searchFilter(params.Query), opts, "facilities")
}

func searchFilter(q string) bson.M {
	q = strings.TrimSpace(q)
	if q == "" {
		return bson.M{}
	}
	re := containsRegex(q)
	return bson.M{"$or": bson.A{
		bson.M{"name": re},
		bson.M{"address.street": re},
		bson.M{"address.city": re},
		bson.M{"address.zip_code": re},
	}}
}

// statsSet writes every aggregate field, nil tri-states included
func statsSet(s entities.FacilityStats) bson.M {
	return bson.M{
		"num_ratings":                     s.NumRatings,
		"avg_rating":                      s.AvgRating,
		"num_safety_reports":              s.NumSafetyReports,
		"safety_score":                    s.SafetyScore,
		"num_time_reports":                s.NumTimeReports,
		"avg_time_at_dock":                s.AvgTimeAtDock,
		"num_appointments_reported":       s.NumAppointmentsReported,
		"appointments_on_time_count":      s.AppointmentsOnTimeCount,
		"appointments_on_time_percentage": s.AppointmentsOnTimePercentage,
		"has_lumper":                      s.HasLumper,
		"overnight_parking":               s.OvernightParking,
		"in_the_tow_score":                s.InTheTowScore,
	}
}
