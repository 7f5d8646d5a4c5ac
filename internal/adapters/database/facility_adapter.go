package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/lib/pq"

	"github.com/inthetow/backend/internal/domain/entities"
	"github.com/inthetow/backend/internal/domain/repositories"
	"github.com/inthetow/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/inthetow/backend/pkg/errors"
)

const facilitiesTable = "facilities"

var facilityColumns = []interface{}{
	"id", "name", "street", "city", "state", "zip_code", "phone_number", "google_place_id",
	"photo_refs", "review_ids",
	"num_ratings", "avg_rating", "num_safety_reports", "safety_score",
	"num_time_reports", "avg_time_at_dock",
	"num_appointments_reported", "appointments_on_time_count", "appointments_on_time_percentage",
	"has_lumper", "overnight_parking", "in_the_tow_score",
	"version", "created_at", "updated_at",
}

// FacilityAdapter implements the FacilityRepository interface
type FacilityAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewFacilityAdapter creates a new facility adapter
func NewFacilityAdapter(client *postgres.Client) repositories.FacilityRepository {
	return &FacilityAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create creates a new facility
func (a *FacilityAdapter) Create(ctx context.Context, facility *entities.Facility) error {
	record := goqu.Record{
		"id":              facility.ID,
		"name":            facility.Name,
		"street":          facility.Address.Street,
		"city":            facility.Address.City,
		"state":           facility.Address.State,
		"zip_code":        facility.Address.ZipCode,
		"phone_number":    facility.PhoneNumber,
		"google_place_id": facility.GooglePlaceID,
		"photo_refs":      pq.Array(nonNil(facility.PhotoRefs)),
		"review_ids":      pq.Array(nonNil(facility.ReviewIDs)),
		"version":         facility.Version,
		"created_at":      facility.CreatedAt,
		"updated_at":      facility.UpdatedAt,
	}
	for k, v := range statsRecord(facility.FacilityStats) {
		record[k] = v
	}

	query, args, err := a.db.Insert(facilitiesTable).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create facility", err)
	}
	return nil
}

// GetByID retrieves a facility by ID
func (a *FacilityAdapter) GetByID(ctx context.Context, id string) (*entities.Facility, error) {
	query, args, err := a.db.Select(facilityColumns...).
		From(facilitiesTable).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	facility, err := scanFacility(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("facility with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get facility", err)
	}
	return facility, nil
}

// GetByIDs retrieves multiple facilities by their IDs
func (a *FacilityAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.Facility, error) {
	if len(ids) == 0 {
		return []*entities.Facility{}, nil
	}
	return a.query(ctx, a.db.Select(facilityColumns...).
		From(facilitiesTable).
		Where(goqu.Ex{"id": ids}))
}

// Update updates the descriptive fields of a facility
func (a *FacilityAdapter) Update(ctx context.Context, facility *entities.Facility) error {
	facility.UpdatedAt = time.Now()

	record := goqu.Record{
		"name":            facility.Name,
		"street":          facility.Address.Street,
		"city":            facility.Address.City,
		"state":           facility.Address.State,
		"zip_code":        facility.Address.ZipCode,
		"phone_number":    facility.PhoneNumber,
		"google_place_id": facility.GooglePlaceID,
		"photo_refs":      pq.Array(nonNil(facility.PhotoRefs)),
		"updated_at":      facility.UpdatedAt,
	}

	query, args, err := a.db.Update(facilitiesTable).
		Set(record).
		Where(goqu.Ex{"id": facility.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	return execAffectingOne(ctx, a.client.DB(), query, args, "failed to update facility",
		apperrors.NewNotFoundError(fmt.Sprintf("facility with id %s not found", facility.ID)))
}

// UpdateAggregates writes stats and appends the review id if the version still matches
func (a *FacilityAdapter) UpdateAggregates(ctx context.Context, id string, expectedVersion int64, stats entities.FacilityStats, reviewID string) error {
	record := statsRecord(stats)
	record["review_ids"] = goqu.L("array_append(review_ids, ?)", reviewID)
	record["version"] = goqu.L("version + 1")
	record["updated_at"] = time.Now()

	query, args, err := a.db.Update(facilitiesTable).
		Set(record).
		Where(goqu.Ex{"id": id, "version": expectedVersion}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build aggregate update query", err)
	}

	return execAffectingOne(ctx, a.client.DB(), query, args, "failed to update facility aggregates",
		apperrors.NewConflictError(fmt.Sprintf("facility %s changed since version %d", id, expectedVersion)))
}

// ReplaceAggregates overwrites stats and the review list if the version still matches
func (a *FacilityAdapter) ReplaceAggregates(ctx context.Context, id string, expectedVersion int64, stats entities.FacilityStats, reviewIDs []string) error {
	if reviewIDs == nil {
		reviewIDs = []string{}
	}
	record := statsRecord(stats)
	record["review_ids"] = pq.Array(reviewIDs)
	record["version"] = goqu.L("version + 1")
	record["updated_at"] = time.Now()

	query, args, err := a.db.Update(facilitiesTable).
		Set(record).
		Where(goqu.Ex{"id": id, "version": expectedVersion}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build aggregate replace query", err)
	}

	return execAffectingOne(ctx, a.client.DB(), query, args, "failed to replace facility aggregates",
		apperrors.NewConflictError(fmt.Sprintf("facility %s changed since version %d", id, expectedVersion)))
}

// Delete deletes a facility
func (a *FacilityAdapter) Delete(ctx context.Context, id string) error {
	query, args, err := a.db.Delete(facilitiesTable).Where(goqu.Ex{"id": id}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	return execAffectingOne(ctx, a.client.DB(), query, args, "failed to delete facility",
		apperrors.NewNotFoundError(fmt.Sprintf("facility with id %s not found", id)))
}

// List retrieves facilities with filters, best scored first
func (a *FacilityAdapter) List(ctx context.Context, filter repositories.FacilityFilter) ([]*entities.Facility, error) {
	ds := a.db.Select(facilityColumns...).From(facilitiesTable)
	if filter.State != "" {
		ds = ds.Where(goqu.Ex{"state": filter.State})
	}
	ds = ds.Order(goqu.I("in_the_tow_score").Desc(), goqu.I("name").Asc())
	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}
	return a.query(ctx, ds)
}

// Search matches the query case-insensitively against name, street, city and zip code
func (a *FacilityAdapter) Search(ctx context.Context, params repositories.SearchParams) ([]*entities.Facility, error) {
	limit := params.Limit
	if limit <= 0 || limit > repositories.MaxSearchResults {
		limit = repositories.MaxSearchResults
	}

	ds := a.db.Select(facilityColumns...).From(facilitiesTable)
	if q := strings.TrimSpace(params.Query); q != "" {
		pattern := containsPattern(q)
		ds = ds.Where(goqu.Or(
			goqu.C("name").ILike(pattern),
			goqu.C("street").ILike(pattern),
			goqu.C("city").ILike(pattern),
			goqu.C("zip_code").ILike(pattern),
		))
	}
	ds = ds.Order(goqu.I("in_the_tow_score").Desc()).Limit(uint(limit))
	if params.Offset > 0 {
		ds = ds.Offset(uint(params.Offset))
	}
	return a.query(ctx, ds)
}

func (a *FacilityAdapter) query(ctx context.Context, ds *goqu.SelectDataset) ([]*entities.Facility, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query facilities", err)
	}
	defer rows.Close()

	facilities := []*entities.Facility{}
	for rows.Next() {
		facility, err := scanFacility(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan facility", err)
		}
		facilities = append(facilities, facility)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate facilities", err)
	}
	return facilities, nil
}

func statsRecord(s entities.FacilityStats) goqu.Record {
	return goqu.Record{
		"num_ratings":                     s.NumRatings,
		"avg_rating":                      s.AvgRating,
		"num_safety_reports":              s.NumSafetyReports,
		"safety_score":                    s.SafetyScore,
		"num_time_reports":                s.NumTimeReports,
		"avg_time_at_dock":                s.AvgTimeAtDock,
		"num_appointments_reported":       s.NumAppointmentsReported,
		"appointments_on_time_count":      s.AppointmentsOnTimeCount,
		"appointments_on_time_percentage": s.AppointmentsOnTimePercentage,
		"has_lumper":                      nullable(s.HasLumper),
		"overnight_parking":               nullable(s.OvernightParking),
		"in_the_tow_score":                s.InTheTowScore,
	}
}

func scanFacility(row rowScanner) (*entities.Facility, error) {
	f := &entities.Facility{}
	var phone, placeID sql.NullString
	var hasLumper, overnight sql.NullBool

	err := row.Scan(
		&f.ID,
		&f.Name,
		&f.Address.Street,
		&f.Address.City,
		&f.Address.State,
		&f.Address.ZipCode,
		&phone,
		&placeID,
		pq.Array(&f.PhotoRefs),
		pq.Array(&f.ReviewIDs),
		&f.NumRatings,
		&f.AvgRating,
		&f.NumSafetyReports,
		&f.SafetyScore,
		&f.NumTimeReports,
		&f.AvgTimeAtDock,
		&f.NumAppointmentsReported,
		&f.AppointmentsOnTimeCount,
		&f.AppointmentsOnTimePercentage,
		&hasLumper,
		&overnight,
		&f.InTheTowScore,
		&f.Version,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	f.PhoneNumber = phone.String
	f.GooglePlaceID = placeID.String
	f.HasLumper = boolPtr(hasLumper)
	f.OvernightParking = boolPtr(overnight)
	f.PhotoRefs = nonNil(f.PhotoRefs)
	f.ReviewIDs = nonNil(f.ReviewIDs)
	return f, nil
}
