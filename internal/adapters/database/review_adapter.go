package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"

	"github.com/inthetow/backend/internal/domain/entities"
	"github.com/inthetow/backend/internal/domain/repositories"
	"github.com/inthetow/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/inthetow/backend/pkg/errors"
)

const reviewsTable = "reviews"

var reviewColumns = []interface{}{
	"id", "user_id", "user_display_name", "facility_id", "rating", "safety", "review_text",
	"photos", "appointment_time", "start_time", "end_time", "has_lumper", "overnight_parking",
	"question_ids", "created_at", "updated_at",
}

// ReviewAdapter implements the ReviewRepository interface
type ReviewAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewReviewAdapter creates a new review adapter
func NewReviewAdapter(client *postgres.Client) repositories.ReviewRepository {
	return &ReviewAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create creates a new review
func (a *ReviewAdapter) Create(ctx context.Context, review *entities.Review) error {
	record := goqu.Record{
		"id":                review.ID,
		"user_id":           review.UserID,
		"user_display_name": review.UserDisplayName,
		"facility_id":       review.FacilityID,
		"rating":            review.Rating,
		"safety":            nullable(review.Safety),
		"review_text":       review.ReviewText,
		"photos":            pq.Array(nonNil(review.Photos)),
		"appointment_time":  nullable(review.AppointmentTime),
		"start_time":        nullable(review.StartTime),
		"end_time":          nullable(review.EndTime),
		"has_lumper":        nullable(review.HasLumper),
		"overnight_parking": nullable(review.OvernightParking),
		"question_ids":      pq.Array(nonNil(review.QuestionIDs)),
		"created_at":        review.CreatedAt,
		"updated_at":        review.UpdatedAt,
	}

	query, args, err := a.db.Insert(reviewsTable).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create review", err)
	}
	return nil
}

// GetByID retrieves a review by ID
func (a *ReviewAdapter) GetByID(ctx context.Context, id string) (*entities.Review, error) {
	query, args, err := a.db.Select(reviewColumns...).
		From(reviewsTable).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	review, err := scanReview(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("review with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get review", err)
	}
	return review, nil
}

// List retrieves reviews matching the filter
func (a *ReviewAdapter) List(ctx context.Context, filter repositories.ReviewFilter) ([]*entities.Review, error) {
	ds := a.db.Select(reviewColumns...).From(reviewsTable)
	if filter.FacilityID != "" {
		ds = ds.Where(goqu.Ex{"facility_id": filter.FacilityID})
	}
	if filter.UserID != "" {
		ds = ds.Where(goqu.Ex{"user_id": filter.UserID})
	}
	if filter.Ascending {
		ds = ds.Order(goqu.I("created_at").Asc(), goqu.I("id").Asc())
	} else {
		ds = ds.Order(goqu.I("created_at").Desc(), goqu.I("id").Desc())
	}
	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list reviews", err)
	}
	defer rows.Close()

	reviews := []*entities.Review{}
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan review", err)
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate reviews", err)
	}
	return reviews, nil
}

// RecentRatings returns up to n ratings of the listed facility reviews, newest first
func (a *ReviewAdapter) RecentRatings(ctx context.Context, facilityID string, reviewIDs []string, n int) ([]int, error) {
	if len(reviewIDs) == 0 || n <= 0 {
		return []int{}, nil
	}
	query, args, err := a.db.Select("rating").
		From(reviewsTable).
		Where(goqu.Ex{"facility_id": facilityID, "id": reviewIDs}).
		Order(goqu.I("created_at").Desc(), goqu.I("id").Desc()).
		Limit(uint(n)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load recent ratings", err)
	}
	defer rows.Close()

	ratings := make([]int, 0, n)
	for rows.Next() {
		var rating int
		if err := rows.Scan(&rating); err != nil {
			return nil, apperrors.NewInternalError("failed to scan rating", err)
		}
		ratings = append(ratings, rating)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate ratings", err)
	}
	return ratings, nil
}

// AppendQuestion appends a question id to the review's question list
func (a *ReviewAdapter) AppendQuestion(ctx context.Context, reviewID, questionID string) error {
	query, args, err := a.db.Update(reviewsTable).
		Set(goqu.Record{
			"question_ids": goqu.L("array_append(question_ids, ?)", questionID),
			"updated_at":   time.Now(),
		}).
		Where(goqu.Ex{"id": reviewID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	return execAffectingOne(ctx, a.client.DB(), query, args, "failed to link question",
		apperrors.NewNotFoundError(fmt.Sprintf("review with id %s not found", reviewID)))
}

// Delete deletes a review
func (a *ReviewAdapter) Delete(ctx context.Context, id string) error {
	query, args, err := a.db.Delete(reviewsTable).Where(goqu.Ex{"id": id}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	return execAffectingOne(ctx, a.client.DB(), query, args, "failed to delete review",
		apperrors.NewNotFoundError(fmt.Sprintf("review with id %s not found", id)))
}

func scanReview(row rowScanner) (*entities.Review, error) {
	r := &entities.Review{}
	var safety sql.NullInt64
	var text sql.NullString
	var appointment, start, end sql.NullTime
	var hasLumper, overnight sql.NullBool

	err := row.Scan(
		&r.ID,
		&r.UserID,
		&r.UserDisplayName,
		&r.FacilityID,
		&r.Rating,
		&safety,
		&text,
		pq.Array(&r.Photos),
		&appointment,
		&start,
		&end,
		&hasLumper,
		&overnight,
		pq.Array(&r.QuestionIDs),
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Safety = intPtr(safety)
	r.ReviewText = text.String
	r.AppointmentTime = timePtr(appointment)
	r.StartTime = timePtr(start)
	r.EndTime = timePtr(end)
	r.HasLumper = boolPtr(hasLumper)
	r.OvernightParking = boolPtr(overnight)
	r.Photos = nonNil(r.Photos)
	r.QuestionIDs = nonNil(r.QuestionIDs)
	return r, nil
}
