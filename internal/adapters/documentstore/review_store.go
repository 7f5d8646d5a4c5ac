package documentstore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/inthetow/backend/internal/domain/entities"
	"github.com/inthetow/backend/internal/domain/repositories"
	apperrors "github.com/inthetow/backend/pkg/errors"
)

// ReviewStore implements ReviewRepository on a MongoDB collection
type ReviewStore struct {
	coll *mongo.Collection
}

// NewReviewStore creates a review store
func NewReviewStore(db *mongo.Database) *ReviewStore {
	return &ReviewStore{coll: db.Collection(ReviewsCollection)}
}

var _ repositories.ReviewRepository = (*ReviewStore)(nil)

func (s *ReviewStore) Create(ctx context.Context, review *entities.Review) error {
	review.Photos = nonNil(review.Photos)
	review.QuestionIDs = nonNil(review.QuestionIDs)
	if _, err := s.coll.InsertOne(ctx, review); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.NewConflictError(fmt.Sprintf("review with id %s already exists", review.ID))
		}
		return apperrors.NewInternalError("failed to create review", err)
	}
	return nil
}

func (s *ReviewStore) GetByID(ctx context.Context, id string) (*entities.Review, error) {
	return findOne[entities.Review](ctx, s.coll, bson.M{"_id": id}, "review", id)
}

func (s *ReviewStore) List(ctx context.Context, filter repositories.ReviewFilter) ([]*entities.Review, error) {
	return findAll[entities.Review](ctx, s.coll, reviewFilter(filter), reviewOrder(filter), "reviews")
}

// RecentRatings returns up to n ratings of the listed facility reviews, newest first
func (s *ReviewStore) RecentRatings(ctx context.Context, facilityID string, reviewIDs []string, n int) ([]int, error) {
	if len(reviewIDs) == 0 || n <= 0 {
		return []int{}, nil
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(n)).
		SetProjection(bson.M{"rating": 1})

	type ratingOnly struct {
		Rating int `bson:"rating"`
	}
	rows, err := findAll[ratingOnly](ctx, s.coll, bson.M{"facility_id": facilityID, "_id": bson.M{"$in": reviewIDs}}, opts, "ratings")
	if err != nil {
		return nil, err
	}
	ratings := make([]int, 0, len(rows))
	for _, r := range rows {
		ratings = append(ratings, r.Rating)
	}
	return ratings, nil
}

func (s *ReviewStore) AppendQuestion(ctx context.Context, reviewID, questionID string) error {
	update := bson.M{
		"$push": bson.M{"question_ids": questionID},
		"$set":  bson.M{"updated_at": time.Now()},
	}
	return updateOne(ctx, s.coll, bson.M{"_id": reviewID}, update, "failed to link question",
		apperrors.NewNotFoundError(fmt.Sprintf("review with id %s not found", reviewID)))
}

func (s *ReviewStore) Delete(ctx context.Context, id string) error {
	result, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return apperrors.NewInternalError("failed to delete review", err)
	}
	if result.DeletedCount == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("review with id %s not found", id))
	}
	return nil
}

func reviewFilter(f repositories.ReviewFilter) bson.M {
	query := bson.M{}
	if f.FacilityID != "" {
		query["facility_id"] = f.FacilityID
	}
	if f.UserID != "" {
		query["user_id"] = f.UserID
	}
	return query
}

func reviewOrder(f repositories.ReviewFilter) *options.FindOptions {
	dir := -1
	if f.Ascending {
		dir = 1
	}
	return page(f.Limit, f.Offset).
		SetSort(bson.D{{Key: "created_at", Value: dir}, {Key: "_id", Value: dir}})
}
