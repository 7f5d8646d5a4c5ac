package documentstore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/inthetow/backend/internal/domain/entities"
	"github.com/inthetow/backend/internal/domain/repositories"
	apperrors "github.com/inthetow/backend/pkg/errors"
)

// UserStore implements UserRepository on a MongoDB collection
type UserStore struct {
	coll *mongo.Collection
}

// NewUserStore creates a user store
func NewUserStore(db *mongo.Database) *UserStore {
	return &UserStore{coll: db.Collection(UsersCollection)}
}

var _ repositories.UserRepository = (*UserStore)(nil)

// Create inserts the user. The unique email index turns a duplicate into a conflict.
func (s *UserStore) Create(ctx context.Context, user *entities.User) error {
	user.Email = normalizeEmail(user.Email)
	user.ReviewIDs = nonNil(user.ReviewIDs)
	if _, err := s.coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.NewConflictError("an account with this email already exists")
		}
		return apperrors.NewInternalError("failed to create user", err)
	}
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*entities.User, error) {
	return findOne[entities.User](ctx, s.coll, bson.M{"_id": id}, "user", id)
}

func (s *UserStore) GetByIDs(ctx context.Context, ids []string) ([]*entities.User, error) {
	if len(ids) == 0 {
		return []*entities.User{}, nil
	}
	return findAll[entities.User](ctx, s.coll, bson.M{"_id": bson.M{"$in": ids}}, nil, "users")
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	email = normalizeEmail(email)
	return findOne[entities.User](ctx, s.coll, bson.M{"email": email}, "user", email)
}

func (s *UserStore) Update(ctx context.Context, user *entities.User) error {
	user.UpdatedAt = time.Now()
	update := bson.M{"$set": bson.M{
		"display_name":    user.DisplayName,
		"company_name":    user.CompanyName,
		"profile_picture": user.ProfilePicture,
		"updated_at":      user.UpdatedAt,
	}}
	return updateOne(ctx, s.coll, bson.M{"_id": user.ID}, update, "failed to update user",
		apperrors.NewNotFoundError(fmt.Sprintf("user with id %s not found", user.ID)))
}

func (s *UserStore) AppendReview(ctx context.Context, userID, reviewID string) error {
	return s.updateReviewIDs(ctx, userID, bson.M{"$push": bson.M{"review_ids": reviewID}}, "failed to link review")
}

func (s *UserStore) RemoveReview(ctx context.Context, userID, reviewID string) error {
	return s.updateReviewIDs(ctx, userID, bson.M{"$pull": bson.M{"review_ids": reviewID}}, "failed to unlink review")
}

func (s *UserStore) updateReviewIDs(ctx context.Context, userID string, update bson.M, failMsg string) error {
	update["$set"] = bson.M{"updated_at": time.Now()}
	return updateOne(ctx, s.coll, bson.M{"_id": userID}, update, failMsg,
		apperrors.NewNotFoundError(fmt.Sprintf("user with id %s not found", userID)))
}
