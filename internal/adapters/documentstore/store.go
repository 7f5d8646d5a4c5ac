// Package documentstore implements the repositories on MongoDB.
package documentstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	apperrors "github.com/inthetow/backend/pkg/errors"
)

// Collection names
const (
	FacilitiesCollection = "facilities"
	ReviewsCollection    = "reviews"
	UsersCollection      = "users"
	QuestionsCollection  = "questions"
)

// EnsureIndexes creates the indexes the stores rely on
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		UsersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		ReviewsCollection: {
			{Keys: bson.D{{Key: "facility_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		QuestionsCollection: {
			{Keys: bson.D{{Key: "review_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		FacilitiesCollection: {
			{Keys: bson.D{{Key: "in_the_tow_score", Value: -1}, {Key: "name", Value: 1}}},
			{Keys: bson.D{{Key: "address.state", Value: 1}}},
		},
	}
	for coll, models := range specs {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", coll, err)
		}
	}
	return nil
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter interface{}, what, id string) (*T, error) {
	var out T
	err := coll.FindOne(ctx, filter).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("%s with id %s not found", what, id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get "+what, err)
	}
	return &out, nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter interface{}, opts *options.FindOptions, what string) ([]*T, error) {
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query "+what, err)
	}
	defer cursor.Close(ctx)

	out := []*T{}
	for cursor.Next(ctx) {
		var item T
		if err := cursor.Decode(&item); err != nil {
			return nil, apperrors.NewInternalError("failed to decode "+what, err)
		}
		out = append(out, &item)
	}
	if err := cursor.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate "+what, err)
	}
	return out, nil
}

// updateOne reports noMatch when the filter selected nothing
func updateOne(ctx context.Context, coll *mongo.Collection, filter, update interface{}, failMsg string, noMatch error) error {
	result, err := coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return apperrors.NewInternalError(failMsg, err)
	}
	if result.MatchedCount == 0 {
		return noMatch
	}
	return nil
}

func containsRegex(q string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(q), "$options": "i"}
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func page(limit, offset int) *options.FindOptions {
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	return opts
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
