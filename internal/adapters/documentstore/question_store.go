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

// QuestionStore implements QuestionRepository on a MongoDB collection
type QuestionStore struct {
	coll *mongo.Collection
}

// NewQuestionStore creates a question store
func NewQuestionStore(db *mongo.Database) *QuestionStore {
	return &QuestionStore{coll: db.Collection(QuestionsCollection)}
}

var _ repositories.QuestionRepository = (*QuestionStore)(nil)

func (s *QuestionStore) Create(ctx context.Context, question *entities.Question) error {
	if _, err := s.coll.InsertOne(ctx, question); err != nil {
		return apperrors.NewInternalError("failed to create question", err)
	}
	return nil
}

func (s *QuestionStore) GetByID(ctx context.Context, id string) (*entities.Question, error) {
	return findOne[entities.Question](ctx, s.coll, bson.M{"_id": id}, "question", id)
}

func (s *QuestionStore) ListByReview(ctx context.Context, reviewID string) ([]*entities.Question, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	return findAll[entities.Question](ctx, s.coll, bson.M{"review_id": reviewID}, opts, "questions")
}

func (s *QuestionStore) SetAnswer(ctx context.Context, id, answer string) error {
	update := bson.M{"$set": bson.M{"answer_text": answer, "updated_at": time.Now()}}
	return updateOne(ctx, s.coll, bson.M{"_id": id}, update, "failed to answer question",
		apperrors.NewNotFoundError(fmt.Sprintf("question with id %s not found", id)))
}
