package repositories

import (
	"context"

	"github.com/inthetow/backend/internal/domain/entities"
)

// QuestionRepository defines the interface for question operations
type QuestionRepository interface {
	Create(ctx context.Context, question *entities.Question) error
	GetByID(ctx context.Context, id string) (*entities.Question, error)

	// ListByReview returns the questions asked on a review, oldest first
	ListByReview(ctx context.Context, reviewID string) ([]*entities.Question, error)

	// SetAnswer overwrites the answer text of a question
	SetAnswer(ctx context.Context, id, answer string) error
}
