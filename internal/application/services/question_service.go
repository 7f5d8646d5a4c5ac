package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/inthetow/backend/internal/domain/entities"
	"github.com/inthetow/backend/internal/domain/repositories"
	apperrors "github.com/inthetow/backend/pkg/errors"
)

const maxQuestionLength = 2000

// QuestionService handles questions asked on reviews and their answers
type QuestionService struct {
	questions repositories.QuestionRepository
	reviews   repositories.ReviewRepository
	users     repositories.UserRepository
}

// NewQuestionService creates a new question service
func NewQuestionService(
	questions repositories.QuestionRepository,
	reviews repositories.ReviewRepository,
	users repositories.UserRepository,
) *QuestionService {
	return &QuestionService{
		questions: questions,
		reviews:   reviews,
		users:     users,
	}
}

// Ask records a question from askerID on a review written by someone else
func (s *QuestionService) Ask(ctx context.Context, reviewID, askerID, text string) (*entities.Question, error) {
	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if review.UserID == askerID {
		return nil, apperrors.NewForbiddenError("you cannot ask a question on your own review")
	}
	text, err = questionText(text, "question_text")
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	question := &entities.Question{
		ID:                   uuid.New().String(),
		AskedBy:              askerID,
		OriginalReviewAuthor: review.UserID,
		ReviewID:             review.ID,
		QuestionText:         text,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.questions.Create(ctx, question); err != nil {
		return nil, err
	}
	if err := s.reviews.AppendQuestion(ctx, review.ID, question.ID); err != nil {
		return nil, err
	}
	return question, nil
}

// Answer overwrites the answer of a question
func (s *QuestionService) Answer(ctx context.Context, questionID, text string) (*entities.Question, error) {
	question, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		return nil, err
	}
	text, err = questionText(text, "answer_text")
	if err != nil {
		return nil, err
	}
	if err := s.questions.SetAnswer(ctx, questionID, text); err != nil {
		return nil, err
	}
	question.AnswerText = &text
	question.UpdatedAt = time.Now().UTC()
	return question, nil
}

// ListByReview returns the review's questions oldest first, with asker names
func (s *QuestionService) ListByReview(ctx context.Context, reviewID string) ([]*entities.QuestionView, error) {
	if _, err := s.reviews.GetByID(ctx, reviewID); err != nil {
		return nil, err
	}
	questions, err := s.questions.ListByReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	userLoader := newUserLoader(s.users)
	if loaders := For(ctx); loaders != nil {
		userLoader = loaders.UserLoader
	}
	askers := make([]string, len(questions))
	for i, q := range questions {
		askers[i] = q.AskedBy
	}
	users, err := loadAll(ctx, userLoader, askers)
	if err != nil {
		return nil, err
	}

	views := make([]*entities.QuestionView, len(questions))
	for i, q := range questions {
		views[i] = &entities.QuestionView{Question: q}
		if u, ok := users[q.AskedBy]; ok {
			views[i].AskedByDisplayName = u.DisplayName
		}
	}
	return views, nil
}

func questionText(text, field string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperrors.NewValidationError(field + " is required")
	}
	if len(text) > maxQuestionLength {
		return "", apperrors.NewValidationError(field + " is too long")
	}
	return text, nil
}
