package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/inthetow/backend/internal/domain/entities"
	"github.com/inthetow/backend/internal/domain/repositories"
	"github.com/inthetow/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/inthetow/backend/pkg/errors"
)

const questionsTable = "questions"

var questionColumns = []interface{}{
	"id", "asked_by", "original_review_author", "review_id", "question_text", "answer_text",
	"created_at", "updated_at",
}

// QuestionAdapter implements the QuestionRepository interface
type QuestionAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewQuestionAdapter creates a new question adapter
func NewQuestionAdapter(client *postgres.Client) repositories.QuestionRepository {
	return &QuestionAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create creates a new question
func (a *QuestionAdapter) Create(ctx context.Context, q *entities.Question) error {
	query, args, err := a.db.Insert(questionsTable).Rows(goqu.Record{
		"id":                     q.ID,
		"asked_by":               q.AskedBy,
		"original_review_author": q.OriginalReviewAuthor,
		"review_id":              q.ReviewID,
		"question_text":          q.QuestionText,
		"answer_text":            nullable(q.AnswerText),
		"created_at":             q.CreatedAt,
		"updated_at":             q.UpdatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create question", err)
	}
	return nil
}

// GetByID retrieves a question by ID
func (a *QuestionAdapter) GetByID(ctx context.Context, id string) (*entities.Question, error) {
	query, args, err := a.db.Select(questionColumns...).
		From(questionsTable).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	q, err := scanQuestion(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("question with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get question", err)
	}
	return q, nil
}

// ListByReview returns the questions asked on a review, oldest first
func (a *QuestionAdapter) ListByReview(ctx context.Context, reviewID string) ([]*entities.Question, error) {
	query, args, err := a.db.Select(questionColumns...).
		From(questionsTable).
		Where(goqu.Ex{"review_id": reviewID}).
		Order(goqu.I("created_at").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list questions", err)
	}
	defer rows.Close()

	questions := []*entities.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan question", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate questions", err)
	}
	return questions, nil
}

// SetAnswer overwrites the answer text of a question
func (a *QuestionAdapter) SetAnswer(ctx context.Context, id, answer string) error {
	query, args, err := a.db.Update(questionsTable).
		Set(goqu.Record{"answer_text": answer, "updated_at": time.Now()}).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	return execAffectingOne(ctx, a.client.DB(), query, args, "failed to answer question",
		apperrors.NewNotFoundError(fmt.Sprintf("question with id %s not found", id)))
}

func scanQuestion(row rowScanner) (*entities.Question, error) {
	q := &entities.Question{}
	var answer sql.NullString

	err := row.Scan(
		&q.ID,
		&q.AskedBy,
		&q.OriginalReviewAuthor,
		&q.ReviewID,
		&q.QuestionText,
		&answer,
		&q.CreatedAt,
		&q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if answer.Valid {
		q.AnswerText = &answer.String
	}
	return q, nil
}
