package handlers

import (
	"context"
	"net/http"

	"github.com/inthetow/backend/internal/domain/entities"
)

// QuestionService defines the Q&A operations used by the handler.
type QuestionService interface {
	Ask(ctx context.Context, reviewID, askerID, text string) (*entities.Question, error)
	Answer(ctx context.Context, questionID, text string) (*entities.Question, error)
	ListByReview(ctx context.Context, reviewID string) ([]*entities.QuestionView, error)
}

// QuestionHandler handles questions asked on reviews
type QuestionHandler struct {
	service QuestionService
}

// NewQuestionHandler creates a new question handler
func NewQuestionHandler(service QuestionService) *QuestionHandler {
	return &QuestionHandler{service: service}
}

type askRequest struct {
	QuestionText string `json:"question_text"`
}

type answerRequest struct {
	AnswerText string `json:"answer_text"`
}

// AskQuestion handles POST /api/reviews/{id}/questions
func (h *QuestionHandler) AskQuestion(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req askRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	question, err := h.service.Ask(r.Context(), r.PathValue("id"), userID, req.QuestionText)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, question)
}

// AnswerQuestion handles PATCH /api/questions/{id}/answer
func (h *QuestionHandler) AnswerQuestion(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerID(w, r); !ok {
		return
	}
	var req answerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	question, err := h.service.Answer(r.Context(), r.PathValue("id"), req.AnswerText)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, question)
}

// ListQuestions handles GET /api/reviews/{id}/questions
func (h *QuestionHandler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.service.ListByReview(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"questions": questions,
		"count":     len(questions),
	})
}
