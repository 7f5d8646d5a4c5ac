package entities

import "time"

// Question is asked on a review by another driver; only the review's author is expected to answer.
type Question struct {
	ID                   string    `json:"id" db:"id" bson:"_id"`
	AskedBy              string    `json:"asked_by" db:"asked_by" bson:"asked_by"`
	OriginalReviewAuthor string    `json:"original_review_author" db:"original_review_author" bson:"original_review_author"`
	ReviewID             string    `json:"review_id" db:"review_id" bson:"review_id"`
	QuestionText         string    `json:"question_text" db:"question_text" bson:"question_text"`
	AnswerText           *string   `json:"answer_text" db:"answer_text" bson:"answer_text"`
	CreatedAt            time.Time `json:"created_at" db:"created_at" bson:"created_at"`
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at" bson:"updated_at"`
}

// QuestionView adds the asker's current display name for rendering.
type QuestionView struct {
	*Question
	AskedByDisplayName string `json:"asked_by_display_name,omitempty"`
}
