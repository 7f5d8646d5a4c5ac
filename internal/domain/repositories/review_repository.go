package repositories

import (
	"context"

	"github.com/inthetow/backend/internal/domain/entities"
)

// ReviewRepository defines the interface for review operations
type ReviewRepository interface {
	// Create creates a new review
	Create(ctx context.Context, review *entities.Review) error

	// GetByID retrieves a review by ID
	GetByID(ctx context.Context, id string) (*entities.Review, error)

	// List retrieves reviews matching the filter, newest first unless Ascending is set
	List(ctx context.Context, filter ReviewFilter) ([]*entities.Review, error)

	// RecentRatings returns up to n ratings, newest first, of the facility's
	// reviews whose IDs appear in reviewIDs
	RecentRatings(ctx context.Context, facilityID string, reviewIDs []string, n int) ([]int, error)

	// AppendQuestion appends a question id to the review's question list
	AppendQuestion(ctx context.Context, reviewID, questionID string) error

	// Delete deletes a review
	Delete(ctx context.Context, id string) error
}

// ReviewFilter defines filters for listing reviews
type ReviewFilter struct {
	FacilityID string
	UserID     string
	Ascending  bool
	Limit      int
	Offset     int
}
