package repositories

import (
	"context"

	"github.com/inthetow/backend/internal/domain/entities"
)

// UserRepository persists accounts. Emails are stored lower-cased.
type UserRepository interface {
	// Create returns a conflict error when the email is taken
	Create(ctx context.Context, user *entities.User) error
	GetByID(ctx context.Context, id string) (*entities.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*entities.User, error)
	GetByEmail(ctx context.Context, email string) (*entities.User, error)
	// Update writes display name, company and profile picture
	Update(ctx context.Context, user *entities.User) error

	AppendReview(ctx context.Context, userID, reviewID string) error
	RemoveReview(ctx context.Context, userID, reviewID string) error
}
