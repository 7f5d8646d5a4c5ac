package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/lib/pq"

	"github.com/inthetow/backend/internal/domain/entities"
	"github.com/inthetow/backend/internal/domain/repositories"
	"github.com/inthetow/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/inthetow/backend/pkg/errors"
)

const usersTable = "users"

var userColumns = []interface{}{
	"id", "email", "display_name", "company_name", "password_hash", "review_ids",
	"profile_picture", "created_at", "updated_at",
}

// UserAdapter implements the UserRepository interface
type UserAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewUserAdapter creates a new user adapter
func NewUserAdapter(client *postgres.Client) repositories.UserRepository {
	return &UserAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create creates a new user
func (a *UserAdapter) Create(ctx context.Context, user *entities.User) error {
	record := goqu.Record{
		"id":              user.ID,
		"email":           strings.ToLower(user.Email),
		"display_name":    user.DisplayName,
		"company_name":    user.CompanyName,
		"password_hash":   user.PasswordHash,
		"review_ids":      pq.Array(nonNil(user.ReviewIDs)),
		"profile_picture": user.ProfilePicture,
		"created_at":      user.CreatedAt,
		"updated_at":      user.UpdatedAt,
	}

	query, args, err := a.db.Insert(usersTable).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflictError("an account with this email already exists")
		}
		return apperrors.NewInternalError("failed to create user", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (a *UserAdapter) GetByID(ctx context.Context, id string) (*entities.User, error) {
	return a.getOne(ctx, goqu.Ex{"id": id}, fmt.Sprintf("user with id %s not found", id))
}

// GetByEmail retrieves a user by email
func (a *UserAdapter) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	return a.getOne(ctx, goqu.Ex{"email": strings.ToLower(email)}, "user not found")
}

// GetByIDs retrieves multiple users by their IDs
func (a *UserAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.User, error) {
	if len(ids) == 0 {
		return []*entities.User{}, nil
	}

	query, args, err := a.db.Select(userColumns...).From(usersTable).Where(goqu.Ex{"id": ids}).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query users", err)
	}
	defer rows.Close()

	users := []*entities.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan user", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate users", err)
	}
	return users, nil
}

// Update updates the profile fields of a user
func (a *UserAdapter) Update(ctx context.Context, user *entities.User) error {
	user.UpdatedAt = time.Now()

	query, args, err := a.db.Update(usersTable).
		Set(goqu.Record{
			"display_name":    user.DisplayName,
			"company_name":    user.CompanyName,
			"profile_picture": user.ProfilePicture,
			"updated_at":      user.UpdatedAt,
		}).
		Where(goqu.Ex{"id": user.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	return execAffectingOne(ctx, a.client.DB(), query, args, "failed to update user",
		apperrors.NewNotFoundError(fmt.Sprintf("user with id %s not found", user.ID)))
}

// AppendReview links a review to its author
func (a *UserAdapter) AppendReview(ctx context.Context, userID, reviewID string) error {
	return a.updateReviewIDs(ctx, userID, goqu.L("array_append(review_ids, ?)", reviewID), "failed to link review")
}

// RemoveReview unlinks a review from its author
func (a *UserAdapter) RemoveReview(ctx context.Context, userID, reviewID string) error {
	return a.updateReviewIDs(ctx, userID, goqu.L("array_remove(review_ids, ?)", reviewID), "failed to unlink review")
}

func (a *UserAdapter) updateReviewIDs(ctx context.Context, userID string, expr exp.LiteralExpression, failMsg string) error {
	query, args, err := a.db.Update(usersTable).
		Set(goqu.Record{"review_ids": expr, "updated_at": time.Now()}).
		Where(goqu.Ex{"id": userID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	return execAffectingOne(ctx, a.client.DB(), query, args, failMsg,
		apperrors.NewNotFoundError(fmt.Sprintf("user with id %s not found", userID)))
}

func (a *UserAdapter) getOne(ctx context.Context, where goqu.Ex, notFound string) (*entities.User, error) {
	query, args, err := a.db.Select(userColumns...).From(usersTable).Where(where).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	user, err := scanUser(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(notFound)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get user", err)
	}
	return user, nil
}

func scanUser(row rowScanner) (*entities.User, error) {
	u := &entities.User{}
	var company, picture sql.NullString

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.DisplayName,
		&company,
		&u.PasswordHash,
		pq.Array(&u.ReviewIDs),
		&picture,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.CompanyName = company.String
	u.ProfilePicture = picture.String
	u.ReviewIDs = nonNil(u.ReviewIDs)
	return u, nil
}
