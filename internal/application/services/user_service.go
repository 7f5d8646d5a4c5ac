package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/inthetow/backend/internal/domain/entities"
	"github.com/inthetow/backend/internal/domain/providers"
	"github.com/inthetow/backend/internal/domain/repositories"
	"github.com/inthetow/backend/pkg/auth"
	apperrors "github.com/inthetow/backend/pkg/errors"
)

// SignupInput is the body of a signup request
type SignupInput struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required"`
	DisplayName string `json:"display_name" validate:"required,max=20"`
	CompanyName string `json:"company_name" validate:"max=100"`
}

// LoginInput is the body of a login request
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdateProfileInput carries the profile fields to change; nil fields are kept
type UpdateProfileInput struct {
	DisplayName    *string      `json:"display_name,omitempty" validate:"omitnil,min=1,max=20"`
	CompanyName    *string      `json:"company_name,omitempty" validate:"omitnil,max=100"`
	ProfilePicture *PhotoUpload `json:"-"`
}

// AuthResult is returned by signup and login
type AuthResult struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// UserService handles accounts and profiles
type UserService struct {
	users       repositories.UserRepository
	tokens      *auth.TokenService
	media       providers.MediaStore
	mediaURLTTL time.Duration
}

// NewUserService creates a new user service
func NewUserService(users repositories.UserRepository, tokens *auth.TokenService, media providers.MediaStore, mediaURLTTL time.Duration) *UserService {
	return &UserService{
		users:       users,
		tokens:      tokens,
		media:       media,
		mediaURLTTL: mediaURLTTL,
	}
}

// Signup creates an account and signs a token for it
func (s *UserService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if !auth.IsStrongPassword(in.Password) {
		return nil, apperrors.NewValidationError("password must be at least 8 characters and include upper and lower case letters, a digit and a symbol")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to hash password", err)
	}

	now := time.Now().UTC()
	user := &entities.User{
		ID:           uuid.New().String(),
		Email:        in.Email,
		DisplayName:  in.DisplayName,
		CompanyName:  strings.TrimSpace(in.CompanyName),
		PasswordHash: hash,
		ReviewIDs:    []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	log.Info().Str("user_id", user.ID).Msg("User signed up")
	return s.issue(user)
}

// Login checks credentials and signs a token
func (s *UserService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	user, err := s.users.GetByEmail(ctx, in.Email)
	if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		return nil, apperrors.NewUnauthorizedError("invalid email or password")
	}
	if err != nil {
		return nil, err
	}
	if err := auth.CheckPassword(in.Password, user.PasswordHash); err != nil {
		return nil, apperrors.NewUnauthorizedError("invalid email or password")
	}
	return s.issue(user)
}

func (s *UserService) issue(user *entities.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to sign token", err)
	}
	return &AuthResult{Email: user.Email, Token: token}, nil
}

// Me returns the caller's profile with the picture token resolved
func (s *UserService) Me(ctx context.Context, userID string) (*entities.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.resolvePicture(ctx, user)
	return user, nil
}

// Update changes the caller's profile
func (s *UserService) Update(ctx context.Context, userID string, in UpdateProfileInput) (*entities.User, error) {
	if in.DisplayName != nil {
		trimmed := strings.TrimSpace(*in.DisplayName)
		in.DisplayName = &trimmed
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.DisplayName != nil {
		user.DisplayName = *in.DisplayName
	}
	if in.CompanyName != nil {
		user.CompanyName = strings.TrimSpace(*in.CompanyName)
	}
	if in.ProfilePicture != nil {
		contentType, err := sniffImage(*in.ProfilePicture)
		if err != nil {
			return nil, err
		}
		tokens, err := storePhotos(ctx, s.media, []PhotoUpload{*in.ProfilePicture}, []string{contentType})
		if err != nil {
			return nil, err
		}
		user.ProfilePicture = tokens[0]
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	s.resolvePicture(ctx, user)
	return user, nil
}

// Public returns what other drivers may see of a user
func (s *UserService) Public(ctx context.Context, userID string) (*entities.PublicProfile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.resolvePicture(ctx, user)
	profile := user.Public()
	return &profile, nil
}

func (s *UserService) resolvePicture(ctx context.Context, user *entities.User) {
	if user.ProfilePicture == "" {
		return
	}
	if urls := photoURLs(ctx, s.media, []string{user.ProfilePicture}, s.mediaURLTTL); len(urls) == 1 {
		user.ProfilePicture = urls[0]
	}
}
