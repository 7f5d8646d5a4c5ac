package handlers

import (
	"context"
	"encoding/json"
	"mime"
	"net/http"

	"github.com/inthetow/backend/internal/application/services"
	"github.com/inthetow/backend/internal/domain/entities"
	apperrors "github.com/inthetow/backend/pkg/errors"
)

// UserService defines the account operations used by the handler.
type UserService interface {
	Signup(ctx context.Context, in services.SignupInput) (*services.AuthResult, error)
	Login(ctx context.Context, in services.LoginInput) (*services.AuthResult, error)
	Me(ctx context.Context, userID string) (*entities.User, error)
	Update(ctx context.Context, userID string, in services.UpdateProfileInput) (*entities.User, error)
	Public(ctx context.Context, userID string) (*entities.PublicProfile, error)
}

// UserHandler handles account HTTP requests
type UserHandler struct {
	service UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(service UserService) *UserHandler {
	return &UserHandler{service: service}
}

// Signup handles POST /api/users/signup
func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var in services.SignupInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	res, err := h.service.Signup(r.Context(), in)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, res)
}

// Login handles POST /api/users/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in services.LoginInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	res, err := h.service.Login(r.Context(), in)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

// Me handles GET /api/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	user, err := h.service.Me(r.Context(), userID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}

// UpdateMe handles PATCH /api/users/me. A multipart body carries a "profile"
// JSON field and an optional "profile_picture" file.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	in, err := readProfileInput(w, r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	user, err := h.service.Update(r.Context(), userID, in)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}

func readProfileInput(w http.ResponseWriter, r *http.Request) (services.UpdateProfileInput, error) {
	var in services.UpdateProfileInput
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return in, decodeJSON(w, r, &in)
	}

	r.Body = http.MaxBytesReader(w, r.Body, services.MaxPhotoBytes+2*maxJSONBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return in, apperrors.NewValidationError("invalid multipart body: " + err.Error())
	}
	defer r.MultipartForm.RemoveAll()

	if raw := r.FormValue("profile"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in); err != nil {
			return in, apperrors.NewValidationError("profile field must be a JSON object")
		}
	}
	if files := r.MultipartForm.File["profile_picture"]; len(files) > 0 {
		photo, err := readPhoto(files[0])
		if err != nil {
			return in, err
		}
		in.ProfilePicture = &photo
	}
	return in, nil
}

// GetUser handles GET /api/users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.Public(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, profile)
}
