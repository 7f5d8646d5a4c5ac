package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/inthetow/backend/internal/application/services"
	"github.com/inthetow/backend/internal/domain/entities"
	apperrors "github.com/inthetow/backend/pkg/errors"
)

const multipartMemory = 32 << 20

// ReviewService defines the review operations used by the handler.
type ReviewService interface {
	Create(ctx context.Context, authorID string, in services.CreateReviewInput) (*entities.ReviewView, error)
	Get(ctx context.Context, id string) (*entities.ReviewView, error)
	List(ctx context.Context, limit, offset int) ([]*entities.ReviewView, error)
	ListByFacility(ctx context.Context, facilityID string, limit, offset int) ([]*entities.ReviewView, error)
	ListMine(ctx context.Context, userID string) ([]*entities.ReviewView, error)
}

// ReviewHandler handles review HTTP requests
type ReviewHandler struct {
	service ReviewService
}

// NewReviewHandler creates a new review handler
func NewReviewHandler(service ReviewService) *ReviewHandler {
	return &ReviewHandler{service: service}
}

// CreateReview handles POST /api/reviews. The body is either JSON or multipart
// with a "review" JSON field and up to five "photos" files.
func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	in, err := readReviewInput(w, r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	review, err := h.service.Create(r.Context(), userID, in)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, review)
}

func readReviewInput(w http.ResponseWriter, r *http.Request) (services.CreateReviewInput, error) {
	var in services.CreateReviewInput
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return in, decodeJSON(w, r, &in)
	}

	r.Body = http.MaxBytesReader(w, r.Body, services.MaxReviewPhotos*(services.MaxPhotoBytes+maxJSONBody)+maxJSONBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return in, apperrors.NewValidationError("invalid multipart body: " + err.Error())
	}
	defer r.MultipartForm.RemoveAll()

	if err := json.Unmarshal([]byte(r.FormValue("review")), &in); err != nil {
		return in, apperrors.NewValidationError("review field must be a JSON object")
	}

	files := r.MultipartForm.File["photos"]
	if len(files) > services.MaxReviewPhotos {
		return in, apperrors.NewValidationError(fmt.Sprintf("at most %d photos may be attached", services.MaxReviewPhotos))
	}
	for _, fh := range files {
		photo, err := readPhoto(fh)
		if err != nil {
			return in, err
		}
		in.Photos = append(in.Photos, photo)
	}
	return in, nil
}

// readPhoto reads one byte past the limit so the service can reject oversized files
func readPhoto(fh *multipart.FileHeader) (services.PhotoUpload, error) {
	f, err := fh.Open()
	if err != nil {
		return services.PhotoUpload{}, apperrors.NewValidationError("unreadable photo " + fh.Filename)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, services.MaxPhotoBytes+1))
	if err != nil {
		return services.PhotoUpload{}, apperrors.NewValidationError("unreadable photo " + fh.Filename)
	}
	return services.PhotoUpload{Filename: fh.Filename, Data: data}, nil
}

// GetReview handles GET /api/reviews/{id}
func (h *ReviewHandler) GetReview(w http.ResponseWriter, r *http.Request) {
	review, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, review)
}

// ListReviews handles GET /api/reviews
func (h *ReviewHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	reviews, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithReviews(w, reviews)
}

// ListFacilityReviews handles GET /api/facilities/{id}/reviews
func (h *ReviewHandler) ListFacilityReviews(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	reviews, err := h.service.ListByFacility(r.Context(), r.PathValue("id"), limit, offset)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithReviews(w, reviews)
}

// ListMyReviews handles GET /api/reviews/mine
func (h *ReviewHandler) ListMyReviews(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	reviews, err := h.service.ListMine(r.Context(), userID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithReviews(w, reviews)
}

func respondWithReviews(w http.ResponseWriter, reviews []*entities.ReviewView) {
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"reviews": reviews,
		"count":   len(reviews),
	})
}
