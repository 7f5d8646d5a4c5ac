package handlers

import (
	"context"
	"net/http"

	"github.com/inthetow/backend/internal/application/services"
	"github.com/inthetow/backend/internal/domain/entities"
	"github.com/inthetow/backend/internal/domain/repositories"
	"github.com/inthetow/backend/internal/domain/scoring"
)

// FacilityService defines the facility operations used by the handler.
type FacilityService interface {
	Create(ctx context.Context, in services.CreateFacilityInput) (*entities.Facility, error)
	GetByID(ctx context.Context, id string) (*entities.Facility, error)
	Update(ctx context.Context, id string, in services.UpdateFacilityInput) (*entities.Facility, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter repositories.FacilityFilter) ([]*entities.Facility, error)
	Search(ctx context.Context, params repositories.SearchParams) ([]*entities.Facility, error)
	Active(ctx context.Context, limit int) ([]*entities.ActiveFacility, error)
	Score(ctx context.Context, id string) (*scoring.ScoreBreakdown, error)
}

// FacilityHandler handles facility-related HTTP requests
type FacilityHandler struct {
	service FacilityService
}

// NewFacilityHandler creates a new facility handler
func NewFacilityHandler(service FacilityService) *FacilityHandler {
	return &FacilityHandler{service: service}
}

// GetFacility handles GET /api/facilities/{id}
func (h *FacilityHandler) GetFacility(w http.ResponseWriter, r *http.Request) {
	facility, err := h.service.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, facility)
}

// ListFacilities handles GET /api/facilities
func (h *FacilityHandler) ListFacilities(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	facilities, err := h.service.List(r.Context(), repositories.FacilityFilter{
		State:  r.URL.Query().Get("state"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"facilities": facilities,
		"count":      len(facilities),
	})
}

// SearchFacilities handles GET /api/facilities/search?q=
func (h *FacilityHandler) SearchFacilities(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	facilities, err := h.service.Search(r.Context(), repositories.SearchParams{
		Query:  r.URL.Query().Get("q"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"facilities": facilities,
		"count":      len(facilities),
	})
}

// ActiveFacilities handles GET /api/facilities/active
func (h *FacilityHandler) ActiveFacilities(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	active, err := h.service.Active(r.Context(), limit)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"facilities": active,
		"count":      len(active),
	})
}

// GetScore handles GET /api/facilities/{id}/score
func (h *FacilityHandler) GetScore(w http.ResponseWriter, r *http.Request) {
	breakdown, err := h.service.Score(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, breakdown)
}

// CreateFacility handles POST /api/facilities
func (h *FacilityHandler) CreateFacility(w http.ResponseWriter, r *http.Request) {
	var in services.CreateFacilityInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	facility, err := h.service.Create(r.Context(), in)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, facility)
}

// UpdateFacility handles PATCH /api/facilities/{id}
func (h *FacilityHandler) UpdateFacility(w http.ResponseWriter, r *http.Request) {
	var in services.UpdateFacilityInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	facility, err := h.service.Update(r.Context(), r.PathValue("id"), in)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, facility)
}

// DeleteFacility handles DELETE /api/facilities/{id}
func (h *FacilityHandler) DeleteFacility(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), r.PathValue("id")); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
