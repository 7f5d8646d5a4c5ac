package repositories

import (
	"context"

	"github.com/inthetow/backend/internal/domain/entities"
)

// MaxSearchResults caps every facility search
const MaxSearchResults = 25

// SearchParams is one page of a free-text facility query
type SearchParams struct {
	Query  string
	Limit  int
	Offset int
}

// FacilitySearchRepository is a secondary full-text index of facilities.
// The database stays the source of truth.
type FacilitySearchRepository interface {
	Search(ctx context.Context, params SearchParams) ([]*entities.Facility, error)
	// Index inserts or replaces the facility document
	Index(ctx context.Context, facility *entities.Facility) error
	Delete(ctx context.Context, id string) error
}
