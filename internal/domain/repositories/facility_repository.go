package repositories

import (
	"context"

	"github.com/inthetow/backend/internal/domain/entities"
)

// FacilityRepository persists facilities and their review aggregates
type FacilityRepository interface {
	Create(ctx context.Context, facility *entities.Facility) error
	GetByID(ctx context.Context, id string) (*entities.Facility, error)
	// GetByIDs skips ids that do not exist
	GetByIDs(ctx context.Context, ids []string) ([]*entities.Facility, error)

	// Update writes the descriptive fields only; aggregates are never touched
	Update(ctx context.Context, facility *entities.Facility) error

	// UpdateAggregates stores stats and appends reviewID when the stored
	// version still equals expectedVersion, bumping the version. Otherwise it
	// returns a conflict error and writes nothing.
	UpdateAggregates(ctx context.Context, id string, expectedVersion int64, stats entities.FacilityStats, reviewID string) error

	// ReplaceAggregates overwrites stats and the review list under the same
	// version check as UpdateAggregates
	ReplaceAggregates(ctx context.Context, id string, expectedVersion int64, stats entities.FacilityStats, reviewIDs []string) error

	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter FacilityFilter) ([]*entities.Facility, error)

	// Search matches the query against name, street, city and zip code
	Search(ctx context.Context, params SearchParams) ([]*entities.Facility, error)
}

// UncachedFacilityReader is implemented by caching decorators. Writers that
// check versions read through it so a stale cache entry cannot pin them.
type UncachedFacilityReader interface {
	GetByIDUncached(ctx context.Context, id string) (*entities.Facility, error)
}

// FacilityFilter narrows List. Zero values mean no filter.
type FacilityFilter struct {
	State  string
	Limit  int
	Offset int
}
