package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/inthetow/backend/internal/domain/entities"
	"github.com/inthetow/backend/internal/domain/repositories"
	tsclient "github.com/inthetow/backend/internal/infrastructure/clients/typesense"
)

const queryBy = "name,street,city,zip_code"

// TypesenseAdapter implements facility search using Typesense
type TypesenseAdapter struct {
	client *tsclient.Client
}

// Ensure TypesenseAdapter implements FacilitySearchRepository
var _ repositories.FacilitySearchRepository = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// Index upserts a facility document
func (a *TypesenseAdapter) Index(ctx context.Context, facility *entities.Facility) error {
	_, err := a.client.Client().Collection(tsclient.FacilitiesCollection).Documents().Upsert(ctx, facilityDocument(facility))
	if err != nil {
		return fmt.Errorf("failed to index facility: %w", err)
	}
	return nil
}

// Delete removes a facility from index
func (a *TypesenseAdapter) Delete(ctx context.Context, id string) error {
	_, err := a.client.Client().Collection(tsclient.FacilitiesCollection).Document(id).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete facility from index: %w", err)
	}
	return nil
}

// Search matches the query against name and address fields.
// Returned facilities only carry the indexed fields.
func (a *TypesenseAdapter) Search(ctx context.Context, params repositories.SearchParams) ([]*entities.Facility, error) {
	limit := params.Limit
	if limit <= 0 || limit > repositories.MaxSearchResults {
		limit = repositories.MaxSearchResults
	}
	q := strings.TrimSpace(params.Query)
	if q == "" {
		q = "*"
	}

	searchParams := &api.SearchCollectionParams{
		Q:       pointer.String(q),
		QueryBy: pointer.String(queryBy),
		SortBy:  pointer.String("_text_match:desc,in_the_tow_score:desc"),
		Page:    pointer.Int(params.Offset/limit + 1),
		PerPage: pointer.Int(limit),
	}

	result, err := a.client.Client().Collection(tsclient.FacilitiesCollection).Documents().Search(ctx, searchParams)
	if err != nil {
		return nil, fmt.Errorf("failed to search facilities: %w", err)
	}

	facilities := []*entities.Facility{}
	if result.Hits == nil {
		return facilities, nil
	}
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		if f := facilityFromDocument(*hit.Document); f != nil {
			facilities = append(facilities, f)
		}
	}
	return facilities, nil
}

func facilityDocument(f *entities.Facility) map[string]interface{} {
	return map[string]interface{}{
		"id":               f.ID,
		"name":             f.Name,
		"street":           f.Address.Street,
		"city":             f.Address.City,
		"state":            f.Address.State,
		"zip_code":         f.Address.ZipCode,
		"in_the_tow_score": f.InTheTowScore,
		"num_ratings":      f.NumRatings,
		"created_at":       f.CreatedAt.Unix(),
	}
}

// facilityFromDocument rebuilds a partial facility; documents without an id are dropped.
func facilityFromDocument(doc map[string]interface{}) *entities.Facility {
	id, ok := doc["id"].(string)
	if !ok || id == "" {
		return nil
	}
	str := func(key string) string {
		s, _ := doc[key].(string)
		return s
	}

	f := &entities.Facility{
		ID:   id,
		Name: str("name"),
		Address: entities.Address{
			Street:  str("street"),
			City:    str("city"),
			State:   str("state"),
			ZipCode: str("zip_code"),
		},
	}
	if v, ok := doc["in_the_tow_score"].(float64); ok {
		f.InTheTowScore = v
	}
	if v, ok := doc["num_ratings"].(float64); ok {
		f.NumRatings = int(v)
	}
	return f
}
