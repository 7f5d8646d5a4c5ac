// Package typesense owns the Typesense connection and the facilities
// collection schema.
package typesense

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/inthetow/backend/pkg/config"
	"github.com/inthetow/backend/pkg/retry"
)

// FacilitiesCollection is the collection facilities are indexed into
const FacilitiesCollection = "facilities"

const healthTimeout = 2 * time.Second

// Client wraps the typesense-go client
type Client struct {
	client *typesense.Client
}

// NewClient dials cfg.URL and waits until the node reports healthy
func NewClient(ctx context.Context, cfg *config.TypesenseConfig) (*Client, error) {
	c := &Client{client: typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)}

	if err := retry.Do(ctx, retry.Startup("Typesense"), func() error { return c.Healthy(ctx) }); err != nil {
		return nil, err
	}

	log.Info().Str("url", cfg.URL).Msg("Connected to Typesense")
	return c, nil
}

// Client returns the typesense-go client
func (c *Client) Client() *typesense.Client {
	return c.client
}

// Healthy returns an error unless the node answers /health with ok
func (c *Client) Healthy(ctx context.Context) error {
	ok, err := c.client.Health(ctx, healthTimeout)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("typesense node unhealthy")
	}
	return nil
}

// FacilitiesSchema describes the facilities collection. Results sort by
// InTheTow score by default.
func FacilitiesSchema() *api.CollectionSchema {
	optional := pointer.True()
	facet := pointer.True()
	return &api.CollectionSchema{
		Name: FacilitiesCollection,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "name", Type: "string"},
			{Name: "street", Type: "string", Optional: optional},
			{Name: "city", Type: "string", Facet: facet},
			{Name: "state", Type: "string", Facet: facet},
			{Name: "zip_code", Type: "string", Optional: optional},
			{Name: "in_the_tow_score", Type: "float"},
			{Name: "num_ratings", Type: "int32"},
			{Name: "created_at", Type: "int64"},
		},
		DefaultSortingField: pointer.String("in_the_tow_score"),
	}
}

// InitSchema creates the facilities collection unless it already exists
func (c *Client) InitSchema(ctx context.Context) error {
	_, err := c.client.Collection(FacilitiesCollection).Retrieve(ctx)
	if err == nil {
		return nil
	}
	var httpErr *typesense.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Status != http.StatusNotFound {
		return fmt.Errorf("failed to look up collection %s: %w", FacilitiesCollection, err)
	}

	if _, err := c.client.Collections().Create(ctx, FacilitiesSchema()); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", FacilitiesCollection, err)
	}
	log.Info().Str("collection", FacilitiesCollection).Msg("Created Typesense collection")
	return nil
}
