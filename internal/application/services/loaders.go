package services

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"

	"github.com/inthetow/backend/internal/domain/entities"
	"github.com/inthetow/backend/internal/domain/repositories"
	apperrors "github.com/inthetow/backend/pkg/errors"
)

type ctxKey string

const loadersKey ctxKey = "dataloaders"

// Loaders batches the per-row lookups done while rendering review and question lists
type Loaders struct {
	FacilityLoader *dataloader.Loader[string, *entities.Facility]
	UserLoader     *dataloader.Loader[string, *entities.User]
}

// NewLoaders creates request-scoped loaders
func NewLoaders(facilityRepo repositories.FacilityRepository, userRepo repositories.UserRepository) *Loaders {
	return &Loaders{
		FacilityLoader: newFacilityLoader(facilityRepo),
		UserLoader:     newUserLoader(userRepo),
	}
}

func newFacilityLoader(repo repositories.FacilityRepository) *dataloader.Loader[string, *entities.Facility] {
	fetch := func(ctx context.Context, ids []string) ([]*entities.Facility, error) { return repo.GetByIDs(ctx, ids) }
	return dataloader.NewBatchedLoader(batchByID("facility", fetch, func(f *entities.Facility) string { return f.ID }))
}

func newUserLoader(repo repositories.UserRepository) *dataloader.Loader[string, *entities.User] {
	fetch := func(ctx context.Context, ids []string) ([]*entities.User, error) { return repo.GetByIDs(ctx, ids) }
	return dataloader.NewBatchedLoader(batchByID("user", fetch, func(u *entities.User) string { return u.ID }))
}

func batchByID[V any](what string, fetch func(context.Context, []string) ([]V, error), idOf func(V) string) dataloader.BatchFunc[string, V] {
	return func(ctx context.Context, keys []string) []*dataloader.Result[V] {
		results := make([]*dataloader.Result[V], len(keys))
		items, err := fetch(ctx, keys)

		byID := make(map[string]V, len(items))
		if err == nil {
			for _, item := range items {
				byID[idOf(item)] = item
			}
		}

		for i, key := range keys {
			if err != nil {
				results[i] = &dataloader.Result[V]{Error: err}
			} else if item, ok := byID[key]; ok {
				results[i] = &dataloader.Result[V]{Data: item}
			} else {
				results[i] = &dataloader.Result[V]{Error: apperrors.NewNotFoundError(what + " with id " + key + " not found")}
			}
		}
		return results
	}
}

// For returns the loaders attached to ctx, or nil
func For(ctx context.Context) *Loaders {
	loaders, _ := ctx.Value(loadersKey).(*Loaders)
	return loaders
}

// WithLoaders returns a new context with the loaders attached
func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}

// loadAll resolves keys through loader; a missing key leaves a zero value
func loadAll[V any](ctx context.Context, loader *dataloader.Loader[string, V], keys []string) (map[string]V, error) {
	thunks := make(map[string]dataloader.Thunk[V], len(keys))
	for _, key := range keys {
		if _, ok := thunks[key]; !ok {
			thunks[key] = loader.Load(ctx, key)
		}
	}

	out := make(map[string]V, len(thunks))
	for key, thunk := range thunks {
		v, err := thunk()
		if err != nil {
			if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
				continue
			}
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}
