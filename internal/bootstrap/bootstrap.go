// Package bootstrap opens the backing services selected by configuration.
// It is shared by the API server and the admin CLI.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/inthetow/backend/internal/adapters/cache"
	"github.com/inthetow/backend/internal/adapters/database"
	"github.com/inthetow/backend/internal/adapters/documentstore"
	"github.com/inthetow/backend/internal/adapters/media"
	"github.com/inthetow/backend/internal/adapters/search"
	"github.com/inthetow/backend/internal/domain/providers"
	"github.com/inthetow/backend/internal/domain/repositories"
	"github.com/inthetow/backend/internal/infrastructure/clients/mongo"
	"github.com/inthetow/backend/internal/infrastructure/clients/postgres"
	redisclient "github.com/inthetow/backend/internal/infrastructure/clients/redis"
	"github.com/inthetow/backend/internal/infrastructure/clients/typesense"
	"github.com/inthetow/backend/pkg/config"
	"github.com/inthetow/backend/pkg/secrets"
)

// LoadConfig applies Vault secrets to the environment when VAULT_ENABLED is
// set, then loads configuration.
func LoadConfig(ctx context.Context) (*config.Config, secrets.VaultResult, error) {
	vault, err := secrets.ApplyVaultSecrets(ctx, secrets.VaultConfigFromEnv())
	if err != nil {
		return nil, vault, fmt.Errorf("load vault secrets: %w", err)
	}
	cfg, err := config.Load()
	return cfg, vault, err
}

// Storage holds the repositories of the configured STORAGE_DRIVER
type Storage struct {
	Facilities repositories.FacilityRepository
	Reviews    repositories.ReviewRepository
	Users      repositories.UserRepository
	Questions  repositories.QuestionRepository

	ping  func(ctx context.Context) error
	close func(ctx context.Context) error
}

// Ping checks that the database answers
func (s *Storage) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// Close releases the database connection
func (s *Storage) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}

// OpenStorage connects to Postgres or MongoDB. When cacheProvider is set the
// facility repository is wrapped with the read-through cache.
func OpenStorage(ctx context.Context, cfg *config.Config, cacheProvider providers.CacheProvider) (*Storage, error) {
	var s *Storage
	switch cfg.Storage.Driver {
	case config.StorageDriverMongo:
		client, err := mongo.NewClient(ctx, &cfg.Mongo)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MongoDB client: %w", err)
		}
		if err := documentstore.EnsureIndexes(ctx, client.Database()); err != nil {
			_ = client.Close(ctx)
			return nil, fmt.Errorf("failed to ensure MongoDB indexes: %w", err)
		}
		db := client.Database()
		s = &Storage{
			Facilities: documentstore.NewFacilityStore(db),
			Reviews:    documentstore.NewReviewStore(db),
			Users:      documentstore.NewUserStore(db),
			Questions:  documentstore.NewQuestionStore(db),
			ping:       client.Ping,
			close:      client.Close,
		}
	default:
		client, err := postgres.NewClient(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
		}
		s = &Storage{
			Facilities: database.NewFacilityAdapter(client),
			Reviews:    database.NewReviewAdapter(client),
			Users:      database.NewUserAdapter(client),
			Questions:  database.NewQuestionAdapter(client),
			ping:       client.Ping,
			close:      func(context.Context) error { return client.Close() },
		}
	}

	if cacheProvider != nil {
		s.Facilities = database.NewCachedFacilityAdapter(s.Facilities, cacheProvider)
		log.Info().Msg("Facility repository wrapped with caching layer")
	}
	log.Info().Str("driver", cfg.Storage.Driver).Msg("Storage initialized")
	return s, nil
}

// OpenRedis connects to Redis. A nil client means the service runs without
// caching, events or the activity leaderboard.
func OpenRedis(ctx context.Context, cfg *config.Config) *redisclient.Client {
	client, err := redisclient.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable; running without cache, events and activity")
		return nil
	}
	return client
}

// CacheFor returns the cache provider backed by client, or nil
func CacheFor(client *redisclient.Client) providers.CacheProvider {
	if client == nil {
		return nil
	}
	return cache.NewRedisAdapter(client)
}

// OpenSearch returns the Typesense index, or nil when search is disabled or unreachable
func OpenSearch(ctx context.Context, cfg *config.Config) repositories.FacilitySearchRepository {
	if !cfg.Typesense.Enabled {
		return nil
	}
	client, err := typesense.NewClient(ctx, &cfg.Typesense)
	if err != nil {
		log.Warn().Err(err).Msg("Typesense unavailable; search falls back to the database")
		return nil
	}
	if err := client.InitSchema(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to init Typesense schema")
	}
	return search.NewTypesenseAdapter(client)
}

// OpenMedia returns the photo store. The disk store is also returned so its
// signed links can be served; it is nil for S3.
func OpenMedia(ctx context.Context, cfg *config.Config) (providers.MediaStore, *media.DiskStore, error) {
	if cfg.Media.Driver == config.MediaDriverS3 {
		store, err := media.LoadS3Store(ctx, &cfg.Media)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize S3 media store: %w", err)
		}
		return store, nil, nil
	}

	disk, err := media.NewDiskStore(cfg.Media.Dir, cfg.Media.BaseURL, cfg.Media.SigningKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize disk media store: %w", err)
	}
	return disk, disk, nil
}
