// Package redis holds the shared go-redis connection behind the cache,
// event bus and activity tracker.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/inthetow/backend/pkg/config"
)

const dialTimeout = 3 * time.Second

// Client wraps one go-redis connection pool
type Client struct {
	client *redis.Client
}

// NewClient connects to cfg and fails fast when the server does not answer.
// Redis is optional, so there is no retry here.
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.RedisAddr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: dialTimeout,
	})

	c := &Client{client: rdb}
	if err := c.Ping(ctx); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddr(), err)
	}

	log.Info().Str("addr", cfg.RedisAddr()).Int("db", cfg.DB).Msg("Connected to Redis")
	return c, nil
}

// NewClientFromRedis wraps an existing go-redis client
func NewClientFromRedis(rdb *redis.Client) *Client {
	return &Client{client: rdb}
}

// Client returns the go-redis client
func (c *Client) Client() *redis.Client {
	return c.client
}

// Ping checks the server within the dial timeout
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	return c.client.Ping(ctx).Err()
}

// Close closes the pool
func (c *Client) Close() error {
	return c.client.Close()
}
