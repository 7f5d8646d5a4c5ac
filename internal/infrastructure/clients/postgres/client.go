// Package postgres opens the pooled PostgreSQL handle used by the database adapters.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/inthetow/backend/pkg/config"
	"github.com/inthetow/backend/pkg/retry"
)

const pingTimeout = 5 * time.Second

// Client wraps a *sql.DB opened with the lib/pq driver
type Client struct {
	db *sql.DB
}

// NewClient opens the pool described by cfg and waits until the server
// answers, backing off between attempts. It gives up when ctx ends.
func NewClient(ctx context.Context, cfg *config.DatabaseConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	applyPool(db, cfg)

	c := &Client{db: db}
	if err := retry.Do(ctx, retry.Startup("PostgreSQL"), c.pingOnce(ctx)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL at %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	log.Info().Str("host", cfg.Host).Str("database", cfg.Database).Int("max_open", cfg.MaxOpenConns).Msg("Connected to PostgreSQL")
	return c, nil
}

// NewClientFromDB wraps an already opened database handle
func NewClientFromDB(db *sql.DB) *Client {
	return &Client{db: db}
}

func applyPool(db *sql.DB, cfg *config.DatabaseConfig) {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
}

func (c *Client) pingOnce(ctx context.Context) func() error {
	return func() error { return c.Ping(ctx) }
}

// DB returns the pooled handle
func (c *Client) DB() *sql.DB {
	return c.db
}

// Ping checks the server within a short deadline
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return c.db.PingContext(ctx)
}

// Close closes the pool
func (c *Client) Close() error {
	return c.db.Close()
}
