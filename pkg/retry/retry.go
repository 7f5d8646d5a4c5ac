// Package retry runs an operation again with exponential backoff until it
// succeeds, the attempts run out or the context ends.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Config describes one backoff policy
type Config struct {
	// Name prefixes returned errors and retry logs
	Name string

	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Deadline bounds all attempts together; zero means only ctx bounds them
	Deadline time.Duration

	// RetryIf reports whether err is worth another attempt. Nil retries everything.
	RetryIf func(error) bool
	// OnRetry is called before each wait
	OnRetry func(attempt int, err error, wait time.Duration)
}

// Startup is the policy for dialing a backing service at boot. Each failed
// attempt is logged as a warning under name.
func Startup(name string) Config {
	return Config{
		Name:         name,
		MaxAttempts:  10,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2,
		Deadline:     time.Minute,
		OnRetry: func(attempt int, err error, wait time.Duration) {
			log.Warn().Err(err).Str("service", name).Int("attempt", attempt).Dur("retry_in", wait).Msg("Service not ready")
		},
	}
}

// ConflictConfig is a short policy for optimistic write collisions.
// maxAttempts <= 0 means 5.
func ConflictConfig(maxAttempts int, retryIf func(error) bool) Config {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return Config{
		MaxAttempts:  maxAttempts,
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Multiplier:   2,
		RetryIf:      retryIf,
	}
}

// next returns the wait that follows wait
func (c Config) next(wait time.Duration) time.Duration {
	if c.Multiplier > 1 {
		wait = time.Duration(float64(wait) * c.Multiplier)
	}
	if c.MaxDelay > 0 && wait > c.MaxDelay {
		wait = c.MaxDelay
	}
	return wait
}

func (c Config) wrap(format string, args ...any) error {
	if c.Name != "" {
		format = c.Name + ": " + format
	}
	return fmt.Errorf(format, args...)
}

// Do calls fn until it returns nil. An error rejected by RetryIf is returned
// unwrapped; exhausting the attempts wraps the last error.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	if cfg.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Deadline)
		defer cancel()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	wait := cfg.InitialDelay
	var err error
	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err == nil {
				return cfg.wrap("retry aborted: %w", ctxErr)
			}
			return cfg.wrap("retry aborted after %d attempts: %w (last error: %v)", attempt-1, ctxErr, err)
		}

		if err = fn(); err == nil {
			return nil
		}
		if cfg.RetryIf != nil && !cfg.RetryIf(err) {
			return err
		}
		if attempt >= cfg.MaxAttempts {
			return cfg.wrap("gave up after %d attempts: %w", attempt, err)
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, wait)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
		wait = cfg.next(wait)
	}
}
