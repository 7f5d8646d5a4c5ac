package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errCollision = errors.New("collision")

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:   attempts,
		InitialDelay:  time.Millisecond,
		MaxDelay:      2 * time.Millisecond,
		Multiplier:    2,
	}
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(5), func() error {
		calls++
		if calls < 3 {
			return errCollision
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsAtMaxAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(4), func() error {
		calls++
		return errCollision
	})

	assert.ErrorIs(t, err, errCollision)
	assert.Equal(t, 4, calls)
}

func TestDo_RetryIfShortCircuits(t *testing.T) {
	permanent := errors.New("permanent")
	cfg := fastConfig(5)
	cfg.RetryIf = func(err error) bool { return errors.Is(err, errCollision) }

	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		return permanent
	})

	assert.Same(t, permanent, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, fastConfig(3), func() error { return nil })

	assert.ErrorIs(t, err, context.Canceled)
}

func TestConflictConfig_DefaultsAttempts(t *testing.T) {
	cfg := ConflictConfig(0, nil)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Zero(t, cfg.Deadline)
}

func TestDo_OnRetryAndName(t *testing.T) {
	cfg := fastConfig(3)
	cfg.Name = "PostgreSQL"
	var waits []time.Duration
	cfg.OnRetry = func(attempt int, err error, wait time.Duration) {
		waits = append(waits, wait)
	}

	err := Do(context.Background(), cfg, func() error { return errCollision })

	assert.ErrorIs(t, err, errCollision)
	assert.Contains(t, err.Error(), "PostgreSQL: gave up after 3 attempts")
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, waits)
}

func TestNext_CapsAtMaxDelay(t *testing.T) {
	cfg := Config{Multiplier: 3, MaxDelay: 50 * time.Millisecond}
	assert.Equal(t, 30*time.Millisecond, cfg.next(10*time.Millisecond))
	assert.Equal(t, 50*time.Millisecond, cfg.next(30*time.Millisecond))
}

func TestStartup_Bounded(t *testing.T) {
	cfg := Startup("Typesense")
	assert.Equal(t, "Typesense", cfg.Name)
	assert.Equal(t, time.Minute, cfg.Deadline)
	assert.NotNil(t, cfg.OnRetry)
}
