package providers

import (
	"context"
	"time"
)

// MediaStore persists photo payloads and hands out time-limited URLs for them.
// Tokens are opaque to callers.
type MediaStore interface {
	Store(ctx context.Context, data []byte, contentType string) (string, error)
	URLFor(ctx context.Context, token string, ttl time.Duration) (string, error)
}
