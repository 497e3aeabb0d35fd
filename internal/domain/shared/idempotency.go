package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers which keys have already been handled. Outbox
// delivery is at-least-once, so bus handlers use it to skip redeliveries.
type IdempotencyStore interface {
	// MarkProcessed records key for ttl. It returns false when key was
	// already recorded and has not expired.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release forgets key so the next delivery is handled again
	Release(ctx context.Context, key string) error

	// Close releases resources held by the store
	Close() error
}
