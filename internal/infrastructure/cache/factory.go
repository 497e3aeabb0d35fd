// Package cache holds the idempotency stores that let event handlers skip
// redelivered outbox events.
package cache

import (
	"fmt"

	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/freightdesk/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
)

// NewIdempotencyStore returns the store matching the lock backend, so a
// deployment that shares locks through Redis also shares delivery marks
func NewIdempotencyStore(cfg config.LockConfig, client *redis.Client) (shared.IdempotencyStore, error) {
	switch cfg.Backend {
	case config.LockBackendMemory:
		return NewInMemoryIdempotencyStore(0), nil
	case config.LockBackendRedis:
		if client == nil {
			return nil, fmt.Errorf("idempotency backend %q requires a redis client", cfg.Backend)
		}
		return NewRedisIdempotencyStore(client, DefaultKeyPrefix), nil
	}
	return nil, fmt.Errorf("unknown idempotency backend %q", cfg.Backend)
}
