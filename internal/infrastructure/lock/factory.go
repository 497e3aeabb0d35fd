// Package lock provides the per-entity locks that serialize shipment and
// invoice mutations.
package lock

import (
	"fmt"

	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/freightdesk/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
)

// New returns the locker selected by cfg.Backend. The Redis backend needs a
// non-nil client.
func New(cfg config.LockConfig, client *redis.Client) (shared.EntityLocker, error) {
	switch cfg.Backend {
	case config.LockBackendMemory:
		return NewMemoryLocker(cfg.WaitTimeout), nil
	case config.LockBackendRedis:
		if client == nil {
			return nil, fmt.Errorf("lock backend %q requires a redis client", cfg.Backend)
		}
		return NewRedisLocker(client, cfg.WaitTimeout), nil
	}
	return nil, fmt.Errorf("unknown lock backend %q", cfg.Backend)
}
