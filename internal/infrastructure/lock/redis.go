package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/freightdesk/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// RedisLocker serializes entity mutations across server instances with
// Redis-backed leases.
type RedisLocker struct {
	client      *redislock.Client
	waitTimeout time.Duration
	minBackoff  time.Duration
	maxBackoff  time.Duration
}

// NewRedisLocker creates a RedisLocker on top of any go-redis client
func NewRedisLocker(client redislock.RedisClient, waitTimeout time.Duration) *RedisLocker {
	return &RedisLocker{
		client:      redislock.New(client),
		waitTimeout: waitTimeout,
		minBackoff:  10 * time.Millisecond,
		maxBackoff:  200 * time.Millisecond,
	}
}

// Acquire obtains a lease on key for ttl, polling with exponential backoff
// until the wait timeout or ctx ends. The lease expires by itself if the
// holder dies before calling release.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	waitCtx := ctx
	if l.waitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.waitTimeout)
		defer cancel()
	}

	lease, err := l.client.Obtain(waitCtx, key, ttl, &redislock.Options{
		RetryStrategy: redislock.ExponentialBackoff(l.minBackoff, l.maxBackoff),
	})
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %s", shared.ErrLockNotObtained, key)
		}
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}

	return func() {
		// The request context may already be cancelled; the lease must still go.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := lease.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			logger.L(ctx).Warn("failed to release entity lock",
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}, nil
}

var _ shared.EntityLocker = (*RedisLocker)(nil)
