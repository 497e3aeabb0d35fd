package transaction

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/freightdesk/backend/internal/infrastructure/config"
)

// RetryPolicy bounds how often a write that lost an optimistic-lock race is
// re-run from a fresh load
type RetryPolicy struct {
	Attempts       int
	InitialBackoff time.Duration
	LockTTL        time.Duration
}

// DefaultRetryPolicy returns three attempts starting at 50ms
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, InitialBackoff: 50 * time.Millisecond, LockTTL: 30 * time.Second}
}

// RetryPolicyFrom maps the lock section of the application config
func RetryPolicyFrom(cfg config.LockConfig) RetryPolicy {
	p := DefaultRetryPolicy()
	if cfg.RetryAttempts > 0 {
		p.Attempts = cfg.RetryAttempts
	}
	if cfg.RetryBackoff > 0 {
		p.InitialBackoff = cfg.RetryBackoff
	}
	if cfg.TTL > 0 {
		p.LockTTL = cfg.TTL
	}
	return p
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialBackoff
	exp.MaxElapsedTime = 0
	attempts := max(p.Attempts, 1)
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)
}

// Guard serializes writes to one aggregate: it holds the entity lock for the
// whole operation and re-runs op while it fails with a conflict, up to the
// policy's attempts. Any other error is returned at once.
type Guard struct {
	locker shared.EntityLocker
	policy RetryPolicy
}

// NewGuard creates a Guard
func NewGuard(locker shared.EntityLocker, policy RetryPolicy) *Guard {
	return &Guard{locker: locker, policy: policy}
}

// Run acquires key and runs op under the retry policy. op receives the
// 1-based attempt number.
func (g *Guard) Run(ctx context.Context, key string, op func(ctx context.Context, attempt int) error) error {
	return g.RunAll(ctx, []string{key}, op)
}

// RunAll acquires keys in the given order, runs op under the retry policy
// and releases them in reverse. Callers locking more than one aggregate must
// pass the keys in one fixed order: shipment before invoice.
func (g *Guard) RunAll(ctx context.Context, keys []string, op func(ctx context.Context, attempt int) error) error {
	releases := make([]func(), 0, len(keys))
	defer func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}()
	for _, key := range keys {
		release, err := g.locker.Acquire(ctx, key, g.policy.LockTTL)
		if err != nil {
			return err
		}
		releases = append(releases, release)
	}

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op(ctx, attempt)
		if err != nil && !shared.IsConflict(err) {
			return backoff.Permanent(err)
		}
		return err
	}, g.policy.backOff(ctx))
}
