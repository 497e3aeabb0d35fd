package shared

import (
	"context"
	"time"
)

// EntityLocker serializes mutations of a single aggregate across goroutines
// and, for distributed implementations, across processes.
type EntityLocker interface {
	// Acquire blocks until the lock for key is held or ctx is done.
	// The returned release func must be called exactly once.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// LockKey builds the lock key for an aggregate
func LockKey(aggregateType, id string) string {
	return "lock:" + aggregateType + ":" + id
}
