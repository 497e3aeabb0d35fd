package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/freightdesk/backend/internal/domain/shared"
)

// MemoryLocker is a keyed mutex for single-instance deployments. The ttl
// passed to Acquire is ignored: an in-process holder cannot vanish without
// taking the process with it.
type MemoryLocker struct {
	mu          sync.Mutex
	slots       map[string]*slot
	waitTimeout time.Duration
}

type slot struct {
	held chan struct{}
	refs int
}

// NewMemoryLocker creates a MemoryLocker. A positive waitTimeout bounds how
// long Acquire waits for a held key.
func NewMemoryLocker(waitTimeout time.Duration) *MemoryLocker {
	return &MemoryLocker{
		slots:       make(map[string]*slot),
		waitTimeout: waitTimeout,
	}
}

// Acquire blocks until key is free, the wait timeout passes or ctx is done
func (l *MemoryLocker) Acquire(ctx context.Context, key string, _ time.Duration) (func(), error) {
	if l.waitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.waitTimeout)
		defer cancel()
	}

	s := l.join(key)
	select {
	case s.held <- struct{}{}:
	case <-ctx.Done():
		l.leave(key, s)
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrLockNotObtained, key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.held
			l.leave(key, s)
		})
	}, nil
}

func (l *MemoryLocker) join(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{held: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *MemoryLocker) leave(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// size returns the number of keys currently held or awaited
func (l *MemoryLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

var _ shared.EntityLocker = (*MemoryLocker)(nil)
