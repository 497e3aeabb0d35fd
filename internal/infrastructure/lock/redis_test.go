package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/freightdesk/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisLocker_AcquireAndRelease(t *testing.T) {
	mr, client := newTestRedis(t)
	locker := NewRedisLocker(client, 50*time.Millisecond)
	ctx := context.Background()
	key := shared.LockKey("Invoice", "INV-001")

	release, err := locker.Acquire(ctx, key, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists(key))

	_, err = locker.Acquire(ctx, key, 5*time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrLockNotObtained)

	release()
	assert.False(t, mr.Exists(key))

	again, err := locker.Acquire(ctx, key, 5*time.Second)
	require.NoError(t, err)
	again()
}

func TestRedisLocker_LeaseExpires(t *testing.T) {
	mr, client := newTestRedis(t)
	locker := NewRedisLocker(client, 50*time.Millisecond)
	ctx := context.Background()

	_, err := locker.Acquire(ctx, "lock:Shipment:X", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	release, err := locker.Acquire(ctx, "lock:Shipment:X", time.Second)
	require.NoError(t, err)
	release()
}

func TestNew(t *testing.T) {
	_, client := newTestRedis(t)

	l, err := New(config.LockConfig{Backend: config.LockBackendMemory}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryLocker{}, l)

	l, err = New(config.LockConfig{Backend: config.LockBackendRedis}, client)
	require.NoError(t, err)
	assert.IsType(t, &RedisLocker{}, l)

	_, err = New(config.LockConfig{Backend: config.LockBackendRedis}, nil)
	assert.Error(t, err)

	_, err = New(config.LockConfig{Backend: "etcd"}, nil)
	assert.Error(t, err)
}
