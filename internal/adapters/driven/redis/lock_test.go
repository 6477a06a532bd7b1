package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestNewLock_DefaultPrefix(t *testing.T) {
	client, mr := setupTestRedis(t)
	lock := NewLock(client, "")

	ok, err := lock.Acquire(context.Background(), "sweep:drive", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	val, err := mr.Get("infovault:lock:sweep:drive")
	require.NoError(t, err)
	assert.Equal(t, lock.OwnerID(), val)
	assert.Equal(t, time.Minute, mr.TTL("infovault:lock:sweep:drive"))
}

func TestLock_OwnerIDsAreUnique(t *testing.T) {
	client, _ := setupTestRedis(t)
	assert.NotEqual(t, NewLock(client, "").OwnerID(), NewLock(client, "").OwnerID())
}

func TestLock_MutualExclusion(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()
	a := NewLock(client, "test:")
	b := NewLock(client, "test:")

	ok, err := a.Acquire(ctx, "job", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx, "job", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be refused")

	ok, err = a.Acquire(ctx, "job", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "lock is not reentrant")

	ok, err = b.Acquire(ctx, "other", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "different names are independent")
}

func TestLock_Release(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()
	a := NewLock(client, "")
	b := NewLock(client, "")

	require.NoError(t, a.Release(ctx, "job"), "releasing an unheld lock is a no-op")

	ok, _ := a.Acquire(ctx, "job", 10*time.Second)
	require.True(t, ok)

	require.NoError(t, b.Release(ctx, "job"))
	ok, _ = b.Acquire(ctx, "job", 10*time.Second)
	assert.False(t, ok, "foreign release must not drop the lock")

	require.NoError(t, a.Release(ctx, "job"))
	ok, _ = b.Acquire(ctx, "job", 10*time.Second)
	assert.True(t, ok)
}

func TestLock_Extend(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()
	a := NewLock(client, "")
	b := NewLock(client, "")

	assert.Error(t, a.Extend(ctx, "job", time.Minute), "cannot extend an unheld lock")

	ok, _ := a.Acquire(ctx, "job", time.Second)
	require.True(t, ok)

	require.NoError(t, a.Extend(ctx, "job", time.Minute))
	assert.Equal(t, time.Minute, mr.TTL(DefaultLockPrefix+"job"))

	assert.Error(t, b.Extend(ctx, "job", time.Hour))
}

func TestLock_ExpiresAfterTTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()
	a := NewLock(client, "")
	b := NewLock(client, "")

	ok, _ := a.Acquire(ctx, "job", time.Second)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	ok, err := b.Acquire(ctx, "job", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Error(t, a.Extend(ctx, "job", time.Second))
}

func TestLock_Ping(t *testing.T) {
	client, mr := setupTestRedis(t)
	lock := NewLock(client, "")

	require.NoError(t, lock.Ping(context.Background()))

	mr.Close()
	assert.Error(t, lock.Ping(context.Background()))
}
