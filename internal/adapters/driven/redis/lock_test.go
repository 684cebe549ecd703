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

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Connect(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	defer client.Close()

	_, err = Connect(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestLock_OwnerIDsAreUnique(t *testing.T) {
	_, client := setupTestRedis(t)

	a, b := NewLock(client), NewLock(client)

	assert.NotEmpty(t, a.OwnerID())
	assert.NotEqual(t, a.OwnerID(), b.OwnerID())
}

func TestLock_AcquireWritesOwnerUnderPrefix(t *testing.T) {
	mr, client := setupTestRedis(t)
	lock := NewLock(client)

	ok, err := lock.Acquire(context.Background(), "ingest:doc-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	value, err := mr.Get(DefaultKeyPrefix + "ingest:doc-1")
	require.NoError(t, err)
	assert.Equal(t, lock.OwnerID(), value)
	assert.Equal(t, time.Minute, mr.TTL(DefaultKeyPrefix+"ingest:doc-1"))
}

func TestLock_ExclusiveAcrossInstances(t *testing.T) {
	_, client := setupTestRedis(t)
	a, b := NewLock(client), NewLock(client)
	ctx := context.Background()

	ok, err := a.Acquire(ctx, "ingest:doc-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.Acquire(ctx, "ingest:doc-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second instance must not acquire a held lock")

	ok, err = a.Acquire(ctx, "ingest:doc-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "lock is not reentrant")

	ok, err = b.Acquire(ctx, "ingest:doc-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "other documents are independent")
}

func TestLock_Release(t *testing.T) {
	_, client := setupTestRedis(t)
	a, b := NewLock(client), NewLock(client)
	ctx := context.Background()

	require.NoError(t, a.Release(ctx, "ingest:doc-1"), "releasing an unheld lock is a no-op")

	ok, err := a.Acquire(ctx, "ingest:doc-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// A foreign release leaves the lock in place
	require.NoError(t, b.Release(ctx, "ingest:doc-1"))
	ok, err = b.Acquire(ctx, "ingest:doc-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Release(ctx, "ingest:doc-1"))
	ok, err = b.Acquire(ctx, "ingest:doc-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLock_Expires(t *testing.T) {
	mr, client := setupTestRedis(t)
	a, b := NewLock(client), NewLock(client)
	ctx := context.Background()

	ok, err := a.Acquire(ctx, "ingest:doc-1", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	ok, err = b.Acquire(ctx, "ingest:doc-1", time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "an expired lock can be taken over")
}

func TestLock_Extend(t *testing.T) {
	mr, client := setupTestRedis(t)
	a, b := NewLock(client), NewLock(client)
	ctx := context.Background()

	assert.Error(t, a.Extend(ctx, "ingest:doc-1", time.Minute), "cannot extend an unheld lock")

	ok, err := a.Acquire(ctx, "ingest:doc-1", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, a.Extend(ctx, "ingest:doc-1", time.Minute))
	assert.Equal(t, time.Minute, mr.TTL(DefaultKeyPrefix+"ingest:doc-1"))

	assert.Error(t, b.Extend(ctx, "ingest:doc-1", time.Hour), "cannot extend a foreign lock")
}

func TestLock_CustomPrefix(t *testing.T) {
	mr, client := setupTestRedis(t)
	lock := NewLockWithPrefix(client, "tenant-a:")

	ok, err := lock.Acquire(context.Background(), "ingest:doc-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	assert.True(t, mr.Exists("tenant-a:ingest:doc-1"))
	assert.False(t, mr.Exists(DefaultKeyPrefix+"ingest:doc-1"))
}

func TestLock_Ping(t *testing.T) {
	mr, client := setupTestRedis(t)
	lock := NewLock(client)

	assert.NoError(t, lock.Ping(context.Background()))

	mr.Close()
	assert.Error(t, lock.Ping(context.Background()))
}
