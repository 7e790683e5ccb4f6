package distributed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*LockManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLockManager(client, "sportshub:lock:"), mr
}

func TestLock_ExclusiveUntilUnlocked(t *testing.T) {
	lm, mr := newTestManager(t)
	ctx := context.Background()

	first := lm.NewLock("poll:live", time.Minute)
	ok, err := first.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("sportshub:lock:poll:live"))

	second := lm.NewLock("poll:live", time.Minute)
	ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, first.Unlock(ctx))
	assert.False(t, mr.Exists("sportshub:lock:poll:live"))
	assert.ErrorIs(t, first.Unlock(ctx), ErrLockNotHeld)
}

func TestLock_UnlockDoesNotReleaseForeignLock(t *testing.T) {
	lm, mr := newTestManager(t)
	ctx := context.Background()

	lock := lm.NewLock("k", time.Minute)
	ok, err := lock.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, mr.Set("sportshub:lock:k", "someone-else"))
	assert.ErrorIs(t, lock.Unlock(ctx), ErrLockNotHeld)
	assert.True(t, mr.Exists("sportshub:lock:k"))
}

func TestLockManager_RunExclusive(t *testing.T) {
	lm, mr := newTestManager(t)
	ctx := context.Background()

	ran, err := lm.RunExclusive(ctx, "job", time.Minute, func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, mr.Exists("sportshub:lock:job"))

	require.NoError(t, mr.Set("sportshub:lock:job", "other-instance"))
	ran, err = lm.RunExclusive(ctx, "job", time.Minute, func(context.Context) error {
		t.Fatal("must not run while another instance holds the lock")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, ran)
}

func TestLockManager_RunExclusivePropagatesError(t *testing.T) {
	lm, _ := newTestManager(t)
	boom := errors.New("boom")

	ran, err := lm.RunExclusive(context.Background(), "job", time.Minute, func(context.Context) error { return boom })
	assert.True(t, ran)
	assert.ErrorIs(t, err, boom)
}
