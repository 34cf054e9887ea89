package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLock_MutualExclusion(t *testing.T) {
	l := NewLocalLock()
	ctx := context.Background()

	lock1, err := l.Acquire(ctx, "entity:e1", 0)
	require.NoError(t, err)

	acquiredSecond := make(chan struct{})
	go func() {
		lock2, err := l.Acquire(ctx, "entity:e1", 0)
		require.NoError(t, err)
		close(acquiredSecond)
		_ = lock2.Release(ctx)
	}()

	select {
	case <-acquiredSecond:
		t.Fatal("second acquire should not have succeeded before release")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, lock1.Release(ctx))

	select {
	case <-acquiredSecond:
	case <-time.After(time.Second):
		t.Fatal("second acquire never completed after release")
	}
}

func TestLocalLock_AcquireTimesOut(t *testing.T) {
	l := NewLocalLock()
	ctx := context.Background()

	lock1, err := l.Acquire(ctx, "entity:e1", 0)
	require.NoError(t, err)
	defer lock1.Release(ctx)

	timeoutCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()

	_, err = l.Acquire(timeoutCtx, "entity:e1", 0)
	assert.Error(t, err)
}

func TestLocalLock_ReleaseIsIdempotent(t *testing.T) {
	l := NewLocalLock()
	ctx := context.Background()

	lock, err := l.Acquire(ctx, "entity:e2", 0)
	require.NoError(t, err)
	require.NoError(t, lock.Release(ctx))
	require.NoError(t, lock.Release(ctx))
}
