package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionLock_AcquireReleaseCycle(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	lock := NewExecutionLock(pool, 15*time.Minute)

	acquired, err := lock.TryAcquire(ctx, "owner-1")
	require.NoError(t, err)
	require.True(t, acquired)

	// Held lock fails fast, including for the holder itself.
	for _, owner := range []string{"owner-2", "owner-1"} {
		acquired, err = lock.TryAcquire(ctx, owner)
		require.NoError(t, err)
		assert.False(t, acquired, "acquire by %s while held", owner)
	}

	require.NoError(t, lock.Release(ctx, "owner-1"))

	acquired, err = lock.TryAcquire(ctx, "owner-2")
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestExecutionLock_ReleaseByNonHolderIsNoOp(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	lock := NewExecutionLock(pool, 15*time.Minute)

	acquired, err := lock.TryAcquire(ctx, "owner-1")
	require.NoError(t, err)
	require.True(t, acquired)

	require.NoError(t, lock.Release(ctx, "owner-2"))

	acquired, err = lock.TryAcquire(ctx, "owner-3")
	require.NoError(t, err)
	assert.False(t, acquired, "non-holder release freed the lock")
}

func TestExecutionLock_LeaseTakeover(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	// Short lease so expiry happens in test time.
	lock := NewExecutionLock(pool, 500*time.Millisecond)

	acquired, err := lock.TryAcquire(ctx, "crashed-owner")
	require.NoError(t, err)
	require.True(t, acquired)

	acquired, err = lock.TryAcquire(ctx, "owner-2")
	require.NoError(t, err)
	assert.False(t, acquired, "takeover before lease expiry")

	time.Sleep(700 * time.Millisecond)

	acquired, err = lock.TryAcquire(ctx, "owner-2")
	require.NoError(t, err)
	assert.True(t, acquired, "expected takeover after lease expiry")

	// The crashed owner's late release matches no row.
	require.NoError(t, lock.Release(ctx, "crashed-owner"))

	acquired, err = lock.TryAcquire(ctx, "owner-3")
	require.NoError(t, err)
	assert.False(t, acquired, "stale release freed the new lease")
}

func TestExecutionLock_EmptyOwnerRejected(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	lock := NewExecutionLock(pool, 15*time.Minute)
	_, err := lock.TryAcquire(context.Background(), "")
	assert.Error(t, err)
}
