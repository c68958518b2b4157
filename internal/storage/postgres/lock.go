package postgres

import (
	"context"
	"fmt"
	"time"

	"copper-rewards/internal/storage"
)

// ExecutionLock implements storage.ExecutionLock on a single-row table.
// Both acquire and release are one UPDATE each, so contention between
// concurrent runners resolves inside PostgreSQL with no read-then-write
// race. A holder that crashes is taken over once its lease expires.
type ExecutionLock struct {
	pool  *Pool
	lease time.Duration
}

// NewExecutionLock creates a lock with the given lease duration.
func NewExecutionLock(pool *Pool, lease time.Duration) *ExecutionLock {
	return &ExecutionLock{pool: pool, lease: lease}
}

// Compile-time interface check.
var _ storage.ExecutionLock = (*ExecutionLock)(nil)

// TryAcquire takes the lock for owner if it is free or its lease has
// expired. Returns false immediately when it is held; never waits.
func (l *ExecutionLock) TryAcquire(ctx context.Context, owner string) (bool, error) {
	if owner == "" {
		return false, storage.ErrInvalidInput
	}

	tag, err := l.pool.Exec(ctx, `
		UPDATE execution_lock
		SET locked = TRUE, locked_by = $1, locked_at = NOW()
		WHERE id = 1 AND (NOT locked OR locked_at < NOW() - $2::interval)
	`, owner, l.lease)
	if err != nil {
		return false, fmt.Errorf("acquire execution lock: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Release frees the lock if owner still holds it. A release after lease
// takeover matches no row and is a no-op.
func (l *ExecutionLock) Release(ctx context.Context, owner string) error {
	_, err := l.pool.Exec(ctx, `
		UPDATE execution_lock
		SET locked = FALSE, locked_by = NULL, locked_at = NULL
		WHERE id = 1 AND locked AND locked_by = $1
	`, owner)
	if err != nil {
		return fmt.Errorf("release execution lock: %w", err)
	}
	return nil
}
