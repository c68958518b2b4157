package memory

import (
	"context"
	"sync"
	"time"

	"copper-rewards/internal/storage"
)

// ExecutionLock is an in-process implementation of
// storage.ExecutionLock for single-node deployments. Fail-fast: a held
// lock under an unexpired lease is never waited on.
type ExecutionLock struct {
	mu       sync.Mutex
	locked   bool
	owner    string
	lockedAt time.Time
	lease    time.Duration
	now      func() time.Time
}

// NewExecutionLock creates a lock with the given lease duration.
// A lease of zero means the lock never expires on its own.
func NewExecutionLock(lease time.Duration) *ExecutionLock {
	return &ExecutionLock{
		lease: lease,
		now:   time.Now,
	}
}

// Compile-time interface check.
var _ storage.ExecutionLock = (*ExecutionLock)(nil)

// SetNow overrides the clock, for tests.
func (l *ExecutionLock) SetNow(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// TryAcquire takes the lock if free or if the holder's lease expired.
func (l *ExecutionLock) TryAcquire(_ context.Context, owner string) (bool, error) {
	if owner == "" {
		return false, storage.ErrInvalidInput
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.locked {
		expired := l.lease > 0 && now.Sub(l.lockedAt) > l.lease
		if !expired {
			return false, nil
		}
	}

	l.locked = true
	l.owner = owner
	l.lockedAt = now
	return true, nil
}

// Release frees the lock if owner still holds it.
func (l *ExecutionLock) Release(_ context.Context, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.locked || l.owner != owner {
		return nil
	}
	l.locked = false
	l.owner = ""
	return nil
}
