package lockmgr

import (
	"bytes"
	"context"
	"fmt"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"sync"
)

var log = logger.GetLogger("lockmgr")

// namedLock is a binary semaphore plus the ID of its current owner
type namedLock struct {
	sem   chan struct{}
	mu    sync.Mutex
	owner []byte
}

type lockMgrImpl struct {
	locks *xsync.MapOf[string, *namedLock]
}

// NewLockManager creates an in-process lock manager.
// Locks are created lazily on first use and are never removed.
func NewLockManager() ILockManager {
	return &lockMgrImpl{
		locks: xsync.NewMapOf[string, *namedLock](),
	}
}

func (lm *lockMgrImpl) lockFor(key string) *namedLock {
	l, _ := lm.locks.LoadOrCompute(key, func() *namedLock {
		return &namedLock{sem: make(chan struct{}, 1)}
	})
	return l
}

func (lm *lockMgrImpl) AcquireLock(ctx context.Context, key string) ([]byte, error) {
	ownerID, err := generateOwnerID()
	if err != nil {
		return nil, err
	}

	l := lm.lockFor(key)

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire lock %q: %w", key, ctx.Err())
	}

	l.mu.Lock()
	l.owner = ownerID
	l.mu.Unlock()

	log.Debugf("acquired lock %q", key)
	return ownerID, nil
}

func (lm *lockMgrImpl) ReleaseLock(key string, ownerID []byte) (bool, error) {
	l, ok := lm.locks.Load(key)
	if !ok {
		return true, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Check if the lock is owned by the caller
	if l.owner == nil || !bytes.Equal(l.owner, ownerID) {
		return false, nil
	}

	l.owner = nil
	<-l.sem

	log.Debugf("released lock %q", key)
	return true, nil
}

// WithLock runs fn while holding the lock for key.
// The lock is released when fn returns, also if fn panics.
func WithLock(ctx context.Context, lm ILockManager, key string, fn func() error) error {
	ownerID, err := lm.AcquireLock(ctx, key)
	if err != nil {
		return err
	}
	defer func() {
		if released, err := lm.ReleaseLock(key, ownerID); err != nil || !released {
			log.Errorf("failed to release lock %q (released=%v): %v", key, released, err)
		}
	}()

	return fn()
}
