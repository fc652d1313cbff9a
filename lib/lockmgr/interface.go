package lockmgr

import "context"

// ILockManager defines the interface for a named lock provider.
type ILockManager interface {
	// AcquireLock blocks until the lock for the given key is held by the caller or ctx is done.
	// Return the owner ID needed to release the lock, or the context error.
	AcquireLock(ctx context.Context, key string) (ownerID []byte, err error)

	// ReleaseLock releases the lock for the given key.
	// Return a boolean indicating whether the lock was released, and an error if any.
	// The method will also return true if the lock did not exist.
	ReleaseLock(key string, ownerID []byte) (ok bool, err error)
}
