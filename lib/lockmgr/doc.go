// Package lockmgr implements named, process-wide locks. A lock is identified
// by a string key; at most one owner holds a given key at any time and every
// other caller of AcquireLock for that key waits until it is released.
//
// Core Functionality:
//   - Blocking acquisition that can be abandoned through the context
//   - Owner IDs: AcquireLock returns a random owner ID and ReleaseLock only
//     succeeds for that ID, so a stray release cannot unlock someone else's
//     critical section
//   - WithLock to run a function as a critical section
//
// Implementation Approach:
//
//	Every key maps to a buffered channel of capacity one that acts as a
//	binary semaphore. Acquiring sends into the channel, releasing receives
//	from it. The key -> lock map is an xsync.MapOf, locks are created on
//	first use and kept for the lifetime of the manager (the set of lock
//	names is small and fixed in practice).
//
// There is no lock timeout: a holder that never releases blocks all later
// acquirers of the same key.
//
// Usage Example:
//
//	locks := lockmgr.NewLockManager()
//
//	err := lockmgr.WithLock(ctx, locks, "clientData", func() error {
//	    // read-modify-write sequence
//	    return nil
//	})
package lockmgr
