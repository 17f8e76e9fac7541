package indexer

import "sync/atomic"

// SweepLock provides non-blocking lock semantics using atomic operations.
// Eviction sweeps are sampled from the visit path, so an overlapping sweep
// is skipped rather than queued.
type SweepLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire attempts to acquire the lock without blocking.
// Returns true if the lock was successfully acquired, false otherwise.
func (l *SweepLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release releases the lock.
// Must only be called by the goroutine that successfully acquired the lock.
func (l *SweepLock) Release() {
	l.state.Store(0)
}
