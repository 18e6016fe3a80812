package core

import "sync/atomic"

// CpuPermits is a counting semaphore gating admission to CPU-bound
// scheduling: only a permit holder may poll the global queue or steal.
// It is implemented as a CAS loop over an atomic counter rather than a
// blocking primitive (e.g. a buffered channel) because every caller in this
// package only ever tries to acquire — a failed acquisition means "do
// something else", never "wait" — so there is nothing a blocking semaphore
// would buy beyond what a non-blocking CAS already gives for free.
type CpuPermits struct {
	available atomic.Int32
	total     int32
}

// NewCpuPermits creates a semaphore initialized to corePoolSize permits.
func NewCpuPermits(corePoolSize int) *CpuPermits {
	p := &CpuPermits{total: int32(corePoolSize)}
	p.available.Store(int32(corePoolSize))
	return p
}

// TryAcquire attempts to take one permit. Returns false if none are
// available; never blocks.
func (p *CpuPermits) TryAcquire() bool {
	for {
		cur := p.available.Load()
		if cur <= 0 {
			return false
		}
		if p.available.CompareAndSwap(cur, cur-1) {
			return true
		}
	}
}

// Release returns one permit to the pool. Releasing more permits than were
// ever acquired is a programmer error and is not guarded against, matching
// the spec's "internal invariant violations are fatal programmer errors"
// policy — callers must pair Release with a prior successful TryAcquire.
func (p *CpuPermits) Release() {
	p.available.Add(1)
}

// Available returns the current (approximate, racy-by-design) permit count.
func (p *CpuPermits) Available() int {
	return int(p.available.Load())
}

// Acquired returns corePoolSize - Available(), i.e. the number of workers
// currently holding a CPU permit.
func (p *CpuPermits) Acquired() int {
	return int(p.total - p.available.Load())
}
