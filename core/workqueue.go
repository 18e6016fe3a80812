package core

import "sync/atomic"

// WorkQueue is a bounded, single-producer/multi-consumer local queue owned
// by one Worker. It combines a single-slot "head" fast path (the most
// recently pushed task, which runs next) with a power-of-two ring buffer
// (the "tail") that absorbs everything the head slot displaces. Only the
// owner pushes; any Worker may attempt to steal from the ring via CAS on
// the head index. The ring discipline (CAS on head/tail, slot store/clear)
// is adapted from the Chase-Lev deque in the parallel compressor's
// core/wsdeque.go, simplified to a single-ended ring since only the owner
// ever writes the tail here — no owner/thief race on pushes to resolve.
type WorkQueue struct {
	// lastScheduledTask is the semi-FIFO head slot: add() places the new
	// task here and displaces whatever was there into the ring, so
	// producer->consumer chains (dispatch from within a running task) get
	// minimal latency without degenerating into unbounded stack growth.
	lastScheduledTask atomic.Pointer[Task]

	buffer []atomic.Pointer[Task]
	mask   uint32

	head atomic.Uint32 // consumer index; CAS-contended with stealers
	tail atomic.Uint32 // producer index; owner-exclusive writer

	size atomic.Int32 // approximate count of ring-resident tasks (excludes head slot)
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	x := uint64(n - 1)
	x |= x >> 1
	x |= x >> 2
	x |= x >> 4
	x |= x >> 8
	x |= x >> 16
	x |= x >> 32
	return int(x + 1)
}

// NewWorkQueue allocates a WorkQueue with ring capacity >= requested.
func NewWorkQueue(capacity int) *WorkQueue {
	size := nextPowerOfTwo(capacity)
	return &WorkQueue{
		buffer: make([]atomic.Pointer[Task], size),
		mask:   uint32(size - 1),
	}
}

func (q *WorkQueue) ringCapacity() int {
	return int(q.mask) + 1
}

// pushRingTail is owner-exclusive: no CAS is needed on tail itself, only on
// head (where a concurrent stealer may be racing to claim the oldest slot).
func (q *WorkQueue) pushRingTail(t *Task) bool {
	tail := q.tail.Load()
	head := q.head.Load()
	if int(tail-head) >= q.ringCapacity() {
		return false
	}
	idx := tail & q.mask
	q.buffer[idx].Store(t)
	q.tail.Store(tail + 1)
	q.size.Add(1)
	return true
}

// Add is the non-fair, semi-FIFO push. Returns true on local success; the
// new task always lands locally (in the head slot), so this only ever
// returns false if callers misuse it with a nil task.
func (q *WorkQueue) Add(task *Task, global *GlobalQueue) bool {
	if task == nil {
		return false
	}
	displaced := q.lastScheduledTask.Swap(task)
	if displaced == nil {
		return true
	}
	if !q.pushRingTail(displaced) {
		global.Push(displaced)
	}
	return true
}

// AddLast is the fair tail push: the new task goes straight to the ring
// tail, bypassing the head slot, preserving strict FIFO order for callers
// that request it. Overflows the new task itself to the global queue and
// returns false when the ring is full.
func (q *WorkQueue) AddLast(task *Task, global *GlobalQueue) bool {
	if task == nil {
		return false
	}
	if q.pushRingTail(task) {
		return true
	}
	global.Push(task)
	return false
}

func (q *WorkQueue) pollRingHead() (*Task, bool) {
	for {
		head := q.head.Load()
		tail := q.tail.Load()
		if head == tail {
			return nil, false
		}
		idx := head & q.mask
		t := q.buffer[idx].Load()
		if t == nil {
			// A stealer claimed this index but hasn't cleared it yet, or
			// lost a race and is retrying; either way the slot is
			// transiently inconsistent. Re-read rather than block.
			continue
		}
		if q.head.CompareAndSwap(head, head+1) {
			q.buffer[idx].Store(nil)
			q.size.Add(-1)
			return t, true
		}
	}
}

// Poll is the owner-only consumer: head slot first (semi-FIFO, "runs
// next"), then the ring in FIFO order.
func (q *WorkQueue) Poll() (*Task, bool) {
	if t := q.lastScheduledTask.Swap(nil); t != nil {
		return t, true
	}
	return q.pollRingHead()
}

// TrySteal attempts to take the oldest ring-resident task from victim and
// push it onto q (the stealer's own queue). A task is eligible only if it
// has aged past minAgeNs (temporal affinity, preserving producer-consumer
// locality). Contended steals — another stealer, or the owner's own Poll,
// won the CAS first — return false rather than retrying or blocking, per
// spec. The head slot is never a steal target: it is invisible outside the
// owner, so a victim whose only task sits in its head slot yields nothing
// to stealers.
func (q *WorkQueue) TrySteal(victim *WorkQueue, global *GlobalQueue, nowNs, minAgeNs int64) bool {
	head := victim.head.Load()
	tail := victim.tail.Load()
	if head == tail {
		return false
	}
	idx := head & victim.mask
	t := victim.buffer[idx].Load()
	if t == nil {
		return false
	}
	if t.AgeNs(nowNs) < minAgeNs {
		return false
	}
	if !victim.head.CompareAndSwap(head, head+1) {
		return false
	}
	victim.buffer[idx].Store(nil)
	victim.size.Add(-1)
	q.Add(t, global)
	return true
}

// BufferSize returns the approximate number of ring-resident tasks,
// excluding the head slot. Non-atomic-consistency reads are permitted by
// the spec for sizing.
func (q *WorkQueue) BufferSize() int {
	return int(q.size.Load())
}

// Size returns the approximate total task count, including the head slot.
func (q *WorkQueue) Size() int {
	n := q.BufferSize()
	if q.lastScheduledTask.Load() != nil {
		n++
	}
	return n
}

// IsEmpty reports whether Size() == 0, approximately.
func (q *WorkQueue) IsEmpty() bool {
	return q.Size() == 0
}
