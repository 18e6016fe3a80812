package core

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// WorkerState is one of the five states in the worker state machine
// (spec §4.5). The zero value is WorkerRetiring, the state every Worker
// starts in: it will immediately attempt to acquire a CPU permit or find
// work.
type WorkerState int32

const (
	WorkerRetiring WorkerState = iota
	WorkerCPUAcquired
	WorkerBlocking
	WorkerParking
	WorkerFinished
)

func (s WorkerState) String() string {
	switch s {
	case WorkerCPUAcquired:
		return "CPU_ACQUIRED"
	case WorkerBlocking:
		return "BLOCKING"
	case WorkerParking:
		return "PARKING"
	case WorkerFinished:
		return "FINISHED"
	default:
		return "RETIRING"
	}
}

// Worker is an OS-thread stand-in: a goroutine holding a WorkQueue, a state,
// and an RNG, running the find-task/execute/idle loop of spec §4.6. Once
// published into Scheduler.workers[index] a Worker is pinned to that index
// for life.
type Worker struct {
	ID        uuid.UUID
	index     int
	scheduler *Scheduler
	localQueue *WorkQueue
	rng        *xorshiftRNG

	state       atomic.Int32
	currentTask atomic.Value // uuid.UUID of the task between beforeTask and afterTask

	spins               int
	yields              int
	parkTimeNs          int64
	lastExhaustionTimeNs int64

	parkCh      chan struct{}
	retiredNext atomic.Pointer[Worker] // RetiredStack linkage, owned by the stack
}

func newWorker(index int, s *Scheduler, seed uint32) *Worker {
	w := &Worker{
		ID:         uuid.New(),
		index:      index,
		scheduler:  s,
		localQueue: NewWorkQueue(s.config.LocalQueueCapacity),
		rng:        newXorshiftRNG(seed),
		parkCh:     make(chan struct{}, 1),
	}
	w.state.Store(int32(WorkerRetiring))
	return w
}

func (w *Worker) getState() WorkerState {
	return WorkerState(w.state.Load())
}

func (w *Worker) setState(s WorkerState) {
	w.state.Store(int32(s))
}

// unpark wakes a parked Worker. A benign race is acceptable: if the Worker
// already woke on its own (timeout, or a previous unpark), the signal stays
// buffered in parkCh and the Worker's next park returns immediately; a
// further unpark while one signal is already pending is dropped.
func (w *Worker) unpark() {
	select {
	case w.parkCh <- struct{}{}:
	default:
	}
}

func (w *Worker) run() {
	defer w.scheduler.wg.Done()

	for !w.scheduler.isTerminated.Load() {
		wasParking := w.getState() == WorkerParking

		task := w.findTask()
		if task == nil {
			w.idle()
			continue
		}

		w.idleReset(wasParking, task.Mode)
		w.beforeTask(task)
		w.runSafely(task)
		w.afterTask(task)
	}

	w.finish()
}

// findTask implements spec §4.6's findTask: try a CPU permit, prefer the
// global queue when held (so externally submitted work is never starved by
// a busy local queue), fall back to the local queue, and only attempt a
// steal while holding a permit.
func (w *Worker) findTask() *Task {
	heldPermit := w.tryAcquireCpu()

	if heldPermit {
		if t, ok := w.scheduler.globalQueue.Poll(); ok {
			return t
		}
	}

	if t, ok := w.localQueue.Poll(); ok {
		return t
	}

	if heldPermit {
		return w.trySteal()
	}
	return nil
}

// tryAcquireCpu is a no-op success if the worker already holds a permit
// (state is CPU_ACQUIRED); otherwise it attempts the RETIRING -> CPU_ACQUIRED
// transition of spec §4.5.
func (w *Worker) tryAcquireCpu() bool {
	if w.getState() == WorkerCPUAcquired {
		return true
	}
	if w.scheduler.permits.TryAcquire() {
		w.setState(WorkerCPUAcquired)
		w.reportPermits()
		return true
	}
	return false
}

func (w *Worker) reportPermits() {
	w.scheduler.config.Metrics.RecordCpuPermits(w.scheduler.permits.Available(), w.scheduler.permits.Acquired())
}

// trySteal implements the Worker-level steal loop of spec §4.6: give up
// immediately with fewer than two workers created, otherwise probe up to
// StealAttempts random victims.
func (w *Worker) trySteal() *Task {
	created := w.scheduler.createdWorkers.Load()
	if created < 2 {
		return nil
	}

	cfg := w.scheduler.config
	now := cfg.Clock.NanoTime()
	minAge := int64(cfg.WorkStealingTimeResolution)

	for i := 0; i < cfg.StealAttempts; i++ {
		victimIdx := w.rng.nextInt(int(created))
		if victimIdx == w.index {
			continue
		}
		victim := w.scheduler.workerAt(victimIdx)
		if victim == nil {
			continue
		}
		ok := w.localQueue.TrySteal(victim.localQueue, w.scheduler.globalQueue, now, minAge)
		cfg.Metrics.RecordSteal(w.index, victimIdx, ok)
		if ok {
			if t, polled := w.localQueue.Poll(); polled {
				return t
			}
			return nil
		}
	}
	return nil
}

// idleReset is called once a new task is obtained (spec §4.7): a worker
// that was parked indefinitely (blocking-idle) and is handed a
// ProbablyBlocking task moves straight to BLOCKING rather than first
// acquiring and immediately releasing a CPU permit. Routing through
// transitionToBlocking (rather than duplicating its bookkeeping) keeps the
// permit-release/blockingWorkers-increment logic in one place regardless of
// which path triggers the transition.
func (w *Worker) idleReset(wasParking bool, mode TaskMode) {
	if wasParking && mode == ProbablyBlocking && w.getState() != WorkerBlocking {
		w.transitionToBlocking()
		w.parkTimeNs = int64(w.scheduler.config.minParkTime())
	}
	w.spins = 0
	w.yields = 0
}

// beforeTask wakes additional CPU capacity when a NonBlocking task has sat
// in a queue long enough to suggest the pool is under-provisioned, rate
// limited to once per 5x the steal affinity window so a burst of stale
// tasks doesn't thundering-herd requestCpuWorker.
func (w *Worker) beforeTask(t *Task) {
	if t.Mode != NonBlocking {
		return
	}
	cfg := w.scheduler.config
	now := cfg.Clock.NanoTime()
	minAge := int64(cfg.WorkStealingTimeResolution)

	if w.scheduler.permits.Available() <= 0 {
		return
	}
	if t.AgeNs(now) < minAge {
		return
	}
	if now-w.lastExhaustionTimeNs < 5*minAge {
		return
	}
	w.lastExhaustionTimeNs = now
	w.scheduler.requestCpuWorker()
}

// runSafely executes the task's Runnable, catching any panic and forwarding
// it to the configured ExceptionSink (spec §7.1) so the worker survives a
// faulty task.
func (w *Worker) runSafely(t *Task) {
	if t.Mode == ProbablyBlocking && w.getState() != WorkerBlocking {
		w.transitionToBlocking()
	}

	w.currentTask.Store(t.ID)
	defer w.currentTask.Store(uuid.Nil)

	start := time.Now()
	ctx := contextForWorker(context.Background(), w)

	func() {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				w.scheduler.config.ExceptionSink.OnUncaughtException(w.index, r, stack)
				w.scheduler.config.Metrics.RecordTaskPanic(w.index, r)
				w.scheduler.config.Logger.Error("task panicked", F("worker", w.index), F("task", t.ID), F("panic", r))
			}
		}()
		t.Runnable(ctx)
	}()

	w.scheduler.config.Metrics.RecordTaskDuration(t.Mode, time.Since(start))

	if t.Mode == ProbablyBlocking {
		w.transitionFromBlocking()
	}
}

// afterTask asserts the state-machine invariant spec §7.4 calls a fatal
// programmer error: a worker must never fall through task execution still
// marked BLOCKING for a task that has already completed.
func (w *Worker) afterTask(t *Task) {
	if t.Mode == ProbablyBlocking && w.getState() == WorkerBlocking {
		panic("cosched: worker still BLOCKING after ProbablyBlocking task completed")
	}
}

// transitionToBlocking implements CPU_ACQUIRED -> BLOCKING. blockingWorkers
// must be incremented before requestCpuWorker is invoked, otherwise the
// starvation check in requestCpuWorker would not count this worker as
// lost CPU capacity (spec §4.5's critical ordering constraint).
func (w *Worker) transitionToBlocking() {
	if w.getState() == WorkerCPUAcquired {
		w.scheduler.permits.Release()
		w.reportPermits()
	}
	w.setState(WorkerBlocking)
	w.scheduler.blockingWorkers.Add(1)
	w.scheduler.requestCpuWorker()
}

// transitionFromBlocking implements BLOCKING -> RETIRING.
func (w *Worker) transitionFromBlocking() {
	w.scheduler.blockingWorkers.Add(-1)
	w.setState(WorkerRetiring)
}

// idle dispatches to adaptive idle (CPU permit held) or blocking-idle
// (no permit — this worker just finished blocking work and has nothing
// left to do), per spec §4.7.
func (w *Worker) idle() {
	if w.getState() == WorkerCPUAcquired {
		w.adaptiveIdle()
		return
	}
	w.blockingIdle()
}

func (w *Worker) adaptiveIdle() {
	cfg := w.scheduler.config

	if w.spins < cfg.MaxSpins {
		w.spins++
		return
	}
	if w.yields < cfg.MaxYields {
		w.yields++
		runtime.Gosched()
		return
	}

	w.transitionToParking()
	if w.parkTimeNs == 0 {
		w.parkTimeNs = int64(cfg.minParkTime())
	} else {
		next := float64(w.parkTimeNs) * 1.5
		if cap := float64(cfg.MaxParkTime); next > cap {
			next = cap
		}
		w.parkTimeNs = int64(next)
	}
	w.park(time.Duration(w.parkTimeNs))
}

// transitionToParking implements CPU_ACQUIRED -> PARKING.
func (w *Worker) transitionToParking() {
	if w.getState() == WorkerCPUAcquired {
		w.scheduler.permits.Release()
		w.reportPermits()
	}
	w.setState(WorkerParking)
}

func (w *Worker) park(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-w.parkCh:
	case <-timer.C:
	case <-w.scheduler.closeCh:
	}
}

// blockingIdle implements RETIRING -> PARKING: a retiring worker with an
// empty local queue self-enrolls into the RetiredStack and parks with no
// timeout, waiting for an explicit unpark.
func (w *Worker) blockingIdle() {
	w.setState(WorkerParking)
	w.scheduler.retiredStack.Push(w)
	w.parkIndefinite()
}

func (w *Worker) parkIndefinite() {
	select {
	case <-w.parkCh:
	case <-w.scheduler.closeCh:
	}
}

// finish implements the "any state -> FINISHED when isTerminated is
// observed true" transition: any held permit is released before the
// worker goroutine exits.
func (w *Worker) finish() {
	if w.getState() == WorkerCPUAcquired {
		w.scheduler.permits.Release()
		w.reportPermits()
	}
	w.setState(WorkerFinished)
}

// snapshot returns an observability read of this Worker.
func (w *Worker) snapshot() WorkerSnapshot {
	id, _ := w.currentTask.Load().(uuid.UUID)
	return WorkerSnapshot{
		Index:         w.index,
		State:         w.getState(),
		QueueSize:     w.localQueue.Size(),
		CurrentTaskID: id,
	}
}
