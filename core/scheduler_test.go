package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testConfig(corePoolSize, maxPoolSize int) *SchedulerConfig {
	cfg := DefaultSchedulerConfig(corePoolSize, maxPoolSize)
	cfg.MaxSpins = 4
	cfg.MaxYields = 4
	cfg.WorkStealingTimeResolution = time.Microsecond
	cfg.MaxParkTime = 20 * time.Millisecond
	return cfg
}

func TestScheduler_NewScheduler_RejectsBadConfig(t *testing.T) {
	if _, err := NewScheduler(&SchedulerConfig{CorePoolSize: 0}); err != ErrInvalidCorePoolSize {
		t.Fatalf("NewScheduler() error = %v, want ErrInvalidCorePoolSize", err)
	}
}

func TestScheduler_DispatchFromOutsideRunsOnAWorker(t *testing.T) {
	s, err := NewScheduler(testConfig(2, 4))
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	defer s.Close()

	done := make(chan struct{})
	result := s.Dispatch(context.Background(), func(ctx context.Context) {
		close(done)
	}, NonBlocking, false)

	if result != NotAdded {
		t.Fatalf("Dispatch() = %v, want NotAdded", result)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatched task never ran")
	}
}

func TestScheduler_DispatchFromWorkerUsesLocalQueue(t *testing.T) {
	s, err := NewScheduler(testConfig(2, 4))
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	defer s.Close()

	outer := make(chan struct{})
	inner := make(chan struct{})

	s.Dispatch(context.Background(), func(ctx context.Context) {
		if WorkerFromContext(ctx) == nil {
			t.Error("task ctx should carry the executing Worker")
		}
		res := s.Dispatch(ctx, func(ctx context.Context) {
			close(inner)
		}, NonBlocking, false)
		if res == NotAdded {
			t.Error("nested Dispatch from within a task should not be rejected")
		}
		close(outer)
	}, NonBlocking, false)

	select {
	case <-outer:
	case <-time.After(2 * time.Second):
		t.Fatal("outer task never ran")
	}
	select {
	case <-inner:
	case <-time.After(2 * time.Second):
		t.Fatal("nested task never ran")
	}
}

func TestScheduler_DispatchAfterCloseIsRejected(t *testing.T) {
	s, err := NewScheduler(testConfig(1, 2))
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	s.Close()

	if got := s.Dispatch(context.Background(), func(ctx context.Context) {}, NonBlocking, false); got != NotAdded {
		t.Fatalf("Dispatch() after Close = %v, want NotAdded", got)
	}
}

func TestScheduler_BlockingTaskGrowsPoolBeyondCore(t *testing.T) {
	s, err := NewScheduler(testConfig(1, 8))
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	defer s.Close()

	release := make(chan struct{})
	blockedStarted := make(chan struct{})
	s.Dispatch(context.Background(), func(ctx context.Context) {
		close(blockedStarted)
		<-release
	}, ProbablyBlocking, false)

	select {
	case <-blockedStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("blocking task never started")
	}

	// With the sole core worker parked on the blocking task, a second
	// NonBlocking task must still get to run on a newly grown worker.
	nonBlockingRan := make(chan struct{})
	s.Dispatch(context.Background(), func(ctx context.Context) {
		close(nonBlockingRan)
	}, NonBlocking, false)

	select {
	case <-nonBlockingRan:
	case <-time.After(2 * time.Second):
		t.Fatal("non-blocking task starved behind the blocking task")
	}

	close(release)
}

func TestScheduler_PanicInTaskDoesNotKillWorker(t *testing.T) {
	s, err := NewScheduler(testConfig(1, 2))
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	s.config.ExceptionSink = NoOpExceptionSink{}
	defer s.Close()

	s.Dispatch(context.Background(), func(ctx context.Context) {
		panic("boom")
	}, NonBlocking, false)

	recovered := make(chan struct{})
	// Give the panic time to be caught, then confirm the worker kept running.
	time.Sleep(20 * time.Millisecond)
	s.Dispatch(context.Background(), func(ctx context.Context) {
		close(recovered)
	}, NonBlocking, false)

	select {
	case <-recovered:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive a panicking task")
	}
}

func TestScheduler_CloseDrainsWorkersAndIsIdempotent(t *testing.T) {
	s, err := NewScheduler(testConfig(4, 8))
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}

	var wg sync.WaitGroup
	var ran atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		s.Dispatch(context.Background(), func(ctx context.Context) {
			ran.Add(1)
			wg.Done()
		}, NonBlocking, false)
	}
	wg.Wait()

	s.Close()
	s.Close() // idempotent

	if got := ran.Load(); got != 20 {
		t.Fatalf("ran %d tasks before Close, want 20", got)
	}

	snap := s.Snapshot()
	for _, w := range snap.Workers {
		if w.State != WorkerFinished {
			t.Errorf("worker %d state = %v after Close, want FINISHED", w.Index, w.State)
		}
	}
}

func TestScheduler_StealRedistributesBacklog(t *testing.T) {
	s, err := NewScheduler(testConfig(4, 4))
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	defer s.Close()

	var wg sync.WaitGroup
	var uniqueWorkers sync.Map
	const n = 200
	wg.Add(n)
	for i := 0; i < n; i++ {
		s.Dispatch(context.Background(), func(ctx context.Context) {
			defer wg.Done()
			if w := WorkerFromContext(ctx); w != nil {
				uniqueWorkers.Store(w.index, true)
			}
			time.Sleep(time.Millisecond)
		}, NonBlocking, false)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("tasks never finished; work stealing may have starved some workers")
	}

	count := 0
	uniqueWorkers.Range(func(_, _ any) bool {
		count++
		return true
	})
	if count < 2 {
		t.Errorf("only %d distinct worker(s) ran tasks, want load spread across multiple workers", count)
	}
}

func TestScheduler_StringAndSnapshotAreConsistent(t *testing.T) {
	s, err := NewScheduler(testConfig(2, 4))
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	defer s.Close()

	snap := s.Snapshot()
	if snap.CorePoolSize != 2 {
		t.Errorf("Snapshot().CorePoolSize = %d, want 2", snap.CorePoolSize)
	}

	str := s.String()
	wantPrefix := fmt.Sprintf("[core pool size = %d, CPU workers = %d, blocking workers = %d, parked workers = %d, retired workers = %d, finished workers = %d, running workers queues = [",
		snap.CorePoolSize, snap.CPUWorkers, snap.BlockingWorkers, snap.ParkedWorkers, snap.RetiredWorkers, snap.FinishedWorkers)
	if !strings.HasPrefix(str, wantPrefix) {
		t.Errorf("String() = %q, want prefix %q", str, wantPrefix)
	}
	if wantSuffix := fmt.Sprintf("], global queue size = %d]", snap.GlobalQueueSize); !strings.HasSuffix(str, wantSuffix) {
		t.Errorf("String() = %q, want suffix %q", str, wantSuffix)
	}
}

// TestScheduler_FairDispatchPreservesSubmissionOrder exercises Dispatch's
// fair=true tail-insertion path directly against a worker's local queue,
// bypassing the scheduler's own workers so run order can't reorder things.
func TestScheduler_FairDispatchPreservesSubmissionOrder(t *testing.T) {
	s, err := NewScheduler(testConfig(1, 1))
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	defer s.Close()

	w := s.workerAt(0)
	if w == nil {
		t.Fatal("expected worker 0 to exist")
	}
	// Drain whatever the worker may already have picked up on its own.
	for {
		if _, ok := w.localQueue.Poll(); !ok {
			break
		}
	}

	ctx := contextForWorker(context.Background(), w)
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		s.Dispatch(ctx, func(ctx context.Context) { order = append(order, i) }, NonBlocking, true)
	}

	for i := 0; i < 3; i++ {
		task, ok := w.localQueue.Poll()
		if !ok {
			t.Fatalf("expected a queued task at position %d", i)
		}
		task.Runnable(ctx)
	}

	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Fatalf("fair dispatch order = %v, want [0 1 2]", order)
	}
}

// TestScheduler_DispatchFromBlockingWorkerRequiresHelp exercises the
// BLOCKING-state branch of Dispatch's step 2: a worker already marked
// BLOCKING that dispatches more NonBlocking work gets told to slow down or
// help drain rather than silently queueing more behind it.
func TestScheduler_DispatchFromBlockingWorkerRequiresHelp(t *testing.T) {
	s, err := NewScheduler(testConfig(1, 2))
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	defer s.Close()

	w := s.workerAt(0)
	if w == nil {
		t.Fatal("expected worker 0 to exist")
	}
	w.setState(WorkerBlocking)
	defer w.setState(WorkerRetiring)

	ctx := contextForWorker(context.Background(), w)
	got := s.Dispatch(ctx, func(ctx context.Context) {}, NonBlocking, false)
	if got != AddedRequiresHelp {
		t.Fatalf("Dispatch() from a BLOCKING worker = %v, want AddedRequiresHelp", got)
	}
}
