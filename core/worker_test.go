package core

import "testing"

func TestWorkerState_String(t *testing.T) {
	cases := map[WorkerState]string{
		WorkerRetiring:    "RETIRING",
		WorkerCPUAcquired: "CPU_ACQUIRED",
		WorkerBlocking:    "BLOCKING",
		WorkerParking:     "PARKING",
		WorkerFinished:    "FINISHED",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", state, got, want)
		}
	}
}

func TestWorker_TryAcquireCpu_IdempotentWhileHeld(t *testing.T) {
	s, err := NewScheduler(testConfig(1, 1))
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	defer s.Close()

	w := &Worker{index: 99, scheduler: s}
	w.setState(WorkerRetiring)

	if !w.tryAcquireCpu() {
		t.Fatal("first tryAcquireCpu should have grabbed a permit (core pool size 1, one real worker already started but permits are a counting semaphore)")
	}
	// Calling again while already CPU_ACQUIRED must not acquire a second
	// permit (idempotent no-op success).
	before := s.permits.Available()
	if !w.tryAcquireCpu() {
		t.Fatal("second tryAcquireCpu while already holding should still report success")
	}
	if after := s.permits.Available(); after != before {
		t.Fatalf("Available() changed from %d to %d on an idempotent tryAcquireCpu call", before, after)
	}
}

func TestWorker_AdaptiveIdle_ParkTimeGrows(t *testing.T) {
	s, err := NewScheduler(testConfig(1, 1))
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	defer s.Close()

	w := newWorker(42, s, 7)
	w.setState(WorkerCPUAcquired)

	// Exhaust spin and yield phases so the next idle() call parks.
	w.spins = s.config.MaxSpins
	w.yields = s.config.MaxYields

	first := w.parkTimeNs
	w.adaptiveIdle()
	if w.parkTimeNs <= first {
		t.Fatalf("parkTimeNs did not grow on first park: %d -> %d", first, w.parkTimeNs)
	}

	w.setState(WorkerCPUAcquired)
	second := w.parkTimeNs
	w.adaptiveIdle()
	if w.parkTimeNs <= second {
		t.Fatalf("parkTimeNs did not grow on second park: %d -> %d", second, w.parkTimeNs)
	}
	if int64(s.config.MaxParkTime) < w.parkTimeNs {
		t.Fatalf("parkTimeNs %d exceeded MaxParkTime %v", w.parkTimeNs, s.config.MaxParkTime)
	}
}

func TestWorker_Idle_DispatchesByPermitState(t *testing.T) {
	s, err := NewScheduler(testConfig(1, 1))
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	defer s.Close()

	w := newWorker(7, s, 3)

	w.setState(WorkerCPUAcquired)
	w.spins = s.config.MaxSpins
	w.yields = s.config.MaxYields
	idleDone := make(chan struct{})
	go func() {
		w.idle()
		close(idleDone)
	}()
	w.unpark()
	<-idleDone

	w.setState(WorkerRetiring)
	done := make(chan struct{})
	go func() {
		w.idle()
		close(done)
	}()
	// Without a permit, idle runs blockingIdle, which enrolls w into the
	// RetiredStack; pop it back out and
	// unpark to let the test finish instead of waiting for a timeout.
	popped := s.retiredStack.Pop()
	if popped == nil {
		// Enrollment may not have happened yet; the unpark below is
		// buffered if it arrives before the park, which then returns at once.
	}
	w.unpark()
	<-done
}
