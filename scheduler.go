package cosched

import (
	"context"

	"github.com/corepoolsched/cosched/core"
)

// Scheduler is the public facade over the scheduling engine in package
// core. Keeping the facade thin — construction, Dispatch, Close,
// diagnostics — mirrors the teacher's taskrunner package sitting over its
// own core: the engine does the work, the root package is what callers
// import.
type Scheduler struct {
	engine *core.Scheduler
}

// NewScheduler constructs a Scheduler. A nil config uses
// DefaultSchedulerConfig(1, 1024).
func NewScheduler(config *SchedulerConfig) (*Scheduler, error) {
	engine, err := core.NewScheduler(config)
	if err != nil {
		return nil, err
	}
	return &Scheduler{engine: engine}, nil
}

// Dispatch submits a task for execution. See the package doc for how the
// caller's context determines whether the task lands in a worker's local
// queue or the shared global queue. fair forces a strict-FIFO tail
// insertion into the local queue instead of the default semi-FIFO
// head-slot insertion; pass false unless the caller specifically needs
// submission-order fairness over cache-friendly, low-latency dispatch.
func (s *Scheduler) Dispatch(ctx context.Context, r Runnable, mode TaskMode, fair bool) DispatchResult {
	return s.engine.Dispatch(ctx, r, mode, fair)
}

// Close terminates the scheduler: every worker is unparked, finishes its
// current task if any, and exits. Close blocks until every worker has
// exited. Calling Close more than once is safe; only the first call has
// an effect.
func (s *Scheduler) Close() {
	s.engine.Close()
}

// Snapshot returns a structured read of scheduler state.
func (s *Scheduler) Snapshot() SchedulerSnapshot {
	return s.engine.Snapshot()
}

// String renders a one-line diagnostic summary of scheduler state.
func (s *Scheduler) String() string {
	return s.engine.String()
}
