package core

import "github.com/google/uuid"

// WorkerSnapshot is a point-in-time observability read of one Worker.
// Adapted from the teacher's PoolStats/RunnerStats: a small plain struct a
// diagnostics caller (String(), the Prometheus exporter, tests) can read
// without holding any scheduler lock. CurrentTaskID is the zero uuid.UUID
// when the worker is not between beforeTask and afterTask.
type WorkerSnapshot struct {
	Index         int
	State         WorkerState
	QueueSize     int
	CurrentTaskID uuid.UUID
}

// SchedulerSnapshot is the structured form behind Scheduler.String() — the
// supplement SPEC_FULL.md calls for so callers can assert on fields instead
// of parsing the diagnostic string.
type SchedulerSnapshot struct {
	CorePoolSize    int
	CreatedWorkers  int
	CPUWorkers      int
	BlockingWorkers int
	ParkedWorkers   int
	RetiredWorkers  int
	FinishedWorkers int
	GlobalQueueSize int
	Workers         []WorkerSnapshot
}
