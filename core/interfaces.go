package core

import "time"

// Metrics defines the interface for collecting scheduler observability
// data. Implementations can forward to monitoring systems (Prometheus,
// StatsD, etc.); see observability/prometheus for a Prometheus adapter.
// Adapted from the teacher's core.Metrics — the shape (nil-receiver-safe,
// non-blocking, called from the hot path) carries over unchanged; the
// vocabulary moves from "runner name/priority" to worker index/task mode,
// matching this scheduler's data model instead of the teacher's.
type Metrics interface {
	// RecordTaskDuration records how long a task took to execute.
	RecordTaskDuration(mode TaskMode, duration time.Duration)

	// RecordTaskPanic records that a task panicked during execution.
	RecordTaskPanic(workerIndex int, panicInfo any)

	// RecordQueueDepth records a worker's local queue depth, or the global
	// queue's depth when workerIndex < 0.
	RecordQueueDepth(workerIndex int, depth int)

	// RecordWorkerCreated records that a new Worker was spawned.
	RecordWorkerCreated(workerIndex int)

	// RecordSteal records a successful (ok=true) or attempted-but-failed
	// (ok=false) work-steal.
	RecordSteal(thiefIndex, victimIndex int, ok bool)

	// RecordCpuPermits records the current available/acquired permit split.
	RecordCpuPermits(available, acquired int)
}

// NilMetrics is a no-op Metrics implementation; the default when none is
// configured.
type NilMetrics struct{}

func (NilMetrics) RecordTaskDuration(mode TaskMode, duration time.Duration) {}
func (NilMetrics) RecordTaskPanic(workerIndex int, panicInfo any)           {}
func (NilMetrics) RecordQueueDepth(workerIndex int, depth int)              {}
func (NilMetrics) RecordWorkerCreated(workerIndex int)                     {}
func (NilMetrics) RecordSteal(thiefIndex, victimIndex int, ok bool)         {}
func (NilMetrics) RecordCpuPermits(available, acquired int)                {}
