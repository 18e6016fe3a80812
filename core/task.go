package core

import (
	"context"

	"github.com/google/uuid"
)

// TaskMode is the scheduling hint a Task carries: whether it is expected to
// block the goroutine that runs it. NonBlocking tasks count toward CPU
// permits; ProbablyBlocking tasks do not.
type TaskMode int

const (
	// NonBlocking tasks are short, CPU-bound units. They are the default.
	NonBlocking TaskMode = iota
	// ProbablyBlocking tasks may block (IO, locks, cgo) and are run off a
	// released CPU permit so the pool can grow to absorb them.
	ProbablyBlocking
)

func (m TaskMode) String() string {
	if m == ProbablyBlocking {
		return "ProbablyBlocking"
	}
	return "NonBlocking"
}

// Runnable is the unit of work a Task wraps. It receives the context the
// worker loop built for the execution, which carries the current Worker
// (see WorkerFromContext) so nested Dispatch calls can detect they are
// running on a pool goroutine.
type Runnable func(ctx context.Context)

// Task is a submitted unit of work plus its submission timestamp and mode.
// submissionTimeNs is set once, at dispatch, and is immutable thereafter.
type Task struct {
	ID               uuid.UUID
	Runnable         Runnable
	SubmissionTimeNs int64
	Mode             TaskMode
}

// AgeNs returns how long ago (in nanoseconds, per the scheduler's Clock) the
// task was submitted. Used for work-stealing's temporal affinity rule.
func (t *Task) AgeNs(nowNs int64) int64 {
	return nowNs - t.SubmissionTimeNs
}

// workerCtxKey is the context key a running Task's ctx carries its owning
// Worker under. Mirrors the teacher's taskRunnerKey pattern for discovering
// "am I running inside a pool goroutine" from arbitrary call depth.
type workerCtxKey struct{}

var workerKey workerCtxKey

// WorkerFromContext returns the Worker that is executing the current task,
// or nil if ctx was not produced by a Worker's run loop (e.g. dispatch from
// an external goroutine).
func WorkerFromContext(ctx context.Context) *Worker {
	if ctx == nil {
		return nil
	}
	if v := ctx.Value(workerKey); v != nil {
		w, _ := v.(*Worker)
		return w
	}
	return nil
}

func contextForWorker(parent context.Context, w *Worker) context.Context {
	return context.WithValue(parent, workerKey, w)
}
