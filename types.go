package cosched

import "github.com/corepoolsched/cosched/core"

// Re-export the core package's types so most callers only need to import
// the root cosched package, the way the teacher's taskrunner package
// re-exports from its own core.

// Runnable is the unit of work a Task wraps.
type Runnable = core.Runnable

// TaskMode hints whether a task is expected to block its worker.
type TaskMode = core.TaskMode

// DispatchResult reports what Dispatch did with a submitted task.
type DispatchResult = core.DispatchResult

// WorkerState is one of the states in the worker state machine.
type WorkerState = core.WorkerState

// WorkerSnapshot is a point-in-time observability read of one worker.
type WorkerSnapshot = core.WorkerSnapshot

// SchedulerSnapshot is the structured form behind Scheduler.String().
type SchedulerSnapshot = core.SchedulerSnapshot

// SchedulerConfig holds the tunables and collaborators for a Scheduler.
type SchedulerConfig = core.SchedulerConfig

// Logger, Metrics, ExceptionSink, and Clock are the pluggable ambient
// collaborators a SchedulerConfig accepts.
type Logger = core.Logger
type Metrics = core.Metrics
type ExceptionSink = core.ExceptionSink
type Clock = core.Clock

// Field is a structured logging key-value pair.
type Field = core.Field

const (
	NonBlocking      = core.NonBlocking
	ProbablyBlocking = core.ProbablyBlocking
)

const (
	NotAdded          = core.NotAdded
	Added             = core.Added
	AddedRequiresHelp = core.AddedRequiresHelp
)

const (
	WorkerRetiring     = core.WorkerRetiring
	WorkerCPUAcquired  = core.WorkerCPUAcquired
	WorkerBlocking     = core.WorkerBlocking
	WorkerParking      = core.WorkerParking
	WorkerFinished     = core.WorkerFinished
)

// DefaultSchedulerConfig returns a config with the package defaults, a
// system clock, no-op logging and metrics, and a stderr-writing exception
// sink, for the given pool sizes.
var DefaultSchedulerConfig = core.DefaultSchedulerConfig

// F creates a new logging Field.
var F = core.F

// NewDefaultLogger creates a Logger that writes to the standard log package.
var NewDefaultLogger = core.NewDefaultLogger

// NewNoOpLogger creates a Logger that discards everything.
var NewNoOpLogger = core.NewNoOpLogger

// WorkerFromContext returns the Worker executing the current task, or nil
// if ctx was not produced by a Worker's run loop.
var WorkerFromContext = core.WorkerFromContext

// Sentinel config errors.
var (
	ErrInvalidCorePoolSize = core.ErrInvalidCorePoolSize
	ErrInvalidMaxPoolSize  = core.ErrInvalidMaxPoolSize
)
