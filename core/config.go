package core

import "time"

// SchedulerConfig holds the tunables and collaborators for a Scheduler. All
// fields except CorePoolSize are optional; DefaultSchedulerConfig fills in
// the spec's default constants and no-op/default handlers. Adapted from the teacher's
// TaskSchedulerConfig (optional handlers, sensible defaults applied by the
// constructor rather than scattered nil-checks through the hot path).
type SchedulerConfig struct {
	// CorePoolSize is the number of CPU permits, and the floor the
	// scheduler tries to keep staffed with CPU-acquired workers. Must be >= 1.
	CorePoolSize int

	// MaxPoolSize bounds total worker creation. Must be >= CorePoolSize.
	// Defaults to CorePoolSize * 1024 if zero.
	MaxPoolSize int

	// LocalQueueCapacity is the ring buffer size for each Worker's
	// WorkQueue; rounded up to the next power of two. Defaults to 128.
	LocalQueueCapacity int

	// QueueSizeOffloadThreshold is the local-queue watermark at or past
	// which dispatch reports AddedRequiresHelp instead of Added. Defaults to
	// three quarters of LocalQueueCapacity.
	QueueSizeOffloadThreshold int

	// WorkStealingTimeResolution is the minimum age a task must have
	// before it becomes eligible for stealing. Defaults to 100 microseconds.
	WorkStealingTimeResolution time.Duration

	// StealAttempts bounds the number of randomized victim probes per
	// trySteal call and per unparkAny call. Defaults to 4.
	StealAttempts int

	// MaxSpins bounds the busy-spin phase of adaptive idle. Defaults to 1000.
	MaxSpins int

	// MaxYields bounds the yield phase of adaptive idle. Defaults to 500.
	MaxYields int

	// MaxParkTime caps the adaptive park backoff. Defaults to 1 second.
	MaxParkTime time.Duration

	Clock          Clock
	Logger         Logger
	Metrics        Metrics
	ExceptionSink  ExceptionSink
}

// DefaultSchedulerConfig returns a config with the spec's default constants,
// a SystemClock, no-op Logger and Metrics, and the stderr-writing
// DefaultExceptionSink, for the given pool sizes.
func DefaultSchedulerConfig(corePoolSize, maxPoolSize int) *SchedulerConfig {
	return &SchedulerConfig{
		CorePoolSize:               corePoolSize,
		MaxPoolSize:                maxPoolSize,
		LocalQueueCapacity:         128,
		QueueSizeOffloadThreshold:  96,
		WorkStealingTimeResolution: 100 * time.Microsecond,
		StealAttempts:              4,
		MaxSpins:                   1000,
		MaxYields:                  500,
		MaxParkTime:                time.Second,
		Clock:                      NewSystemClock(),
		Logger:                     NewNoOpLogger(),
		Metrics:                    NilMetrics{},
		ExceptionSink:              DefaultExceptionSink{},
	}
}

// normalize fills zero-valued fields with spec defaults and rejects invalid
// pool sizes with ErrInvalidCorePoolSize or ErrInvalidMaxPoolSize, the
// construction-time faults the spec mandates.
func (c *SchedulerConfig) normalize() error {
	if c.CorePoolSize < 1 {
		return ErrInvalidCorePoolSize
	}
	if c.MaxPoolSize == 0 {
		c.MaxPoolSize = c.CorePoolSize * 1024
	}
	if c.MaxPoolSize < c.CorePoolSize {
		return ErrInvalidMaxPoolSize
	}
	if c.LocalQueueCapacity <= 0 {
		c.LocalQueueCapacity = 128
	}
	if c.QueueSizeOffloadThreshold <= 0 {
		c.QueueSizeOffloadThreshold = nextPowerOfTwo(c.LocalQueueCapacity) * 3 / 4
	}
	if c.WorkStealingTimeResolution <= 0 {
		c.WorkStealingTimeResolution = 100 * time.Microsecond
	}
	if c.StealAttempts <= 0 {
		c.StealAttempts = 4
	}
	if c.MaxSpins <= 0 {
		c.MaxSpins = 1000
	}
	if c.MaxYields <= 0 {
		c.MaxYields = 500
	}
	if c.MaxParkTime <= 0 {
		c.MaxParkTime = time.Second
	}
	if c.Clock == nil {
		c.Clock = NewSystemClock()
	}
	if c.Logger == nil {
		c.Logger = NewNoOpLogger()
	}
	if c.Metrics == nil {
		c.Metrics = NilMetrics{}
	}
	if c.ExceptionSink == nil {
		c.ExceptionSink = DefaultExceptionSink{}
	}
	return nil
}

// minParkTime implements clamp(WorkStealingTimeResolution/4, 10ns, MaxParkTime).
func (c *SchedulerConfig) minParkTime() time.Duration {
	v := c.WorkStealingTimeResolution / 4
	if v < 10*time.Nanosecond {
		v = 10 * time.Nanosecond
	}
	if v > c.MaxParkTime {
		v = c.MaxParkTime
	}
	return v
}
