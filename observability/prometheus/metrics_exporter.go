package prometheus

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/corepoolsched/cosched/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	taskDurationSeconds *prom.HistogramVec
	taskPanicTotal      *prom.CounterVec
	queueDepth          *prom.GaugeVec
	workersCreatedTotal prom.Counter
	stealTotal          *prom.CounterVec
	cpuPermitsAvailable prom.Gauge
	cpuPermitsAcquired  prom.Gauge
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "cosched"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Task execution duration in seconds.",
		Buckets:   buckets,
	}, []string{"mode"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_panic_total",
		Help:      "Total number of task panics, by worker index.",
	}, []string{"worker"})
	queueDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Current queue depth, by worker index (\"global\" for the shared queue).",
	}, []string{"worker"})
	workersCreated := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "workers_created_total",
		Help:      "Total number of workers ever spawned.",
	})
	stealVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "steal_total",
		Help:      "Total number of work-steal attempts, partitioned by outcome.",
	}, []string{"outcome"})
	permitsAvailable := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "cpu_permits_available",
		Help:      "Current number of unheld CPU permits.",
	})
	permitsAcquired := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "cpu_permits_acquired",
		Help:      "Current number of held CPU permits.",
	})

	var err error
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if queueDepthVec, err = registerCollector(reg, queueDepthVec); err != nil {
		return nil, err
	}
	if workersCreated, err = registerCollector(reg, workersCreated); err != nil {
		return nil, err
	}
	if stealVec, err = registerCollector(reg, stealVec); err != nil {
		return nil, err
	}
	if permitsAvailable, err = registerCollector(reg, permitsAvailable); err != nil {
		return nil, err
	}
	if permitsAcquired, err = registerCollector(reg, permitsAcquired); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		taskDurationSeconds: durationVec,
		taskPanicTotal:      panicVec,
		queueDepth:          queueDepthVec,
		workersCreatedTotal: workersCreated,
		stealTotal:          stealVec,
		cpuPermitsAvailable: permitsAvailable,
		cpuPermitsAcquired:  permitsAcquired,
	}, nil
}

func (m *MetricsExporter) RecordTaskDuration(mode core.TaskMode, duration time.Duration) {
	if m == nil {
		return
	}
	m.taskDurationSeconds.WithLabelValues(mode.String()).Observe(duration.Seconds())
}

func (m *MetricsExporter) RecordTaskPanic(workerIndex int, panicInfo any) {
	if m == nil {
		return
	}
	m.taskPanicTotal.WithLabelValues(workerLabel(workerIndex)).Inc()
}

func (m *MetricsExporter) RecordQueueDepth(workerIndex int, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(workerLabel(workerIndex)).Set(float64(depth))
}

func (m *MetricsExporter) RecordWorkerCreated(workerIndex int) {
	if m == nil {
		return
	}
	m.workersCreatedTotal.Inc()
}

func (m *MetricsExporter) RecordSteal(thiefIndex, victimIndex int, ok bool) {
	if m == nil {
		return
	}
	outcome := "failed"
	if ok {
		outcome = "succeeded"
	}
	m.stealTotal.WithLabelValues(outcome).Inc()
}

func (m *MetricsExporter) RecordCpuPermits(available, acquired int) {
	if m == nil {
		return
	}
	m.cpuPermitsAvailable.Set(float64(available))
	m.cpuPermitsAcquired.Set(float64(acquired))
}

// workerLabel renders a worker index as a Prometheus label, with a
// dedicated value for the shared global queue (index < 0).
func workerLabel(workerIndex int) string {
	if workerIndex < 0 {
		return "global"
	}
	return strconv.Itoa(workerIndex)
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
