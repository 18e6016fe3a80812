package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/corepoolsched/cosched/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// SchedulerSnapshotProvider provides the current SchedulerSnapshot for a
// named scheduler instance. *core.Scheduler and the root cosched.Scheduler
// facade both satisfy it.
type SchedulerSnapshotProvider interface {
	Snapshot() core.SchedulerSnapshot
}

// SnapshotPoller periodically exports SchedulerSnapshot reads into
// Prometheus gauges, for deployments that poll pool health rather than
// wire Metrics into the hot path. Adapted from the teacher's
// SnapshotPoller: same start/stop/loop shape, collecting worker-state
// counts for each scheduler added by name instead of a runner/pool pair.
type SnapshotPoller struct {
	interval time.Duration

	mu          sync.RWMutex
	schedulers  map[string]SchedulerSnapshotProvider

	createdWorkers  *prom.GaugeVec
	cpuWorkers      *prom.GaugeVec
	blockingWorkers *prom.GaugeVec
	parkedWorkers   *prom.GaugeVec
	retiringWorkers *prom.GaugeVec
	finishedWorkers *prom.GaugeVec
	globalQueueSize *prom.GaugeVec
	workerQueueSize *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	createdWorkers := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "cosched",
		Name:      "created_workers",
		Help:      "Number of workers ever created, per scheduler.",
	}, []string{"scheduler"})
	cpuWorkers := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "cosched",
		Name:      "cpu_workers",
		Help:      "Number of workers currently holding a CPU permit.",
	}, []string{"scheduler"})
	blockingWorkers := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "cosched",
		Name:      "blocking_workers",
		Help:      "Number of workers currently running a ProbablyBlocking task.",
	}, []string{"scheduler"})
	parkedWorkers := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "cosched",
		Name:      "parked_workers",
		Help:      "Number of workers currently parked (adaptive-idle or blocking-idle).",
	}, []string{"scheduler"})
	retiringWorkers := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "cosched",
		Name:      "retiring_workers",
		Help:      "Number of workers currently retiring (between tasks, not yet parked).",
	}, []string{"scheduler"})
	finishedWorkers := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "cosched",
		Name:      "finished_workers",
		Help:      "Number of workers that have exited after Close.",
	}, []string{"scheduler"})
	globalQueueSize := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "cosched",
		Name:      "global_queue_size",
		Help:      "Current size of the shared global queue.",
	}, []string{"scheduler"})
	workerQueueSize := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "cosched",
		Name:      "worker_queue_size",
		Help:      "Current local queue size, per worker.",
	}, []string{"scheduler", "worker"})

	var err error
	if createdWorkers, err = registerCollector(reg, createdWorkers); err != nil {
		return nil, err
	}
	if cpuWorkers, err = registerCollector(reg, cpuWorkers); err != nil {
		return nil, err
	}
	if blockingWorkers, err = registerCollector(reg, blockingWorkers); err != nil {
		return nil, err
	}
	if parkedWorkers, err = registerCollector(reg, parkedWorkers); err != nil {
		return nil, err
	}
	if retiringWorkers, err = registerCollector(reg, retiringWorkers); err != nil {
		return nil, err
	}
	if finishedWorkers, err = registerCollector(reg, finishedWorkers); err != nil {
		return nil, err
	}
	if globalQueueSize, err = registerCollector(reg, globalQueueSize); err != nil {
		return nil, err
	}
	if workerQueueSize, err = registerCollector(reg, workerQueueSize); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:        interval,
		schedulers:      make(map[string]SchedulerSnapshotProvider),
		createdWorkers:  createdWorkers,
		cpuWorkers:      cpuWorkers,
		blockingWorkers: blockingWorkers,
		parkedWorkers:   parkedWorkers,
		retiringWorkers: retiringWorkers,
		finishedWorkers: finishedWorkers,
		globalQueueSize: globalQueueSize,
		workerQueueSize: workerQueueSize,
	}, nil
}

// AddScheduler adds or replaces a scheduler snapshot provider by name.
func (p *SnapshotPoller) AddScheduler(name string, provider SchedulerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	if name == "" {
		name = "scheduler"
	}
	p.mu.Lock()
	p.schedulers[name] = provider
	p.mu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for name, provider := range p.schedulers {
		snap := provider.Snapshot()
		p.createdWorkers.WithLabelValues(name).Set(float64(snap.CreatedWorkers))
		p.cpuWorkers.WithLabelValues(name).Set(float64(snap.CPUWorkers))
		p.blockingWorkers.WithLabelValues(name).Set(float64(snap.BlockingWorkers))
		p.parkedWorkers.WithLabelValues(name).Set(float64(snap.ParkedWorkers))
		p.retiringWorkers.WithLabelValues(name).Set(float64(snap.RetiredWorkers))
		p.finishedWorkers.WithLabelValues(name).Set(float64(snap.FinishedWorkers))
		p.globalQueueSize.WithLabelValues(name).Set(float64(snap.GlobalQueueSize))
		for _, w := range snap.Workers {
			p.workerQueueSize.WithLabelValues(name, workerLabel(w.Index)).Set(float64(w.QueueSize))
		}
	}
}
