// Package cosched provides a cooperative, work-stealing task scheduler for Go.
//
// Unlike a fixed-size goroutine pool, cosched admits work under a CPU-permit
// semaphore rather than a raw goroutine count: at most CorePoolSize workers
// may hold a permit and poll the global queue or steal from a peer at once,
// while additional workers can still be created on demand to run tasks
// marked ProbablyBlocking without competing for that CPU budget. Idle
// workers back off adaptively (spin, then yield, then park with growing
// timeouts) before retiring onto a stack of parked workers that a future
// Dispatch can revive directly, skipping a fresh goroutine spawn.
//
// # Quick Start
//
//	sched, err := cosched.NewScheduler(cosched.DefaultSchedulerConfig(4, 64))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer sched.Close()
//
//	sched.Dispatch(context.Background(), func(ctx context.Context) {
//		// Your code here.
//	}, cosched.NonBlocking, false)
//
// # Key Concepts
//
// Task: the unit of work, a Runnable plus a TaskMode hint about whether it
// is expected to block.
//
// Dispatch: submits a task. When called from inside a running task (the
// Worker is recovered from ctx, mirroring the teacher's task-runner-in-
// context pattern) the task lands in that worker's own local queue for
// cache-friendly, low-latency scheduling; otherwise it lands on the shared
// global queue.
//
// CPU permits: a counting semaphore sized at CorePoolSize. Holding one is
// the precondition for polling the global queue or stealing — it is the
// mechanism that keeps the scheduler from running more CPU-bound work in
// parallel than the configured budget, even as the pool grows to host
// blocking work.
//
// # Thread Safety
//
// Scheduler and every exported method are safe for concurrent use from any
// number of goroutines, including from inside a Runnable running on one of
// the scheduler's own workers.
package cosched
