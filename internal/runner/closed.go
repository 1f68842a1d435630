package runner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/V-Zibrin/loadknee/internal/metrics"
)

// ClosedLoop drives a fixed total of requests through a bounded pool of
// in-flight slots. A free slot is refilled the instant its request completes,
// so the client never sends faster than the target absorbs.
type ClosedLoop struct {
	opt ClosedLoopOptions
}

func NewClosedLoop(opt ClosedLoopOptions) *ClosedLoop {
	return &ClosedLoop{opt: opt}
}

// Run executes the warmup phase (discarded) and then the measured phase,
// finalizing once every in-flight request has drained. Configuration errors
// are rejected before any traffic is issued.
func (r *ClosedLoop) Run(ctx context.Context) (metrics.Summary, error) {
	if r.opt.Concurrency <= 0 {
		return metrics.Summary{}, errors.New("closed-loop concurrency must be >= 1")
	}
	if r.opt.Total <= 0 {
		return metrics.Summary{}, errors.New("closed-loop total must be >= 1")
	}
	if r.opt.Executor == nil {
		return metrics.Summary{}, errors.New("closed-loop executor is required")
	}

	if r.opt.Warmup > 0 {
		r.issue(ctx, r.opt.Warmup, metrics.NewCollector())
	}

	collector := r.opt.Collector
	if collector == nil {
		collector = metrics.NewCollector()
	}
	collector.Start()

	start := time.Now()
	r.issue(ctx, r.opt.Total, collector)
	wall := time.Since(start)

	return collector.Finalize(wall), nil
}

// issue pushes total requests through the pool, recording every outcome into
// collector. The pool width is capped at the remaining work so small totals
// never spin idle slots.
func (r *ClosedLoop) issue(ctx context.Context, total int, collector *metrics.Collector) {
	workers := r.opt.Concurrency
	if total < workers {
		workers = total
	}

	reqCtx, stopRequests := drainContext(ctx, r.opt.GracePeriod)
	defer stopRequests()

	permits := make(chan struct{}, workers)

	// Scheduler: allocates exactly total slots, then closes the permit
	// channel so workers drain and exit.
	go func() {
		defer close(permits)
		for issued := 0; issued < total; issued++ {
			select {
			case permits <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for range permits {
				collector.Record(r.opt.Executor.Do(reqCtx))
				if ctx.Err() != nil {
					return
				}
			}
		}()
	}
	wg.Wait()
}

// drainContext returns the context handed to executors. It outlives run
// cancellation by the grace period so in-flight requests can finish, then is
// cancelled so the run can finalize with whatever was collected.
func drainContext(ctx context.Context, grace time.Duration) (context.Context, context.CancelFunc) {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	reqCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	go func() {
		select {
		case <-ctx.Done():
			timer := time.NewTimer(grace)
			defer timer.Stop()
			select {
			case <-timer.C:
				cancel()
			case <-reqCtx.Done():
			}
		case <-reqCtx.Done():
		}
	}()
	return reqCtx, cancel
}
