package runner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/V-Zibrin/loadknee/internal/metrics"
)

// OpenLoop launches requests at a clock-driven target rate for a fixed
// window, independent of completion. Admission is gated by a hard in-flight
// cap and a bounded backlog; an arrival that finds both full is recorded as
// dropped_overload instead of stalling the clock. That drop signal is the
// point of the tool, not a failure of it.
type OpenLoop struct {
	opt OpenLoopOptions
}

func NewOpenLoop(opt OpenLoopOptions) *OpenLoop {
	opt.normalize()
	return &OpenLoop{opt: opt}
}

// Run executes the warmup window (discarded) and then the measured window,
// finalizing once the duration elapses and admitted requests have drained or
// timed out.
func (r *OpenLoop) Run(ctx context.Context) (metrics.Summary, error) {
	if r.opt.Rate <= 0 {
		return metrics.Summary{}, errors.New("open-loop rate must be > 0")
	}
	if r.opt.Duration <= 0 {
		return metrics.Summary{}, errors.New("open-loop duration must be > 0")
	}
	if r.opt.ConcurrencyCap <= 0 {
		return metrics.Summary{}, errors.New("open-loop concurrency cap must be >= 1")
	}
	if r.opt.Executor == nil {
		return metrics.Summary{}, errors.New("open-loop executor is required")
	}

	if r.opt.Warmup > 0 {
		r.drive(ctx, r.opt.Warmup, metrics.NewCollector())
	}

	collector := r.opt.Collector
	if collector == nil {
		collector = metrics.NewCollector()
	}
	collector.Start()

	start := time.Now()
	r.drive(ctx, r.opt.Duration, collector)
	wall := time.Since(start)

	return collector.Finalize(wall), nil
}

// drive emits arrivals for the window. The emission clock runs alone in this
// goroutine: a tick either hands off to the backlog without blocking or is
// recorded as a drop, so tick spacing never depends on completion order.
func (r *OpenLoop) drive(ctx context.Context, window time.Duration, collector *metrics.Collector) {
	reqCtx, stopRequests := drainContext(ctx, r.opt.GracePeriod)
	defer stopRequests()

	arrivals := make(chan struct{}, r.opt.Backlog)

	var wg sync.WaitGroup
	wg.Add(r.opt.ConcurrencyCap)
	for i := 0; i < r.opt.ConcurrencyCap; i++ {
		go func() {
			defer wg.Done()
			for range arrivals {
				collector.Record(r.opt.Executor.Do(reqCtx))
			}
		}()
	}

	limiter := r.opt.LimiterFactory(r.opt.Rate)
	tickCtx, cancelTicks := context.WithTimeout(ctx, window)
	defer cancelTicks()

	for {
		if err := limiter.Wait(tickCtx); err != nil {
			break
		}
		select {
		case arrivals <- struct{}{}:
		default:
			// Cap and backlog both full: the arrival happened, the
			// admission did not.
			collector.Record(metrics.Outcome{Kind: metrics.KindDroppedOverload})
		}
	}
	close(arrivals)

	// Bounded drain: give in-flight requests the grace period, then cut
	// them off and finalize with what was collected.
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	grace := r.opt.GracePeriod
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		stopRequests()
		<-done
	}
}
