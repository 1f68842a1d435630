// Package runner provides the two traffic models of the loadknee engine.
//
// # Closed loop
//
// [ClosedLoop] issues a fixed total of requests through a bounded pool of
// in-flight slots; a new request starts only when a prior one completes.
// This models a self-throttling client and is what the sweep calibrator uses
// to find the throughput knee.
//
//	r := runner.NewClosedLoop(runner.ClosedLoopOptions{
//		Total:       1000,
//		Concurrency: 50,
//		Executor:    p,
//	})
//	summary, err := r.Run(ctx)
//
// # Open loop
//
// [OpenLoop] launches arrivals at a clock-driven rate for a fixed window,
// independent of completion. The emission clock is never stalled by
// backpressure: an arrival that finds the concurrency cap and backlog full is
// recorded as a dropped_overload outcome and the clock keeps ticking.
//
//	r := runner.NewOpenLoop(runner.OpenLoopOptions{
//		Rate:           500,
//		Duration:       15 * time.Second,
//		ConcurrencyCap: 200,
//		Backlog:        600,
//		Executor:       p,
//	})
//	summary, err := r.Run(ctx)
//
// # Executor
//
// Both runners drive an [Executor]:
//
//	type Executor interface {
//		Do(ctx context.Context) metrics.Outcome
//	}
//
// Executors always terminate with an outcome; a failing request is counted,
// never escalated.
//
// # Warmup and cancellation
//
// Warmup traffic (a request count for closed, a window for open) runs first
// with its outcomes discarded. On cancellation, in-flight requests get a
// bounded grace period to drain, then the run finalizes with whatever
// outcomes were collected.
package runner
