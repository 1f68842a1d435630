package runner_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/V-Zibrin/loadknee/internal/metrics"
	"github.com/V-Zibrin/loadknee/internal/runner"
)

// silentExecutor blocks until its context is cut off, like a server that
// never responds before the client timeout.
type silentExecutor struct {
	calls int64
}

func (s *silentExecutor) Do(ctx context.Context) metrics.Outcome {
	atomic.AddInt64(&s.calls, 1)
	<-ctx.Done()
	return metrics.Outcome{Kind: metrics.KindTimeout}
}

func TestOpenLoopArrivalCountTracksRate(t *testing.T) {
	exec := &fakeExecutor{}
	r := runner.NewOpenLoop(runner.OpenLoopOptions{
		Rate:           200,
		Duration:       500 * time.Millisecond,
		ConcurrencyCap: 50,
		Backlog:        100,
		Executor:       exec,
	})

	s, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// ~rate*duration arrivals, with scheduling slack.
	if s.Total < 80 || s.Total > 110 {
		t.Errorf("expected ~100 arrivals for 200rps x 0.5s, got %d", s.Total)
	}
}

func TestOpenLoopDropsWhenCapAndBacklogFull(t *testing.T) {
	exec := &silentExecutor{}
	r := runner.NewOpenLoop(runner.OpenLoopOptions{
		Rate:           1000,
		Duration:       time.Second,
		ConcurrencyCap: 5,
		Backlog:        0,
		Executor:       exec,
		GracePeriod:    50 * time.Millisecond,
	})

	s, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	admitted := atomic.LoadInt64(&exec.calls)
	if admitted > 6 {
		t.Errorf("expected at most cap (5) admitted against a silent server, got %d", admitted)
	}
	drops := s.ErrorCount(metrics.KindDroppedOverload)
	if drops < 900 {
		t.Errorf("expected ~995 dropped_overload outcomes, got %d", drops)
	}
	// The clock kept ticking regardless of backpressure.
	if s.Total < 900 {
		t.Errorf("arrival clock stalled: only %d outcomes recorded", s.Total)
	}
}

func TestOpenLoopBacklogAbsorbsBursts(t *testing.T) {
	exec := &fakeExecutor{latency: 20 * time.Millisecond}
	r := runner.NewOpenLoop(runner.OpenLoopOptions{
		Rate:           500,
		Duration:       200 * time.Millisecond,
		ConcurrencyCap: 2,
		Backlog:        1000,
		Executor:       exec,
		GracePeriod:    2 * time.Second,
	})

	s, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if drops := s.ErrorCount(metrics.KindDroppedOverload); drops != 0 {
		t.Errorf("large backlog should absorb all arrivals, got %d drops", drops)
	}
}

func TestOpenLoopRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		opt  runner.OpenLoopOptions
	}{
		{"zero rate", runner.OpenLoopOptions{Duration: time.Second, ConcurrencyCap: 1, Executor: &fakeExecutor{}}},
		{"zero duration", runner.OpenLoopOptions{Rate: 10, ConcurrencyCap: 1, Executor: &fakeExecutor{}}},
		{"zero cap", runner.OpenLoopOptions{Rate: 10, Duration: time.Second, Executor: &fakeExecutor{}}},
		{"nil executor", runner.OpenLoopOptions{Rate: 10, Duration: time.Second, ConcurrencyCap: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := runner.NewOpenLoop(tc.opt).Run(context.Background()); err == nil {
				t.Error("expected configuration error")
			}
		})
	}
}

func TestOpenLoopWarmupDiscarded(t *testing.T) {
	exec := &fakeExecutor{}
	r := runner.NewOpenLoop(runner.OpenLoopOptions{
		Rate:           100,
		Duration:       200 * time.Millisecond,
		Warmup:         200 * time.Millisecond,
		ConcurrencyCap: 10,
		Backlog:        50,
		Executor:       exec,
	})

	s, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// Both windows generated traffic but only the measured one is counted.
	if calls := atomic.LoadInt64(&exec.calls); int64(s.Total) >= calls {
		t.Errorf("warmup outcomes leaked: summary total %d of %d calls", s.Total, calls)
	}
}

func TestOpenLoopLimiterInjection(t *testing.T) {
	exec := &fakeExecutor{}
	var made int64
	r := runner.NewOpenLoop(runner.OpenLoopOptions{
		Rate:           50,
		Duration:       100 * time.Millisecond,
		ConcurrencyCap: 5,
		Backlog:        10,
		Executor:       exec,
		LimiterFactory: func(rps float64) *rate.Limiter {
			atomic.AddInt64(&made, 1)
			return rate.NewLimiter(rate.Limit(rps), 1)
		},
	})

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if atomic.LoadInt64(&made) == 0 {
		t.Error("limiter factory not used")
	}
}
