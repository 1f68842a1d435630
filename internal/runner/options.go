package runner

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/V-Zibrin/loadknee/internal/metrics"
)

// Executor abstracts performing a single request exchange. Implementations
// must always terminate with an Outcome; per-request failures are data, not
// errors.
type Executor interface {
	Do(ctx context.Context) metrics.Outcome
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context) metrics.Outcome

func (f ExecutorFunc) Do(ctx context.Context) metrics.Outcome {
	return f(ctx)
}

// DefaultGracePeriod bounds how long a cancelled or finished run waits for
// in-flight requests before abandoning them.
const DefaultGracePeriod = 5 * time.Second

// ClosedLoopOptions configure a ClosedLoop run.
type ClosedLoopOptions struct {
	Total       int       // measured requests to issue
	Concurrency int       // in-flight slots (must be >= 1)
	Warmup      int       // warmup requests issued first, outcomes discarded
	Executor    Executor  // request executor (required)
	Collector   *metrics.Collector // measured-phase sink; nil means private
	GracePeriod time.Duration      // 0 means DefaultGracePeriod
}

// OpenLoopOptions configure an OpenLoop run.
type OpenLoopOptions struct {
	Rate           float64       // target arrivals per second (must be > 0)
	Duration       time.Duration // emission window (must be > 0)
	ConcurrencyCap int           // max simultaneously in-flight (must be >= 1)
	Backlog        int           // arrived-but-not-admitted buffer (>= 0)
	Warmup         time.Duration // warmup window at the same rate, discarded
	Executor       Executor
	Collector      *metrics.Collector
	GracePeriod    time.Duration
	LimiterFactory func(rps float64) *rate.Limiter // optional injection for tests
}

func (o *OpenLoopOptions) normalize() {
	if o.Backlog < 0 {
		o.Backlog = 0
	}
	if o.GracePeriod <= 0 {
		o.GracePeriod = DefaultGracePeriod
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps float64) *rate.Limiter {
			// Burst of one keeps arrivals evenly spaced at 1/rps.
			return rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}
