// Package calibrate composes the runners into capacity calibration: a
// closed-loop sweep across concurrencies to find the throughput knee, and a
// preset orchestrator that probes open-loop below, at, and above it.
package calibrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/V-Zibrin/loadknee/internal/metrics"
	"github.com/V-Zibrin/loadknee/internal/runner"
)

// RunStats is the median reduce over a point's repeats. Medians, not means:
// one anomalous repeat (a GC-pause-like stall) must not move the selection.
type RunStats struct {
	Throughput float64
	P50        time.Duration
	P90        time.Duration
	P99        time.Duration
	MeanErrors float64
}

// SweepPoint holds the repeats for one tested concurrency.
type SweepPoint struct {
	Concurrency int
	Repeats     []metrics.Summary
	Median      RunStats
}

// SweepResult is the ordered sweep outcome plus the selected concurrency.
type SweepResult struct {
	Points          []SweepPoint
	BestConcurrency int
	BestThroughput  float64
}

// SweepOptions configure a sweep.
type SweepOptions struct {
	TotalPerC     int
	Concurrencies []int
	Repeats       int
	Warmup        int
	Executor      runner.Executor
	GracePeriod   time.Duration

	// OnPoint, when set, observes each completed point in sweep order.
	OnPoint func(SweepPoint)
}

// Sweep repeats closed-loop runs across a list of concurrencies and selects
// the one with the greatest median throughput.
type Sweep struct {
	opt SweepOptions
}

func NewSweep(opt SweepOptions) *Sweep {
	return &Sweep{opt: opt}
}

func (s *Sweep) Run(ctx context.Context) (SweepResult, error) {
	if err := s.validate(); err != nil {
		return SweepResult{}, err
	}

	result := SweepResult{Points: make([]SweepPoint, 0, len(s.opt.Concurrencies))}
	for _, concurrency := range s.opt.Concurrencies {
		point, err := s.runPoint(ctx, concurrency)
		if err != nil {
			return SweepResult{}, err
		}
		result.Points = append(result.Points, point)
		if s.opt.OnPoint != nil {
			s.opt.OnPoint(point)
		}
		if ctx.Err() != nil {
			break
		}
	}

	best := selectBest(result.Points)
	result.BestConcurrency = best.Concurrency
	result.BestThroughput = best.Median.Throughput
	return result, nil
}

func (s *Sweep) validate() error {
	if s.opt.TotalPerC <= 0 {
		return errors.New("sweep total per concurrency must be >= 1")
	}
	if len(s.opt.Concurrencies) == 0 {
		return errors.New("sweep needs at least one concurrency")
	}
	for _, c := range s.opt.Concurrencies {
		if c <= 0 {
			return fmt.Errorf("sweep concurrency must be >= 1, got %d", c)
		}
	}
	if s.opt.Repeats <= 0 {
		return errors.New("sweep repeats must be >= 1")
	}
	if s.opt.Executor == nil {
		return errors.New("sweep executor is required")
	}
	return nil
}

// runPoint executes the repeats for one concurrency. Warmup runs once, ahead
// of the first repeat only.
func (s *Sweep) runPoint(ctx context.Context, concurrency int) (SweepPoint, error) {
	repeats := make([]metrics.Summary, 0, s.opt.Repeats)
	for rep := 0; rep < s.opt.Repeats; rep++ {
		warmup := 0
		if rep == 0 {
			warmup = s.opt.Warmup
		}
		loop := runner.NewClosedLoop(runner.ClosedLoopOptions{
			Total:       s.opt.TotalPerC,
			Concurrency: concurrency,
			Warmup:      warmup,
			Executor:    s.opt.Executor,
			GracePeriod: s.opt.GracePeriod,
		})
		summary, err := loop.Run(ctx)
		if err != nil {
			return SweepPoint{}, fmt.Errorf("closed run at concurrency %d: %w", concurrency, err)
		}
		repeats = append(repeats, summary)
		if ctx.Err() != nil {
			break
		}
	}
	return SweepPoint{
		Concurrency: concurrency,
		Repeats:     repeats,
		Median:      Reduce(repeats),
	}, nil
}

// Reduce computes the median statistics across a point's repeats.
func Reduce(repeats []metrics.Summary) RunStats {
	if len(repeats) == 0 {
		return RunStats{}
	}
	throughputs := make([]float64, len(repeats))
	p50s := make([]time.Duration, len(repeats))
	p90s := make([]time.Duration, len(repeats))
	p99s := make([]time.Duration, len(repeats))
	var errorsTotal int64
	for i, r := range repeats {
		throughputs[i] = r.Throughput
		p50s[i] = r.P50
		p90s[i] = r.P90
		p99s[i] = r.P99
		errorsTotal += r.Errors
	}
	return RunStats{
		Throughput: metrics.Median(throughputs),
		P50:        metrics.MedianDuration(p50s),
		P90:        metrics.MedianDuration(p90s),
		P99:        metrics.MedianDuration(p99s),
		MeanErrors: float64(errorsTotal) / float64(len(repeats)),
	}
}

// selectBest picks the point with the strictly greatest median throughput;
// equal medians resolve to the smaller concurrency, for resource economy.
func selectBest(points []SweepPoint) SweepPoint {
	var best SweepPoint
	haveBest := false
	for _, p := range points {
		switch {
		case !haveBest:
			best = p
			haveBest = true
		case p.Median.Throughput > best.Median.Throughput:
			best = p
		case p.Median.Throughput == best.Median.Throughput && p.Concurrency < best.Concurrency:
			best = p
		}
	}
	return best
}
