package calibrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/V-Zibrin/loadknee/internal/metrics"
	"github.com/V-Zibrin/loadknee/internal/runner"
)

const (
	// minTargetRate floors the derived open-loop targets so a miscalibrated
	// sweep still produces a meaningful probe.
	minTargetRate = 50.0

	// maxConcurrencyCap keeps the probing client itself safe.
	maxConcurrencyCap = 2000
)

// Fractions of the calibrated capacity probed open-loop: underload,
// near-knee, and deliberate overload.
var targetFractions = [3]float64{0.5, 0.9, 1.1}

// OpenRun is one open-loop target probed during a preset.
type OpenRun struct {
	TargetRPS float64
	Repeats   []metrics.Summary
	Median    RunStats
}

// PresetResult ties the sweep and the three open-loop probes of one preset
// invocation together under a single batch identifier.
type PresetResult struct {
	BatchID        string
	Profile        string
	Sweep          SweepResult
	CalibratedRPS  float64
	ConcurrencyCap int
	OpenRuns       []OpenRun
}

// PresetOptions configure a preset orchestration.
type PresetOptions struct {
	// BatchID correlates every emitted row of this invocation. Generated
	// when empty; it is always an explicit value threaded downward, never
	// ambient state.
	BatchID string
	Profile string

	Sweep SweepOptions // closed-loop calibration phase

	OpenDuration time.Duration
	OpenWarmup   time.Duration
	OpenRepeats  int
	// OpenBacklog sizes the arrived-but-not-admitted buffer; 0 derives
	// three times the concurrency cap.
	OpenBacklog int

	Executor    runner.Executor
	GracePeriod time.Duration

	// OnTarget, when set, observes each completed open-loop target.
	OnTarget func(OpenRun)
}

// Preset runs the sweep calibration and then probes open-loop around the
// calibrated capacity.
type Preset struct {
	opt PresetOptions
}

func NewPreset(opt PresetOptions) *Preset {
	if opt.BatchID == "" {
		opt.BatchID = ulid.Make().String()
	}
	return &Preset{opt: opt}
}

func (p *Preset) Run(ctx context.Context) (PresetResult, error) {
	if p.opt.OpenDuration <= 0 {
		return PresetResult{}, errors.New("preset open duration must be > 0")
	}
	if p.opt.OpenRepeats <= 0 {
		return PresetResult{}, errors.New("preset open repeats must be >= 1")
	}
	if p.opt.Executor == nil {
		return PresetResult{}, errors.New("preset executor is required")
	}

	sweepOpt := p.opt.Sweep
	sweepOpt.Executor = p.opt.Executor
	sweepOpt.GracePeriod = p.opt.GracePeriod
	sweep, err := NewSweep(sweepOpt).Run(ctx)
	if err != nil {
		return PresetResult{}, fmt.Errorf("calibration sweep: %w", err)
	}

	result := PresetResult{
		BatchID:        p.opt.BatchID,
		Profile:        p.opt.Profile,
		Sweep:          sweep,
		CalibratedRPS:  sweep.BestThroughput,
		ConcurrencyCap: deriveCap(sweep.BestConcurrency),
	}

	backlog := p.opt.OpenBacklog
	if backlog <= 0 {
		backlog = 3 * result.ConcurrencyCap
	}

	for _, fraction := range targetFractions {
		if ctx.Err() != nil {
			break
		}
		target := fraction * sweep.BestThroughput
		if target < minTargetRate {
			target = minTargetRate
		}
		run, err := p.probeTarget(ctx, target, result.ConcurrencyCap, backlog)
		if err != nil {
			return PresetResult{}, fmt.Errorf("open-loop probe at %.0f rps: %w", target, err)
		}
		result.OpenRuns = append(result.OpenRuns, run)
		if p.opt.OnTarget != nil {
			p.opt.OnTarget(run)
		}
	}

	return result, nil
}

// probeTarget repeats the open-loop run at one target rate; warmup is spent
// ahead of the first repeat only.
func (p *Preset) probeTarget(ctx context.Context, target float64, capacity, backlog int) (OpenRun, error) {
	repeats := make([]metrics.Summary, 0, p.opt.OpenRepeats)
	for rep := 0; rep < p.opt.OpenRepeats; rep++ {
		warmup := time.Duration(0)
		if rep == 0 {
			warmup = p.opt.OpenWarmup
		}
		loop := runner.NewOpenLoop(runner.OpenLoopOptions{
			Rate:           target,
			Duration:       p.opt.OpenDuration,
			ConcurrencyCap: capacity,
			Backlog:        backlog,
			Warmup:         warmup,
			Executor:       p.opt.Executor,
			GracePeriod:    p.opt.GracePeriod,
		})
		summary, err := loop.Run(ctx)
		if err != nil {
			return OpenRun{}, err
		}
		repeats = append(repeats, summary)
		if ctx.Err() != nil {
			break
		}
	}
	return OpenRun{
		TargetRPS: target,
		Repeats:   repeats,
		Median:    Reduce(repeats),
	}, nil
}

// deriveCap sizes the open-loop admission cap from the best closed-loop
// concurrency, bounded to protect the client.
func deriveCap(bestConcurrency int) int {
	capacity := int(2.5 * float64(bestConcurrency))
	if capacity < 1 {
		capacity = 1
	}
	if capacity > maxConcurrencyCap {
		capacity = maxConcurrencyCap
	}
	return capacity
}
