package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/V-Zibrin/loadknee/internal/calibrate"
	"github.com/V-Zibrin/loadknee/internal/config"
	"github.com/V-Zibrin/loadknee/internal/dashboard"
	"github.com/V-Zibrin/loadknee/internal/metrics"
	"github.com/V-Zibrin/loadknee/internal/output"
	"github.com/V-Zibrin/loadknee/internal/probe"
	"github.com/V-Zibrin/loadknee/internal/runner"
	"github.com/V-Zibrin/loadknee/internal/tracing"
)

const progressInterval = time.Second

func loadConfig(mode config.Mode, cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.NewLoader().Load(mode, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

type stderrFailureLogger struct {
	mu sync.Mutex
}

func (l *stderrFailureLogger) LogFailure(kind metrics.ErrorKind) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(os.Stderr, "[loadknee] request failed: %s\n", kind)
}

// loggingExecutor reports every failed outcome to the logger.
type loggingExecutor struct {
	next   runner.Executor
	logger *stderrFailureLogger
}

func (e *loggingExecutor) Do(ctx context.Context) metrics.Outcome {
	out := e.next.Do(ctx)
	if !out.Success() {
		e.logger.LogFailure(out.Kind)
	}
	return out
}

// buildExecutor wires the request probe, trace-header injection, and
// optional per-failure logging.
func buildExecutor(cfg *config.Config, provider *tracing.Provider) (runner.Executor, error) {
	var opts []probe.Option
	if provider.ShouldPropagate() {
		opts = append(opts, probe.WithHeaderFunc(probe.HeaderFunc(tracing.HeaderInjector(provider))))
	}
	p, err := probe.New(cfg.TargetURL, cfg.Timeout, opts...)
	if err != nil {
		return nil, err
	}
	var exec runner.Executor = p
	if cfg.LogErrors {
		exec = &loggingExecutor{next: exec, logger: &stderrFailureLogger{}}
	}
	return exec, nil
}

// observeRun starts the dashboard or the plain progress reporter for one
// run's collector. The returned stop function is safe to call once.
func observeRun(cfg *config.Config, collector *metrics.Collector, runCfg dashboard.RunConfig, cancel func()) (func(), error) {
	if cfg.Dashboard {
		dash, err := dashboard.New(collector, runCfg, cancel)
		if err != nil {
			return nil, err
		}
		dash.Start()
		return dash.Stop, nil
	}
	if !cfg.JSONOutput {
		progress := output.NewProgressReporter(collector, progressInterval, os.Stdout)
		progress.Start()
		return progress.Stop, nil
	}
	return func() {}, nil
}

func batchID(cfg *config.Config) string {
	if cfg.BatchID != "" {
		return cfg.BatchID
	}
	return ulid.Make().String()
}

// repeatedRuns is the JSON shape for a standalone run with repeat > 1.
type repeatedRuns struct {
	Runs   []metrics.Summary `json:"runs"`
	Median medianStats       `json:"median"`
}

type medianStats struct {
	Throughput float64 `json:"throughput_rps"`
	P50Ms      float64 `json:"p50_ms"`
	P90Ms      float64 `json:"p90_ms"`
	P99Ms      float64 `json:"p99_ms"`
	MeanErrors float64 `json:"mean_errors"`
}

// finishStandalone emits the final report and appends CSV rows for a
// standalone closed or open run.
func finishStandalone(cfg *config.Config, summaries []metrics.Summary, rows []output.CSVRow) error {
	if cfg.JSONOutput {
		if err := printStandaloneJSON(summaries); err != nil {
			return err
		}
	} else {
		output.PrintMedianReport(os.Stdout, summaries)
	}
	if cfg.CSVPath != "" {
		if err := output.NewCSVSink(cfg.CSVPath).Append(rows); err != nil {
			return err
		}
	}
	return nil
}

func printStandaloneJSON(summaries []metrics.Summary) error {
	if len(summaries) == 1 {
		return output.PrintJSONReport(os.Stdout, summaries[0])
	}
	stats := calibrate.Reduce(summaries)
	return output.PrintJSONReport(os.Stdout, repeatedRuns{
		Runs: summaries,
		Median: medianStats{
			Throughput: stats.Throughput,
			P50Ms:      toMillis(stats.P50),
			P90Ms:      toMillis(stats.P90),
			P99Ms:      toMillis(stats.P99),
			MeanErrors: stats.MeanErrors,
		},
	})
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
