package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/V-Zibrin/loadknee/internal/config"
	"github.com/V-Zibrin/loadknee/internal/dashboard"
	"github.com/V-Zibrin/loadknee/internal/metrics"
	"github.com/V-Zibrin/loadknee/internal/output"
	"github.com/V-Zibrin/loadknee/internal/runner"
	"github.com/V-Zibrin/loadknee/internal/tracing"
)

func newClosedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "closed",
		Short: "Send a fixed number of requests through a bounded worker pool",
		RunE:  runClosed,
	}
	config.RegisterCommonFlags(cmd.Flags())
	config.RegisterClosedFlags(cmd.Flags())
	return cmd
}

func runClosed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(config.ModeClosed, cmd)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer provider.Shutdown(context.Background())

	exec, err := buildExecutor(cfg, provider)
	if err != nil {
		return err
	}

	summaries, err := closedRepeats(ctx, cfg, exec, provider)
	if err != nil {
		return err
	}

	id := batchID(cfg)
	rows := make([]output.CSVRow, 0, len(summaries))
	for rep, summary := range summaries {
		rows = append(rows, output.CSVRow{
			BatchID:     id,
			Phase:       output.PhaseClosedSweep,
			Concurrency: cfg.Concurrency,
			Repeat:      rep,
			Summary:     summary,
		})
	}
	return finishStandalone(cfg, summaries, rows)
}

// closedRepeats performs the configured repeats of the closed-loop run.
// Warmup requests are spent ahead of the first repeat only.
func closedRepeats(ctx context.Context, cfg *config.Config, exec runner.Executor, provider *tracing.Provider) ([]metrics.Summary, error) {
	summaries := make([]metrics.Summary, 0, cfg.Repeat)
	for rep := 0; rep < cfg.Repeat; rep++ {
		if ctx.Err() != nil {
			break
		}
		warmup := 0
		if rep == 0 {
			warmup = cfg.WarmupCount
		}

		collector := metrics.NewCollector()
		stopObserver, err := observeRun(cfg, collector, dashboard.RunConfig{
			TargetURL:   cfg.TargetURL,
			Mode:        string(config.ModeClosed),
			Concurrency: cfg.Concurrency,
			Total:       cfg.Total,
			Timeout:     cfg.Timeout,
			ConfigFile:  cfg.ConfigFile,
		}, nil)
		if err != nil {
			return nil, err
		}

		runCtx, span := tracing.StartRunSpan(ctx, provider.Tracer(), "closed run",
			attribute.Int("concurrency", cfg.Concurrency),
			attribute.Int("total", cfg.Total),
			attribute.Int("repeat", rep),
		)
		summary, err := runner.NewClosedLoop(runner.ClosedLoopOptions{
			Total:       cfg.Total,
			Concurrency: cfg.Concurrency,
			Warmup:      warmup,
			Executor:    exec,
			Collector:   collector,
			GracePeriod: cfg.GracefulShutdown,
		}).Run(runCtx)
		tracing.EndSpan(span, err)
		stopObserver()
		if err != nil {
			return nil, err
		}

		summaries = append(summaries, summary)
		if !cfg.JSONOutput {
			output.PrintReport(os.Stdout, summary)
		}
	}
	return summaries, nil
}
