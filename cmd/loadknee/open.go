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

func newOpenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open",
		Short: "Offer load at a fixed rate regardless of response times",
		RunE:  runOpen,
	}
	config.RegisterCommonFlags(cmd.Flags())
	config.RegisterOpenFlags(cmd.Flags())
	return cmd
}

func runOpen(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(config.ModeOpen, cmd)
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

	summaries, err := openRepeats(ctx, cfg, exec, provider)
	if err != nil {
		return err
	}

	id := batchID(cfg)
	rows := make([]output.CSVRow, 0, len(summaries))
	for rep, summary := range summaries {
		rows = append(rows, output.CSVRow{
			BatchID:   id,
			Phase:     output.PhaseOpenLoop,
			TargetRPS: cfg.Rate,
			Repeat:    rep,
			Summary:   summary,
		})
	}
	return finishStandalone(cfg, summaries, rows)
}

// openRepeats performs the configured repeats of the open-loop run. The
// warmup period is spent ahead of the first repeat only.
func openRepeats(ctx context.Context, cfg *config.Config, exec runner.Executor, provider *tracing.Provider) ([]metrics.Summary, error) {
	summaries := make([]metrics.Summary, 0, cfg.Repeat)
	for rep := 0; rep < cfg.Repeat; rep++ {
		if ctx.Err() != nil {
			break
		}
		warmup := cfg.WarmupPeriod
		if rep > 0 {
			warmup = 0
		}

		collector := metrics.NewCollector()
		stopObserver, err := observeRun(cfg, collector, dashboard.RunConfig{
			TargetURL:  cfg.TargetURL,
			Mode:       string(config.ModeOpen),
			Rate:       cfg.Rate,
			Duration:   cfg.Duration,
			Timeout:    cfg.Timeout,
			ConfigFile: cfg.ConfigFile,
		}, nil)
		if err != nil {
			return nil, err
		}

		runCtx, span := tracing.StartRunSpan(ctx, provider.Tracer(), "open run",
			attribute.Float64("rate", cfg.Rate),
			attribute.Int("concurrency_cap", cfg.ConcurrencyCap),
			attribute.Int("repeat", rep),
		)
		summary, err := runner.NewOpenLoop(runner.OpenLoopOptions{
			Rate:           cfg.Rate,
			Duration:       cfg.Duration,
			ConcurrencyCap: cfg.ConcurrencyCap,
			Backlog:        cfg.Backlog,
			Warmup:         warmup,
			Executor:       exec,
			Collector:      collector,
			GracePeriod:    cfg.GracefulShutdown,
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
