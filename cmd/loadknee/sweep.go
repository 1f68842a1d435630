package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/V-Zibrin/loadknee/internal/calibrate"
	"github.com/V-Zibrin/loadknee/internal/config"
	"github.com/V-Zibrin/loadknee/internal/output"
	"github.com/V-Zibrin/loadknee/internal/tracing"
)

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Find the concurrency level that maximizes closed-loop throughput",
		RunE:  runSweep,
	}
	config.RegisterCommonFlags(cmd.Flags())
	config.RegisterSweepFlags(cmd.Flags())
	return cmd
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(config.ModeSweep, cmd)
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

	var onPoint func(calibrate.SweepPoint)
	if !cfg.JSONOutput {
		onPoint = func(p calibrate.SweepPoint) {
			fmt.Fprintf(os.Stdout, "concurrency=%-5d median %.2f req/s (p99 %s)\n",
				p.Concurrency, p.Median.Throughput, p.Median.P99)
		}
	}

	runCtx, span := tracing.StartRunSpan(ctx, provider.Tracer(), "sweep",
		attribute.Int("levels", len(cfg.Sweep)),
		attribute.Int("total_per_c", cfg.Total),
	)
	result, err := calibrate.NewSweep(calibrate.SweepOptions{
		TotalPerC:     cfg.Total,
		Concurrencies: cfg.Sweep,
		Repeats:       cfg.Repeat,
		Warmup:        cfg.WarmupCount,
		Executor:      exec,
		GracePeriod:   cfg.GracefulShutdown,
		OnPoint:       onPoint,
	}).Run(runCtx)
	tracing.EndSpan(span, err)
	if err != nil {
		return err
	}

	if cfg.JSONOutput {
		if err := output.PrintJSONReport(os.Stdout, result); err != nil {
			return err
		}
	} else {
		output.PrintSweepReport(os.Stdout, result)
	}

	if cfg.CSVPath != "" {
		id := batchID(cfg)
		var rows []output.CSVRow
		for _, point := range result.Points {
			for rep, summary := range point.Repeats {
				rows = append(rows, output.CSVRow{
					BatchID:     id,
					Phase:       output.PhaseClosedSweep,
					Concurrency: point.Concurrency,
					Repeat:      rep,
					Summary:     summary,
				})
			}
		}
		if err := output.NewCSVSink(cfg.CSVPath).Append(rows); err != nil {
			return err
		}
	}
	return nil
}
