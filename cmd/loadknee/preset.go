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

func newPresetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preset",
		Short: "Run a full calibration sweep plus open-loop probes around the knee",
		RunE:  runPreset,
	}
	config.RegisterCommonFlags(cmd.Flags())
	config.RegisterPresetFlags(cmd.Flags())
	return cmd
}

func runPreset(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(config.ModePreset, cmd)
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
	var onTarget func(calibrate.OpenRun)
	if !cfg.JSONOutput {
		onPoint = func(p calibrate.SweepPoint) {
			fmt.Fprintf(os.Stdout, "sweep concurrency=%-5d median %.2f req/s\n",
				p.Concurrency, p.Median.Throughput)
		}
		onTarget = func(run calibrate.OpenRun) {
			fmt.Fprintf(os.Stdout, "open target=%.1f req/s achieved %.2f req/s\n",
				run.TargetRPS, run.Median.Throughput)
		}
	}

	profile := cfg.Preset
	runCtx, span := tracing.StartRunSpan(ctx, provider.Tracer(), "preset",
		attribute.String("profile", profile.Name),
	)
	result, err := calibrate.NewPreset(calibrate.PresetOptions{
		BatchID: cfg.BatchID,
		Profile: profile.Name,
		Sweep: calibrate.SweepOptions{
			TotalPerC:     profile.Closed.TotalPerC,
			Concurrencies: profile.Closed.Concurrencies,
			Repeats:       profile.Closed.Repeat,
			Warmup:        profile.Closed.Warmup,
			OnPoint:       onPoint,
		},
		OpenDuration: profile.Open.Duration,
		OpenWarmup:   profile.Open.Warmup,
		OpenRepeats:  profile.Open.Repeat,
		Executor:     exec,
		GracePeriod:  cfg.GracefulShutdown,
		OnTarget:     onTarget,
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
		output.PrintPresetReport(os.Stdout, result)
	}

	csvPath := cfg.CSVPath
	if csvPath == "" {
		csvPath = presetCSVName(result)
	}
	if err := output.NewCSVSink(csvPath).Append(output.PresetRows(result)); err != nil {
		return err
	}
	if !cfg.JSONOutput {
		fmt.Fprintf(os.Stdout, "\nResults written to %s\n", csvPath)
	}
	return nil
}

func presetCSVName(result calibrate.PresetResult) string {
	return fmt.Sprintf("preset_%s_%s.csv", result.Profile, result.BatchID)
}
