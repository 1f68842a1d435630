// Package output renders run results to the console, to JSON, and to CSV.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/V-Zibrin/loadknee/internal/calibrate"
	"github.com/V-Zibrin/loadknee/internal/metrics"
)

// PrintReport outputs a human-readable summary report for one run.
func PrintReport(w io.Writer, s metrics.Summary) {
	fmt.Fprintln(w, "\n--- Load Test Results ---")
	fmt.Fprintf(w, "Total Requests:    %d\n", s.Total)
	fmt.Fprintf(w, "Successful:        %d\n", s.Successes)
	fmt.Fprintf(w, "Failed:            %d\n", s.Errors)
	fmt.Fprintf(w, "Duration:          %s\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Requests/sec:      %.2f\n", s.Throughput)
	fmt.Fprintln(w, "\nLatency:")
	fmt.Fprintf(w, "  P50:             %s\n", fmtLatency(s, s.P50))
	fmt.Fprintf(w, "  P90:             %s\n", fmtLatency(s, s.P90))
	fmt.Fprintf(w, "  P99:             %s\n", fmtLatency(s, s.P99))
	fmt.Fprintf(w, "  P99.9:           %s\n", fmtLatency(s, s.P999))
	fmt.Fprintf(w, "  Max:             %s\n", fmtLatency(s, s.Max))
	if s.Errors > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for _, kind := range metrics.Kinds {
			if count := s.ErrorCount(kind); count > 0 {
				fmt.Fprintf(w, "  %-18s %d\n", string(kind)+":", count)
			}
		}
	}
}

// PrintMedianReport prints the median-of-repeats summary after the
// per-repeat reports of a repeated standalone run.
func PrintMedianReport(w io.Writer, repeats []metrics.Summary) {
	if len(repeats) < 2 {
		return
	}
	stats := calibrate.Reduce(repeats)
	fmt.Fprintf(w, "\n--- Median of %d runs ---\n", len(repeats))
	fmt.Fprintf(w, "Requests/sec:      %.2f\n", stats.Throughput)
	fmt.Fprintf(w, "P50:               %s\n", stats.P50.Round(time.Microsecond))
	fmt.Fprintf(w, "P90:               %s\n", stats.P90.Round(time.Microsecond))
	fmt.Fprintf(w, "P99:               %s\n", stats.P99.Round(time.Microsecond))
	fmt.Fprintf(w, "Mean Errors:       %.1f\n", stats.MeanErrors)
}

// PrintSweepReport outputs the per-level table and the selected knee.
func PrintSweepReport(w io.Writer, result calibrate.SweepResult) {
	fmt.Fprintln(w, "\n--- Concurrency Sweep ---")
	fmt.Fprintf(w, "%-12s %-12s %-10s %-10s %-10s %s\n",
		"Concurrency", "RPS(med)", "P50", "P90", "P99", "Errors(mean)")
	for _, point := range result.Points {
		med := point.Median
		fmt.Fprintf(w, "%-12d %-12.2f %-10s %-10s %-10s %.1f\n",
			point.Concurrency,
			med.Throughput,
			med.P50.Round(time.Microsecond),
			med.P90.Round(time.Microsecond),
			med.P99.Round(time.Microsecond),
			med.MeanErrors)
	}
	fmt.Fprintf(w, "\nBest: concurrency=%d at %.2f req/s\n",
		result.BestConcurrency, result.BestThroughput)
}

// PrintPresetReport outputs the sweep table plus the open-loop probes.
func PrintPresetReport(w io.Writer, result calibrate.PresetResult) {
	fmt.Fprintf(w, "\n=== Preset %q (batch %s) ===\n", result.Profile, result.BatchID)
	PrintSweepReport(w, result.Sweep)
	fmt.Fprintf(w, "\nCalibrated rate:   %.2f req/s (cap %d)\n",
		result.CalibratedRPS, result.ConcurrencyCap)
	fmt.Fprintln(w, "\n--- Open-Loop Probes ---")
	fmt.Fprintf(w, "%-12s %-12s %-10s %-10s %s\n",
		"Target RPS", "RPS(med)", "P50", "P99", "Errors(mean)")
	for _, run := range result.OpenRuns {
		med := run.Median
		fmt.Fprintf(w, "%-12.1f %-12.2f %-10s %-10s %.1f\n",
			run.TargetRPS,
			med.Throughput,
			med.P50.Round(time.Microsecond),
			med.P99.Round(time.Microsecond),
			med.MeanErrors)
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fmtLatency(s metrics.Summary, d time.Duration) string {
	if !s.HasLatencies() {
		return "n/a"
	}
	return d.Round(time.Microsecond).String()
}
