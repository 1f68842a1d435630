package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/gofrs/flock"

	"github.com/V-Zibrin/loadknee/internal/calibrate"
	"github.com/V-Zibrin/loadknee/internal/metrics"
)

// Row phases. Sweep levels and the open-loop probes of one preset run share
// a batch id so they can be joined downstream.
const (
	PhaseClosedSweep = "closed_sweep"
	PhaseOpenLoop    = "open_loop"
)

// CSVRow is one result line. Concurrency is set for closed rows, TargetRPS
// for open rows.
type CSVRow struct {
	BatchID     string
	Phase       string
	Profile     string
	Concurrency int
	TargetRPS   float64
	Repeat      int
	Summary     metrics.Summary
}

// CSVSink appends result rows to a CSV file. The file is guarded by a
// sibling .lock file so concurrent invocations sharing an output path
// cannot interleave rows.
type CSVSink struct {
	path string
}

func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

func (s *CSVSink) Path() string {
	return s.path
}

var csvHeader = []string{
	"batch_id", "phase", "profile", "concurrency", "target_rps", "repeat",
	"total", "successes", "errors", "duration_ms", "throughput_rps",
	"p50_ms", "p90_ms", "p99_ms", "p999_ms", "max_ms",
	string(metrics.KindConnectFailed), string(metrics.KindTimeout),
	string(metrics.KindReset), string(metrics.KindOtherIO),
	string(metrics.KindDroppedOverload),
}

// Append writes the rows, creating the file with a header row first if it is
// new or empty.
func (s *CSVSink) Append(rows []CSVRow) error {
	if len(rows) == 0 {
		return nil
	}

	lock := flock.New(s.path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock results file: %w", err)
	}
	defer lock.Unlock()

	file, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open results file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat results file: %w", err)
	}

	writer := csv.NewWriter(file)
	if info.Size() == 0 {
		if err := writer.Write(csvHeader); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	for _, row := range rows {
		if err := writer.Write(formatRow(row)); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush results file: %w", err)
	}
	return nil
}

func formatRow(row CSVRow) []string {
	s := row.Summary

	concurrency := ""
	if row.Phase == PhaseClosedSweep {
		concurrency = strconv.Itoa(row.Concurrency)
	}
	targetRPS := ""
	if row.Phase == PhaseOpenLoop {
		targetRPS = formatFloat(row.TargetRPS)
	}

	// Percentile cells stay empty when the run produced no successes.
	p50, p90, p99, p999, max := "", "", "", "", ""
	if s.HasLatencies() {
		p50 = formatFloat(s.P50Ms)
		p90 = formatFloat(s.P90Ms)
		p99 = formatFloat(s.P99Ms)
		p999 = formatFloat(s.P999Ms)
		max = formatFloat(s.MaxMs)
	}

	return []string{
		row.BatchID,
		row.Phase,
		row.Profile,
		concurrency,
		targetRPS,
		strconv.Itoa(row.Repeat),
		strconv.FormatInt(s.Total, 10),
		strconv.FormatInt(s.Successes, 10),
		strconv.FormatInt(s.Errors, 10),
		formatFloat(s.DurationMs),
		formatFloat(s.Throughput),
		p50, p90, p99, p999, max,
		strconv.FormatInt(s.ErrorCount(metrics.KindConnectFailed), 10),
		strconv.FormatInt(s.ErrorCount(metrics.KindTimeout), 10),
		strconv.FormatInt(s.ErrorCount(metrics.KindReset), 10),
		strconv.FormatInt(s.ErrorCount(metrics.KindOtherIO), 10),
		strconv.FormatInt(s.ErrorCount(metrics.KindDroppedOverload), 10),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// PresetRows flattens a preset result into one row per repeat of every sweep
// level and every open-loop probe, all stamped with the batch id.
func PresetRows(result calibrate.PresetResult) []CSVRow {
	var rows []CSVRow
	for _, point := range result.Sweep.Points {
		for rep, summary := range point.Repeats {
			rows = append(rows, CSVRow{
				BatchID:     result.BatchID,
				Phase:       PhaseClosedSweep,
				Profile:     result.Profile,
				Concurrency: point.Concurrency,
				Repeat:      rep,
				Summary:     summary,
			})
		}
	}
	for _, run := range result.OpenRuns {
		for rep, summary := range run.Repeats {
			rows = append(rows, CSVRow{
				BatchID:   result.BatchID,
				Phase:     PhaseOpenLoop,
				Profile:   result.Profile,
				TargetRPS: run.TargetRPS,
				Repeat:    rep,
				Summary:   summary,
			})
		}
	}
	return rows
}
