package calibrate

import (
	"testing"
	"time"

	"github.com/V-Zibrin/loadknee/internal/metrics"
)

func point(concurrency int, throughput float64) SweepPoint {
	return SweepPoint{
		Concurrency: concurrency,
		Median:      RunStats{Throughput: throughput},
	}
}

func TestSelectBestPicksGreatestMedian(t *testing.T) {
	points := []SweepPoint{
		point(1, 120),
		point(10, 900),
		point(100, 650),
	}
	best := selectBest(points)
	if best.Concurrency != 10 {
		t.Errorf("expected concurrency 10, got %d", best.Concurrency)
	}
}

func TestSelectBestTieGoesToSmallerConcurrency(t *testing.T) {
	points := []SweepPoint{
		point(200, 500),
		point(50, 500),
		point(100, 500),
	}
	best := selectBest(points)
	if best.Concurrency != 50 {
		t.Errorf("expected tie to resolve to 50, got %d", best.Concurrency)
	}
}

func TestSelectBestIsReproducible(t *testing.T) {
	points := []SweepPoint{
		point(1, 100),
		point(10, 300),
		point(100, 300),
	}
	first := selectBest(points)
	for i := 0; i < 10; i++ {
		if got := selectBest(points); got.Concurrency != first.Concurrency {
			t.Fatalf("selection not reproducible: %d vs %d", got.Concurrency, first.Concurrency)
		}
	}
	if first.Concurrency != 10 {
		t.Errorf("expected 10, got %d", first.Concurrency)
	}
}

func TestReduceMedians(t *testing.T) {
	repeats := []metrics.Summary{
		{Throughput: 100, P50: 10 * time.Millisecond, P90: 20 * time.Millisecond, P99: 30 * time.Millisecond, Errors: 2},
		{Throughput: 5000, P50: 12 * time.Millisecond, P90: 24 * time.Millisecond, P99: 36 * time.Millisecond, Errors: 0},
		{Throughput: 110, P50: 11 * time.Millisecond, P90: 22 * time.Millisecond, P99: 33 * time.Millisecond, Errors: 1},
	}
	stats := Reduce(repeats)

	// The 5000 outlier must not drag the median.
	if stats.Throughput != 110 {
		t.Errorf("expected median throughput 110, got %g", stats.Throughput)
	}
	if stats.P50 != 11*time.Millisecond {
		t.Errorf("expected median p50 11ms, got %s", stats.P50)
	}
	if stats.MeanErrors != 1 {
		t.Errorf("expected mean errors 1, got %g", stats.MeanErrors)
	}
}

func TestDeriveCap(t *testing.T) {
	cases := []struct {
		best, want int
	}{
		{10, 25},
		{100, 250},
		{1200, 2000}, // bounded
		{0, 1},
	}
	for _, tc := range cases {
		if got := deriveCap(tc.best); got != tc.want {
			t.Errorf("deriveCap(%d) = %d, want %d", tc.best, got, tc.want)
		}
	}
}
