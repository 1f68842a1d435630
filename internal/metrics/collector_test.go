package metrics_test

import (
	"sync"
	"testing"
	"time"

	"github.com/V-Zibrin/loadknee/internal/metrics"
)

func TestCollectorCounts(t *testing.T) {
	c := metrics.NewCollector()

	c.Record(metrics.Outcome{Latency: 10 * time.Millisecond, Kind: metrics.KindOK})
	c.Record(metrics.Outcome{Latency: 20 * time.Millisecond, Kind: metrics.KindOK})
	c.Record(metrics.Outcome{Kind: metrics.KindTimeout})
	c.Record(metrics.Outcome{Kind: metrics.KindConnectFailed})
	c.Record(metrics.Outcome{Kind: metrics.KindTimeout})

	s := c.Finalize(time.Second)

	if s.Total != 5 {
		t.Errorf("expected total 5, got %d", s.Total)
	}
	if s.Successes != 2 {
		t.Errorf("expected successes 2, got %d", s.Successes)
	}
	if s.Errors != 3 {
		t.Errorf("expected errors 3, got %d", s.Errors)
	}
	if s.Successes+s.Errors != s.Total {
		t.Errorf("successes+errors != total: %d+%d != %d", s.Successes, s.Errors, s.Total)
	}
	if got := s.ErrorCount(metrics.KindTimeout); got != 2 {
		t.Errorf("expected 2 timeouts, got %d", got)
	}
	if got := s.ErrorCount(metrics.KindConnectFailed); got != 1 {
		t.Errorf("expected 1 connect failure, got %d", got)
	}
	if s.Throughput != 2.0 {
		t.Errorf("expected throughput 2.0, got %g", s.Throughput)
	}
}

func TestNearestRankPercentiles(t *testing.T) {
	c := metrics.NewCollector()

	// 100 samples: 1ms, 2ms, ..., 100ms.
	for i := 1; i <= 100; i++ {
		c.Record(metrics.Outcome{Latency: time.Duration(i) * time.Millisecond, Kind: metrics.KindOK})
	}

	s := c.Finalize(time.Second)

	// Nearest rank: index ceil(p*n)-1 over the sorted sequence.
	if s.P50 != 50*time.Millisecond {
		t.Errorf("expected p50 50ms, got %s", s.P50)
	}
	if s.P90 != 90*time.Millisecond {
		t.Errorf("expected p90 90ms, got %s", s.P90)
	}
	if s.P99 != 99*time.Millisecond {
		t.Errorf("expected p99 99ms, got %s", s.P99)
	}
	if s.P999 != 100*time.Millisecond {
		t.Errorf("expected p999 100ms, got %s", s.P999)
	}
	if s.Max != 100*time.Millisecond {
		t.Errorf("expected max 100ms, got %s", s.Max)
	}
}

func TestPercentileMonotonicity(t *testing.T) {
	c := metrics.NewCollector()
	latencies := []time.Duration{
		3 * time.Millisecond, 14 * time.Millisecond, 1 * time.Millisecond,
		59 * time.Millisecond, 26 * time.Millisecond, 5 * time.Millisecond,
		35 * time.Millisecond,
	}
	for _, l := range latencies {
		c.Record(metrics.Outcome{Latency: l, Kind: metrics.KindOK})
	}

	s := c.Finalize(time.Second)
	if !(s.P50 <= s.P90 && s.P90 <= s.P99 && s.P99 <= s.P999 && s.P999 <= s.Max) {
		t.Errorf("percentiles not monotone: p50=%s p90=%s p99=%s p999=%s max=%s",
			s.P50, s.P90, s.P99, s.P999, s.Max)
	}
}

func TestZeroSuccessesDoesNotCrash(t *testing.T) {
	c := metrics.NewCollector()
	c.Record(metrics.Outcome{Kind: metrics.KindTimeout})
	c.Record(metrics.Outcome{Kind: metrics.KindDroppedOverload})

	s := c.Finalize(time.Second)

	if s.HasLatencies() {
		t.Error("expected undefined latency distribution")
	}
	if s.Throughput != 0 {
		t.Errorf("expected throughput 0, got %g", s.Throughput)
	}
	if s.Errors != 2 || s.Total != 2 {
		t.Errorf("expected 2 errors of 2 total, got %d of %d", s.Errors, s.Total)
	}
}

func TestAggregationIdempotence(t *testing.T) {
	outcomes := []metrics.Outcome{
		{Latency: 7 * time.Millisecond, Kind: metrics.KindOK},
		{Latency: 2 * time.Millisecond, Kind: metrics.KindOK},
		{Kind: metrics.KindReset},
		{Latency: 11 * time.Millisecond, Kind: metrics.KindOK},
		{Kind: metrics.KindOtherIO},
	}

	finalize := func() metrics.Summary {
		c := metrics.NewCollector()
		for _, o := range outcomes {
			c.Record(o)
		}
		return c.Finalize(2 * time.Second)
	}

	first := finalize()
	second := finalize()

	if first.Total != second.Total || first.Successes != second.Successes ||
		first.Throughput != second.Throughput || first.P50 != second.P50 ||
		first.P90 != second.P90 || first.P99 != second.P99 ||
		first.P999 != second.P999 || first.Max != second.Max {
		t.Errorf("summaries differ: %+v vs %+v", first, second)
	}
	for kind, n := range first.ErrorsByKind {
		if second.ErrorsByKind[kind] != n {
			t.Errorf("error counts differ for %s: %d vs %d", kind, n, second.ErrorsByKind[kind])
		}
	}
}

func TestConcurrentRecording(t *testing.T) {
	c := metrics.NewCollector()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				c.Record(metrics.Outcome{Latency: time.Millisecond, Kind: metrics.KindOK})
			}
		}()
	}
	wg.Wait()

	s := c.Finalize(time.Second)
	if s.Total != 2000 || s.Successes != 2000 {
		t.Errorf("expected 2000 successes, got total=%d successes=%d", s.Total, s.Successes)
	}
}

func TestSnapshotWhileRecording(t *testing.T) {
	c := metrics.NewCollector()
	c.Start()
	for i := 0; i < 50; i++ {
		c.Record(metrics.Outcome{Latency: 5 * time.Millisecond, Kind: metrics.KindOK})
	}
	c.Record(metrics.Outcome{Kind: metrics.KindTimeout})

	snap := c.Snapshot()
	if snap.Total != 51 || snap.Successes != 50 || snap.Failures != 1 {
		t.Errorf("unexpected snapshot counts: %+v", snap)
	}
	if snap.P50 <= 0 {
		t.Errorf("expected live p50 > 0, got %s", snap.P50)
	}
	if snap.Errors[metrics.KindTimeout] != 1 {
		t.Errorf("expected 1 timeout in snapshot, got %d", snap.Errors[metrics.KindTimeout])
	}
}

func TestMedian(t *testing.T) {
	cases := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"single", []float64{4}, 4},
		{"odd", []float64{9, 1, 5}, 5},
		{"even", []float64{4, 1, 3, 2}, 2.5},
		{"outlier resistant", []float64{100, 101, 99, 5000}, 100.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := metrics.Median(tc.values); got != tc.want {
				t.Errorf("Median(%v) = %g, want %g", tc.values, got, tc.want)
			}
		})
	}
}
