package metrics

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Collector accumulates per-request outcomes in a thread-safe manner.
//
// Successful latencies are retained in full so the finalized summary can use
// exact nearest-rank percentiles. An HdrHistogram tracks the same values in
// parallel so live readers (progress, dashboard) can snapshot percentiles
// without sorting under the lock.
type Collector struct {
	mu           sync.Mutex
	samples      []time.Duration
	hist         *hdrhistogram.Histogram
	successes    int64
	failures     int64
	maxLatency   time.Duration
	errorsByKind map[ErrorKind]int64
	start        time.Time
}

func NewCollector() *Collector {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	h := hdrhistogram.New(1, 60_000_000, 3)
	return &Collector{
		hist:         h,
		errorsByKind: make(map[ErrorKind]int64),
		start:        time.Now(),
	}
}

// Start marks the beginning of the measured window. Live snapshot rates are
// computed relative to this instant.
func (c *Collector) Start() {
	c.mu.Lock()
	c.start = time.Now()
	c.mu.Unlock()
}

// Record adds one outcome. Safe for concurrent producers.
func (c *Collector) Record(o Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !o.Success() {
		c.failures++
		c.errorsByKind[o.Kind]++
		return
	}

	c.successes++
	c.samples = append(c.samples, o.Latency)
	if o.Latency > c.maxLatency {
		c.maxLatency = o.Latency
	}

	us := o.Latency.Microseconds()
	if us < c.hist.LowestTrackableValue() {
		us = c.hist.LowestTrackableValue()
	}
	if us > c.hist.HighestTrackableValue() {
		us = c.hist.HighestTrackableValue()
	}
	_ = c.hist.RecordValue(us)
}

// Snapshot is a cheap point-in-time view for live reporting. Percentiles come
// from the histogram and are approximate to 3 significant figures.
type Snapshot struct {
	Total     int64
	Successes int64
	Failures  int64
	Elapsed   time.Duration
	Rate      float64
	P50       time.Duration
	P99       time.Duration
	Max       time.Duration
	Errors    map[ErrorKind]int64
}

func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := time.Since(c.start)
	snap := Snapshot{
		Total:     c.successes + c.failures,
		Successes: c.successes,
		Failures:  c.failures,
		Elapsed:   elapsed,
		Max:       c.maxLatency,
	}
	if elapsed > 0 {
		snap.Rate = float64(c.successes) / elapsed.Seconds()
	}
	if c.hist.TotalCount() > 0 {
		snap.P50 = time.Duration(c.hist.ValueAtQuantile(50)) * time.Microsecond
		snap.P99 = time.Duration(c.hist.ValueAtQuantile(99)) * time.Microsecond
	}
	if len(c.errorsByKind) > 0 {
		snap.Errors = make(map[ErrorKind]int64, len(c.errorsByKind))
		for k, v := range c.errorsByKind {
			snap.Errors[k] = v
		}
	}
	return snap
}

// Finalize computes the summary for the run. It must only be called once the
// run has fully drained; wall is the measured wall-clock duration.
func (c *Collector) Finalize(wall time.Duration) Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	sorted := make([]time.Duration, len(c.samples))
	copy(sorted, c.samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	s := Summary{
		Total:     c.successes + c.failures,
		Successes: c.successes,
		Errors:    c.failures,
		Duration:  wall,
		P50:       nearestRank(sorted, 0.50),
		P90:       nearestRank(sorted, 0.90),
		P99:       nearestRank(sorted, 0.99),
		P999:      nearestRank(sorted, 0.999),
	}
	if n := len(sorted); n > 0 {
		s.Max = sorted[n-1]
	}
	if wall > 0 && c.successes > 0 {
		s.Throughput = float64(c.successes) / wall.Seconds()
	}
	if len(c.errorsByKind) > 0 {
		s.ErrorsByKind = make(map[ErrorKind]int64, len(c.errorsByKind))
		for k, v := range c.errorsByKind {
			s.ErrorsByKind[k] = v
		}
	}
	s.fillMillis()
	return s
}

// nearestRank returns the value at index ceil(p*n)-1 of the sorted sequence,
// clamped to [0, n-1]. Zero samples yields zero (percentile undefined).
func nearestRank(sorted []time.Duration, p float64) time.Duration {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(n))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return sorted[idx]
}
