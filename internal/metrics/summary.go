package metrics

import (
	"sort"
	"time"
)

// Summary is the finalized result of one run. It is immutable after emission:
// every field is fully populated by Collector.Finalize and never mutated by
// downstream consumers.
type Summary struct {
	Total        int64               `json:"total"`
	Successes    int64               `json:"successes"`
	Errors       int64               `json:"errors"`
	ErrorsByKind map[ErrorKind]int64 `json:"errors_by_kind,omitempty"`
	Duration     time.Duration       `json:"-"`
	Throughput   float64             `json:"throughput_rps"`
	P50          time.Duration       `json:"-"`
	P90          time.Duration       `json:"-"`
	P99          time.Duration       `json:"-"`
	P999         time.Duration       `json:"-"`
	Max          time.Duration       `json:"-"`

	// JSON-friendly millisecond fields.
	DurationMs float64 `json:"duration_ms"`
	P50Ms      float64 `json:"p50_ms"`
	P90Ms      float64 `json:"p90_ms"`
	P99Ms      float64 `json:"p99_ms"`
	P999Ms     float64 `json:"p999_ms"`
	MaxMs      float64 `json:"max_ms"`
}

// HasLatencies reports whether percentile fields are defined. A run with zero
// successes has no latency distribution.
func (s Summary) HasLatencies() bool {
	return s.Successes > 0
}

// ErrorCount returns the number of outcomes recorded with the given kind.
func (s Summary) ErrorCount(kind ErrorKind) int64 {
	return s.ErrorsByKind[kind]
}

func (s *Summary) fillMillis() {
	s.DurationMs = toMillis(s.Duration)
	s.P50Ms = toMillis(s.P50)
	s.P90Ms = toMillis(s.P90)
	s.P99Ms = toMillis(s.P99)
	s.P999Ms = toMillis(s.P999)
	s.MaxMs = toMillis(s.Max)
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Median returns the median of values: the middle element for odd counts and
// the mean of the two middle elements for even counts. Medians resist one
// anomalous run better than means.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return 0.5 * (sorted[mid-1] + sorted[mid])
}

// MedianDuration is Median over durations.
func MedianDuration(values []time.Duration) time.Duration {
	if len(values) == 0 {
		return 0
	}
	floats := make([]float64, len(values))
	for i, v := range values {
		floats[i] = float64(v)
	}
	return time.Duration(Median(floats))
}
