package output

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/V-Zibrin/loadknee/internal/metrics"
)

// syncBuffer guards a bytes.Buffer against the reporter goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestProgressReporterEmitsSnapshots(t *testing.T) {
	collector := metrics.NewCollector()
	collector.Start()
	for i := 0; i < 25; i++ {
		collector.Record(metrics.Outcome{Latency: time.Millisecond, Kind: metrics.KindOK})
	}

	buf := &syncBuffer{}
	reporter := NewProgressReporter(collector, 5*time.Millisecond, buf)
	reporter.Start()
	time.Sleep(30 * time.Millisecond)
	reporter.Stop()

	out := buf.String()
	if !strings.Contains(out, "Requests: 25") {
		t.Errorf("progress line missing counts:\n%q", out)
	}
	if !strings.Contains(out, "Successes: 25") {
		t.Errorf("progress line missing successes:\n%q", out)
	}
}

func TestProgressReporterStopIsIdempotent(t *testing.T) {
	collector := metrics.NewCollector()
	collector.Start()

	reporter := NewProgressReporter(collector, time.Millisecond, nil)
	reporter.Start()
	reporter.Start() // second start is a no-op
	reporter.Stop()
	reporter.Stop() // second stop must not panic
}
