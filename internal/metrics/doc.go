// Package metrics provides per-request outcome collection and latency
// aggregation for loadknee runs.
//
// The central [Collector] type accumulates [Outcome] values from concurrent
// request workers:
//
//	collector := metrics.NewCollector()
//	collector.Start() // mark run start for live rate calculation
//
//	collector.Record(metrics.Outcome{Latency: latency, Kind: metrics.KindOK})
//
//	summary := collector.Finalize(wall)
//
// # Summary
//
// [Collector.Finalize] produces an immutable [Summary] once the run has
// drained. Percentiles (p50/p90/p99/p999) use the exact nearest-rank method
// over the sorted successful latencies; errored requests are counted per
// [ErrorKind] but contribute nothing to the latency distribution. Throughput
// is successes divided by the measured wall duration.
//
// # Live Snapshots
//
// [Collector.Snapshot] is safe to call while the run is in flight. It reads
// approximate percentiles from an HdrHistogram so progress reporters and the
// dashboard never force a sort under the collection lock.
//
// # Thread Safety
//
// All Collector methods are safe for concurrent use. A mutex-guarded
// structure is deliberate: the aggregator is never the bottleneck of a load
// test, so correctness wins over lock-free throughput.
package metrics
