package metrics

import "time"

// ErrorKind classifies the result of a single request attempt.
type ErrorKind string

const (
	KindOK              ErrorKind = "ok"
	KindConnectFailed   ErrorKind = "connect_failed"
	KindTimeout         ErrorKind = "timeout"
	KindReset           ErrorKind = "reset"
	KindOtherIO         ErrorKind = "other_io_error"
	KindDroppedOverload ErrorKind = "dropped_overload"
)

// Kinds lists every per-request kind in reporting order.
var Kinds = []ErrorKind{
	KindConnectFailed,
	KindTimeout,
	KindReset,
	KindOtherIO,
	KindDroppedOverload,
}

// Outcome is the record of one attempted request. It is immutable and is
// consumed by exactly one Collector per run.
type Outcome struct {
	Latency time.Duration
	Kind    ErrorKind
}

// Success reports whether the request completed with a response.
func (o Outcome) Success() bool {
	return o.Kind == KindOK
}
