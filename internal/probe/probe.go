// Package probe executes single request/response exchanges against the
// target. Each call opens one fresh TCP connection, writes a minimal HTTP/1.1
// GET, reads to EOF, and classifies the result. No connection is ever reused:
// measurement isolation matters more here than client efficiency.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/V-Zibrin/loadknee/internal/metrics"
)

// HeaderFunc supplies extra header lines for one request, keyed by canonical
// header name. Used to inject trace context without coupling probe to the
// tracing stack.
type HeaderFunc func(ctx context.Context) map[string]string

// Probe performs one exchange per Do call. Safe for concurrent use; it holds
// no per-call state.
type Probe struct {
	addr    string
	request []byte
	timeout time.Duration
	headers HeaderFunc
	dialer  *net.Dialer
}

// Option configures a Probe.
type Option func(*Probe)

// WithHeaderFunc installs a per-request header supplier.
func WithHeaderFunc(fn HeaderFunc) Option {
	return func(p *Probe) { p.headers = fn }
}

// New builds a Probe for target, a plain-HTTP URL such as
// "http://127.0.0.1:8000/". Only the http scheme is accepted.
func New(target string, timeout time.Duration, opts ...Option) (*Probe, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, errors.New("target URL is required")
	}
	if !strings.Contains(target, "://") {
		target = "http://" + target
	}

	parsed, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse target: %w", err)
	}
	if parsed.Scheme != "" && !strings.EqualFold(parsed.Scheme, "http") {
		return nil, fmt.Errorf("only plain HTTP targets are supported, got %q", parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		host = "127.0.0.1"
	}
	port := parsed.Port()
	if port == "" {
		port = "80"
	}
	path := parsed.Path
	if path == "" {
		path = "/"
	}
	if parsed.RawQuery != "" {
		path += "?" + parsed.RawQuery
	}
	hostHeader := parsed.Host
	if hostHeader == "" {
		hostHeader = host
	}

	p := &Probe{
		addr:    net.JoinHostPort(host, port),
		request: buildRequest(path, hostHeader, nil),
		timeout: timeout,
		dialer:  &net.Dialer{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Addr returns the resolved dial address (host:port).
func (p *Probe) Addr() string {
	return p.addr
}

// Do performs one request and always terminates with an Outcome. Individual
// request failures never propagate as errors: a bad request must not abort
// the run that issued it.
func (p *Probe) Do(ctx context.Context) metrics.Outcome {
	start := time.Now()

	conn, err := p.dialer.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		return metrics.Outcome{Latency: time.Since(start), Kind: classifyDial(err)}
	}
	defer conn.Close()

	if p.timeout > 0 {
		_ = conn.SetDeadline(start.Add(p.timeout))
	}
	if deadline, ok := ctx.Deadline(); ok && (p.timeout <= 0 || deadline.Before(start.Add(p.timeout))) {
		_ = conn.SetDeadline(deadline)
	}

	request := p.request
	if p.headers != nil {
		if extra := p.headers(ctx); len(extra) > 0 {
			request = p.rebuildRequest(extra)
		}
	}

	if _, err := conn.Write(request); err != nil {
		return metrics.Outcome{Latency: time.Since(start), Kind: classifyIO(err)}
	}

	// Any response bytes followed by server close count as success; the
	// reply's semantics are not validated.
	if _, err := io.Copy(io.Discard, conn); err != nil {
		return metrics.Outcome{Latency: time.Since(start), Kind: classifyIO(err)}
	}

	return metrics.Outcome{Latency: time.Since(start), Kind: metrics.KindOK}
}

func (p *Probe) rebuildRequest(extra map[string]string) []byte {
	// Recover path and host from the prebuilt request head.
	head := string(p.request)
	lines := strings.SplitN(head, "\r\n", 3)
	path := strings.TrimSuffix(strings.TrimPrefix(lines[0], "GET "), " HTTP/1.1")
	host := strings.TrimPrefix(lines[1], "Host: ")
	return buildRequest(path, host, extra)
}

func buildRequest(path, hostHeader string, extra map[string]string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "GET %s HTTP/1.1\r\n", path)
	fmt.Fprintf(&b, "Host: %s\r\n", hostHeader)
	b.WriteString("Connection: close\r\n")
	for key, value := range extra {
		if key == "" || strings.ContainsAny(key, "\r\n") || strings.ContainsAny(value, "\r\n") {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\r\n", key, value)
	}
	b.WriteString("\r\n")
	return []byte(b.String())
}

func classifyDial(err error) metrics.ErrorKind {
	if isTimeout(err) {
		return metrics.KindTimeout
	}
	return metrics.KindConnectFailed
}

func classifyIO(err error) metrics.ErrorKind {
	switch {
	case isTimeout(err):
		return metrics.KindTimeout
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return metrics.KindReset
	default:
		return metrics.KindOtherIO
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
