package probe_test

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/V-Zibrin/loadknee/internal/metrics"
	"github.com/V-Zibrin/loadknee/internal/probe"
	"github.com/V-Zibrin/loadknee/internal/testserver"
)

func startTarget(t *testing.T) string {
	t.Helper()
	srv, err := testserver.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("start target: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return srv.Addr()
}

func TestSuccessfulExchange(t *testing.T) {
	addr := startTarget(t)
	p, err := probe.New("http://"+addr+"/", 2*time.Second)
	if err != nil {
		t.Fatalf("new probe: %v", err)
	}

	out := p.Do(context.Background())
	if out.Kind != metrics.KindOK {
		t.Fatalf("expected ok, got %s", out.Kind)
	}
	if out.Latency <= 0 {
		t.Errorf("expected positive latency, got %s", out.Latency)
	}
}

func TestConnectFailed(t *testing.T) {
	// Bind and immediately close to get a port nothing listens on.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()

	p, err := probe.New("http://"+addr+"/", time.Second)
	if err != nil {
		t.Fatalf("new probe: %v", err)
	}

	out := p.Do(context.Background())
	if out.Kind != metrics.KindConnectFailed {
		t.Fatalf("expected connect_failed, got %s", out.Kind)
	}
}

func TestTimeoutAgainstSilentServer(t *testing.T) {
	// A listener that accepts but never replies.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
		}
	}()

	p, err := probe.New("http://"+l.Addr().String()+"/", 100*time.Millisecond)
	if err != nil {
		t.Fatalf("new probe: %v", err)
	}

	out := p.Do(context.Background())
	if out.Kind != metrics.KindTimeout {
		t.Fatalf("expected timeout, got %s", out.Kind)
	}
	if out.Latency < 100*time.Millisecond {
		t.Errorf("timed out early: %s", out.Latency)
	}
}

func TestNeverReturnsFatalError(t *testing.T) {
	p, err := probe.New("http://127.0.0.1:1/", 200*time.Millisecond)
	if err != nil {
		t.Fatalf("new probe: %v", err)
	}
	for i := 0; i < 5; i++ {
		out := p.Do(context.Background())
		if out.Kind == metrics.KindOK {
			t.Fatalf("expected an error outcome against a dead port")
		}
	}
}

func TestTargetValidation(t *testing.T) {
	cases := []struct {
		name    string
		target  string
		wantErr bool
	}{
		{"valid", "http://127.0.0.1:8000/", false},
		{"bare host port", "127.0.0.1:8000", false},
		{"query preserved", "http://127.0.0.1:8000/path?q=1", false},
		{"https rejected", "https://example.com/", true},
		{"empty", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := probe.New(tc.target, time.Second)
			if tc.wantErr && err == nil {
				t.Errorf("expected error for %q", tc.target)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error for %q: %v", tc.target, err)
			}
		})
	}
}

func TestHeaderFuncInjection(t *testing.T) {
	received := make(chan string, 1)
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4096)
		n, _ := conn.Read(buf)
		received <- string(buf[:n])
		conn.Write([]byte("HTTP/1.1 200 OK\r\nConnection: close\r\n\r\n"))
	}()

	p, err := probe.New("http://"+l.Addr().String()+"/", time.Second,
		probe.WithHeaderFunc(func(context.Context) map[string]string {
			return map[string]string{"Traceparent": "00-abc-def-01"}
		}))
	if err != nil {
		t.Fatalf("new probe: %v", err)
	}

	out := p.Do(context.Background())
	if out.Kind != metrics.KindOK {
		t.Fatalf("expected ok, got %s", out.Kind)
	}
	req := <-received
	if want := "Traceparent: 00-abc-def-01\r\n"; !strings.Contains(req, want) {
		t.Errorf("header not injected, request was:\n%s", req)
	}
}
