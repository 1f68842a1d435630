package config

import (
	"strings"
	"testing"
	"time"
)

func validClosed() Config {
	return Config{
		Mode:        ModeClosed,
		TargetURL:   "http://127.0.0.1:8080/",
		Total:       100,
		Concurrency: 4,
		Repeat:      1,
		Timeout:     5 * time.Second,
	}
}

func validOpen() Config {
	return Config{
		Mode:           ModeOpen,
		TargetURL:      "http://127.0.0.1:8080/",
		Rate:           200,
		Duration:       10 * time.Second,
		ConcurrencyCap: 64,
		Backlog:        192,
		Repeat:         1,
		Timeout:        5 * time.Second,
	}
}

func TestValidateAcceptsCompleteConfigs(t *testing.T) {
	sweep := validClosed()
	sweep.Mode = ModeSweep
	sweep.Sweep = []int{1, 2, 4}

	preset := Config{
		Mode:      ModePreset,
		TargetURL: "http://127.0.0.1:8080/",
		Repeat:    1,
		Timeout:   5 * time.Second,
		Preset:    builtinProfiles()["smoke"],
	}

	for name, cfg := range map[string]Config{
		"closed": validClosed(),
		"open":   validOpen(),
		"sweep":  sweep,
		"preset": preset,
	} {
		if err := cfg.Validate(); err != nil {
			t.Errorf("%s: unexpected validation error: %v", name, err)
		}
	}
}

func TestValidateRejectsBrokenConfigs(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		base    func() Config
		wantSub string
	}{
		{"missing target", func(c *Config) { c.TargetURL = "  " }, validClosed, "target is required"},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, validClosed, "timeout must be > 0"},
		{"dashboard with json", func(c *Config) { c.Dashboard = true; c.JSONOutput = true }, validClosed, "mutually exclusive"},
		{"zero repeat", func(c *Config) { c.Repeat = 0 }, validClosed, "repeat must be >= 1"},
		{"negative warmup", func(c *Config) { c.WarmupCount = -1 }, validClosed, "warmup must be >= 0"},
		{"closed zero total", func(c *Config) { c.Total = 0 }, validClosed, "total must be >= 1"},
		{"closed zero workers", func(c *Config) { c.Concurrency = 0 }, validClosed, "concurrency must be >= 1"},
		{"open zero rate", func(c *Config) { c.Rate = 0 }, validOpen, "rate must be > 0"},
		{"open zero duration", func(c *Config) { c.Duration = 0 }, validOpen, "duration must be > 0"},
		{"open zero cap", func(c *Config) { c.ConcurrencyCap = 0 }, validOpen, "concurrency-cap must be >= 1"},
		{"open negative backlog", func(c *Config) { c.Backlog = -1 }, validOpen, "backlog must be >= 0"},
		{"tracing bad protocol", func(c *Config) {
			c.Tracing = TracingConfig{Enabled: true, Protocol: "udp", SampleRatio: 1}
		}, validClosed, "protocol must be 'grpc' or 'http'"},
		{"tracing bad ratio", func(c *Config) {
			c.Tracing = TracingConfig{Enabled: true, Protocol: "grpc", SampleRatio: 2}
		}, validClosed, "sample_ratio"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.base()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var vErr ValidationError
			ok := false
			if vErr, ok = err.(ValidationError); !ok {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Errorf("error %q missing %q", err.Error(), tc.wantSub)
			}
			if len(vErr.Issues()) == 0 {
				t.Error("expected at least one issue")
			}
		})
	}
}

func TestValidateSweepLevels(t *testing.T) {
	cfg := validClosed()
	cfg.Mode = ModeSweep
	cfg.Sweep = nil
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "at least one concurrency level") {
		t.Errorf("empty levels: got %v", err)
	}

	cfg.Sweep = []int{1, 0, 4}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "concurrencies[1]") {
		t.Errorf("bad level: got %v", err)
	}
}

func TestValidateCollectsAllIssues(t *testing.T) {
	cfg := Config{Mode: ModeClosed}
	err := cfg.Validate()
	vErr, ok := err.(ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	// target, timeout, repeat, total, concurrency all fail at once
	if got := len(vErr.Issues()); got < 5 {
		t.Errorf("expected every issue reported, got %d: %v", got, vErr.Issues())
	}
}
