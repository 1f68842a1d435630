package config

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects which traffic model a run uses.
type Mode string

const (
	ModeClosed Mode = "closed"
	ModeOpen   Mode = "open"
	ModeSweep  Mode = "sweep"
	ModePreset Mode = "preset"
)

type Config struct {
	Mode      Mode   `mapstructure:"-"`
	TargetURL string `mapstructure:"target"`

	// Closed-loop / sweep knobs. Total is the request count per run
	// (per concurrency level when sweeping).
	Total       int   `mapstructure:"total"`
	Concurrency int   `mapstructure:"concurrency"`
	WarmupCount int   `mapstructure:"warmup"`
	Repeat      int   `mapstructure:"repeat"`
	Sweep       []int `mapstructure:"concurrencies"`

	// Open-loop knobs.
	Rate           float64       `mapstructure:"rate"`
	Duration       time.Duration `mapstructure:"duration"`
	WarmupPeriod   time.Duration `mapstructure:"warmup_sec"`
	ConcurrencyCap int           `mapstructure:"concurrency_cap"`
	Backlog        int           `mapstructure:"backlog"`

	Timeout          time.Duration `mapstructure:"timeout"`
	GracefulShutdown time.Duration `mapstructure:"graceful_shutdown"`

	JSONOutput bool   `mapstructure:"json_output"`
	Dashboard  bool   `mapstructure:"dashboard"`
	LogErrors  bool   `mapstructure:"log_errors"`
	CSVPath    string `mapstructure:"csv"`

	Profile    string        `mapstructure:"profile"`
	BatchID    string        `mapstructure:"batch_id"`
	Preset     PresetProfile `mapstructure:"-"`
	Tracing    TracingConfig `mapstructure:"tracing"`
	ConfigFile string        `mapstructure:"-"`
}

// TracingConfig configures the OpenTelemetry exporter. Disabled by default.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	Insecure    bool    `mapstructure:"insecure"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
	ServiceName string  `mapstructure:"service_name"`
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	if strings.TrimSpace(c.TargetURL) == "" {
		issues = append(issues, "target is required (use --help for usage information)")
	}
	if c.Timeout <= 0 {
		issues = append(issues, "timeout must be > 0")
	}
	if c.Dashboard && c.JSONOutput {
		issues = append(issues, "dashboard and json-output are mutually exclusive")
	}
	if c.WarmupCount < 0 {
		issues = append(issues, "warmup must be >= 0")
	}
	if c.Repeat < 1 {
		issues = append(issues, "repeat must be >= 1")
	}

	switch c.Mode {
	case ModeClosed:
		if c.Total < 1 {
			issues = append(issues, "total must be >= 1")
		}
		if c.Concurrency < 1 {
			issues = append(issues, "concurrency must be >= 1")
		}
	case ModeOpen:
		if c.Rate <= 0 {
			issues = append(issues, "rate must be > 0")
		}
		if c.Duration <= 0 {
			issues = append(issues, "duration must be > 0")
		}
		if c.ConcurrencyCap < 1 {
			issues = append(issues, "concurrency-cap must be >= 1")
		}
		if c.Backlog < 0 {
			issues = append(issues, "backlog must be >= 0")
		}
		if c.WarmupPeriod < 0 {
			issues = append(issues, "warmup must be >= 0")
		}
	case ModeSweep:
		if len(c.Sweep) == 0 {
			issues = append(issues, "at least one concurrency level is required")
		}
		for idx, level := range c.Sweep {
			if level < 1 {
				issues = append(issues, fmt.Sprintf("concurrencies[%d]: must be >= 1", idx))
			}
		}
		if c.Total < 1 {
			issues = append(issues, "total must be >= 1")
		}
	case ModePreset:
		issues = append(issues, validatePreset(c.Preset)...)
	default:
		issues = append(issues, fmt.Sprintf("mode %q is not supported", c.Mode))
	}

	issues = append(issues, validateTracing(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validatePreset(p PresetProfile) []string {
	var issues []string
	if strings.TrimSpace(p.Name) == "" {
		issues = append(issues, "preset: profile name is required")
	}
	if len(p.Closed.Concurrencies) == 0 {
		issues = append(issues, "preset: closed.concurrencies must not be empty")
	}
	for idx, level := range p.Closed.Concurrencies {
		if level < 1 {
			issues = append(issues, fmt.Sprintf("preset: closed.concurrencies[%d] must be >= 1", idx))
		}
	}
	if p.Closed.TotalPerC < 1 {
		issues = append(issues, "preset: closed.total_per_c must be >= 1")
	}
	if p.Closed.Warmup < 0 {
		issues = append(issues, "preset: closed.warmup must be >= 0")
	}
	if p.Closed.Repeat < 1 {
		issues = append(issues, "preset: closed.repeat must be >= 1")
	}
	if p.Open.Duration <= 0 {
		issues = append(issues, "preset: open.duration must be > 0")
	}
	if p.Open.Warmup < 0 {
		issues = append(issues, "preset: open.warmup must be >= 0")
	}
	if p.Open.Repeat < 1 {
		issues = append(issues, "preset: open.repeat must be >= 1")
	}
	return issues
}

func validateTracing(t TracingConfig) []string {
	if !t.Enabled {
		return nil
	}
	var issues []string
	switch strings.ToLower(strings.TrimSpace(t.Protocol)) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", t.Protocol))
	}
	if t.SampleRatio < 0 || t.SampleRatio > 1 {
		issues = append(issues, "tracing: sample_ratio must be between 0 and 1")
	}
	return issues
}
