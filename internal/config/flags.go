package config

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// RegisterCommonFlags adds the flags shared by every run mode.
func RegisterCommonFlags(flags *pflag.FlagSet) {
	flags.String("target", "", "Target URL or host:port to load test")
	flags.Duration("timeout", 5*time.Second, "Per-request timeout")
	flags.Duration("graceful-shutdown", 5*time.Second, "Max time to wait for in-flight requests after the run ends")
	flags.Int("repeat", 1, "Number of repeats of the whole run")
	flags.Bool("json-output", false, "Emit JSON formatted output")
	flags.Bool("dashboard", false, "Show live terminal dashboard with metrics")
	flags.Bool("log-errors", false, "Log each failed request to stderr")
	flags.String("csv", "", "Append result rows to this CSV file")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	flags.Bool("trace", false, "Enable OpenTelemetry tracing")
	flags.String("trace-endpoint", "", "OTLP collector endpoint")
	flags.String("trace-protocol", "grpc", "OTLP transport: 'grpc' or 'http'")
	flags.Bool("trace-insecure", false, "Disable TLS for the OTLP exporter")
	flags.Float64("trace-sample-ratio", 1.0, "Trace sampling ratio between 0 and 1")
	flags.String("trace-service", "loadknee", "Service name reported on spans")
}

// RegisterClosedFlags adds the closed-loop knobs.
func RegisterClosedFlags(flags *pflag.FlagSet) {
	flags.IntP("concurrency", "c", 10, "Number of concurrent workers")
	flags.IntP("total", "t", 1000, "Total number of requests to send")
	flags.Int("warmup", 0, "Warmup requests discarded before measurement")
}

// RegisterOpenFlags adds the open-loop knobs.
func RegisterOpenFlags(flags *pflag.FlagSet) {
	flags.Float64P("rate", "r", 0, "Target request rate in requests per second")
	flags.DurationP("duration", "d", 10*time.Second, "How long to run the test (e.g. 30s, 1m)")
	flags.Int("concurrency-cap", 256, "Max requests in flight at once")
	flags.Int("backlog", 0, "Arrival backlog size (default 3x concurrency cap)")
	flags.Duration("warmup", 0, "Warmup period discarded before measurement")
}

// RegisterSweepFlags adds the calibration sweep knobs.
func RegisterSweepFlags(flags *pflag.FlagSet) {
	flags.IntSlice("concurrencies", []int{1, 2, 5, 10, 20, 50, 100}, "Concurrency levels to sweep")
	flags.IntP("total", "t", 2000, "Requests per concurrency level")
	flags.Int("warmup", 200, "Warmup requests discarded before each level")
}

// RegisterPresetFlags adds the preset orchestration knobs.
func RegisterPresetFlags(flags *pflag.FlagSet) {
	flags.String("profile", "standard", "Preset profile: "+strings.Join(ProfileNames(), ", "))
	flags.String("batch-id", "", "Batch identifier stamped on every result row (generated if empty)")
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file. Only flags the user actually set are applied.
// Returns whether the user pinned an explicit backlog value.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) (bool, error) {
	backlogSet := false

	if fs.Changed("target") {
		val, err := fs.GetString("target")
		if err != nil {
			return false, err
		}
		cfg.TargetURL = strings.TrimSpace(val)
	}
	if fs.Changed("total") {
		val, err := fs.GetInt("total")
		if err != nil {
			return false, err
		}
		cfg.Total = val
	}
	if fs.Changed("concurrency") {
		val, err := fs.GetInt("concurrency")
		if err != nil {
			return false, err
		}
		cfg.Concurrency = val
	}
	if fs.Changed("repeat") {
		val, err := fs.GetInt("repeat")
		if err != nil {
			return false, err
		}
		cfg.Repeat = val
	}
	if fs.Changed("concurrencies") {
		val, err := fs.GetIntSlice("concurrencies")
		if err != nil {
			return false, err
		}
		cfg.Sweep = val
	}
	if fs.Changed("rate") {
		val, err := fs.GetFloat64("rate")
		if err != nil {
			return false, err
		}
		cfg.Rate = val
	}
	if fs.Changed("duration") {
		val, err := fs.GetDuration("duration")
		if err != nil {
			return false, err
		}
		cfg.Duration = val
	}
	if fs.Changed("warmup") {
		// The open-loop command takes a warmup period; the others take a
		// request count.
		switch cfg.Mode {
		case ModeOpen:
			val, err := fs.GetDuration("warmup")
			if err != nil {
				return false, err
			}
			cfg.WarmupPeriod = val
		default:
			val, err := fs.GetInt("warmup")
			if err != nil {
				return false, err
			}
			cfg.WarmupCount = val
		}
	}
	if fs.Changed("concurrency-cap") {
		val, err := fs.GetInt("concurrency-cap")
		if err != nil {
			return false, err
		}
		cfg.ConcurrencyCap = val
	}
	if fs.Changed("backlog") {
		val, err := fs.GetInt("backlog")
		if err != nil {
			return false, err
		}
		cfg.Backlog = val
		backlogSet = true
	}
	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return false, err
		}
		cfg.Timeout = val
	}
	if fs.Changed("graceful-shutdown") {
		val, err := fs.GetDuration("graceful-shutdown")
		if err != nil {
			return false, err
		}
		cfg.GracefulShutdown = val
	}
	if fs.Changed("json-output") {
		val, err := fs.GetBool("json-output")
		if err != nil {
			return false, err
		}
		cfg.JSONOutput = val
	}
	if fs.Changed("dashboard") {
		val, err := fs.GetBool("dashboard")
		if err != nil {
			return false, err
		}
		cfg.Dashboard = val
	}
	if fs.Changed("log-errors") {
		val, err := fs.GetBool("log-errors")
		if err != nil {
			return false, err
		}
		cfg.LogErrors = val
	}
	if fs.Changed("csv") {
		val, err := fs.GetString("csv")
		if err != nil {
			return false, err
		}
		cfg.CSVPath = strings.TrimSpace(val)
	}
	if fs.Changed("profile") {
		val, err := fs.GetString("profile")
		if err != nil {
			return false, err
		}
		cfg.Profile = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("batch-id") {
		val, err := fs.GetString("batch-id")
		if err != nil {
			return false, err
		}
		cfg.BatchID = strings.TrimSpace(val)
	}
	if fs.Changed("trace") {
		val, err := fs.GetBool("trace")
		if err != nil {
			return false, err
		}
		cfg.Tracing.Enabled = val
	}
	if fs.Changed("trace-endpoint") {
		val, err := fs.GetString("trace-endpoint")
		if err != nil {
			return false, err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("trace-protocol") {
		val, err := fs.GetString("trace-protocol")
		if err != nil {
			return false, err
		}
		cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("trace-insecure") {
		val, err := fs.GetBool("trace-insecure")
		if err != nil {
			return false, err
		}
		cfg.Tracing.Insecure = val
	}
	if fs.Changed("trace-sample-ratio") {
		val, err := fs.GetFloat64("trace-sample-ratio")
		if err != nil {
			return false, err
		}
		cfg.Tracing.SampleRatio = val
	}
	if fs.Changed("trace-service") {
		val, err := fs.GetString("trace-service")
		if err != nil {
			return false, err
		}
		cfg.Tracing.ServiceName = strings.TrimSpace(val)
	}

	return backlogSet, nil
}
