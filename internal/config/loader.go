package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader resolves a Config from a config file plus parsed command-line flags.
// File values override built-in defaults; flags the user actually set override
// the file.
type Loader struct{}

func NewLoader() *Loader {
	return &Loader{}
}

// Load builds the Config for one run mode from an already-parsed flag set.
func (Loader) Load(mode Mode, fs *pflag.FlagSet) (*Config, error) {
	configPath := ""
	if flag := fs.Lookup("config"); flag != nil {
		configPath = strings.TrimSpace(flag.Value.String())
	}

	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	settings := cfgViper.AllSettings()

	cfg := defaultConfig(mode)
	cfg.ConfigFile = configPath

	backlogSet, err := applyConfigSettings(cfg, settings)
	if err != nil {
		return nil, err
	}

	flagBacklogSet, err := applyFlagOverrides(cfg, fs)
	if err != nil {
		return nil, err
	}
	backlogSet = backlogSet || flagBacklogSet

	cfg.TargetURL = strings.TrimSpace(cfg.TargetURL)

	// Backlog defaults to three times the admission cap unless pinned.
	if mode == ModeOpen && !backlogSet {
		cfg.Backlog = 3 * cfg.ConcurrencyCap
	}

	if mode == ModePreset {
		profile, err := resolveProfile(cfg.Profile, settings)
		if err != nil {
			return nil, err
		}
		cfg.Preset = profile
	}

	return cfg, nil
}

func defaultConfig(mode Mode) *Config {
	cfg := &Config{
		Mode:             mode,
		Timeout:          5 * time.Second,
		GracefulShutdown: 5 * time.Second,
		Repeat:           1,
		Tracing: TracingConfig{
			Protocol:    "grpc",
			SampleRatio: 1.0,
			ServiceName: "loadknee",
		},
	}
	switch mode {
	case ModeClosed:
		cfg.Total = 1000
		cfg.Concurrency = 10
	case ModeOpen:
		cfg.Duration = 10 * time.Second
		cfg.ConcurrencyCap = 256
	case ModeSweep:
		cfg.Sweep = []int{1, 2, 5, 10, 20, 50, 100}
		cfg.Total = 2000
		cfg.Repeat = 3
		cfg.WarmupCount = 200
	case ModePreset:
		cfg.Profile = "standard"
	}
	return cfg
}

// applyConfigSettings applies settings from a config file to the Config.
// Returns whether the file pinned an explicit backlog value.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) (bool, error) {
	if len(settings) == 0 {
		return false, nil
	}
	backlogSet := false

	if raw, ok := lookupSetting(settings, "target"); ok {
		val, err := asString(raw)
		if err != nil {
			return false, fmt.Errorf("target: %w", err)
		}
		cfg.TargetURL = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "total"); ok {
		val, err := asInt(raw)
		if err != nil {
			return false, fmt.Errorf("total: %w", err)
		}
		cfg.Total = val
	}
	if raw, ok := lookupSetting(settings, "concurrency"); ok {
		val, err := asInt(raw)
		if err != nil {
			return false, fmt.Errorf("concurrency: %w", err)
		}
		cfg.Concurrency = val
	}
	if raw, ok := lookupSetting(settings, "warmup"); ok {
		val, err := asInt(raw)
		if err != nil {
			return false, fmt.Errorf("warmup: %w", err)
		}
		cfg.WarmupCount = val
	}
	if raw, ok := lookupSetting(settings, "repeat"); ok {
		val, err := asInt(raw)
		if err != nil {
			return false, fmt.Errorf("repeat: %w", err)
		}
		cfg.Repeat = val
	}
	if raw, ok := lookupSetting(settings, "concurrencies"); ok {
		levels, err := asIntSlice(raw)
		if err != nil {
			return false, fmt.Errorf("concurrencies: %w", err)
		}
		cfg.Sweep = levels
	}
	if raw, ok := lookupSetting(settings, "rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return false, fmt.Errorf("rate: %w", err)
		}
		cfg.Rate = val
	}
	if raw, ok := lookupSetting(settings, "duration"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return false, fmt.Errorf("duration: %w", err)
		}
		cfg.Duration = dur
	}
	if raw, ok := lookupSetting(settings, "warmupsec", "warmup_sec", "warmup-sec"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return false, fmt.Errorf("warmupSec: %w", err)
		}
		cfg.WarmupPeriod = dur
	}
	if raw, ok := lookupSetting(settings, "concurrencycap", "concurrency_cap", "concurrency-cap"); ok {
		val, err := asInt(raw)
		if err != nil {
			return false, fmt.Errorf("concurrencyCap: %w", err)
		}
		cfg.ConcurrencyCap = val
	}
	if raw, ok := lookupSetting(settings, "backlog"); ok {
		val, err := asInt(raw)
		if err != nil {
			return false, fmt.Errorf("backlog: %w", err)
		}
		cfg.Backlog = val
		backlogSet = true
	}
	if raw, ok := lookupSetting(settings, "timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return false, fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = dur
	}
	if raw, ok := lookupSetting(settings, "gracefulshutdown", "graceful_shutdown", "graceful-shutdown"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return false, fmt.Errorf("gracefulShutdown: %w", err)
		}
		cfg.GracefulShutdown = dur
	}
	if raw, ok := lookupSetting(settings, "jsonoutput", "json_output", "json-output"); ok {
		val, err := asBool(raw)
		if err != nil {
			return false, fmt.Errorf("jsonOutput: %w", err)
		}
		cfg.JSONOutput = val
	}
	if raw, ok := lookupSetting(settings, "dashboard"); ok {
		val, err := asBool(raw)
		if err != nil {
			return false, fmt.Errorf("dashboard: %w", err)
		}
		cfg.Dashboard = val
	}
	if raw, ok := lookupSetting(settings, "logerrors", "log_errors", "log-errors"); ok {
		val, err := asBool(raw)
		if err != nil {
			return false, fmt.Errorf("logErrors: %w", err)
		}
		cfg.LogErrors = val
	}
	if raw, ok := lookupSetting(settings, "csv"); ok {
		val, err := asString(raw)
		if err != nil {
			return false, fmt.Errorf("csv: %w", err)
		}
		cfg.CSVPath = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "profile"); ok {
		val, err := asString(raw)
		if err != nil {
			return false, fmt.Errorf("profile: %w", err)
		}
		cfg.Profile = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(settings, "batchid", "batch_id", "batch-id"); ok {
		val, err := asString(raw)
		if err != nil {
			return false, fmt.Errorf("batchId: %w", err)
		}
		cfg.BatchID = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tracing, err := parseTracing(raw, cfg.Tracing)
		if err != nil {
			return false, fmt.Errorf("tracing: %w", err)
		}
		cfg.Tracing = tracing
	}

	return backlogSet, nil
}

func parseTracing(value interface{}, base TracingConfig) (TracingConfig, error) {
	fields, err := toStringKeyMap(value)
	if err != nil {
		return TracingConfig{}, err
	}
	out := base
	if raw, ok := lookupSetting(fields, "enabled"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("enabled: %w", err)
		}
		out.Enabled = val
	}
	if raw, ok := lookupSetting(fields, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("endpoint: %w", err)
		}
		out.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(fields, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("protocol: %w", err)
		}
		out.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(fields, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("insecure: %w", err)
		}
		out.Insecure = val
	}
	if raw, ok := lookupSetting(fields, "sampleratio", "sample_ratio", "sample-ratio"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("sampleRatio: %w", err)
		}
		out.SampleRatio = val
	}
	if raw, ok := lookupSetting(fields, "servicename", "service_name", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("serviceName: %w", err)
		}
		out.ServiceName = strings.TrimSpace(val)
	}
	return out, nil
}
