package config

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// PresetProfile bundles the calibration sweep and the follow-up open-loop
// probes a preset run performs.
type PresetProfile struct {
	Name   string
	Closed PresetClosed
	Open   PresetOpen
}

type PresetClosed struct {
	Concurrencies []int
	TotalPerC     int
	Warmup        int
	Repeat        int
}

type PresetOpen struct {
	Duration time.Duration
	Warmup   time.Duration
	Repeat   int
}

func builtinProfiles() map[string]PresetProfile {
	return map[string]PresetProfile{
		"smoke": {
			Name: "smoke",
			Closed: PresetClosed{
				Concurrencies: []int{1, 10, 50, 100},
				TotalPerC:     1000,
				Warmup:        200,
				Repeat:        2,
			},
			Open: PresetOpen{Duration: 8 * time.Second, Warmup: 3 * time.Second, Repeat: 2},
		},
		"standard": {
			Name: "standard",
			Closed: PresetClosed{
				Concurrencies: []int{1, 2, 5, 10, 20, 50, 100, 200, 400},
				TotalPerC:     5000,
				Warmup:        1000,
				Repeat:        3,
			},
			Open: PresetOpen{Duration: 15 * time.Second, Warmup: 5 * time.Second, Repeat: 3},
		},
		"stress": {
			Name: "stress",
			Closed: PresetClosed{
				Concurrencies: []int{100, 200, 400, 800, 1200},
				TotalPerC:     15000,
				Warmup:        2000,
				Repeat:        3,
			},
			Open: PresetOpen{Duration: 25 * time.Second, Warmup: 8 * time.Second, Repeat: 3},
		},
	}
}

// ProfileNames lists the built-in profiles in stable order.
func ProfileNames() []string {
	builtins := builtinProfiles()
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolveProfile starts from the built-in profile and applies any
// presets.<name> overrides found in the config file settings.
func resolveProfile(name string, settings map[string]interface{}) (PresetProfile, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	profile, ok := builtinProfiles()[key]
	if !ok {
		return PresetProfile{}, fmt.Errorf("unknown preset profile %q (available: %s)",
			name, strings.Join(ProfileNames(), ", "))
	}

	raw, ok := lookupSetting(settings, "presets")
	if !ok {
		return profile, nil
	}
	presets, err := toStringKeyMap(raw)
	if err != nil {
		return PresetProfile{}, fmt.Errorf("presets: %w", err)
	}
	override, ok := presets[key]
	if !ok {
		return profile, nil
	}
	fields, err := toStringKeyMap(override)
	if err != nil {
		return PresetProfile{}, fmt.Errorf("presets.%s: %w", key, err)
	}

	if raw, ok := lookupSetting(fields, "closed"); ok {
		if err := applyClosedOverrides(&profile.Closed, raw); err != nil {
			return PresetProfile{}, fmt.Errorf("presets.%s.closed: %w", key, err)
		}
	}
	if raw, ok := lookupSetting(fields, "open"); ok {
		if err := applyOpenOverrides(&profile.Open, raw); err != nil {
			return PresetProfile{}, fmt.Errorf("presets.%s.open: %w", key, err)
		}
	}
	return profile, nil
}

func applyClosedOverrides(closed *PresetClosed, value interface{}) error {
	fields, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(fields, "concurrencies"); ok {
		levels, err := asIntSlice(raw)
		if err != nil {
			return fmt.Errorf("concurrencies: %w", err)
		}
		closed.Concurrencies = levels
	}
	if raw, ok := lookupSetting(fields, "totalperc", "total_per_c", "total-per-c"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("total_per_c: %w", err)
		}
		closed.TotalPerC = val
	}
	if raw, ok := lookupSetting(fields, "warmup"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("warmup: %w", err)
		}
		closed.Warmup = val
	}
	if raw, ok := lookupSetting(fields, "repeat"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("repeat: %w", err)
		}
		closed.Repeat = val
	}
	return nil
}

func applyOpenOverrides(open *PresetOpen, value interface{}) error {
	fields, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(fields, "duration"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		open.Duration = dur
	}
	if raw, ok := lookupSetting(fields, "warmup", "warmup_sec", "warmup-sec"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("warmup: %w", err)
		}
		open.Warmup = dur
	}
	if raw, ok := lookupSetting(fields, "repeat"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("repeat: %w", err)
		}
		open.Repeat = val
	}
	return nil
}
