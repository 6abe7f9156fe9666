// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/endure/internal/model"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Timer1    Timer1Config     `toml:"timer1"`
	Timer2    Timer2Config     `toml:"timer2"`
	Sequence  SequenceConfig   `toml:"sequence"`
	Audio     AudioConfig      `toml:"audio"`
	Scenarios []ScenarioConfig `toml:"scenario"`
}

// Timer1Config maps the repeating timer settings.
type Timer1Config struct {
	Min        *int `toml:"min"`
	Max        *int `toml:"max"`
	MaxRepeats *int `toml:"max-repeats"`
}

// Timer2Config maps the scenario timer settings.
type Timer2Config struct {
	Enabled *bool `toml:"enabled"`
	Min     *int  `toml:"min"`
	Max     *int  `toml:"max"`
}

// SequenceConfig maps sequence timing in seconds.
type SequenceConfig struct {
	Cooldown  *int `toml:"cooldown"`
	WarnDelay *int `toml:"warn-delay"`
}

// AudioConfig maps cue playback settings.
type AudioConfig struct {
	CuesDir *string `toml:"cues-dir"`
	Mute    *bool   `toml:"mute"`
	Haptics *bool   `toml:"haptics"`
}

// ScenarioConfig is one [[scenario]] table.
type ScenarioConfig struct {
	Name             string `toml:"name"`
	WarnCue          string `toml:"warn-cue"`
	DelayAfterSecond int    `toml:"delay-after-second"`
	BaseWait         int    `toml:"base-wait"`
	JitterMax        int    `toml:"jitter-max"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return FileConfig{}, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return cfg, nil
}

// ScenarioSet converts the [[scenario]] tables. It returns nil when the file
// defines none so callers keep the built-in set.
func (c FileConfig) ScenarioSet() ([]model.Scenario, error) {
	if len(c.Scenarios) == 0 {
		return nil, nil
	}
	seen := make(map[string]struct{}, len(c.Scenarios))
	out := make([]model.Scenario, 0, len(c.Scenarios))
	for i, sc := range c.Scenarios {
		name := strings.TrimSpace(sc.Name)
		if name == "" {
			return nil, fmt.Errorf("scenario %d: name must not be empty", i+1)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("scenario %q defined twice", name)
		}
		seen[name] = struct{}{}
		if sc.DelayAfterSecond < 0 || sc.BaseWait < 0 || sc.JitterMax < 0 {
			return nil, fmt.Errorf("scenario %q: waits must be >= 0", name)
		}
		warn := strings.TrimSpace(sc.WarnCue)
		if warn == "" {
			warn = "pop_warn_" + name
		}
		out = append(out, model.Scenario{
			Name:             name,
			WarnCue:          warn,
			DelayAfterSecond: sc.DelayAfterSecond,
			BaseWait:         sc.BaseWait,
			JitterMax:        sc.JitterMax,
		})
	}
	return out, nil
}
