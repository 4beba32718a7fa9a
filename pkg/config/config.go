// Package config loads pipeline tuning parameters from TOML.
package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/Savani-Raj/minivm-plus/pkg/feedback"
	"github.com/Savani-Raj/minivm-plus/pkg/optimizer"
	"github.com/Savani-Raj/minivm-plus/pkg/profile"
)

// Config holds every tunable of the compilation pipeline.
type Config struct {
	Optimizer OptimizerConfig `toml:"optimizer"`
	Profiler  ProfilerConfig  `toml:"profiler"`
	Feedback  FeedbackConfig  `toml:"feedback"`
}

// OptimizerConfig bounds the optimization passes.
type OptimizerConfig struct {
	MaxPasses int `toml:"max_passes"`
}

// ProfilerConfig sets the hotness and stability thresholds.
type ProfilerConfig struct {
	HotBlockThreshold    int `toml:"hot_block_threshold"`
	HotFunctionThreshold int `toml:"hot_function_threshold"`
	TypeStableThreshold  int `toml:"type_stable_threshold"`
}

// FeedbackConfig bounds the feedback stage.
type FeedbackConfig struct {
	InlineSizeLimit int `toml:"inline_size_limit"`
}

// Default returns the standard configuration.
func Default() Config {
	th := profile.DefaultThresholds()
	return Config{
		Optimizer: OptimizerConfig{MaxPasses: optimizer.DefaultMaxPasses},
		Profiler: ProfilerConfig{
			HotBlockThreshold:    th.HotBlock,
			HotFunctionThreshold: th.HotFunction,
			TypeStableThreshold:  th.TypeStable,
		},
		Feedback: FeedbackConfig{InlineSizeLimit: feedback.DefaultLimits().InlineSizeLimit},
	}
}

// Load reads a TOML file over the defaults. Unknown keys are rejected
// so typos surface instead of silently reverting to defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("load config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Optimizer.MaxPasses <= 0 {
		return fmt.Errorf("optimizer.max_passes must be positive, got %d", c.Optimizer.MaxPasses)
	}
	if c.Profiler.HotBlockThreshold <= 0 || c.Profiler.HotFunctionThreshold <= 0 || c.Profiler.TypeStableThreshold <= 0 {
		return fmt.Errorf("profiler thresholds must be positive")
	}
	if c.Feedback.InlineSizeLimit <= 0 {
		return fmt.Errorf("feedback.inline_size_limit must be positive, got %d", c.Feedback.InlineSizeLimit)
	}
	return nil
}

// Thresholds converts the profiler section.
func (c Config) Thresholds() profile.Thresholds {
	return profile.Thresholds{
		HotBlock:    c.Profiler.HotBlockThreshold,
		HotFunction: c.Profiler.HotFunctionThreshold,
		TypeStable:  c.Profiler.TypeStableThreshold,
	}
}

// Limits converts the feedback section.
func (c Config) Limits() feedback.Limits {
	return feedback.Limits{InlineSizeLimit: c.Feedback.InlineSizeLimit}
}

// OptimizerOptions converts the optimizer section.
func (c Config) OptimizerOptions() optimizer.Options {
	return optimizer.Options{MaxPasses: c.Optimizer.MaxPasses}
}
