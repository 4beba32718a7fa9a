package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "minivm.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[optimizer]
max_passes = 5

[profiler]
hot_function_threshold = 50
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Optimizer.MaxPasses != 5 {
		t.Errorf("max_passes = %d, want 5", cfg.Optimizer.MaxPasses)
	}
	if cfg.Profiler.HotFunctionThreshold != 50 {
		t.Errorf("hot_function_threshold = %d, want 50", cfg.Profiler.HotFunctionThreshold)
	}
	// Untouched keys keep their defaults.
	def := Default()
	if cfg.Profiler.HotBlockThreshold != def.Profiler.HotBlockThreshold {
		t.Errorf("hot_block_threshold = %d, want default %d",
			cfg.Profiler.HotBlockThreshold, def.Profiler.HotBlockThreshold)
	}
	if cfg.Feedback.InlineSizeLimit != def.Feedback.InlineSizeLimit {
		t.Errorf("inline_size_limit = %d, want default %d",
			cfg.Feedback.InlineSizeLimit, def.Feedback.InlineSizeLimit)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
[optimizer]
max_pases = 5
`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "unknown keys") {
		t.Fatalf("expected unknown-key error, got %v", err)
	}
	if !strings.Contains(err.Error(), "max_pases") {
		t.Errorf("error does not name the bad key: %v", err)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, `
[profiler]
hot_block_threshold = 0
`)
	if _, err := Load(path); err == nil {
		t.Error("zero threshold accepted")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestDefaultThresholds(t *testing.T) {
	cfg := Default()
	th := cfg.Thresholds()
	if th.HotBlock != 1000 || th.HotFunction != 100 || th.TypeStable != 100 {
		t.Errorf("defaults = %+v", th)
	}
	if cfg.Limits().InlineSizeLimit <= 0 {
		t.Error("default inline size limit not positive")
	}
	if cfg.OptimizerOptions().MaxPasses <= 0 {
		t.Error("default max passes not positive")
	}
}
