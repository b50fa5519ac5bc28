// ABOUTME: Tests for configuration loading
// ABOUTME: Verifies defaults, YAML parsing and schedule validation

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Expected defaults for missing file, got: %v", err)
	}

	if cfg.Storage.Root != "./storage" {
		t.Errorf("Unexpected default storage root %q", cfg.Storage.Root)
	}
	if cfg.Metrics.Listen != ":9464" {
		t.Errorf("Unexpected default metrics listen %q", cfg.Metrics.Listen)
	}
	if cfg.Deduplication.Schedule.Enabled {
		t.Error("Expected scheduler disabled by default")
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chronostore.yaml")
	content := `
storage:
  root: /var/lib/chronostore
log:
  level: debug
  pretty: true
metrics:
  listen: ":9000"
deduplication:
  schedule:
    enabled: true
    interval: weekly
    time: "03:30"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Storage.Root != "/var/lib/chronostore" {
		t.Errorf("Unexpected storage root %q", cfg.Storage.Root)
	}
	if cfg.Log.Level != "debug" || !cfg.Log.Pretty {
		t.Error("Expected log overrides applied")
	}
	if cfg.Metrics.Listen != ":9000" {
		t.Errorf("Unexpected metrics listen %q", cfg.Metrics.Listen)
	}
	sched := cfg.Deduplication.Schedule
	if !sched.Enabled || sched.Interval != "weekly" || sched.Time != "03:30" {
		t.Errorf("Unexpected schedule %+v", sched)
	}
}

func TestLoadRejectsBadSchedule(t *testing.T) {
	dir := t.TempDir()

	cases := map[string]string{
		"bad_interval.yaml": "deduplication:\n  schedule:\n    interval: hourly\n    time: \"00:00\"\n",
		"bad_time.yaml":     "deduplication:\n  schedule:\n    interval: daily\n    time: \"25:00\"\n",
	}
	for name, content := range cases {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write config: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Errorf("Expected %s to fail validation", name)
		}
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("storage: [unclosed"), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Expected error for malformed YAML")
	}
}
