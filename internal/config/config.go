// Package config loads ChronoStore daemon configuration
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Schedule configures the deduplication scheduler cadence.
type Schedule struct {
	Enabled  bool   `yaml:"enabled"`
	Interval string `yaml:"interval"` // daily, weekly, monthly
	Time     string `yaml:"time"`     // HH:MM, UTC
}

// Config is the in-memory representation of chronostore.yaml.
type Config struct {
	Storage struct {
		Root string `yaml:"root"`
	} `yaml:"storage"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	Metrics struct {
		Listen string `yaml:"listen"`
	} `yaml:"metrics"`
	Deduplication struct {
		Schedule Schedule `yaml:"schedule"`
	} `yaml:"deduplication"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Storage.Root = "./storage"
	cfg.Log.Level = "info"
	cfg.Log.Pretty = false
	cfg.Metrics.Listen = ":9464"
	cfg.Deduplication.Schedule = Schedule{
		Enabled:  false,
		Interval: "daily",
		Time:     "00:00",
	}
	return cfg
}

// Load reads a YAML config file. A missing file yields the defaults;
// a malformed file is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks schedule fields.
func (c *Config) Validate() error {
	switch c.Deduplication.Schedule.Interval {
	case "daily", "weekly", "monthly":
	default:
		return fmt.Errorf("invalid schedule interval: %q", c.Deduplication.Schedule.Interval)
	}
	var hh, mm int
	if _, err := fmt.Sscanf(c.Deduplication.Schedule.Time, "%d:%d", &hh, &mm); err != nil {
		return fmt.Errorf("invalid schedule time %q: %w", c.Deduplication.Schedule.Time, err)
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return fmt.Errorf("invalid schedule time %q", c.Deduplication.Schedule.Time)
	}
	return nil
}
