package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	Prod = "prod"
	Dev  = "dev"
	Test = "test"
)

const (
	EnvConfigPath = "ESTIMATOR_CONFIG"
	EnvName       = "ESTIMATOR_ENV"
	EnvLogLevel   = "ESTIMATOR_LOG_LEVEL"
)

var UnsupportedFormatError = errors.New("unsupported config format (expected .yaml, .yml or .toml)")

type Config struct {
	Estimator Box `yaml:"estimator" toml:"estimator"`
}

func (c *Config) IsProd() bool {
	return c.Estimator.Env == Prod
}

func (c *Config) IsDev() bool {
	return c.Estimator.Env == Dev
}

func (c *Config) IsTest() bool {
	return c.Estimator.Env == Test
}

type Box struct {
	Env       string    `yaml:"env" toml:"env"`
	Logs      Logs      `yaml:"logs" toml:"logs"`
	Sketch    Sketch    `yaml:"sketch" toml:"sketch"`
	Rate      Rate      `yaml:"rate" toml:"rate"`
	Admission Admission `yaml:"admission" toml:"admission"`
	Bench     Bench     `yaml:"bench" toml:"bench"`
	Metrics   Metrics   `yaml:"metrics" toml:"metrics"`
}

type Logs struct {
	Level      string `yaml:"level" toml:"level"`               // zerolog level: debug, info, warn, error...
	File       string `yaml:"file" toml:"file"`                 // Empty means stdout.
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`   // Rotate the file after this size.
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`   // Rotated files to keep.
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days"` // Days to keep rotated files.
}

// Sketch describes a standalone estimator.
type Sketch struct {
	Hashes int    `yaml:"hashes" toml:"hashes"` // Rows.
	Slots  int    `yaml:"slots" toml:"slots"`   // Counters per row.
	Hash   string `yaml:"hash" toml:"hash"`     // xxh3 or xxh64.
}

type Rate struct {
	Interval time.Duration `yaml:"interval" toml:"interval"` // Window length, e.g. "1s".
	Sketch   `yaml:",inline"`
}

type Admission struct {
	Sketch         `yaml:",inline"`
	SampleSize     int  `yaml:"sample_size" toml:"sample_size"`         // Records per aging window.
	DoorkeeperBits int  `yaml:"doorkeeper_bits" toml:"doorkeeper_bits"` // Bloom filter size in bits.
	AdmitUnseen    bool `yaml:"admit_unseen" toml:"admit_unseen"`       // Let a key never seen before through once.
}

type Bench struct {
	Items          int           `yaml:"items" toml:"items"`                     // Distinct keys.
	Iterations     int           `yaml:"iterations" toml:"iterations"`           // Operations per phase.
	Workers        int           `yaml:"workers" toml:"workers"`                 // Goroutines of the parallel phases.
	ZipfS          float64       `yaml:"zipf_s" toml:"zipf_s"`                   // Must be > 1.
	ZipfV          float64       `yaml:"zipf_v" toml:"zipf_v"`                   // Must be >= 1.
	ReportInterval time.Duration `yaml:"report_interval" toml:"report_interval"` // Progress log period.
}

type Metrics struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Addr    string `yaml:"addr" toml:"addr"` // Listen address of /metrics.
}

// Default returns a configuration every command can run with.
func Default() *Config {
	return &Config{
		Estimator: Box{
			Env: Dev,
			Logs: Logs{
				Level:      "info",
				MaxSizeMB:  100,
				MaxBackups: 3,
				MaxAgeDays: 7,
			},
			Sketch: Sketch{Hashes: 4, Slots: 1 << 16, Hash: "xxh3"},
			Rate: Rate{
				Interval: time.Second,
				Sketch:   Sketch{Hashes: 4, Slots: 1 << 10, Hash: "xxh3"},
			},
			Admission: Admission{
				Sketch:         Sketch{Hashes: 4, Slots: 1 << 16, Hash: "xxh3"},
				SampleSize:     10 * (1 << 16),
				DoorkeeperBits: 1 << 18,
				AdmitUnseen:    true,
			},
			Bench: Bench{
				Items:          100,
				Iterations:     5_000_000,
				Workers:        8,
				ZipfS:          1.03,
				ZipfV:          1,
				ReportInterval: 5 * time.Second,
			},
			Metrics: Metrics{
				Enabled: false,
				Addr:    ":9091",
			},
		},
	}
}

// LoadConfig reads the file at path over Default and validates the result.
// The format is picked by extension.
func LoadConfig(path string) (*Config, error) {
	path, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute config filepath: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err = yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal yaml from %s: %w", path, err)
		}
	case ".toml":
		if _, err = toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("unmarshal toml from %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", UnsupportedFormatError, path)
	}

	cfg.ApplyEnv()

	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// ApplyEnv overrides the environment name and log level from the process environment.
func (c *Config) ApplyEnv() {
	if env, ok := os.LookupEnv(EnvName); ok && env != "" {
		c.Estimator.Env = env
	}
	if level, ok := os.LookupEnv(EnvLogLevel); ok && level != "" {
		c.Estimator.Logs.Level = level
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	box := &c.Estimator

	switch box.Env {
	case Prod, Dev, Test:
	default:
		return fmt.Errorf("env must be one of %q, %q, %q, got %q", Prod, Dev, Test, box.Env)
	}

	if err := box.Sketch.validate("sketch"); err != nil {
		return err
	}

	if err := box.Rate.validate("rate"); err != nil {
		return err
	}
	if box.Rate.Interval <= 0 {
		return fmt.Errorf("rate.interval must be positive, got %s", box.Rate.Interval)
	}

	if err := box.Admission.validate("admission"); err != nil {
		return err
	}
	if box.Admission.SampleSize < 1 {
		return fmt.Errorf("admission.sample_size must be >= 1, got %d", box.Admission.SampleSize)
	}
	if box.Admission.DoorkeeperBits < 64 {
		return fmt.Errorf("admission.doorkeeper_bits must be >= 64, got %d", box.Admission.DoorkeeperBits)
	}

	b := box.Bench
	if b.Items < 1 {
		return fmt.Errorf("bench.items must be >= 1, got %d", b.Items)
	}
	if b.Iterations < 1 {
		return fmt.Errorf("bench.iterations must be >= 1, got %d", b.Iterations)
	}
	if b.Workers < 1 {
		return fmt.Errorf("bench.workers must be >= 1, got %d", b.Workers)
	}
	if b.ZipfS <= 1 {
		return fmt.Errorf("bench.zipf_s must be > 1, got %g", b.ZipfS)
	}
	if b.ZipfV < 1 {
		return fmt.Errorf("bench.zipf_v must be >= 1, got %g", b.ZipfV)
	}

	if box.Metrics.Enabled && box.Metrics.Addr == "" {
		return errors.New("metrics.addr cannot be empty when metrics are enabled")
	}

	return nil
}

func (s *Sketch) validate(section string) error {
	if s.Hashes < 1 {
		return fmt.Errorf("%s.hashes must be >= 1, got %d", section, s.Hashes)
	}
	if s.Slots < 1 {
		return fmt.Errorf("%s.slots must be >= 1, got %d", section, s.Slots)
	}
	switch s.Hash {
	case "", "xxh3", "xxh64":
	default:
		return fmt.Errorf("%s.hash must be xxh3 or xxh64, got %q", section, s.Hash)
	}
	return nil
}
