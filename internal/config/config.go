// Package config loads and validates the accessory configuration: the
// device credentials and the timing parameters of the protocol engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "1s" or "500ms" parse.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds all application configuration.
type Config struct {
	// Device credentials. No defaults exist for these; a config file
	// without them refuses to start.
	DeviceAddress string `yaml:"device_address"`
	DeviceID      string `yaml:"device_id"`
	LocalKey      string `yaml:"local_key"`

	PressDuration    Duration `yaml:"press_duration"`
	ScanDuration     Duration `yaml:"scan_duration"`
	ScanRetries      int      `yaml:"scan_retries"`
	RetryCooldown    Duration `yaml:"retry_cooldown"`
	ConnectTimeout   Duration `yaml:"connect_timeout"`
	OperationTimeout Duration `yaml:"operation_timeout"`
	BatteryInterval  Duration `yaml:"battery_interval"`

	WriteFailure string `yaml:"write_failure"` // "fail-open" or "fail-fast"
	LogLevel     string `yaml:"log_level"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "fingerbot")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values. Credentials are
// left empty; they have to come from the config file.
func Default() *Config {
	return &Config{
		PressDuration:    Duration(time.Second),
		ScanDuration:     Duration(10 * time.Second),
		ScanRetries:      3,
		RetryCooldown:    Duration(5 * time.Second),
		ConnectTimeout:   Duration(10 * time.Second),
		OperationTimeout: Duration(60 * time.Second),
		BatteryInterval:  Duration(time.Hour),
		WriteFailure:     "fail-open",
		LogLevel:         "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled with
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.DeviceAddress == "" {
		return fmt.Errorf("device_address must not be empty")
	}
	if c.DeviceID == "" {
		return fmt.Errorf("device_id must not be empty")
	}
	if c.LocalKey == "" {
		return fmt.Errorf("local_key must not be empty")
	}

	if c.PressDuration <= 0 {
		return fmt.Errorf("press_duration must be > 0")
	}
	if c.ScanDuration <= 0 {
		return fmt.Errorf("scan_duration must be > 0")
	}
	if c.ScanRetries <= 0 {
		return fmt.Errorf("scan_retries must be > 0")
	}
	if c.RetryCooldown <= 0 {
		return fmt.Errorf("retry_cooldown must be > 0")
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect_timeout must be > 0")
	}
	if c.OperationTimeout <= 0 {
		return fmt.Errorf("operation_timeout must be > 0")
	}
	if c.BatteryInterval <= 0 {
		return fmt.Errorf("battery_interval must be > 0")
	}

	switch c.WriteFailure {
	case "fail-open", "fail-fast":
	default:
		return fmt.Errorf("write_failure must be \"fail-open\" or \"fail-fast\", got %q", c.WriteFailure)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}
