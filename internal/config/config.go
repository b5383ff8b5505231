package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultInterval      = 5 * time.Second
	minInterval          = 2 * time.Second
	defaultDiskDevice    = "sda"
	defaultNetInterface  = "eth0"
	defaultNodetoolPath  = "nodetool"
	defaultNodetoolHost  = "127.0.0.1"
	defaultNodetoolPort  = uint16(8080)
	defaultToolTimeout   = time.Second
	defaultLogLevel      = "info"
	defaultTelemetryAddr = "127.0.0.1:9120"
)

// Duration wraps time.Duration for TOML parsing.
// Params: text duration string (e.g. "5s", "1m").
// Returns: parse error on invalid duration.
type Duration struct {
	time.Duration
}

// UnmarshalText parses TOML duration values.
// Params: text is raw duration bytes from TOML.
// Returns: error when value is not a valid Go duration.
func (d *Duration) UnmarshalText(text []byte) error {
	value := strings.TrimSpace(string(text))
	if value == "" {
		d.Duration = 0
		return nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value, err)
	}

	d.Duration = parsed
	return nil
}

// Config represents the full sampler configuration. Every field maps onto one
// CLI flag; a TOML file provides defaults and flags override file values.
// Params: TOML document sections.
// Returns: validated runtime configuration.
type Config struct {
	Keyspace string `toml:"keyspace"`
	Table    string `toml:"table"`

	Interval Duration `toml:"interval"`
	Count    uint64   `toml:"count"`

	LogFile   string `toml:"log_file"`
	LogOutput string `toml:"log_output"`

	Disk         string `toml:"disk"`
	NetInterface string `toml:"net_interface"`

	Epoch       bool `toml:"epoch"`
	Timestamp   bool `toml:"timestamp"`
	NoHeader    bool `toml:"no_header"`
	ReadRepair  bool `toml:"read_repair"`
	Compactions bool `toml:"compactions"`
	Percentiles bool `toml:"percentiles"`
	CacheQueue  bool `toml:"cache_queue"`

	Nodetool  NodetoolConfig  `toml:"nodetool"`
	Log       LogConfig       `toml:"log"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// NodetoolConfig contains admin tool invocation settings.
// Params: binary path, node host/port, per-command timeout.
// Returns: admin tool options.
type NodetoolConfig struct {
	Path    string   `toml:"path"`
	Host    string   `toml:"host"`
	Port    uint16   `toml:"port"`
	Timeout Duration `toml:"timeout"`
}

// LogConfig contains diagnostic logging configuration. Diagnostics go to stderr
// (and optionally a file) so the row stream on stdout stays machine-parsable.
// Params: level, console color flag, and optional file sink path.
// Returns: logger sink settings.
type LogConfig struct {
	Level string `toml:"level"`
	Color bool   `toml:"color"`
	File  string `toml:"file"`
}

// TelemetryConfig defines the optional self-telemetry HTTP endpoint.
// Params: enabled flag and listen address in host:port format.
// Returns: telemetry runtime settings.
type TelemetryConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// Load reads, expands, and returns config from a TOML file without validating,
// so CLI flag overrides can be applied before Validate runs.
// Params: path to TOML config file.
// Returns: decoded config pointer or error.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}

	expanded := os.ExpandEnv(string(raw))

	var cfg Config
	if err := toml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("decode TOML %q: %w", path, err)
	}

	return &cfg, nil
}

// Default returns a config with all defaults applied and no target set.
// Params: none.
// Returns: default configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields with default values.
// Params: none.
// Returns: none.
func (c *Config) ApplyDefaults() {
	if c.Interval.Duration == 0 {
		c.Interval.Duration = defaultInterval
	}
	if strings.TrimSpace(c.Disk) == "" {
		c.Disk = defaultDiskDevice
	}
	if strings.TrimSpace(c.NetInterface) == "" {
		c.NetInterface = defaultNetInterface
	}
	if strings.TrimSpace(c.Nodetool.Path) == "" {
		c.Nodetool.Path = defaultNodetoolPath
	}
	if strings.TrimSpace(c.Nodetool.Host) == "" {
		c.Nodetool.Host = defaultNodetoolHost
	}
	if c.Nodetool.Port == 0 {
		c.Nodetool.Port = defaultNodetoolPort
	}
	if c.Nodetool.Timeout.Duration == 0 {
		c.Nodetool.Timeout.Duration = defaultToolTimeout
	}
	if strings.TrimSpace(c.Log.Level) == "" {
		c.Log.Level = defaultLogLevel
	}
	if strings.TrimSpace(c.Telemetry.Listen) == "" {
		c.Telemetry.Listen = defaultTelemetryAddr
	}
}

// Validate checks required fields and cross-field constraints. Validation errors
// are fatal and reported before the sampling loop starts.
// Params: none.
// Returns: first configuration error found or nil.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Keyspace) == "" {
		return fmt.Errorf("keyspace: target keyspace is required")
	}
	if c.Percentiles && strings.TrimSpace(c.Table) == "" {
		return fmt.Errorf("percentiles: a target table is required for percentile columns")
	}
	if c.Interval.Duration < minInterval {
		return fmt.Errorf("interval: %s is below the %s minimum", c.Interval.Duration, minInterval)
	}
	if c.Nodetool.Timeout.Duration <= 0 {
		return fmt.Errorf("nodetool.timeout: must be > 0")
	}
	if err := validateLogLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Telemetry.Enabled && strings.TrimSpace(c.Telemetry.Listen) == "" {
		return fmt.Errorf("telemetry.listen: address is required when telemetry is enabled")
	}
	return nil
}

// validateLogLevel checks the diagnostic log level name.
// Params: level configured level string.
// Returns: error on unknown level.
func validateLogLevel(level string) error {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("log.level: unknown level %q", level)
	}
}
