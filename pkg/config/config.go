// Package config loads the supervisor's own bootstrap configuration: where
// its control socket lives, how it talks to workers, where it persists
// ConfigState snapshots, and its logging/metrics/telemetry settings.
//
// Configuration sources, highest precedence first:
//  1. CLI flags (applied by the caller after Load)
//  2. Environment variables (SOZU_*)
//  3. Configuration file (YAML)
//  4. Default values
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the supervisor's bootstrap configuration.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing and profiling.
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics configures the local Prometheus scrape endpoint.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Command configures the control socket and its framed channel.
	Command CommandConfig `mapstructure:"command" yaml:"command"`

	// Worker configures the worker pool: spawn timeouts and crash policy.
	Worker WorkerConfig `mapstructure:"worker" yaml:"worker"`

	// Snapshot configures where ConfigState is persisted and mirrored.
	Snapshot SnapshotConfig `mapstructure:"snapshot" yaml:"snapshot"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format: text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written: stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is active. Default: false.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use a non-TLS connection to the collector.
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0).
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration.
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled      bool     `mapstructure:"enabled" yaml:"enabled"`
	Endpoint     string   `mapstructure:"endpoint" yaml:"endpoint"`
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
type MetricsConfig struct {
	// Enabled controls whether the metrics collector and HTTP server run.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// ListenAddress is the loopback address the /metrics endpoint binds to.
	ListenAddress string `mapstructure:"listen_address" validate:"omitempty,hostname_port" yaml:"listen_address"`
}

// CommandConfig configures the control socket and its framed channel.
type CommandConfig struct {
	// SocketPath is the UNIX socket path clients connect to.
	SocketPath string `mapstructure:"socket_path" validate:"required" yaml:"socket_path"`

	// BufferSize is the soft per-frame size hint shared with every worker channel.
	BufferSize int `mapstructure:"command_buffer_size" validate:"omitempty,gt=0" yaml:"command_buffer_size"`

	// MaxBufferSize is the hard cap on a single frame; oversized frames disconnect the peer.
	MaxBufferSize int `mapstructure:"max_command_buffer_size" validate:"omitempty,gt=0" yaml:"max_command_buffer_size"`

	// Timeout bounds how long a mutation waits for worker acknowledgement.
	Timeout time.Duration `mapstructure:"command_timeout" validate:"omitempty,gt=0" yaml:"command_timeout"`
}

// WorkerConfig configures the worker pool.
type WorkerConfig struct {
	// Count is how many worker processes to spawn at startup.
	Count int `mapstructure:"count" validate:"omitempty,gt=0" yaml:"count"`

	// ProbeTimeout bounds how long a health probe waits before marking a worker not-answering.
	ProbeTimeout time.Duration `mapstructure:"probe_timeout" validate:"omitempty,gt=0" yaml:"probe_timeout"`

	// SoftStopTimeout bounds how long a worker gets to exit after RequestShutdown before SIGKILL.
	SoftStopTimeout time.Duration `mapstructure:"soft_stop_timeout" validate:"omitempty,gt=0" yaml:"soft_stop_timeout"`

	// MaxCrashes and CrashWindow bound the restart-with-backoff policy.
	MaxCrashes  int           `mapstructure:"max_crashes" validate:"omitempty,gt=0" yaml:"max_crashes"`
	CrashWindow time.Duration `mapstructure:"crash_window" validate:"omitempty,gt=0" yaml:"crash_window"`

	// ProbeInterval sets how often the supervisor probes every worker for
	// liveness and refreshes the workers_running/workers_not_answering gauges.
	ProbeInterval time.Duration `mapstructure:"probe_interval" validate:"omitempty,gt=0" yaml:"probe_interval"`
}

// SnapshotConfig configures ConfigState persistence.
type SnapshotConfig struct {
	// Path is the local file the snapshot is atomically written to.
	Path string `mapstructure:"path" validate:"required" yaml:"path"`

	// S3 optionally mirrors every snapshot to an object store for cross-host bootstrap.
	S3 *SnapshotS3Config `mapstructure:"s3" yaml:"s3,omitempty"`

	// DriftCachePath is the directory for the embedded drift-cache database.
	DriftCachePath string `mapstructure:"drift_cache_path" validate:"required" yaml:"drift_cache_path"`
}

// SnapshotS3Config configures the best-effort S3 snapshot mirror.
type SnapshotS3Config struct {
	Bucket         string `mapstructure:"bucket" validate:"required" yaml:"bucket"`
	Key            string `mapstructure:"key" validate:"required" yaml:"key"`
	Region         string `mapstructure:"region" yaml:"region,omitempty"`
	Endpoint       string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	ForcePathStyle bool   `mapstructure:"force_path_style" yaml:"force_path_style,omitempty"`
}

// Load loads configuration from file, environment, and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		return GetDefaultConfig(), nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages when no config
// file exists at the resolved path.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  sozu config init\n\n"+
				"Or specify a custom config file:\n"+
				"  sozu <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file:\n"+
			"  sozu config init --config %s",
			configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to path in YAML format.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setupViper configures viper with environment variable and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("SOZU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists. Returns
// (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks returns a combined decode hook for time.Duration parsing.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(durationDecodeHook())
}

// durationDecodeHook converts strings like "30s", "5m", "1h" to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory: $XDG_CONFIG_HOME/sozu,
// falling back to ~/.config/sozu, or "." if the home directory is unknown.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "sozu")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "sozu")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
