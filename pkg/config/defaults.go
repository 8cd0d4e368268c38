package config

import (
	"path/filepath"
	"strings"
	"time"
)

// ApplyDefaults fills in any missing values with sensible defaults. Called
// after loading from file/environment so zero values never reach Validate.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyCommandDefaults(&cfg.Command)
	applyWorkerDefaults(&cfg.Worker)
	applySnapshotDefaults(&cfg.Snapshot)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	applyProfilingDefaults(&cfg.Profiling)
}

func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{"cpu", "alloc_objects", "alloc_space", "inuse_objects", "inuse_space", "goroutines"}
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = "127.0.0.1:9090"
	}
}

func applyCommandDefaults(cfg *CommandConfig) {
	if cfg.SocketPath == "" {
		cfg.SocketPath = filepath.Join(getConfigDir(), "sozu.sock")
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = 1024
	}
	if cfg.MaxBufferSize == 0 {
		cfg.MaxBufferSize = cfg.BufferSize * 2
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Minute
	}
}

func applyWorkerDefaults(cfg *WorkerConfig) {
	if cfg.Count == 0 {
		cfg.Count = 1
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if cfg.SoftStopTimeout == 0 {
		cfg.SoftStopTimeout = 10 * time.Second
	}
	if cfg.MaxCrashes == 0 {
		cfg.MaxCrashes = 5
	}
	if cfg.CrashWindow == 0 {
		cfg.CrashWindow = time.Minute
	}
	if cfg.ProbeInterval == 0 {
		cfg.ProbeInterval = 10 * time.Second
	}
}

func applySnapshotDefaults(cfg *SnapshotConfig) {
	if cfg.Path == "" {
		cfg.Path = filepath.Join(getConfigDir(), "snapshot.json")
	}
	if cfg.DriftCachePath == "" {
		cfg.DriftCachePath = filepath.Join(filepath.Dir(cfg.Path), "driftcache")
	}
}

// GetDefaultConfig returns a Config with every default applied, used as the
// starting point for `sozu config init` and for tests.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
