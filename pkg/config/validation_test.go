package config

import "testing"

func TestValidateRejectsInvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "INVALID"

	if err := Validate(cfg); err == nil {
		t.Fatal("want a validation error for an invalid log level")
	}
}

func TestValidateRejectsInvalidLogFormat(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Format = "xml"

	if err := Validate(cfg); err == nil {
		t.Fatal("want a validation error for an invalid log format")
	}
}

func TestValidateRejectsEmptySocketPath(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Command.SocketPath = ""

	if err := Validate(cfg); err == nil {
		t.Fatal("want a validation error for an empty socket path")
	}
}

func TestValidateRejectsEmptySnapshotPath(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Snapshot.Path = ""

	if err := Validate(cfg); err == nil {
		t.Fatal("want a validation error for an empty snapshot path")
	}
}

func TestValidateRejectsOutOfRangeSampleRate(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.SampleRate = 1.5

	if err := Validate(cfg); err == nil {
		t.Fatal("want a validation error for a sample rate above 1.0")
	}
}
