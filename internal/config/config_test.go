package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Sample != 500*time.Millisecond {
		t.Errorf("Sample: got %v, want 500ms", cfg.Sample)
	}
	if cfg.PushInterval != 5*time.Second {
		t.Errorf("PushInterval: got %v, want 5s", cfg.PushInterval)
	}
	if cfg.ReportInterval != 10*time.Second {
		t.Errorf("ReportInterval: got %v, want 10s", cfg.ReportInterval)
	}
	if cfg.Network.JoinTimeout != 15*time.Second {
		t.Errorf("JoinTimeout: got %v, want 15s", cfg.Network.JoinTimeout)
	}
	if got := cfg.APAddressIP().String(); got != "192.168.4.1" {
		t.Errorf("APAddressIP: got %s", got)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
sample: 250ms
push_interval: 2s
collector: http://collector.local:8004/datos
gpio:
  pin: 17
network:
  interface: wlan1
  join_timeout: 20s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sample != 250*time.Millisecond {
		t.Errorf("Sample: got %v", cfg.Sample)
	}
	if cfg.PushInterval != 2*time.Second {
		t.Errorf("PushInterval: got %v", cfg.PushInterval)
	}
	if cfg.Collector != "http://collector.local:8004/datos" {
		t.Errorf("Collector: got %q", cfg.Collector)
	}
	if cfg.GPIO.Pin != 17 {
		t.Errorf("GPIO.Pin: got %d", cfg.GPIO.Pin)
	}
	if cfg.Network.Interface != "wlan1" || cfg.Network.JoinTimeout != 20*time.Second {
		t.Errorf("Network: got %+v", cfg.Network)
	}
	// Unset keys keep their defaults.
	if cfg.GPIO.Chip != "gpiochip0" {
		t.Errorf("GPIO.Chip: got %q", cfg.GPIO.Chip)
	}
	if cfg.ReportInterval != 10*time.Second {
		t.Errorf("ReportInterval: got %v", cfg.ReportInterval)
	}
	if cfg.Path != path {
		t.Errorf("Path: got %q", cfg.Path)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := writeConfig(t, "sample: [not a duration\n")
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse("conveyor-sensor", nil, io.Discard)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := Default()
	if cfg.Poll != want.Poll || cfg.Collector != want.Collector || cfg.Console != want.Console {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestParseFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, `
sample: 250ms
broker: tcp://file-broker:1883
gpio:
  pin: 17
`)

	cfg, err := Parse("conveyor-sensor", []string{"-config", path, "-pin", "5", "-push-interval", "1s"}, io.Discard)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.GPIO.Pin != 5 {
		t.Errorf("flag should override file: pin=%d", cfg.GPIO.Pin)
	}
	if cfg.PushInterval != time.Second {
		t.Errorf("flag should override default: push=%v", cfg.PushInterval)
	}
	if cfg.Sample != 250*time.Millisecond {
		t.Errorf("file should override default: sample=%v", cfg.Sample)
	}
	if cfg.Broker != "tcp://file-broker:1883" {
		t.Errorf("file value lost: broker=%q", cfg.Broker)
	}
}

func TestParsePrintState(t *testing.T) {
	cfg, err := Parse("conveyor-sensor", []string{"-print-state"}, io.Discard)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !cfg.PrintState {
		t.Error("expected PrintState=true")
	}
}

func TestParseRejectsUnknownFlag(t *testing.T) {
	if _, err := Parse("conveyor-sensor", []string{"-nope"}, io.Discard); err == nil {
		t.Error("expected error for unknown flag")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"zero sample", func(c *Config) { c.Sample = 0 }, "sample must be positive"},
		{"negative push", func(c *Config) { c.PushInterval = -time.Second }, "push-interval must be positive"},
		{"poll slower than sample", func(c *Config) { c.Poll = time.Second }, "poll (1s) must not exceed sample"},
		{"timeout not shorter than interval", func(c *Config) { c.ReportTimeout = c.ReportInterval }, "http-timeout (10s) must be shorter"},
		{"relative collector", func(c *Config) { c.Collector = "/datos" }, "collector"},
		{"bad ap address", func(c *Config) { c.Network.APAddress = "not-an-ip" }, "ap-address"},
		{"ipv6 ap address", func(c *Config) { c.Network.APAddress = "fe80::1" }, "ap-address"},
		{"short ap password", func(c *Config) { c.Network.APPassword = "short" }, "ap-password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}
