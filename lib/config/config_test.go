// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hl7ingest.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if got := cfg.Listen.Address(); got != "0.0.0.0:2575" {
		t.Errorf("expected listen address 0.0.0.0:2575, got %s", got)
	}
	if time.Duration(cfg.Listen.PollInterval) != time.Second {
		t.Errorf("expected poll_interval=1s, got %s", time.Duration(cfg.Listen.PollInterval))
	}
	if cfg.Storage.Directory != "hl7_messages" || cfg.Storage.MaxFiles != 1000 {
		t.Errorf("unexpected storage defaults: %+v", cfg.Storage)
	}
	if cfg.Ack.SendingApplication != "HL7_SERVER" {
		t.Errorf("expected sending_application=HL7_SERVER, got %s", cfg.Ack.SendingApplication)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_WithoutVariableReturnsDefaults(t *testing.T) {
	t.Setenv(EnvironmentVariable, "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Listen.Port != 2575 {
		t.Errorf("expected default port, got %d", cfg.Listen.Port)
	}
}

func TestLoad_WithVariable(t *testing.T) {
	path := writeConfig(t, `
listen:
  port: 3000
storage:
  max_files: 50
`)
	t.Setenv(EnvironmentVariable, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Listen.Port != 3000 {
		t.Errorf("expected port=3000, got %d", cfg.Listen.Port)
	}
	if cfg.Storage.MaxFiles != 50 {
		t.Errorf("expected max_files=50, got %d", cfg.Storage.MaxFiles)
	}
	// Unset keys keep their defaults.
	if cfg.Listen.Host != "0.0.0.0" || cfg.Storage.Directory != "hl7_messages" {
		t.Errorf("defaults not preserved: host=%s directory=%s", cfg.Listen.Host, cfg.Storage.Directory)
	}
}

func TestLoadFile_AllSections(t *testing.T) {
	path := writeConfig(t, `
listen:
  host: 127.0.0.1
  port: 2600
  poll_interval: 250ms
storage:
  directory: /var/lib/hl7
  max_files: 10
ack:
  sending_application: WARD_GW
log:
  level: debug
  format: json
  file: /var/log/hl7/receiver.log
status:
  socket_path: /run/hl7/status.sock
metrics:
  listen: 127.0.0.1:9102
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}

	if cfg.Listen.Address() != "127.0.0.1:2600" {
		t.Errorf("address = %s", cfg.Listen.Address())
	}
	if time.Duration(cfg.Listen.PollInterval) != 250*time.Millisecond {
		t.Errorf("poll_interval = %s", time.Duration(cfg.Listen.PollInterval))
	}
	if cfg.Storage.Directory != "/var/lib/hl7" || cfg.Storage.MaxFiles != 10 {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Ack.SendingApplication != "WARD_GW" {
		t.Errorf("sending_application = %s", cfg.Ack.SendingApplication)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" || cfg.Log.File != "/var/log/hl7/receiver.log" {
		t.Errorf("log = %+v", cfg.Log)
	}
	if cfg.Status.SocketPath != "/run/hl7/status.sock" {
		t.Errorf("status.socket_path = %s", cfg.Status.SocketPath)
	}
	if cfg.Metrics.Listen != "127.0.0.1:9102" {
		t.Errorf("metrics.listen = %s", cfg.Metrics.Listen)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := writeConfig(t, "listen:\n  poll_interval: soon\n")
	if _, err := LoadFile(path); err == nil {
		t.Error("expected error for unparseable duration")
	}

	path = writeConfig(t, "listen: [not, a, map]\n")
	if _, err := LoadFile(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestLoadFile_ExpandsVariables(t *testing.T) {
	t.Setenv("HOME", "/home/operator")
	t.Setenv("HL7_TEST_RUN", "/run/test")

	path := writeConfig(t, `
storage:
  directory: ${HOME}/hl7
log:
  file: ${HL7_TEST_LOGS:-/tmp/logs}/receiver.log
status:
  socket_path: ${HL7_TEST_RUN}/status.sock
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.Storage.Directory != "/home/operator/hl7" {
		t.Errorf("directory = %s", cfg.Storage.Directory)
	}
	if cfg.Log.File != "/tmp/logs/receiver.log" {
		t.Errorf("log.file = %s", cfg.Log.File)
	}
	if cfg.Status.SocketPath != "/run/test/status.sock" {
		t.Errorf("status.socket_path = %s", cfg.Status.SocketPath)
	}
}

func TestExpandVars(t *testing.T) {
	vars := map[string]string{"ROOT": "/data"}
	tests := []struct {
		input string
		want  string
	}{
		{"${ROOT}/hl7", "/data/hl7"},
		{"${HL7_TEST_UNSET_VAR:-fallback}", "fallback"},
		{"${HL7_TEST_UNSET_VAR}", ""},
		{"plain/path", "plain/path"},
	}
	for _, test := range tests {
		if got := expandVars(test.input, vars); got != test.want {
			t.Errorf("expandVars(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"port too large", func(c *Config) { c.Listen.Port = 70000 }, "listen.port"},
		{"negative port", func(c *Config) { c.Listen.Port = -1 }, "listen.port"},
		{"zero poll interval", func(c *Config) { c.Listen.PollInterval = 0 }, "listen.poll_interval"},
		{"empty directory", func(c *Config) { c.Storage.Directory = "" }, "storage.directory"},
		{"zero capacity", func(c *Config) { c.Storage.MaxFiles = 0 }, "storage.max_files"},
		{"empty sending application", func(c *Config) { c.Ack.SendingApplication = "" }, "ack.sending_application"},
		{"bad level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			test.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("error %q does not mention %q", err, test.wantErr)
			}
		})
	}
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Listen.Port = 99999
	cfg.Storage.MaxFiles = 0
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, field := range []string{"listen.port", "storage.max_files", "log.format"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("joined error missing %s: %v", field, err)
		}
	}
}

func TestValidate_EphemeralPort(t *testing.T) {
	cfg := Default()
	cfg.Listen.Port = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("port 0 should be accepted: %v", err)
	}
}

func TestEnsurePaths(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.Storage.Directory = filepath.Join(root, "messages")
	cfg.Log.File = filepath.Join(root, "logs", "receiver.log")
	cfg.Status.SocketPath = filepath.Join(root, "run", "status.sock")

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths() failed: %v", err)
	}
	for _, dir := range []string{"messages", "logs", "run"} {
		info, err := os.Stat(filepath.Join(root, dir))
		if err != nil || !info.IsDir() {
			t.Errorf("%s not created: %v", dir, err)
		}
	}
}
