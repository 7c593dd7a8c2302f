// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the variable [Load] reads the config path
// from.
const EnvironmentVariable = "HL7INGEST_CONFIG"

// Config is the receiver configuration.
type Config struct {
	// Listen configures the TCP listener devices connect to.
	Listen ListenConfig `yaml:"listen"`

	// Storage configures the on-disk message store.
	Storage StorageConfig `yaml:"storage"`

	// Ack configures acknowledgment replies.
	Ack AckConfig `yaml:"ack"`

	// Log configures structured logging.
	Log LogConfig `yaml:"log"`

	// Status configures the optional Unix status socket.
	Status StatusConfig `yaml:"status"`

	// Metrics configures the optional Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`
}

// ListenConfig configures the TCP listener.
type ListenConfig struct {
	// Host is the interface address to bind. Default: 0.0.0.0
	Host string `yaml:"host"`

	// Port is the TCP port. 0 binds an ephemeral port. Default: 2575
	Port int `yaml:"port"`

	// PollInterval bounds how long one accept call blocks before the
	// stop flag is checked again. Default: 1s
	PollInterval Duration `yaml:"poll_interval"`
}

// Address returns Host:Port.
func (l ListenConfig) Address() string {
	return net.JoinHostPort(l.Host, strconv.Itoa(l.Port))
}

// StorageConfig configures the message store.
type StorageConfig struct {
	// Directory holds received messages. Default: hl7_messages
	Directory string `yaml:"directory"`

	// MaxFiles is the eviction threshold. Default: 1000
	MaxFiles int `yaml:"max_files"`
}

// AckConfig configures acknowledgments.
type AckConfig struct {
	// SendingApplication is MSH-3 of every reply. Default: HL7_SERVER
	SendingApplication string `yaml:"sending_application"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Default: info
	Level string `yaml:"level"`

	// Format is one of auto, text, json. auto selects text when stderr
	// is a terminal. Default: auto
	Format string `yaml:"format"`

	// File, when set, receives a copy of every log record.
	File string `yaml:"file"`
}

// StatusConfig configures the status socket.
type StatusConfig struct {
	// SocketPath is the Unix socket path. Empty disables the socket.
	SocketPath string `yaml:"socket_path"`
}

// MetricsConfig configures the metrics endpoint.
type MetricsConfig struct {
	// Listen is the host:port of the /metrics HTTP server. Empty
	// disables it.
	Listen string `yaml:"listen"`
}

// Duration is a time.Duration that unmarshals from YAML strings such as
// "1s" or "250ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var text string
	if err := node.Decode(&text); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{
			Host:         "0.0.0.0",
			Port:         2575,
			PollInterval: Duration(time.Second),
		},
		Storage: StorageConfig{
			Directory: "hl7_messages",
			MaxFiles:  1000,
		},
		Ack: AckConfig{
			SendingApplication: "HL7_SERVER",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads the file named by HL7INGEST_CONFIG. If the variable is
// unset, Load returns [Default].
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path on top of [Default]. Keys
// absent from the file keep their default values.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} in path fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Storage.Directory = expandVars(c.Storage.Directory, vars)
	c.Log.File = expandVars(c.Log.File, vars)
	c.Status.SocketPath = expandVars(c.Status.SocketPath, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns. Provided
// vars take precedence over the environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"auto", "text", "json"}
)

// Validate checks the configuration for errors. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Listen.Port < 0 || c.Listen.Port > 65535 {
		errs = append(errs, fmt.Errorf("listen.port must be between 0 and 65535, got %d", c.Listen.Port))
	}
	if c.Listen.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("listen.poll_interval must be positive, got %s", time.Duration(c.Listen.PollInterval)))
	}

	if c.Storage.Directory == "" {
		errs = append(errs, fmt.Errorf("storage.directory is required"))
	}
	if c.Storage.MaxFiles < 1 {
		errs = append(errs, fmt.Errorf("storage.max_files must be at least 1, got %d", c.Storage.MaxFiles))
	}

	if c.Ack.SendingApplication == "" {
		errs = append(errs, fmt.Errorf("ack.sending_application is required"))
	}

	if !contains(logLevels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of: %v", logLevels))
	}
	if !contains(logFormats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of: %v", logFormats))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates the message directory and the parent directories
// of the log file and status socket.
func (c *Config) EnsurePaths() error {
	paths := []string{c.Storage.Directory}
	if c.Log.File != "" {
		paths = append(paths, filepath.Dir(c.Log.File))
	}
	if c.Status.SocketPath != "" {
		paths = append(paths, filepath.Dir(c.Status.SocketPath))
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
