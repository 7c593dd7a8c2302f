// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/hl7ingest/lib/config"
	"github.com/bureau-foundation/hl7ingest/lib/hl7"
	"github.com/bureau-foundation/hl7ingest/lib/metrics"
	"github.com/bureau-foundation/hl7ingest/lib/msgstore"
	"github.com/bureau-foundation/hl7ingest/lib/process"
	"github.com/bureau-foundation/hl7ingest/lib/version"
	"github.com/bureau-foundation/hl7ingest/receiver"
)

const binaryName = "hl7ingest"

// metricsShutdownTimeout bounds in-flight scrapes at shutdown.
const metricsShutdownTimeout = 5 * time.Second

// errHelp reports that usage or version output was printed and the
// process should exit successfully without doing anything else.
var errHelp = errors.New("help requested")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		process.Fatal(err)
	}
}

// usageError marks a command-line mistake; the process exits 2.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }

func (e usageError) Unwrap() error { return e.err }

func (e usageError) ExitCode() int { return 2 }

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		switch args[0] {
		case "status":
			return runStatus(ctx, args[1:], stdout, stderr)
		case "serve":
			args = args[1:]
		}
	}

	cfg, err := resolveConfig(args, stdout, stderr)
	if errors.Is(err, errHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	logger, closeLog, err := newLogger(cfg.Log, stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	return serve(ctx, cfg, logger)
}

// serveFlags holds the serve command's flag values. Each one overrides
// the config file only when given on the command line.
type serveFlags struct {
	flagSet *pflag.FlagSet

	configPath    string
	host          string
	port          int
	messageDir    string
	maxFiles      int
	logLevel      string
	logFormat     string
	logFile       string
	statusSocket  string
	metricsListen string
	showVersion   bool
}

func newServeFlags() *serveFlags {
	defaults := config.Default()
	flags := &serveFlags{flagSet: pflag.NewFlagSet(binaryName, pflag.ContinueOnError)}
	flagSet := flags.flagSet
	flagSet.StringVar(&flags.configPath, "config", "", "path to YAML config file (default: $"+config.EnvironmentVariable+")")
	flagSet.StringVar(&flags.host, "host", defaults.Listen.Host, "interface address to listen on")
	flagSet.IntVar(&flags.port, "port", defaults.Listen.Port, "TCP port to listen on (0 for ephemeral)")
	flagSet.StringVar(&flags.messageDir, "message-dir", defaults.Storage.Directory, "directory for received messages")
	flagSet.IntVar(&flags.maxFiles, "max-files", defaults.Storage.MaxFiles, "stored message count that triggers eviction")
	flagSet.StringVar(&flags.logLevel, "log-level", defaults.Log.Level, "log level: debug, info, warn, error")
	flagSet.StringVar(&flags.logFormat, "log-format", defaults.Log.Format, "log format: auto, text, json")
	flagSet.StringVar(&flags.logFile, "log-file", "", "also append log records to this file")
	flagSet.StringVar(&flags.statusSocket, "status-socket", "", "Unix socket path for status queries")
	flagSet.StringVar(&flags.metricsListen, "metrics-listen", "", "host:port for the Prometheus /metrics endpoint")
	flagSet.BoolVar(&flags.showVersion, "version", false, "print version and exit")
	flagSet.BoolP("help", "h", false, "show help")
	return flags
}

// apply copies explicitly set flags onto cfg.
func (f *serveFlags) apply(cfg *config.Config) {
	changed := f.flagSet.Changed
	if changed("host") {
		cfg.Listen.Host = f.host
	}
	if changed("port") {
		cfg.Listen.Port = f.port
	}
	if changed("message-dir") {
		cfg.Storage.Directory = f.messageDir
	}
	if changed("max-files") {
		cfg.Storage.MaxFiles = f.maxFiles
	}
	if changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = f.logFormat
	}
	if changed("log-file") {
		cfg.Log.File = f.logFile
	}
	if changed("status-socket") {
		cfg.Status.SocketPath = f.statusSocket
	}
	if changed("metrics-listen") {
		cfg.Metrics.Listen = f.metricsListen
	}
}

// resolveConfig parses args, loads the config file, layers flags on
// top, and validates the result. It returns errHelp after printing
// usage or version output.
func resolveConfig(args []string, stdout, stderr io.Writer) (*config.Config, error) {
	flags := newServeFlags()
	flags.flagSet.SetOutput(io.Discard)
	if err := flags.flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(stderr, flags.flagSet)
			return nil, errHelp
		}
		return nil, usageError{err}
	}
	if help, _ := flags.flagSet.GetBool("help"); help {
		printHelp(stderr, flags.flagSet)
		return nil, errHelp
	}
	if flags.showVersion {
		fmt.Fprintf(stdout, "%s %s\n", binaryName, version.Full())
		return nil, errHelp
	}
	if rest := flags.flagSet.Args(); len(rest) > 0 {
		return nil, usageError{fmt.Errorf("unexpected argument: %s", rest[0])}
	}

	cfg, err := loadConfig(flags.configPath)
	if err != nil {
		return nil, err
	}
	flags.apply(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadConfig reads path when given, otherwise $HL7INGEST_CONFIG, and
// falls back to defaults when neither names a file.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `%[1]s - HL7 device message receiver

Listens for HL7 v2 messages terminated by 0x1C (or a bare carriage
return), stores each message in the message directory, and replies
with an AA acknowledgment or an AE negative acknowledgment. When the
directory reaches --max-files, the oldest half is deleted.

Usage:
  %[1]s [serve] [flags]
  %[1]s status --status-socket PATH

Examples:
  # Listen on the default port 2575
  %[1]s

  # Keep at most 500 messages under /var/lib/hl7
  %[1]s --message-dir /var/lib/hl7 --max-files 500

  # Expose status and metrics
  %[1]s --status-socket /run/hl7ingest/status.sock --metrics-listen 127.0.0.1:9102

Flags:
`, binaryName)
	flagSet.SetOutput(w)
	flagSet.PrintDefaults()
}

// serve runs the receiver until ctx is cancelled.
// The caller has already created cfg's directories.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	collectors := metrics.New()
	store, err := msgstore.Open(msgstore.Config{
		Directory: cfg.Storage.Directory,
		MaxFiles:  cfg.Storage.MaxFiles,
		Logger:    logger,
		Metrics:   collectors,
	})
	if err != nil {
		return err
	}

	server := &receiver.Server{
		Address:      cfg.Listen.Address(),
		Store:        store,
		Acks:         &hl7.AckBuilder{SendingApplication: cfg.Ack.SendingApplication},
		Logger:       logger,
		Metrics:      collectors,
		PollInterval: time.Duration(cfg.Listen.PollInterval),
		StatusSocket: cfg.Status.SocketPath,
	}
	if err := server.Start(ctx); err != nil {
		return err
	}
	defer server.Stop()

	if cfg.Metrics.Listen != "" {
		metricsServer := &metrics.Server{
			ListenAddr: cfg.Metrics.Listen,
			Metrics:    collectors,
			Healthy:    server.Healthy,
			Logger:     logger,
		}
		if err := metricsServer.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer cancel()
			if err := metricsServer.Stop(shutdownCtx); err != nil {
				logger.Warn("metrics server shutdown", "error", err)
			}
		}()
	}

	logger.Info("hl7ingest running",
		"version", version.Info(),
		"address", server.Addr().String(),
		"message_dir", store.Directory(),
		"max_files", store.MaxFiles(),
	)

	<-ctx.Done()
	logger.Info("shutdown requested")
	return nil
}
