// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/bureau-foundation/hl7ingest/lib/config"
)

// newLogger builds the process logger. "auto" format picks text when
// stderr is a terminal and JSON otherwise. When cfg.File is set, every
// record is also appended to that file; the returned func closes it.
func newLogger(cfg config.LogConfig, stderr io.Writer) (*slog.Logger, func() error, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
	}

	output := stderr
	closeLog := func() error { return nil }
	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		output = io.MultiWriter(stderr, file)
		closeLog = file.Close
	}

	format := cfg.Format
	if format == "auto" {
		format = "json"
		if isTerminal(stderr) {
			format = "text"
		}
	}

	options := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(output, options)
	} else {
		handler = slog.NewJSONHandler(output, options)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, closeLog, nil
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}
