// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/hl7ingest/receiver"
)

const statusTimeout = 5 * time.Second

// runStatus implements "hl7ingest status".
func runStatus(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var configPath, socketPath string
	var jsonOutput bool

	flagSet := pflag.NewFlagSet(binaryName+" status", pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVar(&configPath, "config", "", "read status.socket_path from this config file")
	flagSet.StringVar(&socketPath, "status-socket", "", "Unix socket of the running receiver")
	flagSet.BoolVar(&jsonOutput, "json", false, "print the status as JSON")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printStatusHelp(stderr, flagSet)
			return nil
		}
		return usageError{err}
	}
	if help, _ := flagSet.GetBool("help"); help {
		printStatusHelp(stderr, flagSet)
		return nil
	}

	if socketPath == "" {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		socketPath = cfg.Status.SocketPath
	}
	if socketPath == "" {
		return fmt.Errorf("no status socket: pass --status-socket or set status.socket_path in the config")
	}

	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()
	stats, err := receiver.QueryStatus(ctx, socketPath)
	if err != nil {
		return err
	}

	if jsonOutput {
		encoder := json.NewEncoder(stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(stats)
	}

	fmt.Fprintf(stdout, "state:        %s\n", stats.State)
	fmt.Fprintf(stdout, "address:      %s\n", stats.Address)
	fmt.Fprintf(stdout, "uptime:       %s\n", stats.Uptime.Round(time.Second))
	if stats.StoreError != "" {
		fmt.Fprintf(stdout, "stored:       unavailable (%s)\n", stats.StoreError)
	} else {
		fmt.Fprintf(stdout, "stored:       %d / %d\n", stats.Stored, stats.Capacity)
	}
	fmt.Fprintf(stdout, "accepted:     %d\n", stats.Accepted)
	fmt.Fprintf(stdout, "rejected:     %d\n", stats.Rejected)
	fmt.Fprintf(stdout, "connections:  %d (%d active)\n", stats.Connections, stats.ActiveConnections)
	return nil
}

func printStatusHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `Query a running %[1]s receiver.

Usage:
  %[1]s status --status-socket PATH [--json]

Flags:
`, binaryName)
	flagSet.SetOutput(w)
	flagSet.PrintDefaults()
}
