// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// mark3-sim runs the logging side of a device on the host: producer
// goroutines emit records into a ring buffer, and a flusher drains the
// buffer into a capture file. It also writes the metadata stream a
// build of the simulated firmware would carry, so its output can be
// fed straight to mark3-symbols and mark3-decode.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/moslevin/mark3-logger/internal/cli"
	"github.com/moslevin/mark3-logger/lib/clock"
	"github.com/moslevin/mark3-logger/lib/process"
)

const help = `mark3-sim simulates a device logging into a ring buffer.

Usage:
  mark3-sim [flags]

Records are flushed to capture.path (a capture file, or with "-" a hex
dump on stdout) and the firmware's metadata is written to
metadata.path. The simulation runs for --duration, or until interrupted
when --duration is 0.

Examples:
  # Ten seconds of logging from four producers
  mark3-sim --duration 10s --producers 4

  # Watch the flushed bytes the way a debug console would show them
  mark3-sim --capture - --duration 1s

  # Expose buffer metrics while running
  mark3-sim --metrics-address 127.0.0.1:9464
`

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		process.Fatal(err)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	var common cli.CommonFlags
	var options simulateOptions
	var (
		duration       time.Duration
		capturePath    string
		metadataPath   string
		compression    string
		metricsAddress string
		capacity       int
	)

	flagSet := pflag.NewFlagSet("mark3-sim", pflag.ContinueOnError)
	common.AddFlags(flagSet)
	flagSet.DurationVar(&duration, "duration", 0, "how long to run; 0 runs until interrupted")
	flagSet.IntVar(&options.producers, "producers", 1, "number of concurrent logging goroutines")
	flagSet.DurationVar(&options.interval, "interval", 10*time.Millisecond, "delay between records of one producer")
	flagSet.BoolVar(&options.reverse, "reverse", false, "write metadata frames in reverse field order")
	flagSet.StringVar(&capturePath, "capture", "", "capture file, or - for a hex dump (default: capture.path)")
	flagSet.StringVar(&metadataPath, "metadata", "", "metadata stream to write (default: metadata.path)")
	flagSet.StringVar(&compression, "compression", "", "capture compression: none, lz4 or zstd (default: capture.compression)")
	flagSet.StringVar(&metricsAddress, "metrics-address", "", "serve Prometheus metrics on this address (default: metrics.address)")
	flagSet.IntVar(&capacity, "capacity", 0, "ring buffer size in bytes (default: buffer.capacity)")

	if done, err := common.Parse(flagSet, args, help, stdout); done || err != nil {
		return err
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}
	if options.producers < 1 {
		return fmt.Errorf("--producers must be at least 1, got %d", options.producers)
	}
	if options.interval <= 0 {
		return fmt.Errorf("--interval must be positive, got %s", options.interval)
	}
	if duration < 0 {
		return fmt.Errorf("--duration must not be negative, got %s", duration)
	}

	cfg, err := common.LoadConfig()
	if err != nil {
		return err
	}
	if flagSet.Changed("capture") {
		cfg.Capture.Path = capturePath
	}
	if flagSet.Changed("metadata") {
		cfg.Metadata.Path = metadataPath
	}
	if flagSet.Changed("compression") {
		cfg.Capture.Compression = compression
	}
	if flagSet.Changed("metrics-address") {
		cfg.Metrics.Address = metricsAddress
	}
	if flagSet.Changed("capacity") {
		cfg.Buffer.Capacity = capacity
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	logger := cli.NewLogger(stderr, common.Verbose)
	return simulate(ctx, cfg, options, clock.Real(), stdout, logger)
}
