// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// mark3-decode turns captured log buffer bytes back into log lines.
//
// Input is a capture file written by mark3-sim or any other producer
// of capture chunks, or with --raw the bare ring bytes as a device
// transmits them. Each record is joined with its call site from a
// symbol source and its format string rendered with the record's
// arguments. Records whose call site is unknown are printed with their
// raw arguments.
package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/moslevin/mark3-logger/internal/cli"
	"github.com/moslevin/mark3-logger/lib/process"
)

const help = `mark3-decode prints the log records in a capture.

Usage:
  mark3-decode [flags] [capture]

The capture path defaults to capture.path from the config file; "-"
reads stdin. Symbols come from one of --symbols (a document written by
mark3-symbols), --metadata (a raw metadata stream), or --database (a
SQLite symbol store); without any, every call site is unknown.

Examples:
  # Decode a capture against the image's metadata
  mark3-decode --metadata build/logger.bin run.capture

  # Emit JSON lines for further processing
  mark3-decode --symbols symbols.json --json run.capture | jq .message
`

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		process.Fatal(err)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var common cli.CommonFlags
	var options decodeOptions
	var bigEndian bool
	var pointerSize int

	flagSet := pflag.NewFlagSet("mark3-decode", pflag.ContinueOnError)
	common.AddFlags(flagSet)
	flagSet.StringVar(&options.symbols, "symbols", "", "symbol document (JSON, JSONC, or CBOR)")
	flagSet.StringVar(&options.metadata, "metadata", "", "raw metadata stream")
	flagSet.StringVar(&options.database, "database", "", "SQLite symbol database")
	flagSet.BoolVar(&options.raw, "raw", false, "input is raw ring bytes, not a capture file")
	flagSet.BoolVar(&options.json, "json", false, "print one JSON object per record")
	flagSet.IntVar(&pointerSize, "pointer-size", 0, "target pointer size in bytes (default: target.pointer_size)")
	flagSet.BoolVar(&bigEndian, "big-endian", false, "the target is big-endian")

	if done, err := common.Parse(flagSet, args, help, stdout); done || err != nil {
		return err
	}
	if flagSet.NArg() > 1 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(1))
	}
	sources := 0
	for _, source := range []string{options.symbols, options.metadata, options.database} {
		if source != "" {
			sources++
		}
	}
	if sources > 1 {
		return fmt.Errorf("--symbols, --metadata, and --database are mutually exclusive")
	}

	cfg, err := common.LoadConfig()
	if err != nil {
		return err
	}
	if flagSet.Changed("pointer-size") {
		cfg.Target.PointerSize = pointerSize
	}
	if flagSet.Changed("big-endian") {
		cfg.Target.ByteOrder = "little"
		if bigEndian {
			cfg.Target.ByteOrder = "big"
		}
	}
	if options.layout, err = cfg.Layout(); err != nil {
		return err
	}
	if sources == 0 && cfg.Symbols.Database != "" {
		options.database = cfg.Symbols.Database
	}

	inputPath := cfg.Capture.Path
	if flagSet.NArg() == 1 {
		inputPath = flagSet.Arg(0)
	}
	input := stdin
	if inputPath != "-" {
		file, err := os.Open(inputPath)
		if err != nil {
			return fmt.Errorf("opening capture: %w", err)
		}
		defer file.Close()
		input = file
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := cli.NewLogger(stderr, common.Verbose)
	index, err := loadIndex(ctx, options, logger)
	if err != nil {
		return err
	}

	printer := newPrinter(stdout, options.json, cli.IsTerminal(stdout))
	return decode(ctx, input, options, index, printer, logger)
}

// byteOrderName is used in log attributes.
func byteOrderName(order binary.ByteOrder) string {
	if order == binary.BigEndian {
		return "big"
	}
	return "little"
}
