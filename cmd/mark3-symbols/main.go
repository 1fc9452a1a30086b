// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// mark3-symbols turns the build-time metadata stream of a firmware
// image into a symbol document: the source files and logging call
// sites the image can emit, keyed by file hash and line.
//
// The document goes to stdout (or --output) as JSON or CBOR. With
// --sqlite the symbols are also imported into a database that
// mark3-decode can query.
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

const help = `mark3-symbols extracts the symbol table from a metadata stream.

Usage:
  mark3-symbols [flags] [metadata]

The metadata path defaults to metadata.path from the config file, which
defaults to logger.bin.

Examples:
  # Print the symbol document for logger.bin
  mark3-symbols

  # Write compact CBOR and import into a symbol database
  mark3-symbols --format cbor -o symbols.cbor --sqlite symbols.db build/logger.bin
`

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		process.Fatal(err)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	var common cli.CommonFlags
	var options symbolOptions
	var bigEndian bool

	flagSet := pflag.NewFlagSet("mark3-symbols", pflag.ContinueOnError)
	common.AddFlags(flagSet)
	flagSet.StringVar(&options.format, "format", "json", "output format: json, cbor, or diag (CBOR diagnostic notation)")
	flagSet.BoolVar(&options.compact, "compact", false, "write JSON on one line")
	flagSet.StringVarP(&options.output, "output", "o", "", "write the document to this file instead of stdout")
	flagSet.StringVar(&options.database, "sqlite", "", "also import the symbols into this SQLite database")
	flagSet.BoolVar(&bigEndian, "big-endian", false, "the metadata was produced by a big-endian target")

	if done, err := common.Parse(flagSet, args, help, stdout); done || err != nil {
		return err
	}
	if flagSet.NArg() > 1 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(1))
	}

	cfg, err := common.LoadConfig()
	if err != nil {
		return err
	}
	options.input = cfg.Metadata.Path
	if flagSet.NArg() == 1 {
		options.input = flagSet.Arg(0)
	}
	if options.database == "" {
		options.database = cfg.Symbols.Database
	}
	layout, err := cfg.Layout()
	if err != nil {
		return err
	}
	options.byteOrder = layout.ByteOrder
	if flagSet.Changed("big-endian") {
		options.byteOrder = binary.LittleEndian
		if bigEndian {
			options.byteOrder = binary.BigEndian
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return extract(ctx, options, stdout, cli.NewLogger(stderr, common.Verbose))
}
