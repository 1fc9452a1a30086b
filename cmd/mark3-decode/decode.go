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

	"github.com/moslevin/mark3-logger/lib/capture"
	"github.com/moslevin/mark3-logger/lib/metastream"
	"github.com/moslevin/mark3-logger/lib/symdb"
	"github.com/moslevin/mark3-logger/lib/symtab"
	"github.com/moslevin/mark3-logger/lib/tlv"
	"github.com/moslevin/mark3-logger/lib/tracedecode"
)

type decodeOptions struct {
	symbols  string
	metadata string
	database string
	raw      bool
	json     bool
	layout   tlv.Layout
}

// rawReadSize is the read granularity for --raw input.
const rawReadSize = 4096

// loadIndex builds the symbol index from whichever source is set. It
// returns a nil index when none is.
func loadIndex(ctx context.Context, options decodeOptions, logger *slog.Logger) (*symtab.Index, error) {
	var table *symtab.Table
	switch {
	case options.symbols != "":
		file, err := os.Open(options.symbols)
		if err != nil {
			return nil, fmt.Errorf("opening symbols: %w", err)
		}
		defer file.Close()
		document, err := symtab.ReadDocument(file)
		if err != nil {
			return nil, err
		}
		table = document.Table()

	case options.metadata != "":
		file, err := os.Open(options.metadata)
		if err != nil {
			return nil, fmt.Errorf("opening metadata: %w", err)
		}
		defer file.Close()
		table, err = metastream.Parse(file,
			metastream.WithByteOrder(options.layout.ByteOrder),
			metastream.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", options.metadata, err)
		}

	case options.database != "":
		store, err := symdb.Open(ctx, symdb.Config{Path: options.database, PoolSize: 1, Logger: logger})
		if err != nil {
			return nil, err
		}
		defer store.Close()
		if table, err = store.Table(ctx); err != nil {
			return nil, err
		}

	default:
		logger.Warn("no symbol source configured; every call site will be unknown")
		return nil, nil
	}

	logger.Debug("symbols loaded", "files", len(table.Files), "call_sites", len(table.CallSites))
	return symtab.NewIndex(table), nil
}

// decode streams input through the frame decoder and prints every
// record. A capture is decoded chunk by chunk; a truncated final chunk
// ends the run with a warning rather than an error.
func decode(ctx context.Context, input io.Reader, options decodeOptions, index *symtab.Index, printer *printer, logger *slog.Logger) error {
	decoder := tracedecode.NewDecoder(options.layout)
	var events, unknown int

	feed := func(p []byte) error {
		for _, record := range decoder.Feed(p) {
			event := tracedecode.Render(record, index, options.layout.PointerSize)
			if !event.Known {
				unknown++
			}
			events++
			if err := printer.print(event); err != nil {
				return err
			}
		}
		return nil
	}

	if options.raw {
		buffer := make([]byte, rawReadSize)
		for ctx.Err() == nil {
			n, err := input.Read(buffer)
			if feedErr := feed(buffer[:n]); feedErr != nil {
				return feedErr
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				return fmt.Errorf("reading input: %w", err)
			}
		}
	} else {
		reader := capture.NewReader(input)
		for ctx.Err() == nil {
			chunk, err := reader.Next()
			if err == io.EOF {
				break
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				logger.Warn("capture ends inside a chunk")
				break
			}
			if err != nil {
				return err
			}
			if err := feed(chunk.Data); err != nil {
				return err
			}
		}
	}

	logger.Info("decode complete",
		"events", events,
		"unknown_call_sites", unknown,
		"skipped_bytes", decoder.Skipped(),
		"trailing_bytes", decoder.Buffered(),
		"byte_order", byteOrderName(options.layout.ByteOrder),
	)
	return ctx.Err()
}
