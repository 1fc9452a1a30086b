// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/moslevin/mark3-logger/lib/codec"
	"github.com/moslevin/mark3-logger/lib/metastream"
	"github.com/moslevin/mark3-logger/lib/symdb"
	"github.com/moslevin/mark3-logger/lib/symtab"
)

type symbolOptions struct {
	input     string
	byteOrder binary.ByteOrder
	format    string
	compact   bool
	output    string
	database  string
}

// extract parses the metadata stream at options.input and writes the
// symbol document.
func extract(ctx context.Context, options symbolOptions, stdout io.Writer, logger *slog.Logger) error {
	switch options.format {
	case "json", "cbor", "diag":
	default:
		return fmt.Errorf("unknown format %q (want json, cbor or diag)", options.format)
	}

	data, err := os.ReadFile(options.input)
	if err != nil {
		return fmt.Errorf("reading metadata: %w", err)
	}

	parser := metastream.NewParser(bytes.NewReader(data),
		metastream.WithByteOrder(options.byteOrder),
		metastream.WithLogger(logger),
	)
	table, err := parser.Parse()
	if err != nil {
		return fmt.Errorf("parsing %s: %w", options.input, err)
	}
	stats := parser.Stats()
	logger.Info("metadata parsed",
		"path", options.input,
		"files", stats.Files,
		"call_sites", stats.CallSites,
		"resyncs", stats.Resyncs,
		"skipped_tokens", stats.SkippedTokens,
	)

	document := table.Document()
	source := symtab.DescribeSource(options.input, data)
	document.Source = &source

	if err := writeDocument(options, document, stdout); err != nil {
		return err
	}

	if options.database != "" {
		if err := importSymbols(ctx, options.database, table, logger); err != nil {
			return err
		}
	}
	return nil
}

func writeDocument(options symbolOptions, document symtab.Document, stdout io.Writer) (err error) {
	w := stdout
	if options.output != "" && options.output != "-" {
		file, createErr := os.Create(options.output)
		if createErr != nil {
			return fmt.Errorf("creating output: %w", createErr)
		}
		defer func() {
			if closeErr := file.Close(); err == nil && closeErr != nil {
				err = fmt.Errorf("closing output: %w", closeErr)
			}
		}()
		w = file
	}

	switch options.format {
	case "cbor":
		return symtab.WriteCBOR(w, document)
	case "diag":
		return writeDiagnostic(w, document)
	}
	return symtab.WriteJSON(w, document, !options.compact)
}

// writeDiagnostic writes the CBOR encoding of document in diagnostic
// notation, one line.
func writeDiagnostic(w io.Writer, document symtab.Document) error {
	data, err := codec.Marshal(document)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	notation, err := codec.Diagnose(data)
	if err != nil {
		return fmt.Errorf("diagnosing document: %w", err)
	}
	_, err = fmt.Fprintln(w, notation)
	return err
}

func importSymbols(ctx context.Context, path string, table *symtab.Table, logger *slog.Logger) error {
	store, err := symdb.Open(ctx, symdb.Config{Path: path, PoolSize: 1, Logger: logger})
	if err != nil {
		return err
	}
	if err := store.Import(ctx, table); err != nil {
		store.Close()
		return err
	}
	return store.Close()
}
