// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/moslevin/mark3-logger/lib/capture"
	"github.com/moslevin/mark3-logger/lib/config"
	"github.com/moslevin/mark3-logger/lib/logbuf"
	"github.com/moslevin/mark3-logger/lib/metastream"
	"github.com/moslevin/mark3-logger/lib/symdb"
	"github.com/moslevin/mark3-logger/lib/symtab"
	"github.com/moslevin/mark3-logger/lib/tlv"
	"github.com/moslevin/mark3-logger/lib/tracedecode"
)

var mainHash = tlv.FileID("main.cpp")

func sampleTable() *symtab.Table {
	table := &symtab.Table{}
	table.AddFile(symtab.FileRecord{Name: "main.cpp", Hash: mainHash})
	table.AddCallSite(symtab.CallSite{Format: "Testing0", FileHash: mainHash, Line: 72})
	table.AddCallSite(symtab.CallSite{Format: "Testing: %d\n", FileHash: mainHash, Line: 76})
	return table
}

func sampleRecords() []tlv.Record {
	return []tlv.Record{
		tlv.NewRecord(mainHash, 1234, 72),
		tlv.NewRecord(mainHash, 1250, 76, tlv.I16(5)),
		tlv.NewRecord(mainHash, 1300, 99, tlv.U8(7)),
	}
}

const wantText = `      1.234 main.cpp:72 Testing0
      1.250 main.cpp:76 Testing: 5
      1.300 main.cpp:99 <unknown call site 0x`

// writeCapture flushes records through a ring buffer into a capture
// file and returns its path.
func writeCapture(t *testing.T, records []tlv.Record) string {
	t.Helper()
	var file bytes.Buffer
	buffer := logbuf.New(512, logbuf.WithTransport(capture.NewWriter(&file, capture.Options{Compression: capture.CompressionZstd})))
	for _, record := range records {
		buffer.WriteRecord(tlv.DefaultLayout, record)
		// One chunk per record.
		if err := buffer.Flush(); err != nil {
			t.Fatalf("Flush: %v", err)
		}
	}
	path := filepath.Join(t.TempDir(), "run.capture")
	if err := os.WriteFile(path, file.Bytes(), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestDecodeWithSymbolDocument(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")

	var document bytes.Buffer
	if err := symtab.WriteJSON(&document, sampleTable().Document(), true); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	symbols := writeFile(t, "symbols.json", document.Bytes())
	capturePath := writeCapture(t, sampleRecords())

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--symbols", symbols, capturePath}, nil, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}
	if !strings.HasPrefix(stdout.String(), wantText) {
		t.Errorf("output:\n%s\nwant prefix:\n%s", stdout.String(), wantText)
	}
	if !strings.Contains(stderr.String(), `"unknown_call_sites":1`) {
		t.Errorf("stderr lacks the summary: %s", stderr.String())
	}
}

func TestDecodeWithMetadataJSON(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")

	var stream bytes.Buffer
	if err := metastream.NewWriter(&stream).WriteTable(sampleTable(), metastream.Reverse); err != nil {
		t.Fatalf("WriteTable: %v", err)
	}
	metadata := writeFile(t, "logger.bin", stream.Bytes())
	capturePath := writeCapture(t, sampleRecords()[1:2])

	var stdout bytes.Buffer
	if err := run([]string{"--metadata", metadata, "--json", capturePath}, nil, &stdout, &bytes.Buffer{}); err != nil {
		t.Fatalf("run: %v", err)
	}

	var event tracedecode.Event
	if err := json.Unmarshal(stdout.Bytes(), &event); err != nil {
		t.Fatalf("output is not one JSON event: %v\n%s", err, stdout.String())
	}
	if !event.Known || event.Message != "Testing: 5\n" || event.FileName != "main.cpp" || event.Timestamp != 1250 {
		t.Errorf("event = %+v", event)
	}
}

func TestDecodeRawFromStdinWithDatabase(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")

	database := filepath.Join(t.TempDir(), "symbols.db")
	store, err := symdb.Open(context.Background(), symdb.Config{Path: database})
	if err != nil {
		t.Fatalf("symdb.Open: %v", err)
	}
	if err := store.Import(context.Background(), sampleTable()); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var ring bytes.Buffer
	buffer := logbuf.New(512, logbuf.WithTransport(&ring))
	for _, record := range sampleRecords()[:2] {
		buffer.WriteRecord(tlv.DefaultLayout, record)
	}
	if err := buffer.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	var stdout bytes.Buffer
	err = run([]string{"--database", database, "--raw", "-"}, &ring, &stdout, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "      1.234 main.cpp:72 Testing0\n      1.250 main.cpp:76 Testing: 5\n"
	if stdout.String() != want {
		t.Errorf("output:\n%q\nwant:\n%q", stdout.String(), want)
	}
}

func TestDecodeWithoutSymbols(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")
	capturePath := writeCapture(t, sampleRecords()[1:2])

	var stdout bytes.Buffer
	if err := run([]string{capturePath}, nil, &stdout, &bytes.Buffer{}); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "      1.250 0x" // file name unknown without symbols
	if !strings.HasPrefix(stdout.String(), want) || !strings.Contains(stdout.String(), "<unknown call site") {
		t.Errorf("output = %q", stdout.String())
	}
}

func TestDecodeTruncatedCapture(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")

	data, err := os.ReadFile(writeCapture(t, sampleRecords()))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	truncated := writeFile(t, "cut.capture", data[:len(data)-2])

	var stdout, stderr bytes.Buffer
	if err := run([]string{truncated}, nil, &stdout, &stderr); err != nil {
		t.Fatalf("run on a truncated capture: %v", err)
	}
	if got := strings.Count(stdout.String(), "\n"); got != 2 {
		t.Errorf("printed %d events from the intact chunks, want 2", got)
	}
	if !strings.Contains(stderr.String(), "capture ends inside a chunk") {
		t.Errorf("stderr lacks the truncation warning: %s", stderr.String())
	}
}

func TestRunRejectsSeveralSymbolSources(t *testing.T) {
	err := run([]string{"--symbols", "a.json", "--database", "b.db"}, nil, &bytes.Buffer{}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Errorf("run = %v, want mutually exclusive error", err)
	}
}

func TestRunMissingCapture(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")

	err := run([]string{filepath.Join(t.TempDir(), "absent.capture")}, nil, &bytes.Buffer{}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "opening capture") {
		t.Errorf("run = %v, want opening capture error", err)
	}
}
