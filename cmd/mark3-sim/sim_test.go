// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/moslevin/mark3-logger/lib/capture"
	"github.com/moslevin/mark3-logger/lib/clock"
	"github.com/moslevin/mark3-logger/lib/config"
	"github.com/moslevin/mark3-logger/lib/logbuf"
	"github.com/moslevin/mark3-logger/lib/logmetrics"
	"github.com/moslevin/mark3-logger/lib/metastream"
	"github.com/moslevin/mark3-logger/lib/symtab"
	"github.com/moslevin/mark3-logger/lib/tlv"
	"github.com/moslevin/mark3-logger/lib/tracedecode"
)

var discard = slog.New(slog.DiscardHandler)

// decodeRun reads the capture and metadata a simulation wrote and
// renders every record.
func decodeRun(t *testing.T, capturePath, metadataPath string, layout tlv.Layout) []tracedecode.Event {
	t.Helper()

	captureFile, err := os.Open(capturePath)
	if err != nil {
		t.Fatalf("Open capture: %v", err)
	}
	defer captureFile.Close()
	stream, err := capture.ReadAll(captureFile)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	metadataFile, err := os.Open(metadataPath)
	if err != nil {
		t.Fatalf("Open metadata: %v", err)
	}
	defer metadataFile.Close()
	table, err := metastream.Parse(metadataFile, metastream.WithByteOrder(layout.ByteOrder))
	if err != nil {
		t.Fatalf("Parse metadata: %v", err)
	}
	index := symtab.NewIndex(table)

	decoder := tracedecode.NewDecoder(layout)
	var events []tracedecode.Event
	for _, record := range decoder.Feed(stream) {
		events = append(events, tracedecode.Render(record, index, layout.PointerSize))
	}
	if decoder.Skipped() != 0 {
		t.Errorf("decoder skipped %d bytes of a lossless capture", decoder.Skipped())
	}
	return events
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	directory := t.TempDir()
	cfg := config.Default()
	cfg.Buffer.Capacity = 4096
	cfg.Capture.Path = filepath.Join(directory, "run.capture")
	cfg.Metadata.Path = filepath.Join(directory, "logger.bin")
	return cfg
}

func TestSimulateWithFakeClock(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Capture.Compression = "zstd"
	fake := clock.Fake(time.Unix(1_700_000_000, 0))
	options := simulateOptions{producers: 1, interval: 10 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- simulate(ctx, cfg, options, fake, io.Discard, discard) }()

	// The flusher's ticker plus one pending wait per producer.
	const rounds = 4
	for range rounds {
		fake.WaitForTimers(options.producers + 1)
		fake.Advance(options.interval)
	}
	fake.WaitForTimers(options.producers + 1)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("simulate: %v", err)
	}

	layout, err := cfg.Layout()
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	events := decodeRun(t, cfg.Capture.Path, cfg.Metadata.Path, layout)
	if len(events) != rounds+1 {
		t.Fatalf("decoded %d events, want %d", len(events), rounds+1)
	}

	want := []string{
		"Testing0",
		"Testing: 1\n",
		"channel 0 reads 1.67 V",
		"switch to thread 0x20001000 ('A')",
		"stack margin 252 bytes, uptime 40 ticks",
	}
	for index, event := range events {
		if !event.Known {
			t.Errorf("event %d: unknown call site %s", index, event.Location())
		}
		if event.Message != want[index] {
			t.Errorf("event %d message = %q, want %q", index, event.Message, want[index])
		}
		if wantTimestamp := uint32(index * 10); event.Timestamp != wantTimestamp {
			t.Errorf("event %d timestamp = %d, want %d", index, event.Timestamp, wantTimestamp)
		}
	}
	if events[0].Location() != "main.cpp:72" {
		t.Errorf("first event at %s, want main.cpp:72", events[0].Location())
	}
}

func TestSimulateConcurrentProducers(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Target.PointerSize = 8
	cfg.Target.ByteOrder = "big"
	fake := clock.Fake(time.Unix(0, 0))
	options := simulateOptions{producers: 3, interval: 5 * time.Millisecond, reverse: true}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- simulate(ctx, cfg, options, fake, io.Discard, discard) }()

	const rounds = 6
	for range rounds {
		fake.WaitForTimers(options.producers + 1)
		fake.Advance(options.interval)
	}
	fake.WaitForTimers(options.producers + 1)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("simulate: %v", err)
	}

	layout, err := cfg.Layout()
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	events := decodeRun(t, cfg.Capture.Path, cfg.Metadata.Path, layout)
	if want := options.producers * (rounds + 1); len(events) != want {
		t.Fatalf("decoded %d events, want %d", len(events), want)
	}
	threads := make(map[string]bool)
	for index, event := range events {
		if !event.Known {
			t.Errorf("event %d: unknown call site %s", index, event.Location())
		}
		if strings.HasPrefix(event.Message, "switch to thread ") {
			threads[event.Message] = true
		}
	}
	if len(threads) != options.producers {
		t.Errorf("saw context switches to %d threads, want one per producer: %v", len(threads), threads)
	}
}

func TestRunForDuration(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")

	directory := t.TempDir()
	capturePath := filepath.Join(directory, "run.capture")
	metadataPath := filepath.Join(directory, "logger.bin")

	var stdout, stderr bytes.Buffer
	err := run([]string{
		"--duration", "50ms",
		"--interval", "1ms",
		"--producers", "2",
		"--capture", capturePath,
		"--metadata", metadataPath,
		"--compression", "lz4",
		"--capacity", "1048576",
		"--metrics-address", "127.0.0.1:0",
	}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, stderr.String())
	}

	events := decodeRun(t, capturePath, metadataPath, tlv.DefaultLayout)
	if len(events) == 0 {
		t.Fatal("no events captured")
	}
	for index, event := range events {
		if !event.Known {
			t.Errorf("event %d: unknown call site %s", index, event.Location())
		}
	}
	if !strings.Contains(stderr.String(), "simulation stopped") {
		t.Errorf("stderr lacks the summary:\n%s", stderr.String())
	}
}

func TestRunRejectsBadFlags(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")

	for _, args := range [][]string{
		{"--producers", "0"},
		{"--interval", "0s"},
		{"--duration", "-1s"},
		{"--compression", "gzip"},
		{"extra"},
		{"--no-such-flag"},
	} {
		if err := run(args, io.Discard, io.Discard); err == nil {
			t.Errorf("run(%q) succeeded, want an error", args)
		}
	}
}

func TestRunHelp(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")

	var stdout bytes.Buffer
	if err := run([]string{"--help"}, &stdout, io.Discard); err != nil {
		t.Fatalf("run --help: %v", err)
	}
	for _, want := range []string{"Usage:", "--producers", "--metrics-address"} {
		if !strings.Contains(stdout.String(), want) {
			t.Errorf("help lacks %q", want)
		}
	}
}

func TestHexWriter(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	writer := &hexWriter{w: &out}
	written, err := writer.Write([]byte{0xfe, 0xca, 0x00, 0x7f})
	if err != nil || written != 4 {
		t.Fatalf("Write = %d, %v; want 4, nil", written, err)
	}
	if _, err := writer.Write([]byte{0x0a}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got, want := out.String(), "FE CA 00 7F \n0A \n"; got != want {
		t.Errorf("hex dump = %q, want %q", got, want)
	}
}

func TestSimulateHexDump(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Capture.Path = "-"
	cfg.Metadata.Path = ""
	fake := clock.Fake(time.Unix(0, 0))

	ctx, cancel := context.WithCancel(context.Background())
	var stdout bytes.Buffer
	done := make(chan error, 1)
	go func() {
		done <- simulate(ctx, cfg, simulateOptions{producers: 1, interval: time.Millisecond}, fake, &stdout, discard)
	}()
	fake.WaitForTimers(2)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("simulate: %v", err)
	}

	// One "Testing0" frame: markers, 11-byte header, no arguments.
	line := strings.TrimSuffix(stdout.String(), "\n")
	if fields := strings.Fields(line); len(fields) != tlv.HeaderSize+logbuf.FrameOverhead {
		t.Errorf("hex dump has %d bytes, want %d: %q", len(fields), tlv.HeaderSize+logbuf.FrameOverhead, line)
	}
	if !strings.HasPrefix(line, "FE CA ") {
		t.Errorf("hex dump = %q, want it to start with the little-endian begin marker", line)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	buffer := logbuf.New(256)
	buffer.WriteRecord(tlv.DefaultLayout, tlv.NewRecord(1, 0, 1))
	metrics, err := startMetrics("127.0.0.1:0", logmetrics.NewCollector(buffer, "mark3"), discard)
	if err != nil {
		t.Fatalf("startMetrics: %v", err)
	}
	defer metrics.Shutdown(context.Background())

	response, err := http.Get("http://" + metrics.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer response.Body.Close()
	body, err := io.ReadAll(response.Body)
	if err != nil {
		t.Fatalf("reading response: %v", err)
	}
	for _, want := range []string{"mark3_logbuf_capacity_bytes 256", "mark3_logbuf_records_total 1", "go_goroutines"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics lack %q", want)
		}
	}
}
