// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/moslevin/mark3-logger/lib/clock"
	"github.com/moslevin/mark3-logger/lib/logbuf"
	"github.com/moslevin/mark3-logger/lib/metastream"
	"github.com/moslevin/mark3-logger/lib/symtab"
	"github.com/moslevin/mark3-logger/lib/tlv"
)

type simulatorConfig struct {
	Layout        tlv.Layout
	Capacity      int
	FlushInterval time.Duration

	// Producers is the number of concurrent logging goroutines, each
	// emitting one record per Interval.
	Producers int
	Interval  time.Duration

	Transport logbuf.Transport
	Clock     clock.Clock
	Logger    *slog.Logger
}

// simulator is a device running the firmware call sites against a
// ring buffer drained by a Flusher.
type simulator struct {
	config  simulatorConfig
	buffer  *logbuf.Buffer
	flusher *logbuf.Flusher
	emitter *logbuf.Emitter
}

func newSimulator(config simulatorConfig) *simulator {
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	buffer := logbuf.New(config.Capacity,
		logbuf.WithByteOrder(config.Layout.ByteOrder),
		logbuf.WithTransport(config.Transport),
	)
	return &simulator{
		config: config,
		buffer: buffer,
		flusher: logbuf.NewFlusher(buffer, logbuf.FlusherConfig{
			Interval: config.FlushInterval,
			Clock:    config.Clock,
			Logger:   config.Logger,
		}),
		emitter: logbuf.NewEmitter(buffer, config.Layout, config.Clock),
	}
}

// Run starts the producers and the flusher and blocks until ctx is
// done. Producers stop first so the flusher's final pass sees every
// record.
func (s *simulator) Run(ctx context.Context) error {
	flusherContext, stopFlusher := context.WithCancel(context.Background())
	defer stopFlusher()
	flusherDone := make(chan error, 1)
	go func() { flusherDone <- s.flusher.Run(flusherContext) }()

	var producers sync.WaitGroup
	for producer := range s.config.Producers {
		producers.Add(1)
		go func() {
			defer producers.Done()
			s.produce(ctx, producer)
		}()
	}
	producers.Wait()

	stopFlusher()
	if err := <-flusherDone; err != nil {
		return fmt.Errorf("flusher: %w", err)
	}

	stats := s.buffer.Stats()
	flusherStats := s.flusher.Stats()
	s.config.Logger.Info("simulation stopped",
		"records", stats.Records,
		"dropped", stats.Dropped,
		"flushes", stats.Flushes,
		"bytes_flushed", stats.BytesFlushed,
		"overruns", stats.Overruns,
		"bytes_lost", stats.BytesLost,
		"notifications", stats.Notifications,
		"flush_errors", flusherStats.Errors,
	)
	return nil
}

// produce cycles through the firmware call sites, starting at an
// offset so concurrent producers interleave different sites.
func (s *simulator) produce(ctx context.Context, producer int) {
	for n := 0; ; n++ {
		site := firmware[(producer+n)%len(firmware)]
		var args []tlv.Arg
		if site.args != nil {
			args = site.args(producer, n, s.config.Layout)
		}
		s.emitter.Emit(tlv.FileID(site.file), site.line, args...)

		select {
		case <-s.config.Clock.After(s.config.Interval):
		case <-ctx.Done():
			return
		}
	}
}

// writeMetadata writes table as a metadata stream to path.
func writeMetadata(path string, table *symtab.Table, layout tlv.Layout, direction metastream.Direction) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating metadata: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("closing metadata: %w", closeErr)
		}
	}()
	writer := metastream.NewWriter(file, metastream.WithByteOrder(layout.ByteOrder))
	if err := writer.WriteTable(table, direction); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	return nil
}

// hexWriter is the transport used when the capture path is "-": each
// flush becomes one line of space-separated hex bytes, the way a
// device dumps its buffer over a debug console.
type hexWriter struct {
	w       io.Writer
	builder strings.Builder
}

func (h *hexWriter) Write(p []byte) (int, error) {
	const digits = "0123456789ABCDEF"
	h.builder.Reset()
	for _, b := range p {
		h.builder.WriteByte(digits[b>>4])
		h.builder.WriteByte(digits[b&0x0f])
		h.builder.WriteByte(' ')
	}
	h.builder.WriteByte('\n')
	if _, err := io.WriteString(h.w, h.builder.String()); err != nil {
		return 0, err
	}
	return len(p), nil
}
