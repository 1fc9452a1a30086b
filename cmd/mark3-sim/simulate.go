// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/moslevin/mark3-logger/lib/capture"
	"github.com/moslevin/mark3-logger/lib/clock"
	"github.com/moslevin/mark3-logger/lib/config"
	"github.com/moslevin/mark3-logger/lib/logbuf"
	"github.com/moslevin/mark3-logger/lib/logmetrics"
	"github.com/moslevin/mark3-logger/lib/metastream"
)

type simulateOptions struct {
	producers int
	interval  time.Duration
	reverse   bool
}

// simulate writes the firmware metadata, then runs the simulator until
// ctx is done.
func simulate(ctx context.Context, cfg *config.Config, options simulateOptions, clk clock.Clock, stdout io.Writer, logger *slog.Logger) (err error) {
	layout, err := cfg.Layout()
	if err != nil {
		return err
	}
	flushInterval, err := cfg.FlushInterval()
	if err != nil {
		return err
	}
	compression, err := cfg.Compression()
	if err != nil {
		return err
	}

	if cfg.Metadata.Path != "" {
		direction := metastream.Forward
		if options.reverse {
			direction = metastream.Reverse
		}
		table := firmwareTable()
		if err := writeMetadata(cfg.Metadata.Path, table, layout, direction); err != nil {
			return err
		}
		logger.Info("metadata written",
			"path", cfg.Metadata.Path,
			"files", len(table.Files),
			"call_sites", len(table.CallSites),
			"direction", direction.String(),
		)
	}

	var transport logbuf.Transport
	var captureWriter *capture.Writer
	if cfg.Capture.Path == "-" {
		transport = &hexWriter{w: stdout}
	} else {
		file, createErr := os.Create(cfg.Capture.Path)
		if createErr != nil {
			return fmt.Errorf("creating capture: %w", createErr)
		}
		defer func() {
			if closeErr := file.Close(); err == nil && closeErr != nil {
				err = fmt.Errorf("closing capture: %w", closeErr)
			}
		}()
		captureWriter = capture.NewWriter(file, capture.Options{Compression: compression, Clock: clk})
		transport = captureWriter
	}

	sim := newSimulator(simulatorConfig{
		Layout:        layout,
		Capacity:      cfg.Buffer.Capacity,
		FlushInterval: flushInterval,
		Producers:     options.producers,
		Interval:      options.interval,
		Transport:     transport,
		Clock:         clk,
		Logger:        logger,
	})

	if cfg.Metrics.Address != "" {
		metricsOptions := []logmetrics.Option{logmetrics.WithFlusher(sim.flusher)}
		if captureWriter != nil {
			metricsOptions = append(metricsOptions, logmetrics.WithCapture(captureWriter))
		}
		metrics, err := startMetrics(cfg.Metrics.Address,
			logmetrics.NewCollector(sim.buffer, "mark3", metricsOptions...), logger)
		if err != nil {
			return err
		}
		defer func() {
			shutdownContext, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if shutdownErr := metrics.Shutdown(shutdownContext); shutdownErr != nil {
				logger.Warn("metrics server shutdown failed", "error", shutdownErr)
			}
		}()
	}

	logger.Info("simulation started",
		"producers", options.producers,
		"interval", options.interval,
		"capacity", cfg.Buffer.Capacity,
		"flush_interval", flushInterval,
		"capture", cfg.Capture.Path,
		"compression", compression.String(),
	)
	if err := sim.Run(ctx); err != nil {
		return err
	}
	if captureWriter != nil {
		stats := captureWriter.Stats()
		logger.Info("capture written",
			"path", cfg.Capture.Path,
			"chunks", stats.Chunks,
			"bytes", stats.Bytes,
			"stored_bytes", stats.StoredBytes,
		)
	}
	return nil
}
