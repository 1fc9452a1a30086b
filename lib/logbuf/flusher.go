// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logbuf

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/moslevin/mark3-logger/lib/clock"
)

// DefaultFlushInterval bounds how stale flushed data can get when no
// rollover notification arrives.
const DefaultFlushInterval = 100 * time.Millisecond

// FlusherConfig configures a Flusher.
type FlusherConfig struct {
	// Interval between polling flushes. Zero means
	// DefaultFlushInterval.
	Interval time.Duration

	// Clock drives the poll ticker. Nil means clock.Real().
	Clock clock.Clock

	// Logger receives transport failures. Nil discards.
	Logger *slog.Logger
}

// FlusherStats counts Flusher activity.
type FlusherStats struct {
	// Wakeups counts flushes triggered by a rollover notification.
	Wakeups uint64

	// Polls counts flushes triggered by the poll interval.
	Polls uint64

	// Errors counts flushes the transport rejected.
	Errors uint64
}

// Flusher is the consumer task of a Buffer. It flushes when the buffer
// signals a rollover and on a fixed interval, so a missed notification
// delays data by at most one interval. There must be at most one
// Flusher per Buffer.
type Flusher struct {
	buffer   *Buffer
	interval time.Duration
	clock    clock.Clock
	logger   *slog.Logger

	// wake has capacity 1: any number of notifications between two
	// flushes collapse into one pending wakeup.
	wake chan struct{}

	wakeups atomic.Uint64
	polls   atomic.Uint64
	errors  atomic.Uint64
}

// NewFlusher creates a Flusher for buffer and registers it as the
// buffer's notify callback, replacing any previous callback.
func NewFlusher(buffer *Buffer, config FlusherConfig) *Flusher {
	if config.Interval <= 0 {
		config.Interval = DefaultFlushInterval
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	flusher := &Flusher{
		buffer:   buffer,
		interval: config.Interval,
		clock:    config.Clock,
		logger:   config.Logger,
		wake:     make(chan struct{}, 1),
	}
	buffer.SetNotify(flusher.Wake)
	return flusher
}

// Wake requests a flush without blocking. It is the buffer's notify
// callback and is safe to call from any goroutine.
func (f *Flusher) Wake() {
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// Run flushes until ctx is cancelled, then performs a final flush and
// returns nil. Transport failures are logged and counted; the data
// they carried is not retried.
func (f *Flusher) Run(ctx context.Context) error {
	ticker := f.clock.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-f.wake:
			f.wakeups.Add(1)
			f.flush("notify")
		case <-ticker.C:
			f.polls.Add(1)
			f.flush("poll")
		case <-ctx.Done():
			f.flush("shutdown")
			return nil
		}
	}
}

func (f *Flusher) flush(reason string) {
	if err := f.buffer.Flush(); err != nil {
		f.errors.Add(1)
		f.logger.Warn("log buffer flush failed",
			"reason", reason,
			"error", err,
		)
	}
}

// Stats returns a snapshot of the Flusher counters.
func (f *Flusher) Stats() FlusherStats {
	return FlusherStats{
		Wakeups: f.wakeups.Load(),
		Polls:   f.polls.Load(),
		Errors:  f.errors.Load(),
	}
}
