// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logmetrics exports log buffer statistics to Prometheus.
//
// [Collector] reads counters on every scrape rather than mirroring
// them into prometheus metric objects, so the buffer's hot path does
// not touch prometheus at all.
package logmetrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/moslevin/mark3-logger/lib/capture"
	"github.com/moslevin/mark3-logger/lib/logbuf"
)

// BufferSource is satisfied by *logbuf.Buffer.
type BufferSource interface {
	Stats() logbuf.Stats
	Capacity() int
}

// FlusherSource is satisfied by *logbuf.Flusher.
type FlusherSource interface {
	Stats() logbuf.FlusherStats
}

// CaptureSource is satisfied by *capture.Writer.
type CaptureSource interface {
	Stats() capture.WriterStats
}

// Option adds an optional source to a Collector.
type Option func(*Collector)

// WithFlusher exports flusher wakeup and error counts.
func WithFlusher(source FlusherSource) Option {
	return func(c *Collector) { c.flusher = source }
}

// WithCapture exports capture file counters.
func WithCapture(source CaptureSource) Option {
	return func(c *Collector) { c.capture = source }
}

type metric struct {
	desc      *prometheus.Desc
	valueType prometheus.ValueType
}

// Collector implements prometheus.Collector.
type Collector struct {
	buffer  BufferSource
	flusher FlusherSource
	capture CaptureSource

	bufferMetrics  []metric
	flusherMetrics []metric
	captureMetrics []metric
}

// NewCollector creates a collector reading buffer. Metric names are
// prefixed with namespace, typically "mark3".
func NewCollector(buffer BufferSource, namespace string, options ...Option) *Collector {
	counter := func(subsystem, name, help string) metric {
		return metric{
			desc:      prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, nil, nil),
			valueType: prometheus.CounterValue,
		}
	}
	gauge := func(subsystem, name, help string) metric {
		return metric{
			desc:      prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, nil, nil),
			valueType: prometheus.GaugeValue,
		}
	}

	collector := &Collector{
		buffer: buffer,
		// Order matches bufferValues.
		bufferMetrics: []metric{
			gauge("logbuf", "capacity_bytes", "Size of the ring buffer."),
			counter("logbuf", "reserved_bytes_total", "Bytes reserved by writers, frame markers included."),
			counter("logbuf", "records_total", "Records completed by writers."),
			counter("logbuf", "records_dropped_total", "Records refused because they could not be encoded."),
			counter("logbuf", "flushes_total", "Flushes that transferred data."),
			counter("logbuf", "flushed_bytes_total", "Bytes handed to the transport."),
			counter("logbuf", "overruns_total", "Flushes that found unread data overwritten."),
			counter("logbuf", "lost_bytes_total", "Unread bytes overwritten before a flush."),
			counter("logbuf", "notifications_total", "Half-buffer rollover notifications."),
			gauge("logbuf", "writers_in_flight", "Writers between BeginWrite and EndWrite."),
		},
		flusherMetrics: []metric{
			counter("flusher", "wakeups_total", "Flushes triggered by a rollover notification."),
			counter("flusher", "polls_total", "Flushes triggered by the poll interval."),
			counter("flusher", "errors_total", "Flushes the transport rejected."),
		},
		captureMetrics: []metric{
			counter("capture", "chunks_total", "Chunks appended to the capture file."),
			counter("capture", "payload_bytes_total", "Ring bytes captured before compression."),
			counter("capture", "stored_bytes_total", "Payload bytes stored after compression."),
		},
	}
	for _, option := range options {
		option(collector)
	}
	return collector
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	for _, group := range c.groups() {
		for _, m := range group {
			descs <- m.desc
		}
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(metrics chan<- prometheus.Metric) {
	emit := func(group []metric, values []float64) {
		for index, m := range group {
			metrics <- prometheus.MustNewConstMetric(m.desc, m.valueType, values[index])
		}
	}

	stats := c.buffer.Stats()
	emit(c.bufferMetrics, []float64{
		float64(c.buffer.Capacity()),
		float64(stats.BytesReserved),
		float64(stats.Records),
		float64(stats.Dropped),
		float64(stats.Flushes),
		float64(stats.BytesFlushed),
		float64(stats.Overruns),
		float64(stats.BytesLost),
		float64(stats.Notifications),
		float64(stats.InFlight),
	})
	if c.flusher != nil {
		flusherStats := c.flusher.Stats()
		emit(c.flusherMetrics, []float64{
			float64(flusherStats.Wakeups),
			float64(flusherStats.Polls),
			float64(flusherStats.Errors),
		})
	}
	if c.capture != nil {
		captureStats := c.capture.Stats()
		emit(c.captureMetrics, []float64{
			float64(captureStats.Chunks),
			float64(captureStats.Bytes),
			float64(captureStats.StoredBytes),
		})
	}
}

// groups returns the metric groups whose source is configured.
func (c *Collector) groups() [][]metric {
	groups := [][]metric{c.bufferMetrics}
	if c.flusher != nil {
		groups = append(groups, c.flusherMetrics)
	}
	if c.capture != nil {
		groups = append(groups, c.captureMetrics)
	}
	return groups
}
