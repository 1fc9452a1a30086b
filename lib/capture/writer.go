// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"fmt"
	"io"
	"sync"

	"github.com/moslevin/mark3-logger/lib/clock"
	"github.com/moslevin/mark3-logger/lib/codec"
)

// Options configures a Writer.
type Options struct {
	// Compression applied to each payload. Payloads that do not
	// shrink are stored uncompressed.
	Compression Compression

	// Clock stamps chunks. Nil means clock.Real().
	Clock clock.Clock
}

// WriterStats counts what a Writer has stored.
type WriterStats struct {
	Chunks uint64

	// Bytes is the total payload size; StoredBytes what the payloads
	// occupy after compression.
	Bytes       uint64
	StoredBytes uint64
}

// Writer appends chunks to a capture file. It is safe for concurrent
// use, although a log buffer calls it from its single consumer.
type Writer struct {
	mu          sync.Mutex
	encoder     *codec.Encoder
	compression Compression
	clock       clock.Clock
	sequence    uint64
	stats       WriterStats
}

// NewWriter creates a Writer appending to w.
func NewWriter(w io.Writer, options Options) *Writer {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	return &Writer{
		encoder:     codec.NewEncoder(w),
		compression: options.Compression,
		clock:       options.Clock,
	}
}

// Write stores p as one chunk. p is not retained. Empty writes store
// nothing.
func (w *Writer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	algorithm := w.compression
	stored, err := compress(p, algorithm)
	if err == errIncompressible {
		algorithm, stored = CompressionNone, p
	} else if err != nil {
		return 0, fmt.Errorf("capture: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	chunk := Chunk{
		Sequence:    w.sequence,
		Time:        w.clock.Now().UnixNano(),
		Compression: algorithm,
		Size:        len(p),
		Digest:      digest(p),
		Data:        stored,
	}
	if err := w.encoder.Encode(chunk); err != nil {
		return 0, fmt.Errorf("capture: writing chunk %d: %w", chunk.Sequence, err)
	}
	w.sequence++
	w.stats.Chunks++
	w.stats.Bytes += uint64(len(p))
	w.stats.StoredBytes += uint64(len(stored))
	return len(p), nil
}

// Stats returns the writer counters.
func (w *Writer) Stats() WriterStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}
