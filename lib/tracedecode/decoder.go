// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tracedecode

import (
	"bytes"
	"errors"

	"github.com/moslevin/mark3-logger/lib/logbuf"
	"github.com/moslevin/mark3-logger/lib/tlv"
)

// Decoder extracts records from a stream of ring-buffer frames. It
// keeps an incomplete trailing frame between Feed calls. Not safe for
// concurrent use.
type Decoder struct {
	layout  tlv.Layout
	begin   [logbuf.MarkerSize]byte
	end     [logbuf.MarkerSize]byte
	pending []byte
	skipped uint64
	decoded uint64
}

// NewDecoder creates a decoder for frames written by a target with
// the given layout. The layout's byte order applies to the frame
// markers too.
func NewDecoder(layout tlv.Layout) *Decoder {
	decoder := &Decoder{layout: layout}
	layout.ByteOrder.PutUint16(decoder.begin[:], logbuf.SyncBegin)
	layout.ByteOrder.PutUint16(decoder.end[:], logbuf.SyncEnd)
	return decoder
}

// Feed appends p to the stream and returns the records it completes.
// Bytes that cannot belong to a well-formed frame are discarded and
// counted by Skipped.
func (d *Decoder) Feed(p []byte) []tlv.Record {
	d.pending = append(d.pending, p...)

	var records []tlv.Record
	for {
		start := bytes.Index(d.pending, d.begin[:])
		if start < 0 {
			// Keep a trailing byte that may be the first half of a
			// marker.
			keep := 0
			if n := len(d.pending); n > 0 && d.pending[n-1] == d.begin[0] {
				keep = 1
			}
			d.discard(len(d.pending) - keep)
			break
		}
		d.discard(start)

		record, size, err := d.decodeFrame(d.pending)
		if errors.Is(err, tlv.ErrShortBuffer) {
			break
		}
		if err != nil {
			// Not a frame after all: step past this marker and rescan.
			d.discard(1)
			continue
		}
		records = append(records, record)
		d.decoded++
		d.pending = d.pending[size:]
	}

	// Release consumed storage once the tail is small.
	if cap(d.pending) > 4096 && len(d.pending) < cap(d.pending)/4 {
		d.pending = bytes.Clone(d.pending)
	}
	return records
}

var errMissingEnd = errors.New("tracedecode: end marker missing")

// decodeFrame decodes the frame at the start of p, which begins with a
// begin marker, and returns the record and the frame size.
func (d *Decoder) decodeFrame(p []byte) (tlv.Record, int, error) {
	body := p[logbuf.MarkerSize:]
	record, consumed, err := d.layout.DecodeRecord(body)
	if err != nil {
		return tlv.Record{}, 0, err
	}
	tail := body[consumed:]
	if len(tail) < logbuf.MarkerSize {
		return tlv.Record{}, 0, tlv.ErrShortBuffer
	}
	if !bytes.Equal(tail[:logbuf.MarkerSize], d.end[:]) {
		return tlv.Record{}, 0, errMissingEnd
	}
	return record, logbuf.MarkerSize + consumed + logbuf.MarkerSize, nil
}

func (d *Decoder) discard(n int) {
	d.skipped += uint64(n)
	d.pending = d.pending[n:]
}

// Skipped returns the number of bytes discarded while searching for
// frames.
func (d *Decoder) Skipped() uint64 {
	return d.skipped
}

// Decoded returns the number of records decoded.
func (d *Decoder) Decoded() uint64 {
	return d.decoded
}

// Buffered returns the number of bytes held for the next Feed.
func (d *Decoder) Buffered() int {
	return len(d.pending)
}
