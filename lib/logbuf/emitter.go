// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logbuf

import (
	"time"

	"github.com/moslevin/mark3-logger/lib/clock"
	"github.com/moslevin/mark3-logger/lib/tlv"
)

// Emitter is the producer front-end: it stamps records with a
// timestamp and writes them to a Buffer. Safe for concurrent use.
type Emitter struct {
	buffer *Buffer
	layout tlv.Layout
	clock  clock.Clock
	epoch  time.Time
}

// NewEmitter creates an Emitter writing to buffer with the given
// target layout. Timestamps count milliseconds from the moment
// NewEmitter is called. A nil clock means clock.Real().
func NewEmitter(buffer *Buffer, layout tlv.Layout, clk clock.Clock) *Emitter {
	if clk == nil {
		clk = clock.Real()
	}
	return &Emitter{
		buffer: buffer,
		layout: layout,
		clock:  clk,
		epoch:  clk.Now(),
	}
}

// Emit writes one record for the call site at (fileID, line). The
// timestamp wraps after about 49 days, as a 32-bit millisecond tick
// counter on the target would.
func (e *Emitter) Emit(fileID uint32, line uint16, args ...tlv.Arg) {
	elapsed := uint32(e.clock.Now().Sub(e.epoch).Milliseconds())
	e.buffer.WriteRecord(e.layout, tlv.NewRecord(fileID, elapsed, line, args...))
}
