// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logbuf

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/moslevin/mark3-logger/lib/tlv"
)

// Frame markers bracketing every record in the ring.
const (
	SyncBegin uint16 = 0xCAFE
	SyncEnd   uint16 = 0xF00D

	// MarkerSize is the encoded size of one marker.
	MarkerSize = 2

	// FrameOverhead is the space BeginWrite reserves beyond the
	// payload: one begin and one end marker.
	FrameOverhead = 2 * MarkerSize
)

// Transport receives flushed bytes. The slice passed to Write aliases
// ring storage and is only valid for the duration of the call. Any
// io.Writer satisfies it.
type Transport = io.Writer

// Cursor is a position in the ring returned by BeginWrite and Write.
// Cursors are absolute byte counts since the buffer was created; the
// buffer reduces them modulo capacity when touching storage.
type Cursor uint64

// Buffer is a fixed-capacity circular log buffer. All methods are safe
// for concurrent use except that Flush must only be called from one
// goroutine at a time (the single consumer).
type Buffer struct {
	lock  sync.Locker
	order binary.ByteOrder
	data  []byte
	size  uint64
	half  uint64

	// Guarded by lock. Cursors are absolute; writeCursor is the end of
	// the newest reservation, readFrontier the end of data that is
	// safe to read, lastRead the end of data already flushed.
	writeCursor     uint64
	readFrontier    uint64
	lastRead        uint64
	inFlight        int
	rolloverMark    uint64
	rolloverPending bool
	dataPending     bool
	notified        bool
	notify          func()
	transport       Transport
	stats           Stats
}

// Stats is a snapshot of buffer counters.
type Stats struct {
	// BytesReserved counts reserved bytes, markers included.
	BytesReserved uint64

	// Records counts completed BeginWrite/EndWrite pairs.
	Records uint64

	// Dropped counts records WriteRecord or Emitter refused because
	// they could not be encoded.
	Dropped uint64

	// Flushes counts Flush calls that transferred at least one byte.
	Flushes uint64

	// BytesFlushed counts bytes handed to the transport.
	BytesFlushed uint64

	// Overruns counts flushes that found unread data overwritten, and
	// BytesLost the total overwritten bytes.
	Overruns  uint64
	BytesLost uint64

	// Notifications counts notify callback invocations.
	Notifications uint64

	// InFlight is the number of writers between BeginWrite and
	// EndWrite at snapshot time.
	InFlight int
}

// Option configures a Buffer.
type Option func(*Buffer)

// WithLocker sets the critical-section primitive guarding cursor
// bookkeeping. The default is a *sync.Mutex.
func WithLocker(locker sync.Locker) Option {
	return func(b *Buffer) { b.lock = locker }
}

// WithByteOrder sets the byte order of the frame markers. It should
// match the tlv.Layout used for payloads. Default little-endian.
func WithByteOrder(order binary.ByteOrder) Option {
	return func(b *Buffer) { b.order = order }
}

// WithNotify registers the rollover notification callback.
func WithNotify(notify func()) Option {
	return func(b *Buffer) { b.notify = notify }
}

// WithTransport registers the flush destination.
func WithTransport(transport Transport) Option {
	return func(b *Buffer) { b.transport = transport }
}

// New creates a buffer with capacity bytes of storage. Panics if
// capacity is not positive.
func New(capacity int, opts ...Option) *Buffer {
	if capacity <= 0 {
		panic(fmt.Sprintf("logbuf: capacity must be positive, got %d", capacity))
	}
	buffer := &Buffer{
		lock:  &sync.Mutex{},
		order: binary.LittleEndian,
		data:  make([]byte, capacity),
		size:  uint64(capacity),
		half:  uint64(capacity) / 2,
	}
	for _, opt := range opts {
		opt(buffer)
	}
	return buffer
}

// SetNotify replaces the rollover notification callback. The callback
// runs on a producer goroutine, outside the buffer lock, and must not
// block or write to the buffer.
func (b *Buffer) SetNotify(notify func()) {
	b.lock.Lock()
	b.notify = notify
	b.lock.Unlock()
}

// SetTransport replaces the flush destination.
func (b *Buffer) SetTransport(transport Transport) {
	b.lock.Lock()
	b.transport = transport
	b.lock.Unlock()
}

// Capacity returns the size of the ring storage in bytes.
func (b *Buffer) Capacity() int {
	return len(b.data)
}

// BeginWrite reserves room for a payloadLen-byte record, writes the
// begin marker, and returns the cursor where the payload starts. The
// caller must copy exactly payloadLen bytes with Write and then call
// EndWrite with the returned cursor.
func (b *Buffer) BeginWrite(payloadLen int) Cursor {
	length := uint64(payloadLen) + FrameOverhead

	b.lock.Lock()
	start := b.writeCursor
	b.writeCursor += length
	b.inFlight++
	b.stats.BytesReserved += length

	offset := start % b.size
	end := offset + length
	if end >= b.size || (offset < b.half && end >= b.half) {
		b.rolloverPending = true
		b.rolloverMark = b.writeCursor
	}
	b.lock.Unlock()

	return b.putMarker(Cursor(start), SyncBegin)
}

// Write copies p into the ring at cursor, wrapping at the end of
// storage, and returns the cursor after the last byte. It takes no
// lock: the range must lie inside the caller's reservation.
func (b *Buffer) Write(cursor Cursor, p []byte) Cursor {
	for len(p) > 0 {
		copied := copy(b.data[uint64(cursor)%b.size:], p)
		p = p[copied:]
		cursor += Cursor(copied)
	}
	return cursor
}

// EndWrite writes the end marker at cursor and releases the
// reservation. When no other writer is in flight the written data
// becomes visible to Flush, and a pending rollover raises the notify
// callback if it has not fired since the last flush. EndWrite without
// a matching BeginWrite is ignored.
func (b *Buffer) EndWrite(cursor Cursor) {
	b.putMarker(cursor, SyncEnd)

	var notify func()
	b.lock.Lock()
	if b.inFlight == 0 {
		b.lock.Unlock()
		return
	}
	b.inFlight--
	b.stats.Records++
	if b.inFlight == 0 {
		b.readFrontier = b.writeCursor
		b.dataPending = true
		if b.rolloverPending && !b.notified && b.notify != nil {
			b.notified = true
			b.stats.Notifications++
			notify = b.notify
		}
	}
	b.lock.Unlock()

	if notify != nil {
		notify()
	}
}

func (b *Buffer) putMarker(cursor Cursor, marker uint16) Cursor {
	var encoded [MarkerSize]byte
	b.order.PutUint16(encoded[:], marker)
	return b.Write(cursor, encoded[:])
}

// WriteRecord encodes record with layout and writes it as one frame.
// Records that cannot be encoded are dropped and counted in
// Stats.Dropped; a producer never sees an error.
func (b *Buffer) WriteRecord(layout tlv.Layout, record tlv.Record) {
	encoded, err := layout.AppendRecord(make([]byte, 0, layout.RecordSize(record.Args)), record)
	if err != nil {
		b.lock.Lock()
		b.stats.Dropped++
		b.lock.Unlock()
		return
	}
	cursor := b.BeginWrite(len(encoded))
	cursor = b.Write(cursor, encoded)
	b.EndWrite(cursor)
}

// Flush hands every byte made visible since the previous flush to the
// transport and returns the transport's error, if any. The read
// position advances before the transfer, so bytes a failed transfer
// did not deliver are dropped rather than retried.
//
// A window that runs past the end of storage is delivered as two
// ordered writes. If producers overwrote part of the window, only the
// surviving suffix is delivered; its first bytes may be the tail of an
// overwritten record, so readers resynchronize on the next
// SyncBegin marker. Flush with nothing pending is a no-op, and so is
// Flush with no transport: the data stays pending until one is set.
func (b *Buffer) Flush() error {
	b.lock.Lock()
	transport := b.transport
	if transport == nil {
		b.lock.Unlock()
		return nil
	}
	frontier := b.readFrontier
	last := b.lastRead
	written := b.writeCursor
	// A crossing whose reservation is still in flight has not been
	// announced yet; keep it pending so quiescence notifies.
	if frontier >= b.rolloverMark {
		b.rolloverPending = false
	}
	b.notified = false
	b.dataPending = false
	b.lastRead = frontier

	start := last
	if written > b.size && written-b.size > start {
		start = written - b.size
	}
	if start > frontier {
		start = frontier
	}
	if lost := start - last; lost > 0 {
		b.stats.Overruns++
		b.stats.BytesLost += lost
	}
	length := frontier - start
	if length > 0 {
		b.stats.Flushes++
	}
	b.lock.Unlock()

	if length == 0 {
		return nil
	}

	offset := start % b.size
	first := length
	if offset+length > b.size {
		first = b.size - offset
	}
	if err := b.transfer(transport, b.data[offset:offset+first]); err != nil {
		return err
	}
	if rest := length - first; rest > 0 {
		return b.transfer(transport, b.data[:rest])
	}
	return nil
}

func (b *Buffer) transfer(transport Transport, p []byte) error {
	written, err := transport.Write(p)
	b.lock.Lock()
	b.stats.BytesFlushed += uint64(written)
	b.lock.Unlock()
	if err != nil {
		return fmt.Errorf("logbuf: transport write: %w", err)
	}
	return nil
}

// InFlight returns the number of writers between BeginWrite and
// EndWrite.
func (b *Buffer) InFlight() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.inFlight
}

// Pending reports whether data has become visible since the last
// flush.
func (b *Buffer) Pending() bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.dataPending
}

// Stats returns a snapshot of the buffer counters.
func (b *Buffer) Stats() Stats {
	b.lock.Lock()
	defer b.lock.Unlock()
	stats := b.stats
	stats.InFlight = b.inFlight
	return stats
}
