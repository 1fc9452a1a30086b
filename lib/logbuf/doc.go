// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logbuf implements the producer side of the split logger: a
// fixed-capacity byte ring that many goroutines append framed log
// records to, and a single consumer drains to a transport.
//
// A record is written in three steps. [Buffer.BeginWrite] reserves
// payload plus marker space under a short lock and writes the begin
// marker. [Buffer.Write] copies payload bytes into the reservation
// without holding the lock; reservations never overlap, so concurrent
// copies land in disjoint bytes. [Buffer.EndWrite] writes the end
// marker and releases the reservation. Data becomes visible to the
// consumer only at quiescence, when the last in-flight writer ends, so
// [Buffer.Flush] never observes a half-copied record.
//
// Producers never block on the consumer and never fail. When they
// outpace it, the oldest unflushed bytes are overwritten and the next
// flush emits only what survived. Crossing the half-capacity mark or
// the end of storage raises a notification so the consumer can drain
// early; [Flusher] pairs that notification with a poll interval.
//
// Each frame on the wire is:
//
//	[0xCAFE:u16][file_id:u32][timestamp:u32][line:u16][arg_count:u8][TLV...][0xF00D:u16]
//
// in the buffer's byte order. The payload layout is defined by
// package tlv; [Emitter] and [Buffer.WriteRecord] produce it.
package logbuf
