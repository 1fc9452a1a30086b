// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package capture stores flushed ring-buffer bytes in a file.
//
// A capture file is a CBOR sequence of [Chunk] items, one per
// transport write. Each chunk carries a sequence number, the host time
// of the write, the compression applied to its payload, and a keyed
// BLAKE3 digest of the uncompressed bytes. [Writer] is a
// logbuf.Transport; [Reader] yields chunks back with payloads
// decompressed and verified.
//
// Chunk payloads are raw ring bytes, so a chunk may begin or end in the
// middle of a frame. Readers concatenate payloads (see [ReadAll]) and
// hand the result to a trace decoder.
package capture
