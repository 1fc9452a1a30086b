// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tlv defines the tag/length/value encoding used for log
// arguments and the fixed header that precedes every runtime log
// record.
//
// Each argument is one header byte followed by its value bytes, with
// no padding:
//
//	bit  7 ... 4   3 ... 0
//	    [ length ][  tag   ]   value (length bytes, target byte order)
//
// The tag selects one of twelve scalar kinds. Every kind has exactly
// one canonical length on a given target, so the length nibble is
// redundant for well-formed data and is used by decoders as a
// consistency check. The pointer kind is the only one whose length
// depends on the target; it is recorded in [Layout] rather than
// assumed.
//
// A record is the 11-byte [Header] (file hash, timestamp, line,
// argument count) followed by ArgCount arguments. The ring buffer in
// lib/logbuf brackets each record with sync markers; this package
// knows nothing about framing.
//
// [FileID] computes the FNV-1a hash that the build emits for each
// source file, so host tools and producers agree on file identity.
package tlv
