// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package metastream reads and writes the build-time metadata stream
// that maps file hashes to paths and call sites to format strings.
//
// The stream is a sequence of frames. Each frame is bracketed by a
// pair of 16-bit tokens and carries either a file declaration (name,
// hash) or a call-site declaration (format string, line, file hash).
// A frame that opens with its start token lists content first; a frame
// that opens with its end token lists the hash first and closes with
// the start token. Zero bytes act as alignment padding between fields
// and are skipped, which means a hash or line whose value is zero
// cannot be represented.
//
// [Parser] is a state machine over the stream. End of input (or input
// cut short in the middle of a frame) ends parsing successfully, and
// tokens that are not recognized at a frame boundary are skipped so
// the parser can resynchronize. [Writer] produces frames in either
// direction.
package metastream
