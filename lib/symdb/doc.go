// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package symdb keeps a symbol table in SQLite.
//
// A host build can import the table parsed from each firmware image
// once and let trace decoders query it without re-reading metadata
// streams. The store is a zombiezen sqlitex pool; every connection gets
// the same pragmas:
//
//   - journal_mode=WAL so decoders read while an import runs.
//   - synchronous=NORMAL. The metadata stream stays the source of
//     truth, so surviving an OS crash is not required.
//   - busy_timeout=5000 to wait on a concurrent import.
//   - cache_size=-8192, mmap_size=268435456 and temp_store=MEMORY for
//     read speed.
//
// Callers write SQL against the schema in [Schema] when they need
// queries this package does not provide.
package symdb
