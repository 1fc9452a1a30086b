// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package symtab holds the symbol table decoded from a build's
// metadata stream: which source file each 32-bit file hash names, and
// which format string sits at each (file hash, line) call site.
//
// A [Table] keeps records in decode order. [Table.Document] converts it
// to the serialized form that host tools exchange, written as JSON
// ([WriteJSON]) or CBOR ([WriteCBOR]) and read back by
// [ReadDocument], which also accepts JSON with comments. [Index] is
// the lookup structure a trace decoder uses to join runtime records
// against the table.
package symtab
