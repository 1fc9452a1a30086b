// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the project's standard CBOR encoding
// configuration.
//
// Two serialization formats are used with a clear boundary:
//
//   - JSON for documents people read or other tools consume: the
//     symbol document written by mark3-symbols, decoded event lines,
//     and configuration files.
//   - CBOR for machine-to-machine files: capture files (a CBOR
//     sequence of chunks) and the compact form of the symbol document.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2), so the
// same logical data always produces identical bytes.
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For CBOR sequences (capture files):
//
//	encoder := codec.NewEncoder(file)
//	decoder := codec.NewDecoder(file)
//
// # Struct Tag Rules
//
// A `cbor` tag marks a type that is only ever CBOR (capture chunks). A
// `json` tag marks a type that may be either: fxamacker/cbor reads
// `json` tags when `cbor` tags are absent, so one tag names the field
// in both formats. Never put both on the same field.
package codec
