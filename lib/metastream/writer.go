// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package metastream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/moslevin/mark3-logger/lib/symtab"
)

// ErrUnrepresentable is returned for records the stream format cannot
// carry: empty strings, strings containing NUL, and zero hashes or
// lines, all of which a reader would take for padding.
var ErrUnrepresentable = errors.New("metastream: record not representable")

// Writer emits metadata frames. Alignment is computed from the number
// of bytes written so far, so a Writer must start at the beginning of
// the stream.
type Writer struct {
	w      io.Writer
	order  binary.ByteOrder
	offset int64
	frame  []byte
}

// NewWriter creates a writer emitting frames to w.
func NewWriter(w io.Writer, opts ...Option) *Writer {
	built := buildOptions(opts)
	return &Writer{w: w, order: built.order}
}

// Offset returns the number of bytes written.
func (w *Writer) Offset() int64 {
	return w.offset
}

// WriteFile writes one file declaration.
func (w *Writer) WriteFile(record symtab.FileRecord, direction Direction) error {
	if err := checkString(record.Name); err != nil {
		return fmt.Errorf("file name: %w", err)
	}
	if record.Hash == 0 {
		return fmt.Errorf("%w: zero hash for %q", ErrUnrepresentable, record.Name)
	}

	opening, closing := frameTokens(true, direction)
	w.open(opening)
	if direction == Forward {
		w.appendString(record.Name)
		w.appendHash(record.Hash)
	} else {
		w.appendHash(record.Hash)
		w.appendString(record.Name)
	}
	w.appendUint16(closing)
	return w.flush()
}

// WriteCallSite writes one call-site declaration. Lines above 65535
// do not fit the 16-bit line field.
func (w *Writer) WriteCallSite(site symtab.CallSite, direction Direction) error {
	if err := checkString(site.Format); err != nil {
		return fmt.Errorf("format string: %w", err)
	}
	if site.FileHash == 0 {
		return fmt.Errorf("%w: zero file hash for %q", ErrUnrepresentable, site.Format)
	}
	if site.Line == 0 || site.Line > 0xffff {
		return fmt.Errorf("%w: line %d for %q", ErrUnrepresentable, site.Line, site.Format)
	}

	opening, closing := frameTokens(false, direction)
	w.open(opening)
	if direction == Forward {
		w.appendString(site.Format)
		w.appendLine(uint16(site.Line))
		w.appendHash(site.FileHash)
	} else {
		w.appendHash(site.FileHash)
		w.appendLine(uint16(site.Line))
		w.appendString(site.Format)
	}
	w.appendUint16(closing)
	return w.flush()
}

// WriteTable writes every file declaration, then every call site.
func (w *Writer) WriteTable(table *symtab.Table, direction Direction) error {
	for _, file := range table.Files {
		if err := w.WriteFile(file, direction); err != nil {
			return err
		}
	}
	for _, site := range table.CallSites {
		if err := w.WriteCallSite(site, direction); err != nil {
			return err
		}
	}
	return nil
}

func checkString(value string) error {
	if value == "" {
		return fmt.Errorf("%w: empty string", ErrUnrepresentable)
	}
	if strings.IndexByte(value, 0) >= 0 {
		return fmt.Errorf("%w: %q contains NUL", ErrUnrepresentable, value)
	}
	return nil
}

// open starts a frame: the opening token and one zero separator.
func (w *Writer) open(token uint16) {
	w.frame = w.frame[:0]
	w.appendUint16(token)
	w.frame = append(w.frame, 0)
}

func (w *Writer) position() int64 {
	return w.offset + int64(len(w.frame))
}

func (w *Writer) padTo(align int64) {
	for w.position()%align != 0 {
		w.frame = append(w.frame, 0)
	}
}

func (w *Writer) appendUint16(value uint16) {
	var encoded [2]byte
	w.order.PutUint16(encoded[:], value)
	w.frame = append(w.frame, encoded[:]...)
}

func (w *Writer) appendString(value string) {
	w.frame = append(w.frame, value...)
	w.frame = append(w.frame, 0)
	w.padTo(2)
}

func (w *Writer) appendHash(hash uint32) {
	w.padTo(4)
	var encoded [4]byte
	w.order.PutUint32(encoded[:], hash)
	w.frame = append(w.frame, encoded[:]...)
}

func (w *Writer) appendLine(line uint16) {
	w.appendUint16(line)
	w.padTo(4)
}

func (w *Writer) flush() error {
	written, err := w.w.Write(w.frame)
	w.offset += int64(written)
	if err != nil {
		return fmt.Errorf("metastream: writing frame: %w", err)
	}
	return nil
}
