// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tlv

import (
	"fmt"
	"hash/fnv"
)

// HeaderSize is the encoded size of a Header: file id (4), timestamp
// (4), line (2), argument count (1).
const HeaderSize = 11

// Header is the fixed prefix of every log record.
type Header struct {
	// FileID is the FNV-1a hash of the source path, see FileID.
	FileID uint32

	// Timestamp is a target-defined tick count (the producer front-end
	// in lib/logbuf uses milliseconds).
	Timestamp uint32

	// Line is the source line of the logging call site.
	Line uint16

	// ArgCount is the number of arguments that follow.
	ArgCount uint8
}

// Record is a header plus its arguments. Records are transient: a
// producer builds one, encodes it, and drops it.
type Record struct {
	Header Header
	Args   []Arg
}

// NewRecord builds a record, deriving ArgCount from args. Callers that
// pass more than 255 arguments get a record AppendRecord rejects.
func NewRecord(fileID uint32, timestamp uint32, line uint16, args ...Arg) Record {
	return Record{
		Header: Header{
			FileID:    fileID,
			Timestamp: timestamp,
			Line:      line,
			ArgCount:  uint8(len(args)),
		},
		Args: args,
	}
}

// RecordSize returns the encoded size of a record carrying args.
func (layout Layout) RecordSize(args []Arg) int {
	size := HeaderSize
	for _, arg := range args {
		size += layout.EncodedSize(arg)
	}
	return size
}

// AppendHeader appends the encoded header to dst.
func (layout Layout) AppendHeader(dst []byte, header Header) []byte {
	dst = layout.ByteOrder.AppendUint32(dst, header.FileID)
	dst = layout.ByteOrder.AppendUint32(dst, header.Timestamp)
	dst = layout.ByteOrder.AppendUint16(dst, header.Line)
	return append(dst, header.ArgCount)
}

// DecodeHeader decodes a header from the start of p.
func (layout Layout) DecodeHeader(p []byte) (Header, error) {
	if len(p) < HeaderSize {
		return Header{}, fmt.Errorf("%w: header needs %d bytes, have %d", ErrShortBuffer, HeaderSize, len(p))
	}
	return Header{
		FileID:    layout.ByteOrder.Uint32(p[0:4]),
		Timestamp: layout.ByteOrder.Uint32(p[4:8]),
		Line:      layout.ByteOrder.Uint16(p[8:10]),
		ArgCount:  p[10],
	}, nil
}

// AppendRecord appends the encoded record to dst. The header's
// ArgCount must equal len(record.Args).
func (layout Layout) AppendRecord(dst []byte, record Record) ([]byte, error) {
	if len(record.Args) > 255 {
		return dst, ErrTooManyArgs
	}
	if int(record.Header.ArgCount) != len(record.Args) {
		return dst, fmt.Errorf("tlv: header declares %d arguments, record has %d",
			record.Header.ArgCount, len(record.Args))
	}
	start := len(dst)
	dst = layout.AppendHeader(dst, record.Header)
	for index, arg := range record.Args {
		var err error
		dst, err = layout.AppendArg(dst, arg)
		if err != nil {
			return dst[:start], fmt.Errorf("argument %d: %w", index, err)
		}
	}
	return dst, nil
}

// DecodeRecord decodes a header and its arguments from the start of p
// and returns the record and the bytes consumed.
func (layout Layout) DecodeRecord(p []byte) (Record, int, error) {
	header, err := layout.DecodeHeader(p)
	if err != nil {
		return Record{}, 0, err
	}
	offset := HeaderSize
	args := make([]Arg, 0, header.ArgCount)
	for index := 0; index < int(header.ArgCount); index++ {
		arg, consumed, err := layout.DecodeArg(p[offset:])
		if err != nil {
			return Record{}, 0, fmt.Errorf("argument %d: %w", index, err)
		}
		args = append(args, arg)
		offset += consumed
	}
	return Record{Header: header, Args: args}, offset, nil
}

// FileID returns the 32-bit FNV-1a hash of a source path. The build
// computes the same hash at compile time, so the value identifies the
// file in both the runtime stream and the metadata stream.
func FileID(path string) uint32 {
	hasher := fnv.New32a()
	hasher.Write([]byte(path))
	return hasher.Sum32()
}
