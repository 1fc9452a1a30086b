// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tlv

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Tag identifies the scalar kind of a log argument. Values are wire
// constants and occupy the low nibble of the argument header byte.
type Tag uint8

const (
	TagUint8 Tag = iota
	TagUint16
	TagUint32
	TagUint64
	TagInt8
	TagInt16
	TagInt32
	TagInt64
	TagPointer
	TagFloat
	TagDouble
	TagChar

	// tagCount is the number of defined tags. Not a wire value.
	tagCount
)

var tagNames = [tagCount]string{
	TagUint8:   "uint8",
	TagUint16:  "uint16",
	TagUint32:  "uint32",
	TagUint64:  "uint64",
	TagInt8:    "int8",
	TagInt16:   "int16",
	TagInt32:   "int32",
	TagInt64:   "int64",
	TagPointer: "pointer",
	TagFloat:   "float",
	TagDouble:  "double",
	TagChar:    "char",
}

// String returns the lower-case kind name, or "tag(N)" for values
// outside the defined set.
func (tag Tag) String() string {
	if tag.Valid() {
		return tagNames[tag]
	}
	return fmt.Sprintf("tag(%d)", uint8(tag))
}

// Valid reports whether tag is one of the twelve defined kinds.
func (tag Tag) Valid() bool {
	return tag < tagCount
}

// Signed reports whether values of this kind are two's-complement
// integers.
func (tag Tag) Signed() bool {
	switch tag {
	case TagInt8, TagInt16, TagInt32, TagInt64:
		return true
	}
	return false
}

// Errors returned by the codec. Callers test with errors.Is.
var (
	ErrInvalidTag     = errors.New("tlv: invalid tag")
	ErrLengthMismatch = errors.New("tlv: length does not match tag")
	ErrShortBuffer    = errors.New("tlv: short buffer")
	ErrOutOfRange     = errors.New("tlv: value does not fit target width")
	ErrTooManyArgs    = errors.New("tlv: more than 255 arguments")
)

// Layout describes the target the log stream was produced on: the
// width of a data pointer and the byte order of multi-byte fields.
// Both are fixed when the firmware is built, so a stream can only be
// decoded with the layout it was encoded with.
type Layout struct {
	// PointerSize is sizeof(void*) on the target: 2, 4, or 8.
	PointerSize int

	// ByteOrder is the target's native byte order.
	ByteOrder ByteOrder
}

// ByteOrder reads and appends fixed-width integers.
// binary.LittleEndian and binary.BigEndian both satisfy it.
type ByteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// DefaultLayout matches a 32-bit little-endian microcontroller.
var DefaultLayout = Layout{PointerSize: 4, ByteOrder: binary.LittleEndian}

// Validate checks that the pointer size is supported and a byte
// order is set.
func (layout Layout) Validate() error {
	switch layout.PointerSize {
	case 2, 4, 8:
	default:
		return fmt.Errorf("tlv: unsupported pointer size %d (want 2, 4, or 8)", layout.PointerSize)
	}
	if layout.ByteOrder == nil {
		return fmt.Errorf("tlv: byte order is required")
	}
	return nil
}

// Size returns the canonical encoded value length for tag on this
// target, or 0 if tag is not valid.
func (layout Layout) Size(tag Tag) int {
	switch tag {
	case TagUint8, TagInt8, TagChar:
		return 1
	case TagUint16, TagInt16:
		return 2
	case TagUint32, TagInt32, TagFloat:
		return 4
	case TagUint64, TagInt64, TagDouble:
		return 8
	case TagPointer:
		return layout.PointerSize
	}
	return 0
}

// headerByte packs tag and length into one argument header byte.
func headerByte(tag Tag, length int) byte {
	return byte(tag)&0x0f | byte(length)<<4
}

// splitHeader unpacks an argument header byte.
func splitHeader(b byte) (Tag, int) {
	return Tag(b & 0x0f), int(b >> 4)
}
