// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tlv

import (
	"fmt"
	"math"
)

// Arg is a single log argument: a tag and the raw bit pattern of its
// value. Integer values are stored truncated to their kind's width,
// floats as their IEEE-754 bits, pointers as an unsigned address.
// The zero Arg is a uint8 zero.
type Arg struct {
	Tag  Tag
	bits uint64
}

// U8 returns a uint8_t argument.
func U8(v uint8) Arg { return Arg{Tag: TagUint8, bits: uint64(v)} }

// U16 returns a uint16_t argument.
func U16(v uint16) Arg { return Arg{Tag: TagUint16, bits: uint64(v)} }

// U32 returns a uint32_t argument.
func U32(v uint32) Arg { return Arg{Tag: TagUint32, bits: uint64(v)} }

// U64 returns a uint64_t argument.
func U64(v uint64) Arg { return Arg{Tag: TagUint64, bits: v} }

// I8 returns an int8_t argument.
func I8(v int8) Arg { return Arg{Tag: TagInt8, bits: uint64(uint8(v))} }

// I16 returns an int16_t argument.
func I16(v int16) Arg { return Arg{Tag: TagInt16, bits: uint64(uint16(v))} }

// I32 returns an int32_t argument.
func I32(v int32) Arg { return Arg{Tag: TagInt32, bits: uint64(uint32(v))} }

// I64 returns an int64_t argument.
func I64(v int64) Arg { return Arg{Tag: TagInt64, bits: uint64(v)} }

// Ptr returns a pointer argument. addr must fit the target's pointer
// width or encoding fails with ErrOutOfRange.
func Ptr(addr uint64) Arg { return Arg{Tag: TagPointer, bits: addr} }

// F32 returns a float argument.
func F32(v float32) Arg { return Arg{Tag: TagFloat, bits: uint64(math.Float32bits(v))} }

// F64 returns a double argument.
func F64(v float64) Arg { return Arg{Tag: TagDouble, bits: math.Float64bits(v)} }

// Char returns a char argument.
func Char(c byte) Arg { return Arg{Tag: TagChar, bits: uint64(c)} }

// Bits returns the raw value bits as stored.
func (arg Arg) Bits() uint64 {
	return arg.bits
}

// Uint64 returns the value as an unsigned integer. Signed kinds are
// sign-extended first; float kinds return their truncated value.
func (arg Arg) Uint64() uint64 {
	switch arg.Tag {
	case TagInt8, TagInt16, TagInt32, TagInt64:
		return uint64(arg.Int64())
	case TagFloat, TagDouble:
		return uint64(arg.Float64())
	}
	return arg.bits
}

// Int64 returns the value as a signed integer, sign-extending the
// narrow signed kinds.
func (arg Arg) Int64() int64 {
	switch arg.Tag {
	case TagInt8:
		return int64(int8(arg.bits))
	case TagInt16:
		return int64(int16(arg.bits))
	case TagInt32:
		return int64(int32(arg.bits))
	case TagFloat, TagDouble:
		return int64(arg.Float64())
	}
	return int64(arg.bits)
}

// Float64 returns the value as a float. Integer kinds are converted.
func (arg Arg) Float64() float64 {
	switch arg.Tag {
	case TagFloat:
		return float64(math.Float32frombits(uint32(arg.bits)))
	case TagDouble:
		return math.Float64frombits(arg.bits)
	}
	if arg.Tag.Signed() {
		return float64(arg.Int64())
	}
	return float64(arg.bits)
}

// String formats the argument for diagnostics, e.g. "int16(-3)".
func (arg Arg) String() string {
	switch {
	case arg.Tag == TagPointer:
		return fmt.Sprintf("pointer(%#x)", arg.bits)
	case arg.Tag == TagChar:
		return fmt.Sprintf("char(%q)", rune(byte(arg.bits)))
	case arg.Tag == TagFloat || arg.Tag == TagDouble:
		return fmt.Sprintf("%s(%g)", arg.Tag, arg.Float64())
	case arg.Tag.Signed():
		return fmt.Sprintf("%s(%d)", arg.Tag, arg.Int64())
	}
	return fmt.Sprintf("%s(%d)", arg.Tag, arg.bits)
}

// EncodedSize returns the number of bytes arg occupies on the wire,
// header byte included.
func (layout Layout) EncodedSize(arg Arg) int {
	return 1 + layout.Size(arg.Tag)
}

// AppendArg appends the encoded argument to dst.
func (layout Layout) AppendArg(dst []byte, arg Arg) ([]byte, error) {
	size := layout.Size(arg.Tag)
	if size == 0 {
		return dst, fmt.Errorf("%w: %d", ErrInvalidTag, uint8(arg.Tag))
	}
	if size < 8 && arg.bits>>(8*size) != 0 {
		return dst, fmt.Errorf("%w: %s value %#x in %d bytes", ErrOutOfRange, arg.Tag, arg.bits, size)
	}
	dst = append(dst, headerByte(arg.Tag, size))
	return layout.appendValue(dst, arg.bits, size), nil
}

func (layout Layout) appendValue(dst []byte, bits uint64, size int) []byte {
	switch size {
	case 1:
		return append(dst, byte(bits))
	case 2:
		return layout.ByteOrder.AppendUint16(dst, uint16(bits))
	case 4:
		return layout.ByteOrder.AppendUint32(dst, uint32(bits))
	default:
		return layout.ByteOrder.AppendUint64(dst, bits)
	}
}

// DecodeValue decodes the value bytes of a known tag from the start of
// p (no header byte) and returns the argument and bytes consumed.
func (layout Layout) DecodeValue(tag Tag, p []byte) (Arg, int, error) {
	size := layout.Size(tag)
	if size == 0 {
		return Arg{}, 0, fmt.Errorf("%w: %d", ErrInvalidTag, uint8(tag))
	}
	if len(p) < size {
		return Arg{}, 0, fmt.Errorf("%w: %s needs %d bytes, have %d", ErrShortBuffer, tag, size, len(p))
	}
	var bits uint64
	switch size {
	case 1:
		bits = uint64(p[0])
	case 2:
		bits = uint64(layout.ByteOrder.Uint16(p))
	case 4:
		bits = uint64(layout.ByteOrder.Uint32(p))
	default:
		bits = layout.ByteOrder.Uint64(p)
	}
	return Arg{Tag: tag, bits: bits}, size, nil
}

// DecodeArg decodes one header byte plus value from the start of p and
// returns the argument and the total bytes consumed. A length nibble
// that disagrees with the tag's canonical size is an error: it means
// the stream is misaligned or was produced for a different layout.
func (layout Layout) DecodeArg(p []byte) (Arg, int, error) {
	if len(p) == 0 {
		return Arg{}, 0, fmt.Errorf("%w: missing argument header", ErrShortBuffer)
	}
	tag, length := splitHeader(p[0])
	if !tag.Valid() {
		return Arg{}, 0, fmt.Errorf("%w: %d", ErrInvalidTag, uint8(tag))
	}
	if want := layout.Size(tag); length != want {
		return Arg{}, 0, fmt.Errorf("%w: %s has length %d, want %d", ErrLengthMismatch, tag, length, want)
	}
	arg, consumed, err := layout.DecodeValue(tag, p[1:])
	if err != nil {
		return Arg{}, 0, err
	}
	return arg, 1 + consumed, nil
}
