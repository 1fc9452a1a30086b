// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tracedecode

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/moslevin/mark3-logger/lib/tlv"
)

// Sprintf formats args according to a C printf format string as the
// target would have, had it formatted the message itself. Supported
// conversions are d i u o x X c f F e E g G p s and %%, with flags,
// field width, precision, '*' for either, and the length modifiers hh
// h l ll j z t L q. Integers are narrowed to the length modifier's
// width; without one, to 32 bits (the promoted int) unless the
// argument is wider. pointerSize gives the width of long, size_t and
// ptrdiff_t.
//
// Mismatches are reported inline in the style of package fmt:
// "%!d(MISSING)" for a missing argument, "%!(EXTRA ...)" for leftovers,
// "%!q(BADVERB)" for an unknown conversion.
func Sprintf(format string, args []tlv.Arg, pointerSize int) string {
	var out strings.Builder
	next := 0
	takeArg := func() (tlv.Arg, bool) {
		if next >= len(args) {
			return tlv.Arg{}, false
		}
		next++
		return args[next-1], true
	}

	for index := 0; index < len(format); {
		percent := strings.IndexByte(format[index:], '%')
		if percent < 0 {
			out.WriteString(format[index:])
			break
		}
		out.WriteString(format[index : index+percent])
		index += percent + 1

		spec, consumed := parseSpec(format[index:])
		index += consumed

		if spec.verb == '%' {
			out.WriteByte('%')
			continue
		}
		if spec.widthStar {
			if arg, ok := takeArg(); ok {
				width := arg.Int64()
				if width < 0 {
					spec.flags += "-"
					width = -width
				}
				spec.width = clampField(width)
				spec.hasWidth = true
			}
		}
		if spec.precisionStar {
			if arg, ok := takeArg(); ok {
				precision := arg.Int64()
				spec.hasPrecision = precision >= 0
				spec.precision = clampField(precision)
			}
		}
		spec.width = clampField(int64(spec.width))
		spec.precision = clampField(int64(spec.precision))
		if spec.verb == 0 {
			out.WriteString("%!(NOVERB)")
			continue
		}

		arg, ok := takeArg()
		if !ok {
			fmt.Fprintf(&out, "%%!%c(MISSING)", spec.verb)
			continue
		}
		out.WriteString(spec.format(arg, pointerSize))
	}

	if next < len(args) {
		out.WriteString("%!(EXTRA ")
		for position, arg := range args[next:] {
			if position > 0 {
				out.WriteString(", ")
			}
			out.WriteString(arg.String())
		}
		out.WriteByte(')')
	}
	return out.String()
}

// maxField bounds widths and precisions. Both can come from a
// corrupted argument, and fmt pads to whatever it is given.
const maxField = 4096

// clampField limits a width or precision to [0, maxField]. Negating
// math.MinInt64 leaves it negative, which clamps to maxField.
func clampField(value int64) int {
	if value < 0 || value > maxField {
		return maxField
	}
	return int(value)
}

// conversionSpec is one parsed "%..." directive.
type conversionSpec struct {
	flags         string
	width         int
	hasWidth      bool
	widthStar     bool
	precision     int
	hasPrecision  bool
	precisionStar bool
	lengthBits    int // 0 when no length modifier was given
	long          bool
	verb          byte
}

// parseSpec parses the directive following a '%' and returns it with
// the number of bytes consumed. verb is 0 if the string ended first.
func parseSpec(directive string) (conversionSpec, int) {
	var spec conversionSpec
	position := 0

	for position < len(directive) && strings.IndexByte("-+ #0", directive[position]) >= 0 {
		if strings.IndexByte(spec.flags, directive[position]) < 0 {
			spec.flags += directive[position : position+1]
		}
		position++
	}

	if position < len(directive) && directive[position] == '*' {
		spec.widthStar = true
		position++
	} else {
		start := position
		for position < len(directive) && isDigit(directive[position]) {
			position++
		}
		if position > start {
			spec.width, _ = strconv.Atoi(directive[start:position])
			spec.hasWidth = true
		}
	}

	if position < len(directive) && directive[position] == '.' {
		position++
		if position < len(directive) && directive[position] == '*' {
			spec.precisionStar = true
			position++
		} else {
			start := position
			for position < len(directive) && isDigit(directive[position]) {
				position++
			}
			spec.precision, _ = strconv.Atoi(directive[start:position])
			spec.hasPrecision = true
		}
	}

	for _, modifier := range []string{"hh", "h", "ll", "l", "j", "z", "t", "L", "q"} {
		if strings.HasPrefix(directive[position:], modifier) {
			switch modifier {
			case "hh":
				spec.lengthBits = 8
			case "h":
				spec.lengthBits = 16
			case "ll", "j", "q", "L":
				spec.lengthBits = 64
			case "l", "z", "t":
				spec.long = true
			}
			position += len(modifier)
			break
		}
	}

	if position < len(directive) {
		spec.verb = directive[position]
		position++
	}
	return spec, position
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// goFormat builds the equivalent fmt directive for verb.
func (spec conversionSpec) goFormat(verb byte) string {
	var directive strings.Builder
	directive.WriteByte('%')
	directive.WriteString(spec.flags)
	if spec.hasWidth {
		directive.WriteString(strconv.Itoa(spec.width))
	}
	if spec.hasPrecision {
		directive.WriteByte('.')
		directive.WriteString(strconv.Itoa(spec.precision))
	}
	directive.WriteByte(verb)
	return directive.String()
}

// bits returns the integer width the conversion reads.
func (spec conversionSpec) bits(arg tlv.Arg, pointerSize int) int {
	switch {
	case spec.long:
		return 8 * pointerSize
	case spec.lengthBits > 0:
		return spec.lengthBits
	}
	// Without a modifier the conversion reads an int, to which
	// narrower arguments were promoted.
	switch arg.Tag {
	case tlv.TagUint64, tlv.TagInt64, tlv.TagDouble:
		return 64
	case tlv.TagPointer:
		return 8 * pointerSize
	}
	return 32
}

// integerBits returns the argument's value as a bit pattern. Floats
// are truncated toward zero as a C cast would.
func integerBits(arg tlv.Arg) uint64 {
	switch arg.Tag {
	case tlv.TagFloat, tlv.TagDouble:
		return uint64(int64(arg.Float64()))
	case tlv.TagInt8, tlv.TagInt16, tlv.TagInt32, tlv.TagInt64:
		return uint64(arg.Int64())
	}
	return arg.Bits()
}

func signExtend(value uint64, bits int) int64 {
	if bits >= 64 {
		return int64(value)
	}
	shift := 64 - bits
	return int64(value<<shift) >> shift
}

func truncate(value uint64, bits int) uint64 {
	if bits >= 64 {
		return value
	}
	return value & (1<<bits - 1)
}

func (spec conversionSpec) format(arg tlv.Arg, pointerSize int) string {
	switch spec.verb {
	case 'd', 'i':
		value := signExtend(integerBits(arg), spec.bits(arg, pointerSize))
		return fmt.Sprintf(spec.goFormat('d'), value)

	case 'u', 'o', 'x', 'X':
		value := truncate(integerBits(arg), spec.bits(arg, pointerSize))
		spec.flags = strings.NewReplacer("+", "", " ", "").Replace(spec.flags)
		verb := spec.verb
		if verb == 'u' {
			verb = 'd'
		}
		return fmt.Sprintf(spec.goFormat(verb), value)

	case 'c':
		character := string(rune(byte(integerBits(arg))))
		spec.hasPrecision = false
		return fmt.Sprintf(spec.goFormat('s'), character)

	case 'f', 'F', 'e', 'E', 'g', 'G':
		if !spec.hasPrecision {
			spec.precision, spec.hasPrecision = 6, true
		}
		return fmt.Sprintf(spec.goFormat(spec.verb), arg.Float64())

	case 'p':
		spec.flags += "#"
		spec.hasPrecision = false
		return fmt.Sprintf(spec.goFormat('x'), truncate(arg.Bits(), 8*pointerSize))

	case 's':
		// Strings are not carried in the stream; show the address.
		if arg.Tag == tlv.TagPointer {
			return fmt.Sprintf("(string@%#x)", arg.Bits())
		}
		return fmt.Sprintf("%%!s(%s)", arg)
	}
	return fmt.Sprintf("%%!%c(BADVERB %s)", spec.verb, arg)
}
