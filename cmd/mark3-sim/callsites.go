// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/moslevin/mark3-logger/lib/symtab"
	"github.com/moslevin/mark3-logger/lib/tlv"
)

// callSite is a logging statement of the simulated firmware. args
// builds the arguments for the nth emission by a producer.
type callSite struct {
	file   string
	line   uint16
	format string
	args   func(producer, n int, layout tlv.Layout) []tlv.Arg
}

// firmware is the set of call sites every producer cycles through. The
// first two mirror the kernel example application.
var firmware = []callSite{
	{file: "main.cpp", line: 72, format: "Testing0"},
	{
		file: "main.cpp", line: 76, format: "Testing: %d\n",
		args: func(_, n int, _ tlv.Layout) []tlv.Arg {
			return []tlv.Arg{tlv.I16(int16(n))}
		},
	},
	{
		file: "drivers/adc.cpp", line: 141, format: "channel %u reads %.2f V",
		args: func(producer, n int, _ tlv.Layout) []tlv.Arg {
			return []tlv.Arg{tlv.U8(uint8(producer)), tlv.F32(1.65 + float32(n%10)/100)}
		},
	},
	{
		file: "kernel/thread.cpp", line: 318, format: "switch to thread %p ('%c')",
		args: func(producer, _ int, layout tlv.Layout) []tlv.Arg {
			return []tlv.Arg{tlv.Ptr(threadAddress(producer, layout)), tlv.Char(byte('A' + producer%26))}
		},
	},
	{
		file: "kernel/thread.cpp", line: 402, format: "stack margin %ld bytes, uptime %llu ticks",
		args: func(_, n int, layout tlv.Layout) []tlv.Arg {
			margin := tlv.I32(int32(256 - n%64))
			if layout.PointerSize == 8 {
				margin = tlv.I64(int64(256 - n%64))
			}
			return []tlv.Arg{margin, tlv.U64(uint64(n) * 10)}
		},
	},
}

// threadAddress returns a plausible control block address that fits
// the target's pointer width.
func threadAddress(producer int, layout tlv.Layout) uint64 {
	address := uint64(0x20001000 + producer*0x100)
	if layout.PointerSize < 8 {
		address &= 1<<(8*layout.PointerSize) - 1
	}
	return address
}

// firmwareTable returns the symbols a build of the simulated firmware
// would emit into its metadata section.
func firmwareTable() *symtab.Table {
	table := &symtab.Table{}
	seen := make(map[string]bool)
	for _, site := range firmware {
		if !seen[site.file] {
			seen[site.file] = true
			table.AddFile(symtab.FileRecord{Name: site.file, Hash: tlv.FileID(site.file)})
		}
		table.AddCallSite(symtab.CallSite{
			Format:   site.format,
			FileHash: tlv.FileID(site.file),
			Line:     uint32(site.line),
		})
	}
	return table
}
