// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tracedecode

import (
	"fmt"
	"strings"

	"github.com/moslevin/mark3-logger/lib/symtab"
	"github.com/moslevin/mark3-logger/lib/tlv"
)

// Event is a decoded record joined with its call site.
type Event struct {
	Timestamp uint32   `json:"timestamp"`
	FileHash  uint32   `json:"fileHash"`
	FileName  string   `json:"fileName,omitempty"`
	Line      uint16   `json:"line"`
	Format    string   `json:"format,omitempty"`
	Message   string   `json:"message"`
	Args      []string `json:"args"`

	// Known reports whether the symbol index had the call site. When
	// false, Message lists the raw arguments.
	Known bool `json:"known"`
}

// Render joins record with index and formats its message. A nil index
// renders every record as unknown. pointerSize is the target's pointer
// width (tlv.Layout.PointerSize).
func Render(record tlv.Record, index *symtab.Index, pointerSize int) Event {
	event := Event{
		Timestamp: record.Header.Timestamp,
		FileHash:  record.Header.FileID,
		Line:      record.Header.Line,
		Args:      make([]string, 0, len(record.Args)),
	}
	for _, arg := range record.Args {
		event.Args = append(event.Args, arg.String())
	}

	if index != nil {
		event.FileName, _ = index.FileName(record.Header.FileID)
		if site, ok := index.Lookup(record.Header.FileID, uint32(record.Header.Line)); ok {
			event.Known = true
			event.Format = site.Format
			event.Message = Sprintf(site.Format, record.Args, pointerSize)
			return event
		}
	}

	event.Message = fmt.Sprintf("<unknown call site 0x%08x:%d> %s",
		record.Header.FileID, record.Header.Line, strings.Join(event.Args, " "))
	event.Message = strings.TrimRight(event.Message, " ")
	return event
}

// Location returns "file:line", using the file hash when the name is
// unknown.
func (e Event) Location() string {
	if e.FileName != "" {
		return fmt.Sprintf("%s:%d", e.FileName, e.Line)
	}
	return fmt.Sprintf("0x%08x:%d", e.FileHash, e.Line)
}
