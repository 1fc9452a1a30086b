// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/moslevin/mark3-logger/lib/tracedecode"
)

var (
	timestampStyle = lipgloss.NewStyle().Faint(true)
	locationStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	unknownStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// printer writes one line per event: "seconds.millis location message"
// as text, styled on a terminal, or one JSON object.
type printer struct {
	w       io.Writer
	json    *json.Encoder
	styled  bool
	builder strings.Builder
}

func newPrinter(w io.Writer, asJSON, styled bool) *printer {
	p := &printer{w: w, styled: styled}
	if asJSON {
		p.json = json.NewEncoder(w)
		p.json.SetEscapeHTML(false)
	}
	return p
}

func (p *printer) print(event tracedecode.Event) error {
	if p.json != nil {
		return p.json.Encode(event)
	}

	timestamp := fmt.Sprintf("%7d.%03d", event.Timestamp/1000, event.Timestamp%1000)
	location := event.Location()
	// Format strings usually end in a newline of their own.
	message := strings.TrimRight(event.Message, "\n")
	if p.styled {
		timestamp = timestampStyle.Render(timestamp)
		location = locationStyle.Render(location)
		if !event.Known {
			message = unknownStyle.Render(message)
		}
	}

	p.builder.Reset()
	p.builder.WriteString(timestamp)
	p.builder.WriteByte(' ')
	p.builder.WriteString(location)
	p.builder.WriteByte(' ')
	p.builder.WriteString(message)
	p.builder.WriteByte('\n')
	_, err := io.WriteString(p.w, p.builder.String())
	return err
}
