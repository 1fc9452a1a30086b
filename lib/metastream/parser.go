// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package metastream

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/moslevin/mark3-logger/lib/symtab"
)

// Stats counts what a Parser has consumed.
type Stats struct {
	// Files and CallSites count completed frames.
	Files     int
	CallSites int

	// Resyncs counts unrecognized tokens where a frame should have
	// closed. SkippedTokens counts unrecognized tokens between frames.
	Resyncs       int
	SkippedTokens int

	// Bytes is the number of stream bytes consumed.
	Bytes int64
}

// Parser decodes a metadata stream into a symtab.Table. A Parser is not
// safe for concurrent use.
type Parser struct {
	reader *bufio.Reader
	order  binary.ByteOrder
	logger *slog.Logger

	// offset is the absolute stream position; field alignment is
	// relative to the start of the stream.
	offset int64

	state     State
	direction Direction
	closing   uint16

	// Scratch records filled field by field and moved into the table
	// when a frame completes.
	file symtab.FileRecord
	site symtab.CallSite

	table *symtab.Table
	stats Stats
}

// NewParser creates a parser reading from r.
func NewParser(r io.Reader, opts ...Option) *Parser {
	built := buildOptions(opts)
	return &Parser{
		reader: bufio.NewReader(r),
		order:  built.order,
		logger: built.logger,
		state:  Begin,
		table:  &symtab.Table{},
	}
}

// Parse decodes a whole stream.
func Parse(r io.Reader, opts ...Option) (*symtab.Table, error) {
	return NewParser(r, opts...).Parse()
}

// Parse runs the state machine until the input ends and returns the
// decoded table. Running out of input, whether between frames or in
// the middle of one, is a successful end; a frame cut short adds no
// record. Other read errors are returned.
func (p *Parser) Parse() (*symtab.Table, error) {
	for {
		if err := p.step(); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				p.logger.Debug("metadata stream ended",
					"offset", p.offset,
					"state", p.state.String(),
					"files", p.stats.Files,
					"call_sites", p.stats.CallSites,
				)
				return p.table, nil
			}
			return nil, fmt.Errorf("metastream: reading %s at offset %d: %w", p.state, p.offset, err)
		}
	}
}

// State returns the current state.
func (p *Parser) State() State {
	return p.state
}

// Stats returns the parser counters.
func (p *Parser) Stats() Stats {
	stats := p.stats
	stats.Bytes = p.offset
	return stats
}

// step runs one state handler.
func (p *Parser) step() error {
	switch p.state {
	case Begin:
		token, err := p.readUint16()
		if err != nil {
			return err
		}
		if !p.dispatch(token) {
			p.stats.SkippedTokens++
		}

	case FileBegin, LogBegin:
		file := p.state == FileBegin
		if p.direction == Reverse {
			if err := p.skipSeparator(4); err != nil {
				return err
			}
			p.state = pick(file, FileHash, LogHash)
			return nil
		}
		if err := p.skipSeparator(0); err != nil {
			return err
		}
		p.state = pick(file, FileName, LogString)

	case FileName:
		name, err := p.readString()
		if err != nil {
			return err
		}
		p.file.Name = name
		if p.direction == Forward {
			p.state = FileHash
		} else {
			p.completeFile()
		}

	case FileHash:
		hash, err := p.readHash()
		if err != nil {
			return err
		}
		p.file.Hash = hash
		if p.direction == Forward {
			p.completeFile()
		} else {
			p.state = FileName
		}

	case LogString:
		format, err := p.readString()
		if err != nil {
			return err
		}
		p.site.Format = format
		if p.direction == Forward {
			p.state = LogLine
		} else {
			p.completeCallSite()
		}

	case LogLine:
		line, err := p.readLine()
		if err != nil {
			return err
		}
		p.site.Line = uint32(line)
		p.state = pick(p.direction == Forward, LogHash, LogString)

	case LogHash:
		hash, err := p.readHash()
		if err != nil {
			return err
		}
		p.site.FileHash = hash
		if p.direction == Forward {
			p.completeCallSite()
		} else {
			p.state = LogLine
		}

	case FileEnd, LogEnd:
		token, err := p.readUint16()
		if err != nil {
			return err
		}
		switch {
		case token == p.closing:
			p.state = Begin
		case p.dispatch(token):
			// Lookahead: the frame was not closed, but the next one
			// has started.
		default:
			p.stats.Resyncs++
			p.logger.Debug("unrecognized token after frame, resynchronizing",
				"offset", p.offset-2,
				"token", fmt.Sprintf("%#04x", token),
				"state", p.state.String(),
			)
			p.state = Begin
		}

	default:
		return fmt.Errorf("metastream: invalid state %d", uint8(p.state))
	}
	return nil
}

// dispatch moves to the start of the frame token opens. It reports
// false, leaving the state unchanged, for unrecognized tokens.
func (p *Parser) dispatch(token uint16) bool {
	switch token {
	case TokenFileStart:
		p.open(FileBegin, Forward, TokenFileEnd)
	case TokenFileEnd:
		p.open(FileBegin, Reverse, TokenFileStart)
	case TokenLogStart:
		p.open(LogBegin, Forward, TokenLogEnd)
	case TokenLogEnd:
		p.open(LogBegin, Reverse, TokenLogStart)
	default:
		return false
	}
	return true
}

func (p *Parser) open(state State, direction Direction, closing uint16) {
	p.state = state
	p.direction = direction
	p.closing = closing
}

func (p *Parser) completeFile() {
	p.table.AddFile(p.file)
	p.file = symtab.FileRecord{}
	p.stats.Files++
	p.state = FileEnd
}

func (p *Parser) completeCallSite() {
	p.table.AddCallSite(p.site)
	p.site = symtab.CallSite{}
	p.stats.CallSites++
	p.state = LogEnd
}

func pick(condition bool, ifTrue, ifFalse State) State {
	if condition {
		return ifTrue
	}
	return ifFalse
}

func (p *Parser) readUint16() (uint16, error) {
	var buffer [2]byte
	read, err := io.ReadFull(p.reader, buffer[:])
	p.offset += int64(read)
	if err != nil {
		return 0, err
	}
	return p.order.Uint16(buffer[:]), nil
}

func (p *Parser) readUint32() (uint32, error) {
	var buffer [4]byte
	read, err := io.ReadFull(p.reader, buffer[:])
	p.offset += int64(read)
	if err != nil {
		return 0, err
	}
	return p.order.Uint32(buffer[:]), nil
}

// skipSeparator consumes the zero run that follows a frame token,
// leaving the first non-zero byte unread. With a positive align it
// also stops at the first multiple of align after at least one zero,
// so a hash whose low bytes are zero is not taken for padding.
func (p *Parser) skipSeparator(align int64) error {
	consumed := false
	for {
		if consumed && align > 0 && p.offset%align == 0 {
			return nil
		}
		next, err := p.reader.Peek(1)
		if err != nil {
			return err
		}
		if next[0] != 0 {
			return nil
		}
		p.reader.Discard(1)
		p.offset++
		consumed = true
	}
}

// alignZeros consumes zero bytes until a non-zero byte or an offset
// that is a multiple of align.
func (p *Parser) alignZeros(align int64) error {
	for p.offset%align != 0 {
		next, err := p.reader.Peek(1)
		if err != nil {
			return err
		}
		if next[0] != 0 {
			return nil
		}
		p.reader.Discard(1)
		p.offset++
	}
	return nil
}

// pad consumes bytes, whatever their value, up to the next multiple
// of align.
func (p *Parser) pad(align int64) error {
	for p.offset%align != 0 {
		if _, err := p.reader.ReadByte(); err != nil {
			return err
		}
		p.offset++
	}
	return nil
}

// readString reads a NUL-terminated string and the padding to the next
// 2-byte boundary.
func (p *Parser) readString() (string, error) {
	raw, err := p.reader.ReadBytes(0)
	p.offset += int64(len(raw))
	if err != nil {
		return "", err
	}
	if err := p.pad(2); err != nil {
		return "", err
	}
	return string(raw[:len(raw)-1]), nil
}

// readHash reads a 32-bit hash: zero padding up to 4-byte alignment,
// then words until a non-zero one.
func (p *Parser) readHash() (uint32, error) {
	if err := p.alignZeros(4); err != nil {
		return 0, err
	}
	for {
		value, err := p.readUint32()
		if err != nil {
			return 0, err
		}
		if value != 0 {
			return value, nil
		}
	}
}

// readLine reads a 16-bit line: words until a non-zero one, then the
// padding to the next 4-byte boundary.
func (p *Parser) readLine() (uint16, error) {
	for {
		value, err := p.readUint16()
		if err != nil {
			return 0, err
		}
		if value != 0 {
			return value, p.pad(4)
		}
	}
}
