// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package metastream

import "fmt"

// Frame tokens. The runtime log buffer uses its own markers; the two
// sets are separate protocols even where values coincide.
const (
	TokenLogStart  uint16 = 0xCAFE
	TokenLogEnd    uint16 = 0xD00D
	TokenFileStart uint16 = 0xACDC
	TokenFileEnd   uint16 = 0xABBA
)

// Direction selects the field order inside a frame.
type Direction uint8

const (
	// Forward frames open with the start token and list content before
	// the hash.
	Forward Direction = iota

	// Reverse frames open with the end token and list the hash first.
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "forward"
}

// State is a parser state.
type State uint8

const (
	Begin State = iota
	FileBegin
	FileName
	FileHash
	FileEnd
	LogBegin
	LogString
	LogLine
	LogHash
	LogEnd
)

var stateNames = [...]string{
	Begin:     "begin",
	FileBegin: "file-begin",
	FileName:  "file-name",
	FileHash:  "file-hash",
	FileEnd:   "file-end",
	LogBegin:  "log-begin",
	LogString: "log-string",
	LogLine:   "log-line",
	LogHash:   "log-hash",
	LogEnd:    "log-end",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// frameTokens returns the opening and closing token of a frame kind in
// the given direction.
func frameTokens(file bool, direction Direction) (opening, closing uint16) {
	start, end := TokenLogStart, TokenLogEnd
	if file {
		start, end = TokenFileStart, TokenFileEnd
	}
	if direction == Reverse {
		return end, start
	}
	return start, end
}
