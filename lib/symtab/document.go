// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package symtab

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"github.com/tidwall/jsonc"
	"github.com/zeebo/blake3"

	"github.com/moslevin/mark3-logger/lib/codec"
)

// Document is the serialized form of a Table. Field names are part of
// the contract with downstream tooling and must not change.
type Document struct {
	FileMap  []FileEntry    `json:"fileMap"`
	LogLines []LogLineEntry `json:"logLines"`

	// Source identifies the metadata artifact the table was decoded
	// from. Advisory: nothing checks it against a capture.
	Source *Source `json:"source,omitempty"`
}

// FileEntry is one element of Document.FileMap.
type FileEntry struct {
	FileName string `json:"fileName"`
	FileHash uint32 `json:"fileHash"`
}

// LogLineEntry is one element of Document.LogLines.
type LogLineEntry struct {
	FormatString string `json:"formatString"`
	FileHash     uint32 `json:"fileHash"`
	FileLine     uint32 `json:"fileLine"`
}

// Source describes a metadata artifact.
type Source struct {
	Path   string `json:"path,omitempty"`
	Size   int64  `json:"size"`
	Digest string `json:"digest"`
}

// sourceDomainKey keys the BLAKE3 hash of metadata artifacts so the
// digest cannot collide with hashes computed for other purposes.
var sourceDomainKey = [32]byte{
	'm', 'a', 'r', 'k', '3', '.', 's', 'y', 'm', 't', 'a', 'b', '.',
	's', 'o', 'u', 'r', 'c', 'e',
}

// DescribeSource returns the Source for a metadata artifact with the
// given path and contents. The digest is the hex keyed BLAKE3-256 of
// data.
func DescribeSource(path string, data []byte) Source {
	hasher, err := blake3.NewKeyed(sourceDomainKey[:])
	if err != nil {
		panic("symtab: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	return Source{
		Path:   path,
		Size:   int64(len(data)),
		Digest: hex.EncodeToString(hasher.Sum(nil)),
	}
}

// Document converts the table to its serialized form. Empty tables
// produce empty arrays, never null.
func (t *Table) Document() Document {
	document := Document{
		FileMap:  make([]FileEntry, 0, len(t.Files)),
		LogLines: make([]LogLineEntry, 0, len(t.CallSites)),
	}
	for _, file := range t.Files {
		document.FileMap = append(document.FileMap, FileEntry{
			FileName: file.Name,
			FileHash: file.Hash,
		})
	}
	for _, site := range t.CallSites {
		document.LogLines = append(document.LogLines, LogLineEntry{
			FormatString: site.Format,
			FileHash:     site.FileHash,
			FileLine:     site.Line,
		})
	}
	return document
}

// Table converts a document back to a Table.
func (d Document) Table() *Table {
	table := &Table{
		Files:     make([]FileRecord, 0, len(d.FileMap)),
		CallSites: make([]CallSite, 0, len(d.LogLines)),
	}
	for _, entry := range d.FileMap {
		table.AddFile(FileRecord{Name: entry.FileName, Hash: entry.FileHash})
	}
	for _, entry := range d.LogLines {
		table.AddCallSite(CallSite{Format: entry.FormatString, FileHash: entry.FileHash, Line: entry.FileLine})
	}
	return table
}

// WriteJSON writes the document as JSON followed by a newline. Indent
// selects two-space indentation.
func WriteJSON(w io.Writer, document Document, indent bool) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if indent {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(document); err != nil {
		return fmt.Errorf("symtab: writing JSON document: %w", err)
	}
	return nil
}

// WriteCBOR writes the document as one deterministic CBOR item.
func WriteCBOR(w io.Writer, document Document) error {
	data, err := codec.Marshal(document)
	if err != nil {
		return fmt.Errorf("symtab: encoding CBOR document: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("symtab: writing CBOR document: %w", err)
	}
	return nil
}

// ReadDocument reads a document in any format the writers produce. A
// stream whose first non-blank byte opens a JSON object or comment is
// decoded as JSON with comments and trailing commas permitted;
// anything else is decoded as CBOR.
func ReadDocument(r io.Reader) (Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Document{}, fmt.Errorf("symtab: reading document: %w", err)
	}

	var document Document
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return Document{}, fmt.Errorf("symtab: empty document")
	}
	if trimmed[0] == '{' || trimmed[0] == '/' {
		if err := json.Unmarshal(jsonc.ToJSON(data), &document); err != nil {
			return Document{}, fmt.Errorf("symtab: decoding JSON document: %w", err)
		}
		return document, nil
	}
	if err := codec.Unmarshal(data, &document); err != nil {
		return Document{}, fmt.Errorf("symtab: decoding CBOR document: %w", err)
	}
	return document, nil
}
