// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package symtab

// FileRecord binds a source file hash to its path.
type FileRecord struct {
	Name string
	Hash uint32
}

// CallSite binds a logging call site to its literal format string.
// Line is stored as 32 bits although the metadata stream carries it
// in 16.
type CallSite struct {
	Format   string
	FileHash uint32
	Line     uint32
}

// Table is an insertion-ordered symbol table. The zero value is empty
// and ready to use.
type Table struct {
	Files     []FileRecord
	CallSites []CallSite
}

// AddFile appends a file record.
func (t *Table) AddFile(record FileRecord) {
	t.Files = append(t.Files, record)
}

// AddCallSite appends a call-site record.
func (t *Table) AddCallSite(site CallSite) {
	t.CallSites = append(t.CallSites, site)
}

// Len returns the total number of records.
func (t *Table) Len() int {
	return len(t.Files) + len(t.CallSites)
}
