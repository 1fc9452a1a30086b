// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package symtab

type siteKey struct {
	fileHash uint32
	line     uint32
}

// Index answers call-site and file-name queries against a Table. When
// a key appears more than once, the later record wins.
type Index struct {
	sites map[siteKey]CallSite
	files map[uint32]string
}

// NewIndex builds an index over table. The index does not observe
// later changes to the table.
func NewIndex(table *Table) *Index {
	index := &Index{
		sites: make(map[siteKey]CallSite, len(table.CallSites)),
		files: make(map[uint32]string, len(table.Files)),
	}
	for _, file := range table.Files {
		index.files[file.Hash] = file.Name
	}
	for _, site := range table.CallSites {
		index.sites[siteKey{site.FileHash, site.Line}] = site
	}
	return index
}

// Lookup returns the call site at (fileHash, line).
func (i *Index) Lookup(fileHash, line uint32) (CallSite, bool) {
	site, ok := i.sites[siteKey{fileHash, line}]
	return site, ok
}

// FileName returns the path for a file hash.
func (i *Index) FileName(fileHash uint32) (string, bool) {
	name, ok := i.files[fileHash]
	return name, ok
}
