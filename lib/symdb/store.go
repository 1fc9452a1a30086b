// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package symdb

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/moslevin/mark3-logger/lib/symtab"
)

// Schema creates the symbol tables. Row ids preserve insertion order.
const Schema = `
CREATE TABLE IF NOT EXISTS files (
	id INTEGER PRIMARY KEY,
	file_hash INTEGER NOT NULL,
	file_name TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS files_by_hash ON files (file_hash);

CREATE TABLE IF NOT EXISTS call_sites (
	id INTEGER PRIMARY KEY,
	format_string TEXT NOT NULL,
	file_hash INTEGER NOT NULL,
	line INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS call_sites_by_location ON call_sites (file_hash, line);
`

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA cache_size=-8192",
	"PRAGMA mmap_size=268435456",
	"PRAGMA temp_store=MEMORY",
}

const defaultPoolSize = 4

// Config holds the parameters for opening a Store.
type Config struct {
	// Path is the database file. The parent directory must exist; the
	// file is created if it does not.
	Path string

	// PoolSize is the number of connections. Zero means 4.
	PoolSize int

	// Logger receives open and close messages. Nil discards them.
	Logger *slog.Logger
}

// Store is a SQLite-backed symbol table. It is safe for concurrent
// use.
type Store struct {
	pool   *sqlitex.Pool
	logger *slog.Logger
	path   string
}

// Open opens or creates the database at cfg.Path and applies the
// schema. ctx bounds the first connection, which Open takes to report
// an unusable file immediately rather than on first query.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("symdb: Path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("symdb: opening %s: %w", cfg.Path, err)
	}

	conn, err := pool.Take(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("symdb: opening %s: %w", cfg.Path, err)
	}
	pool.Put(conn)

	logger.Info("symbol database opened", "path", cfg.Path, "pool_size", poolSize)
	return &Store{pool: pool, logger: logger, path: cfg.Path}, nil
}

func prepareConnection(conn *sqlite.Conn) error {
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("symdb: %s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, Schema, nil); err != nil {
		return fmt.Errorf("symdb: applying schema: %w", err)
	}
	return nil
}

// Close closes every connection. It blocks until borrowed connections
// are returned.
func (s *Store) Close() error {
	if err := s.pool.Close(); err != nil {
		s.logger.Error("symbol database close failed", "path", s.path, "error", err)
		return fmt.Errorf("symdb: closing %s: %w", s.path, err)
	}
	s.logger.Info("symbol database closed", "path", s.path)
	return nil
}

// Import replaces the stored symbols with table in a single IMMEDIATE
// transaction. Readers see either the old table or the new one.
func (s *Store) Import(ctx context.Context, table *symtab.Table) (err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("symdb: import: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("symdb: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	if err = sqlitex.ExecuteScript(conn, "DELETE FROM files; DELETE FROM call_sites;", nil); err != nil {
		return fmt.Errorf("symdb: clearing tables: %w", err)
	}
	for _, file := range table.Files {
		err = sqlitex.Execute(conn,
			"INSERT INTO files (file_hash, file_name) VALUES (?, ?)",
			&sqlitex.ExecOptions{Args: []any{int64(file.Hash), file.Name}})
		if err != nil {
			return fmt.Errorf("symdb: inserting file %q: %w", file.Name, err)
		}
	}
	for _, site := range table.CallSites {
		err = sqlitex.Execute(conn,
			"INSERT INTO call_sites (format_string, file_hash, line) VALUES (?, ?, ?)",
			&sqlitex.ExecOptions{Args: []any{site.Format, int64(site.FileHash), int64(site.Line)}})
		if err != nil {
			return fmt.Errorf("symdb: inserting call site %#08x:%d: %w", site.FileHash, site.Line, err)
		}
	}

	s.logger.Info("symbols imported",
		"path", s.path,
		"files", len(table.Files),
		"call_sites", len(table.CallSites),
	)
	return nil
}

// Lookup returns the call site at (fileHash, line). When several rows
// match, the most recently inserted wins, as in symtab.Index.
func (s *Store) Lookup(ctx context.Context, fileHash, line uint32) (symtab.CallSite, bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return symtab.CallSite{}, false, fmt.Errorf("symdb: lookup: %w", err)
	}
	defer s.pool.Put(conn)

	var site symtab.CallSite
	found := false
	err = sqlitex.Execute(conn,
		"SELECT format_string FROM call_sites WHERE file_hash = ? AND line = ? ORDER BY id DESC LIMIT 1",
		&sqlitex.ExecOptions{
			Args: []any{int64(fileHash), int64(line)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				site = symtab.CallSite{Format: stmt.ColumnText(0), FileHash: fileHash, Line: line}
				found = true
				return nil
			},
		})
	if err != nil {
		return symtab.CallSite{}, false, fmt.Errorf("symdb: lookup %#08x:%d: %w", fileHash, line, err)
	}
	return site, found, nil
}

// FileName returns the path recorded for fileHash.
func (s *Store) FileName(ctx context.Context, fileHash uint32) (string, bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return "", false, fmt.Errorf("symdb: file name: %w", err)
	}
	defer s.pool.Put(conn)

	var name string
	found := false
	err = sqlitex.Execute(conn,
		"SELECT file_name FROM files WHERE file_hash = ? ORDER BY id DESC LIMIT 1",
		&sqlitex.ExecOptions{
			Args: []any{int64(fileHash)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				name, found = stmt.ColumnText(0), true
				return nil
			},
		})
	if err != nil {
		return "", false, fmt.Errorf("symdb: file name %#08x: %w", fileHash, err)
	}
	return name, found, nil
}

// Table reads the whole store back in insertion order.
func (s *Store) Table(ctx context.Context) (*symtab.Table, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("symdb: table: %w", err)
	}
	defer s.pool.Put(conn)

	table := &symtab.Table{}
	err = sqlitex.Execute(conn, "SELECT file_name, file_hash FROM files ORDER BY id", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			table.AddFile(symtab.FileRecord{
				Name: stmt.ColumnText(0),
				Hash: uint32(stmt.ColumnInt64(1)),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("symdb: reading files: %w", err)
	}
	err = sqlitex.Execute(conn, "SELECT format_string, file_hash, line FROM call_sites ORDER BY id", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			table.AddCallSite(symtab.CallSite{
				Format:   stmt.ColumnText(0),
				FileHash: uint32(stmt.ColumnInt64(1)),
				Line:     uint32(stmt.ColumnInt64(2)),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("symdb: reading call sites: %w", err)
	}
	return table, nil
}
