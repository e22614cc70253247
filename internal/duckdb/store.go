// Package duckdb persists rsID lookups and run history in DuckDB so that
// repeated runs over the same positions do not query NCBI again.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection for the lookup cache.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file, or "" for an in-memory store.
func (s *Store) Path() string {
	return s.path
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS rsid_lookups (
			chrom VARCHAR,
			pos BIGINT,
			rsids VARCHAR,
			found BOOLEAN,
			looked_up_at TIMESTAMP,
			run_id VARCHAR,
			PRIMARY KEY (chrom, pos)
		)`,
		// Appender target; rows are moved into rsid_lookups with INSERT OR REPLACE.
		`CREATE TABLE IF NOT EXISTS rsid_lookups_staging (
			chrom VARCHAR,
			pos BIGINT,
			rsids VARCHAR,
			found BOOLEAN,
			looked_up_at TIMESTAMP,
			run_id VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id VARCHAR PRIMARY KEY,
			input_path VARCHAR,
			input_size BIGINT,
			input_mtime TIMESTAMP,
			equation VARCHAR,
			started_at TIMESTAMP,
			finished_at TIMESTAMP,
			records BIGINT,
			transformed BIGINT,
			found BIGINT,
			not_found BIGINT,
			failed BIGINT,
			cancelled BIGINT
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
