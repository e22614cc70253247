package duckdb

import (
	"fmt"
	"os"
	"time"
)

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Run is one pipeline execution as recorded in the runs table.
type Run struct {
	ID         string
	Input      FileFingerprint
	Equation   string
	StartedAt  time.Time
	FinishedAt time.Time

	Records     int64
	Transformed int64
	Found       int64
	NotFound    int64
	Failed      int64
	Cancelled   int64
}

// RecordRun inserts or replaces a run.
func (s *Store) RecordRun(r Run) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO runs VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Input.Path, r.Input.Size, r.Input.ModTime.UTC().Truncate(time.Microsecond), r.Equation,
		r.StartedAt.UTC(), r.FinishedAt.UTC(),
		r.Records, r.Transformed, r.Found, r.NotFound, r.Failed, r.Cancelled)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// Runs returns recorded runs, most recent first. A limit <= 0 returns all.
func (s *Store) Runs(limit int) ([]Run, error) {
	query := `SELECT run_id, input_path, input_size, input_mtime, equation,
		started_at, finished_at, records, transformed, found, not_found, failed, cancelled
		FROM runs ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(
			&r.ID, &r.Input.Path, &r.Input.Size, &r.Input.ModTime, &r.Equation,
			&r.StartedAt, &r.FinishedAt,
			&r.Records, &r.Transformed, &r.Found, &r.NotFound, &r.Failed, &r.Cancelled,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LastRunFor returns the most recent run over an unchanged copy of the input
// file, or nil when there is none.
func (s *Store) LastRunFor(fp FileFingerprint) (*Run, error) {
	runs, err := s.Runs(0)
	if err != nil {
		return nil, err
	}
	for _, r := range runs {
		if r.Input.Path == fp.Path && r.Input.Size == fp.Size && r.Input.ModTime.Equal(fp.ModTime.Truncate(time.Microsecond)) {
			return &r, nil
		}
	}
	return nil, nil
}
