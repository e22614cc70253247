package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vibe-rsid/internal/chrom"
	"github.com/inodb/vibe-rsid/internal/entrez"
)

var _ entrez.Store = (*Store)(nil)

// lookupKey is the primary key of rsid_lookups.
type lookupKey struct {
	chrom string
	pos   int64
}

// GetLookup returns the cached answer for a position. ok is false when the
// position was never looked up; ids is empty when dbSNP had nothing there.
func (s *Store) GetLookup(key chrom.Key, pos int64) (ids []string, ok bool, err error) {
	var rsids string
	err = s.db.QueryRow(`SELECT rsids FROM rsid_lookups WHERE chrom=? AND pos=?`,
		key.String(), pos).Scan(&rsids)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query lookup: %w", err)
	}
	if rsids == "" {
		return nil, true, nil
	}
	return strings.Split(rsids, ","), true, nil
}

// PutLookups batch-writes answers using the Appender API. Later answers for
// the same (chrom, pos) replace earlier ones, both within the batch and
// against rows already stored.
func (s *Store) PutLookups(answers []entrez.Answer) error {
	if len(answers) == 0 {
		return nil
	}

	// Deduplicate by primary key, keeping the last answer.
	index := make(map[lookupKey]int, len(answers))
	deduped := make([]entrez.Answer, 0, len(answers))
	for _, a := range answers {
		k := lookupKey{a.Chrom.String(), a.Pos}
		if i, ok := index[k]; ok {
			deduped[i] = a
			continue
		}
		index[k] = len(deduped)
		deduped = append(deduped, a)
	}

	ctx := context.Background()
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "rsid_lookups_staging")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}

	for _, a := range deduped {
		lookedUp := a.LookedUpAt
		if lookedUp.IsZero() {
			lookedUp = time.Now().UTC()
		}
		if err := appender.AppendRow(
			a.Chrom.String(), a.Pos, strings.Join(a.IDs, ","), len(a.IDs) > 0,
			lookedUp, a.RunID,
		); err != nil {
			appender.Close()
			return fmt.Errorf("append lookup: %w", err)
		}
	}
	if err := appender.Close(); err != nil {
		return fmt.Errorf("flush appender: %w", err)
	}

	if _, err := conn.ExecContext(ctx, `INSERT OR REPLACE INTO rsid_lookups
		SELECT chrom, pos, rsids, found, looked_up_at, run_id FROM rsid_lookups_staging`); err != nil {
		return fmt.Errorf("merge lookups: %w", err)
	}
	if _, err := conn.ExecContext(ctx, `DELETE FROM rsid_lookups_staging`); err != nil {
		return fmt.Errorf("clear staging: %w", err)
	}
	return nil
}

// ClearLookups removes all cached lookups.
func (s *Store) ClearLookups() error {
	_, err := s.db.Exec("DELETE FROM rsid_lookups")
	return err
}

// PruneLookups removes lookups made before cutoff and returns how many were
// removed.
func (s *Store) PruneLookups(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec("DELETE FROM rsid_lookups WHERE looked_up_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune lookups: %w", err)
	}
	return res.RowsAffected()
}

// LookupStats summarizes the cache contents.
type LookupStats struct {
	Positions int64
	Found     int64
	Runs      int64
}

// Stats returns counts over the cached lookups and recorded runs.
func (s *Store) Stats() (LookupStats, error) {
	var st LookupStats
	err := s.db.QueryRow(`SELECT
		count(*),
		count(*) FILTER (WHERE found),
		(SELECT count(*) FROM runs)
		FROM rsid_lookups`).Scan(&st.Positions, &st.Found, &st.Runs)
	if err != nil {
		return LookupStats{}, fmt.Errorf("query stats: %w", err)
	}
	return st, nil
}
