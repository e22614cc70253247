package entrez

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/inodb/vibe-rsid/internal/chrom"
)

// Answer is a completed lookup as stored in a cache. Empty IDs record that
// dbSNP had nothing at the position.
type Answer struct {
	Chrom      chrom.Key
	Pos        int64
	IDs        []string
	LookedUpAt time.Time
	RunID      string
}

// Store persists answers between runs.
type Store interface {
	GetLookup(key chrom.Key, pos int64) (ids []string, ok bool, err error)
	PutLookups(answers []Answer) error
}

// LocalLookup is implemented by lookups that can answer some queries without
// sending a request. The Client consults it before the pacing gate.
type LocalLookup interface {
	LookupLocal(key chrom.Key, pos int64) (ids []string, ok bool)
}

// CachedLookup answers from a Store when it can and delegates to another
// Lookup otherwise. New answers are buffered until Flush. Errors are never
// cached.
type CachedLookup struct {
	next   Lookup
	store  Store
	runID  string
	logger *zap.Logger

	mu      sync.Mutex
	pending []Answer

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachedLookup wraps next with store.
func NewCachedLookup(next Lookup, store Store) *CachedLookup {
	return &CachedLookup{next: next, store: store, logger: zap.NewNop()}
}

// SetRunID tags answers written by Flush.
func (c *CachedLookup) SetRunID(id string) {
	c.runID = id
}

// SetLogger sets the logger used for cache read failures.
func (c *CachedLookup) SetLogger(l *zap.Logger) {
	c.logger = l
}

// LookupLocal returns the cached answer for a position, if any. A failing
// store read counts as a miss.
func (c *CachedLookup) LookupLocal(key chrom.Key, pos int64) ([]string, bool) {
	ids, ok, err := c.store.GetLookup(key, pos)
	if err != nil {
		c.logger.Warn("cache read failed", zap.Stringer("chrom", key), zap.Int64("pos", pos), zap.Error(err))
		return nil, false
	}
	if ok {
		c.hits.Add(1)
	}
	return ids, ok
}

// Lookup implements Lookup.
func (c *CachedLookup) Lookup(ctx context.Context, key chrom.Key, pos int64) ([]string, error) {
	if ids, ok := c.LookupLocal(key, pos); ok {
		return ids, nil
	}
	return c.lookupRemote(ctx, key, pos)
}

// lookupRemote asks the wrapped Lookup and buffers the answer. Callers have
// already checked the store.
func (c *CachedLookup) lookupRemote(ctx context.Context, key chrom.Key, pos int64) ([]string, error) {
	c.misses.Add(1)

	ids, err := c.next.Lookup(ctx, key, pos)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.pending = append(c.pending, Answer{
		Chrom:      key,
		Pos:        pos,
		IDs:        ids,
		LookedUpAt: time.Now().UTC(),
		RunID:      c.runID,
	})
	c.mu.Unlock()
	return ids, nil
}

// Flush writes buffered answers to the store.
func (c *CachedLookup) Flush() error {
	c.mu.Lock()
	batch := c.pending
	c.pending = nil
	c.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	if err := c.store.PutLookups(batch); err != nil {
		c.mu.Lock()
		c.pending = append(batch, c.pending...)
		c.mu.Unlock()
		return err
	}
	return nil
}

// Stats returns cache hits and misses so far.
func (c *CachedLookup) Stats() (hits, misses int) {
	return int(c.hits.Load()), int(c.misses.Load())
}
