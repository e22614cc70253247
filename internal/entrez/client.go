package entrez

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/eapache/go-resiliency/retrier"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/inodb/vibe-rsid/internal/chrom"
)

// Query asks for the rsIDs at one position. Index points back at the record
// the query was built from.
type Query struct {
	Index int
	Chrom chrom.Key
	Pos   int64
}

// Outcome is the final state of a query.
type Outcome int

const (
	Found Outcome = iota
	NotFound
	Failed
	Cancelled
)

var outcomeNames = [...]string{"found", "not_found", "failed", "cancelled"}

func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
	return outcomeNames[o]
}

// Result is the answer to one Query.
type Result struct {
	Query    Query
	Outcome  Outcome
	RSID     string   // comma-joined IDs when Found
	IDs      []string // individual IDs when Found
	Attempts int      // requests sent for this query
	Err      error    // set for Failed and Cancelled
}

// Progress is published after each query finishes. Counts are cumulative for
// the current Annotate call.
type Progress struct {
	Completed int
	Total     int
	Found     int
}

// Client runs batches of queries against a Lookup. The pacing gate is shared
// by every Annotate call on the same Client.
type Client struct {
	cfg      Config
	lookup   Lookup
	limiter  *rate.Limiter
	backoffs []time.Duration
	metrics  *Metrics
	logger   *zap.Logger
	progress chan<- Progress
	inFlight atomic.Int64
}

// New creates a client. A nil lookup uses NewHTTPLookup(cfg). Invalid
// configuration is returned as an error wrapping ErrInvalidConfig.
func New(cfg Config, lookup Lookup) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if lookup == nil {
		lookup = NewHTTPLookup(cfg)
	}

	limit := rate.Inf
	if cfg.MinDelay > 0 {
		limit = rate.Every(cfg.MinDelay)
	}

	return &Client{
		cfg:      cfg,
		lookup:   lookup,
		limiter:  rate.NewLimiter(limit, 1),
		backoffs: cfg.Backoffs(),
		metrics:  NewMetrics(nil),
		logger:   zap.NewNop(),
	}, nil
}

// SetLogger sets the logger for retry and batch messages.
func (c *Client) SetLogger(l *zap.Logger) {
	c.logger = l
}

// SetMetrics replaces the client's collectors, typically with ones created by
// NewMetrics on a real registry.
func (c *Client) SetMetrics(m *Metrics) {
	c.metrics = m
}

// SetProgress sets a channel that receives a Progress value after each
// query. Sends never block: a slow reader misses intermediate values.
func (c *Client) SetProgress(ch chan<- Progress) {
	c.progress = ch
}

// InFlight returns the number of requests currently outstanding.
func (c *Client) InFlight() int {
	return int(c.inFlight.Load())
}

// Config returns the client configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// Annotate looks up every query and returns one Result per query at the same
// index. One query failing never stops the others.
//
// Cancelling ctx stops dispatch. Requests already sent run to completion under
// their own timeout; pending retries and queries never dispatched are reported
// as Cancelled. Annotate returns only after every worker has exited.
func (c *Client) Annotate(ctx context.Context, queries []Query) []Result {
	results := make([]Result, len(queries))
	for i, q := range queries {
		results[i] = Result{Query: q, Outcome: Cancelled}
	}

	var completed, found atomic.Int64
	total := len(queries)

	var g errgroup.Group
	g.SetLimit(c.cfg.MaxConcurrency)

	start := time.Now()
	for i := range queries {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			r := c.annotateOne(ctx, queries[i])
			results[i] = r

			done := completed.Add(1)
			if r.Outcome == Found {
				found.Add(1)
			}
			c.metrics.Results.WithLabelValues(r.Outcome.String()).Inc()
			c.publish(Progress{Completed: int(done), Total: total, Found: int(found.Load())})
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		for i := range results {
			if results[i].Outcome == Cancelled && results[i].Err == nil {
				results[i].Err = err
			}
		}
	}

	counts := Tally(results)
	c.logger.Info("annotation batch finished",
		zap.Int("queries", total),
		zap.Int("found", counts.Found),
		zap.Int("not_found", counts.NotFound),
		zap.Int("failed", counts.Failed),
		zap.Int("cancelled", counts.Cancelled),
		zap.Duration("elapsed", time.Since(start)))
	return results
}

func (c *Client) publish(p Progress) {
	if c.progress == nil {
		return
	}
	select {
	case c.progress <- p:
	default:
	}
}

// annotateOne runs the retry loop for a single query.
func (c *Client) annotateOne(ctx context.Context, q Query) Result {
	res := Result{Query: q}
	if err := ctx.Err(); err != nil {
		res.Outcome = Cancelled
		res.Err = err
		return res
	}

	if local, ok := c.lookup.(LocalLookup); ok {
		if ids, hit := local.LookupLocal(q.Chrom, q.Pos); hit {
			return resolved(res, ids)
		}
	}

	var (
		ids       []string
		cancelled bool
	)
	r := retrier.New(c.backoffs, classifier{})
	err := r.RunCtx(ctx, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			cancelled = true
			return err
		}
		if res.Attempts > 0 {
			c.metrics.Retries.Inc()
		}
		res.Attempts++

		var err error
		ids, err = c.attempt(ctx, q)
		if err != nil && IsRetryable(err) {
			c.logger.Debug("retryable lookup failure",
				zap.Stringer("chrom", q.Chrom),
				zap.Int64("pos", q.Pos),
				zap.Int("attempt", res.Attempts),
				zap.Error(err))
		}
		return err
	})

	switch {
	case err == nil:
		return resolved(res, ids)
	case cancelled || (ctx.Err() != nil && errors.Is(err, ctx.Err())):
		res.Outcome = Cancelled
		res.Err = err
	default:
		res.Outcome = Failed
		res.Err = err
		c.logger.Warn("lookup failed",
			zap.Stringer("chrom", q.Chrom),
			zap.Int64("pos", q.Pos),
			zap.Int("attempts", res.Attempts),
			zap.Error(err))
	}
	return res
}

func resolved(res Result, ids []string) Result {
	if len(ids) == 0 {
		res.Outcome = NotFound
		return res
	}
	res.Outcome = Found
	res.IDs = ids
	res.RSID = strings.Join(ids, ",")
	return res
}

// attempt sends a single request. The request is detached from the caller's
// cancellation and bounded by RequestTimeout instead, so a cancelled batch
// lets outstanding requests finish.
func (c *Client) attempt(ctx context.Context, q Query) ([]string, error) {
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.RequestTimeout)
	defer cancel()

	c.inFlight.Add(1)
	c.metrics.InFlight.Inc()
	defer func() {
		c.inFlight.Add(-1)
		c.metrics.InFlight.Dec()
	}()

	var (
		ids []string
		err error
	)
	if cached, ok := c.lookup.(*CachedLookup); ok {
		// annotateOne already consulted the store.
		ids, err = cached.lookupRemote(reqCtx, q.Chrom, q.Pos)
	} else {
		ids, err = c.lookup.Lookup(reqCtx, q.Chrom, q.Pos)
	}
	if err != nil && !IsRetryable(err) && errors.Is(err, context.DeadlineExceeded) {
		err = Retryable(err)
	}
	c.metrics.attempt(ids, err)
	return ids, err
}

// classifier retries only *RetryableError failures.
type classifier struct{}

func (classifier) Classify(err error) retrier.Action {
	switch {
	case err == nil:
		return retrier.Succeed
	case IsRetryable(err):
		return retrier.Retry
	default:
		return retrier.Fail
	}
}

// Counts tallies results by outcome.
type Counts struct {
	Found, NotFound, Failed, Cancelled int
}

// Total returns the number of results counted.
func (c Counts) Total() int {
	return c.Found + c.NotFound + c.Failed + c.Cancelled
}

// Tally counts results by outcome.
func Tally(results []Result) Counts {
	var c Counts
	for _, r := range results {
		switch r.Outcome {
		case Found:
			c.Found++
		case NotFound:
			c.NotFound++
		case Failed:
			c.Failed++
		case Cancelled:
			c.Cancelled++
		}
	}
	return c
}

// Unfinished returns the queries of Failed and Cancelled results, in order,
// for resubmission as a new batch.
func Unfinished(results []Result) []Query {
	var out []Query
	for _, r := range results {
		if r.Outcome == Failed || r.Outcome == Cancelled {
			out = append(out, r.Query)
		}
	}
	return out
}
