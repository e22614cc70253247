// Package pipeline runs the full transform and annotate workflow over a VCF
// file and writes the result files.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/inodb/vibe-rsid/internal/chrom"
	"github.com/inodb/vibe-rsid/internal/duckdb"
	"github.com/inodb/vibe-rsid/internal/entrez"
	"github.com/inodb/vibe-rsid/internal/equation"
	"github.com/inodb/vibe-rsid/internal/transform"
	"github.com/inodb/vibe-rsid/internal/vcf"
)

// DefaultQualThreshold is the minimum QUAL of a significant variant.
const DefaultQualThreshold = 20.0

// Options configures a run.
type Options struct {
	Input     string
	OutputDir string

	Equation string
	Target   chrom.Key // zero keeps each record's chromosome
	Format   chrom.Format

	QualThreshold float64
	Gzip          bool // write .vcf.gz outputs

	// SkipAnnotation writes only the modified file.
	SkipAnnotation bool
	Entrez         entrez.Config
	// Lookup overrides the E-utilities lookup, mostly for tests.
	Lookup entrez.Lookup
	// Cache, when set, answers repeated positions and records the run.
	Cache *duckdb.Store

	Registerer prometheus.Registerer
	Progress   chan<- entrez.Progress
	Logger     *zap.Logger
}

// Files are the paths written by a run.
type Files struct {
	Dir       string
	Modified  string
	Annotated string
	WithRSIDs string
	NoRSIDs   string
	Signif    string
}

// Summary describes a finished run.
type Summary struct {
	RunID      string
	Files      Files
	Transform  transform.Report
	Queries    int
	Annotation entrez.Counts
	CacheHits  int

	WithRSID    int
	WithoutRSID int
	Significant int
	Elapsed     time.Duration
}

// outputFiles returns the result paths for an input file.
func outputFiles(input, outputDir string, gz bool) Files {
	base := filepath.Base(input)
	base = strings.TrimSuffix(base, ".gz")
	base = strings.TrimSuffix(base, ".vcf")

	ext := ".vcf"
	if gz {
		ext = ".vcf.gz"
	}
	dir := filepath.Join(outputDir, base+"_results")
	name := func(suffix string) string {
		return filepath.Join(dir, base+"_"+suffix+ext)
	}
	return Files{
		Dir:       dir,
		Modified:  name("modified"),
		Annotated: name("annotated"),
		WithRSIDs: name("with_rsids"),
		NoRSIDs:   name("no_rsids"),
		Signif:    name("significant"),
	}
}

// Run executes the pipeline. Invalid equations, client configuration and
// input files are reported before any output is written. Per-record and
// per-query failures are counted in the summary; cancelling ctx stops the
// annotation step and the remaining queries are written as NORSID.
func Run(ctx context.Context, opts Options) (*Summary, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	start := time.Now()

	eq, err := equation.Validate(opts.Equation)
	if err != nil {
		return nil, err
	}
	tr, err := transform.New(transform.Options{Equation: eq, Target: opts.Target, Format: opts.Format})
	if err != nil {
		return nil, err
	}
	tr.SetLogger(logger)

	runID := uuid.NewString()
	logger = logger.With(zap.String("run_id", runID))

	var (
		client *entrez.Client
		cached *entrez.CachedLookup
	)
	if !opts.SkipAnnotation {
		lookup := opts.Lookup
		if lookup == nil {
			lookup = entrez.NewHTTPLookup(opts.Entrez)
		}
		if opts.Cache != nil {
			cached = entrez.NewCachedLookup(lookup, opts.Cache)
			cached.SetRunID(runID)
			cached.SetLogger(logger)
			lookup = cached
		}
		client, err = entrez.New(opts.Entrez, lookup)
		if err != nil {
			return nil, err
		}
		client.SetLogger(logger)
		client.SetMetrics(entrez.NewMetrics(opts.Registerer))
		client.SetProgress(opts.Progress)
	}

	if err := vcf.Validate(opts.Input); err != nil {
		return nil, err
	}

	parser, err := vcf.NewParser(opts.Input)
	if err != nil {
		return nil, err
	}
	defer parser.Close()

	records, err := vcf.ReadAll(parser)
	if err != nil {
		return nil, err
	}

	out, report := tr.Transform(records)
	logger.Info("transformed records",
		zap.Int("total", report.Total),
		zap.Int("transformed", report.Transformed),
		zap.Int("chromosome_errors", report.ChromosomeErrors),
		zap.Int("non_positive", report.NonPositive),
		zap.Int("evaluation_errors", report.EvaluationErrors))

	files := outputFiles(opts.Input, opts.OutputDir, opts.Gzip)
	if err := os.MkdirAll(files.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create results directory: %w", err)
	}

	header := vcf.ReplaceContigs(parser.Header(), transform.Contigs(out, opts.Format))
	header = vcf.AddMeta(header, transform.MetaLine(eq, opts.Format, runID))

	s := &Summary{RunID: runID, Files: files, Transform: report}

	if _, err := writeVCF(files.Modified, header, out, nil); err != nil {
		return nil, err
	}
	if opts.SkipAnnotation {
		s.Files = Files{Dir: files.Dir, Modified: files.Modified}
		s.Elapsed = time.Since(start)
		return s, nil
	}

	queries := buildQueries(out)
	s.Queries = len(queries)
	logger.Info("annotating records", zap.Int("queries", len(queries)), zap.Int("kept", len(out)-len(queries)))

	results := client.Annotate(ctx, queries)
	s.Annotation = entrez.Tally(results)
	if cached != nil {
		if err := cached.Flush(); err != nil {
			logger.Warn("cache write failed", zap.Error(err))
		}
		s.CacheHits, _ = cached.Stats()
	}

	annotated := applyResults(out, results)
	if _, err := writeVCF(files.Annotated, header, annotated, nil); err != nil {
		return nil, err
	}

	if s.WithRSID, err = writeVCF(files.WithRSIDs, header, annotated, (*vcf.Variant).HasRSID); err != nil {
		return nil, err
	}
	withoutRSID := func(v *vcf.Variant) bool { return !v.HasRSID() }
	if s.WithoutRSID, err = writeVCF(files.NoRSIDs, header, annotated, withoutRSID); err != nil {
		return nil, err
	}

	threshold := opts.QualThreshold
	if threshold == 0 {
		threshold = DefaultQualThreshold
	}
	significant := func(v *vcf.Variant) bool { return v.HasRSID() && v.HasQual && v.Qual >= threshold }
	if s.Significant, err = writeVCF(files.Signif, header, annotated, significant); err != nil {
		return nil, err
	}

	s.Elapsed = time.Since(start)
	if opts.Cache != nil {
		recordRun(opts.Cache, opts.Input, eq, start, s, logger)
	}

	logger.Info("run finished",
		zap.Int("with_rsid", s.WithRSID),
		zap.Int("without_rsid", s.WithoutRSID),
		zap.Int("significant", s.Significant),
		zap.Duration("elapsed", s.Elapsed))
	return s, nil
}

// buildQueries returns a query for each record whose ID is missing or a
// previous NORSID. Records that already carry an identifier are kept as is.
func buildQueries(records []*vcf.Variant) []entrez.Query {
	var queries []entrez.Query
	for i, v := range records {
		if !v.NeedsLookup() {
			continue
		}
		key, err := v.Key()
		if err != nil {
			continue
		}
		queries = append(queries, entrez.Query{Index: i, Chrom: key, Pos: v.Pos})
	}
	return queries
}

// applyResults returns copies of records with looked-up IDs filled in. Misses,
// failures and cancellations are written as NORSID.
func applyResults(records []*vcf.Variant, results []entrez.Result) []*vcf.Variant {
	out := make([]*vcf.Variant, len(records))
	copy(out, records)
	for _, r := range results {
		v := records[r.Query.Index].Clone()
		if r.Outcome == entrez.Found {
			v.ID = r.RSID
		} else {
			v.ID = vcf.NoRSID
		}
		out[r.Query.Index] = v
	}
	return out
}

// writeVCF writes header and the records accepted by keep (all when nil) and
// returns the number of records written.
func writeVCF(path string, header []string, records []*vcf.Variant, keep func(*vcf.Variant) bool) (int, error) {
	w, err := vcf.Create(path)
	if err != nil {
		return 0, err
	}
	if err := w.WriteHeader(header); err != nil {
		w.Close()
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	for _, v := range records {
		if keep != nil && !keep(v) {
			continue
		}
		if err := w.Write(v); err != nil {
			w.Close()
			return 0, fmt.Errorf("write %s: %w", path, err)
		}
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("close %s: %w", path, err)
	}
	return w.Count(), nil
}

func recordRun(store *duckdb.Store, input string, eq *equation.Equation, start time.Time, s *Summary, logger *zap.Logger) {
	fp, err := duckdb.StatFile(input)
	if err != nil {
		logger.Warn("stat input for run history", zap.Error(err))
		return
	}
	err = store.RecordRun(duckdb.Run{
		ID:          s.RunID,
		Input:       fp,
		Equation:    eq.String(),
		StartedAt:   start,
		FinishedAt:  start.Add(s.Elapsed),
		Records:     int64(s.Transform.Total),
		Transformed: int64(s.Transform.Transformed),
		Found:       int64(s.Annotation.Found),
		NotFound:    int64(s.Annotation.NotFound),
		Failed:      int64(s.Annotation.Failed),
		Cancelled:   int64(s.Annotation.Cancelled),
	})
	if err != nil {
		logger.Warn("record run", zap.Error(err))
	}
}
