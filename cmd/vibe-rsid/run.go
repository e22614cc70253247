package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-rsid/internal/chrom"
	"github.com/inodb/vibe-rsid/internal/duckdb"
	"github.com/inodb/vibe-rsid/internal/entrez"
	"github.com/inodb/vibe-rsid/internal/pipeline"
)

type runFlags struct {
	input       string
	outputDir   string
	chromosome  string
	equation    string
	preset      string
	format      string
	noCache     bool
	gzip        bool
	metricsFile string
}

func newRunCmd(root *rootOptions) *cobra.Command {
	f := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run [flags] <input.vcf>",
		Short: "Transform positions and annotate rsIDs",
		Long: `Transform every record with an equation, look up dbSNP rsIDs for records
without one, and write the results to <output-dir>/<name>_results/:

  <name>_modified.vcf     transformed records
  <name>_annotated.vcf    with rsIDs filled in (NORSID when none was found)
  <name>_with_rsids.vcf   records that have an rsID
  <name>_no_rsids.vcf     records that do not
  <name>_significant.vcf  records with an rsID and QUAL >= --qual-threshold`,
		Example: `  vibe-rsid run --preset ces1p1-ces1 --chromosome 16 sample.vcf
  vibe-rsid run --equation "x + 1000" --format UCSC -o results sample.vcf.gz`,
		Args: cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			for flag, key := range map[string]string{
				"email":          "entrez.email",
				"api-key":        "entrez.api_key",
				"workers":        "entrez.workers",
				"min-delay":      "entrez.min_delay",
				"max-retries":    "entrez.max_retries",
				"qual-threshold": "output.qual_threshold",
				"cache":          "cache.path",
			} {
				if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return err
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if f.input != "" {
					return usagef("input given both as --input and as an argument")
				}
				f.input = args[0]
			}
			return runPipeline(cmd, root.logger, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.input, "input", "i", "", "Input VCF file (.vcf or .vcf.gz)")
	flags.StringVarP(&f.outputDir, "output-dir", "o", ".", "Directory for the results folder")
	addTransformFlags(cmd, &f.chromosome, &f.equation, &f.preset, &f.format)
	flags.String("email", "", "Email sent to NCBI (default from config entrez.email)")
	flags.String("api-key", "", "NCBI API key")
	flags.Int("workers", entrez.DefaultConfig().MaxConcurrency, "Concurrent requests")
	flags.Duration("min-delay", entrez.DefaultConfig().MinDelay, "Minimum spacing between request starts")
	flags.Int("max-retries", entrez.DefaultConfig().MaxRetries, "Retries for throttled or failed requests")
	flags.Float64("qual-threshold", pipeline.DefaultQualThreshold, "Minimum QUAL of a significant variant")
	flags.String("cache", "", "DuckDB lookup cache (default from config cache.path)")
	flags.BoolVar(&f.noCache, "no-cache", false, "Do not read or write the lookup cache")
	flags.BoolVar(&f.gzip, "gzip", false, "Write BGZF-compressed .vcf.gz outputs")
	flags.StringVar(&f.metricsFile, "metrics-file", "", "Write request metrics in Prometheus text format")

	return cmd
}

func runPipeline(cmd *cobra.Command, logger *zap.Logger, f *runFlags) error {
	if f.input == "" {
		return usagef("an input VCF is required")
	}

	eq, err := resolveEquation(f.equation, f.preset)
	if err != nil {
		return err
	}
	target, format, err := parseTarget(f.chromosome, f.format)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := pipeline.Options{
		Input:         f.input,
		OutputDir:     f.outputDir,
		Equation:      eq,
		Target:        target,
		Format:        format,
		QualThreshold: viper.GetFloat64("output.qual_threshold"),
		Gzip:          f.gzip,
		Entrez:        entrezConfig(),
		Logger:        logger,
	}

	reg := prometheus.NewRegistry()
	if f.metricsFile != "" {
		opts.Registerer = reg
	}

	if path := viper.GetString("cache.path"); path != "" && !f.noCache {
		store, err := duckdb.Open(path)
		if err != nil {
			return err
		}
		defer store.Close()
		opts.Cache = store

		if fp, err := duckdb.StatFile(f.input); err == nil {
			if last, err := store.LastRunFor(fp); err == nil && last != nil {
				logger.Info("input unchanged since an earlier run",
					zap.String("previous_run", last.ID), zap.Time("started_at", last.StartedAt))
			}
		}
	}

	progress := make(chan entrez.Progress, 16)
	opts.Progress = progress
	done := make(chan struct{})
	go func() {
		defer close(done)
		reportProgress(cmd.ErrOrStderr(), progress)
	}()

	summary, err := pipeline.Run(ctx, opts)
	close(progress)
	<-done
	if err != nil {
		return err
	}

	if f.metricsFile != "" {
		if err := prometheus.WriteToTextfile(f.metricsFile, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	printSummary(cmd.OutOrStdout(), summary)
	if ctx.Err() != nil {
		return fmt.Errorf("interrupted: %d lookups cancelled", summary.Annotation.Cancelled)
	}
	return nil
}

// reportProgress prints a status line at most once per second.
func reportProgress(w io.Writer, ch <-chan entrez.Progress) {
	var (
		last    time.Time
		printed bool
	)
	for p := range ch {
		if time.Since(last) < time.Second && p.Completed < p.Total {
			continue
		}
		last = time.Now()
		printed = true
		fmt.Fprintf(w, "\rlooked up %d/%d positions, %d with rsIDs", p.Completed, p.Total, p.Found)
	}
	if printed {
		fmt.Fprintln(w)
	}
}

func printSummary(w io.Writer, s *pipeline.Summary) {
	t := s.Transform
	fmt.Fprintf(w, "Run %s\n", s.RunID)
	fmt.Fprintf(w, "Records:        %d read, %d transformed\n", t.Total, t.Transformed)
	if t.Excluded() > 0 {
		fmt.Fprintf(w, "Excluded:       %d unknown chromosome, %d non-positive, %d evaluation error\n",
			t.ChromosomeErrors, t.NonPositive, t.EvaluationErrors)
	}
	fmt.Fprintf(w, "Positions:      %s -> %s\n", t.InputRange, t.OutputRange)

	a := s.Annotation
	fmt.Fprintf(w, "Lookups:        %d queried, %d found, %d not found, %d failed, %d cancelled",
		s.Queries, a.Found, a.NotFound, a.Failed, a.Cancelled)
	if s.CacheHits > 0 {
		fmt.Fprintf(w, " (%d from cache)", s.CacheHits)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "With rsID:      %d\n", s.WithRSID)
	fmt.Fprintf(w, "Without rsID:   %d\n", s.WithoutRSID)
	fmt.Fprintf(w, "Significant:    %d\n", s.Significant)
	fmt.Fprintf(w, "Results:        %s\n", s.Files.Dir)
}

// parseTarget parses the --chromosome and --format flags. An empty
// chromosome keeps each record's own.
func parseTarget(chromosome, format string) (chrom.Key, chrom.Format, error) {
	if format == "" {
		format = viper.GetString("output.format")
	}
	f, err := chrom.ParseFormat(format)
	if err != nil {
		return 0, 0, usagef("%v", err)
	}
	if chromosome == "" {
		return 0, f, nil
	}
	k, err := chrom.Normalize(chromosome)
	if err != nil {
		return 0, 0, usagef("--chromosome: %v", err)
	}
	return k, f, nil
}

// resolveEquation returns the equation text given by exactly one of
// --equation and --preset.
func resolveEquation(text, preset string) (string, error) {
	switch {
	case text != "" && preset != "":
		return "", usagef("use either --equation or --preset, not both")
	case text != "":
		return text, nil
	case preset != "":
		eq := viper.GetString("presets." + preset)
		if eq == "" {
			return "", usagef("unknown preset %q (see 'vibe-rsid equation presets')", preset)
		}
		return eq, nil
	default:
		return "", usagef("an equation is required: use --equation or --preset")
	}
}

func addTransformFlags(cmd *cobra.Command, chromosome, eq, preset, format *string) {
	flags := cmd.Flags()
	flags.StringVarP(chromosome, "chromosome", "c", "", "Target chromosome for every record (default: keep each record's)")
	flags.StringVarP(eq, "equation", "e", "", `Position equation over x, e.g. "x + 55758218"`)
	flags.StringVarP(preset, "preset", "p", "", "Named equation from config presets.<name>")
	flags.StringVarP(format, "format", "f", "", "Chromosome naming: RefSeq, UCSC, Ensembl or numeric (default from config output.format)")
}
