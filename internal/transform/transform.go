// Package transform rewrites the chromosome and position of VCF records.
package transform

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/vibe-rsid/internal/chrom"
	"github.com/inodb/vibe-rsid/internal/equation"
	"github.com/inodb/vibe-rsid/internal/vcf"
)

// Options configures a transformation.
type Options struct {
	// Equation maps each input position to its output position.
	Equation *equation.Equation
	// Target is the chromosome written to every record. Zero keeps each
	// record's own chromosome, re-rendered in Format.
	Target chrom.Key
	// Format is the naming convention of the output chromosome.
	Format chrom.Format
}

// Validate checks that the options can be applied.
func (o Options) Validate() error {
	if o.Equation == nil {
		return errors.New("transform: equation is required")
	}
	if o.Target != 0 && !o.Target.Valid() {
		return fmt.Errorf("transform: invalid target chromosome %d", o.Target)
	}
	return nil
}

// Range is the inclusive span of positions seen.
type Range struct {
	Min, Max int64
}

func (r *Range) add(pos int64) {
	if r.Min == 0 || pos < r.Min {
		r.Min = pos
	}
	if pos > r.Max {
		r.Max = pos
	}
}

func (r Range) String() string {
	if r.Max == 0 {
		return "-"
	}
	return fmt.Sprintf("%d - %d", r.Min, r.Max)
}

// Report counts the outcome of a transformation.
type Report struct {
	Total            int   // records read
	Transformed      int   // records written
	ChromosomeErrors int   // excluded: chromosome not recognized
	NonPositive      int   // excluded: equation result <= 0
	EvaluationErrors int   // excluded: equation failed at runtime
	InputRange       Range // positions of all input records
	OutputRange      Range // positions of written records
}

// Excluded returns the number of records dropped for any reason.
func (r Report) Excluded() int {
	return r.ChromosomeErrors + r.NonPositive + r.EvaluationErrors
}

// Transformer applies Options to records. It holds no mutable state besides
// its logger and is safe to reuse.
type Transformer struct {
	opts   Options
	logger *zap.Logger
}

// New creates a transformer. It fails if opts are invalid.
func New(opts Options) (*Transformer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Transformer{opts: opts, logger: zap.NewNop()}, nil
}

// SetLogger sets the logger used to report excluded records.
func (t *Transformer) SetLogger(l *zap.Logger) {
	t.logger = l
}

// Options returns the options the transformer was created with.
func (t *Transformer) Options() Options {
	return t.opts
}

// Apply transforms a single record. The input is not modified. A non-nil
// error is a *chrom.ParseError, *equation.EvaluationError or
// *equation.NonPositiveError.
func (t *Transformer) Apply(v *vcf.Variant) (*vcf.Variant, error) {
	key, err := v.Key()
	if err != nil {
		return nil, err
	}
	if t.opts.Target != 0 {
		key = t.opts.Target
	}

	pos, err := t.opts.Equation.Evaluate(v.Pos)
	if err != nil {
		return nil, err
	}

	out := v.Clone()
	out.Chrom = chrom.Render(key, t.opts.Format)
	out.Pos = pos
	return out, nil
}

// record applies t to v and updates the report. It returns nil for excluded records.
func (t *Transformer) record(v *vcf.Variant, r *Report) *vcf.Variant {
	r.Total++
	if v.Pos > 0 {
		r.InputRange.add(v.Pos)
	}

	out, err := t.Apply(v)
	if err != nil {
		switch {
		case errors.Is(err, chrom.ErrUnknownChromosome):
			r.ChromosomeErrors++
		case errors.Is(err, equation.ErrNonPositive):
			r.NonPositive++
		default:
			r.EvaluationErrors++
		}
		t.logger.Debug("excluding record",
			zap.String("record", v.Location()),
			zap.Error(err))
		return nil
	}

	r.Transformed++
	r.OutputRange.add(out.Pos)
	return out
}

// Transform applies t to every record, preserving order. Records that fail
// are left out and counted in the report.
func (t *Transformer) Transform(records []*vcf.Variant) ([]*vcf.Variant, Report) {
	var r Report
	out := make([]*vcf.Variant, 0, len(records))
	for _, v := range records {
		if tv := t.record(v, &r); tv != nil {
			out = append(out, tv)
		}
	}
	return out, r
}

// Run streams records from parser through t into w. Only read or write
// errors are returned; per-record failures are counted in the report.
func (t *Transformer) Run(parser vcf.VariantParser, w vcf.VariantWriter) (Report, error) {
	var r Report
	for {
		v, err := parser.Next()
		if err != nil {
			return r, fmt.Errorf("read variant: %w", err)
		}
		if v == nil {
			break
		}
		if tv := t.record(v, &r); tv != nil {
			if err := w.Write(tv); err != nil {
				return r, fmt.Errorf("write variant: %w", err)
			}
		}
	}

	if r.Total == 0 {
		t.logger.Info("0 variants processed")
	}
	return r, nil
}

// Transform is a convenience wrapper around New and Transformer.Transform.
func Transform(records []*vcf.Variant, opts Options) ([]*vcf.Variant, Report, error) {
	t, err := New(opts)
	if err != nil {
		return nil, Report{}, err
	}
	out, r := t.Transform(records)
	return out, r, nil
}

// Contigs returns ##contig header lines for the chromosomes in records,
// in first-seen order.
func Contigs(records []*vcf.Variant, f chrom.Format) []string {
	seen := make(map[chrom.Key]bool)
	var lines []string
	for _, v := range records {
		k, err := chrom.Normalize(v.Chrom)
		if err != nil || seen[k] {
			continue
		}
		seen[k] = true
		lines = append(lines, chrom.ContigHeader(k, f))
	}
	return lines
}

// MetaLine returns the ##vibe-rsid header line recording how records were
// transformed. Whitespace in the equation is collapsed to single spaces so
// the line stays on one line. An empty runID is left out.
func MetaLine(eq *equation.Equation, f chrom.Format, runID string) string {
	text := strings.Join(strings.Fields(eq.String()), " ")
	if runID == "" {
		return fmt.Sprintf(`##vibe-rsid=<Equation="%s",Format=%s>`, text, f)
	}
	return fmt.Sprintf(`##vibe-rsid=<Run=%s,Equation="%s",Format=%s>`, runID, text, f)
}
