package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/vibe-rsid/internal/chrom"
	"github.com/inodb/vibe-rsid/internal/equation"
	"github.com/inodb/vibe-rsid/internal/transform"
	"github.com/inodb/vibe-rsid/internal/vcf"
)

type transformFlags struct {
	output     string
	chromosome string
	equation   string
	preset     string
	format     string
}

func newTransformCmd(root *rootOptions) *cobra.Command {
	f := &transformFlags{}

	cmd := &cobra.Command{
		Use:   "transform [flags] <input.vcf>",
		Short: "Rewrite chromosome and positions without annotating",
		Long: `Apply a position equation to every record and write the result. Records
whose new position is not positive, or whose chromosome is not recognized,
are left out and counted in the report printed to stderr.`,
		Example: `  vibe-rsid transform --preset ces1a2-ces1 -c 16 sample.vcf > ces1.vcf
  vibe-rsid transform -e "x - 1000" -f UCSC -o shifted.vcf.gz sample.vcf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransform(cmd, root.logger, args[0], f)
		},
	}

	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Output file (default: stdout)")
	addTransformFlags(cmd, &f.chromosome, &f.equation, &f.preset, &f.format)

	return cmd
}

func runTransform(cmd *cobra.Command, logger *zap.Logger, input string, f *transformFlags) error {
	text, err := resolveEquation(f.equation, f.preset)
	if err != nil {
		return err
	}
	eq, err := equation.Validate(text)
	if err != nil {
		return err
	}
	target, format, err := parseTarget(f.chromosome, f.format)
	if err != nil {
		return err
	}

	tr, err := transform.New(transform.Options{Equation: eq, Target: target, Format: format})
	if err != nil {
		return err
	}
	tr.SetLogger(logger)

	if err := vcf.Validate(input); err != nil {
		return err
	}
	parser, err := vcf.NewParser(input)
	if err != nil {
		return err
	}
	defer parser.Close()

	var w *vcf.Writer
	if f.output == "" || f.output == "-" {
		w = vcf.NewWriter(cmd.OutOrStdout())
	} else if w, err = vcf.Create(f.output); err != nil {
		return err
	}

	report, err := writeTransformed(parser, w, tr, eq)
	if cerr := w.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close output: %w", cerr)
	}
	if err != nil {
		return err
	}

	printReport(cmd.ErrOrStderr(), report)
	return nil
}

// writeTransformed writes the header and transformed records. With a target
// chromosome the contigs are known up front and records are streamed;
// otherwise they are read first so the header lists the contigs present.
func writeTransformed(parser *vcf.Parser, w *vcf.Writer, tr *transform.Transformer, eq *equation.Equation) (transform.Report, error) {
	opts := tr.Options()
	meta := transform.MetaLine(eq, opts.Format, "")

	if opts.Target != 0 {
		header := vcf.ReplaceContigs(parser.Header(), []string{chrom.ContigHeader(opts.Target, opts.Format)})
		if err := w.WriteHeader(vcf.AddMeta(header, meta)); err != nil {
			return transform.Report{}, fmt.Errorf("write header: %w", err)
		}
		return tr.Run(parser, w)
	}

	records, err := vcf.ReadAll(parser)
	if err != nil {
		return transform.Report{}, err
	}
	out, report := tr.Transform(records)
	header := vcf.ReplaceContigs(parser.Header(), transform.Contigs(out, opts.Format))
	if err := w.WriteHeader(vcf.AddMeta(header, meta)); err != nil {
		return report, fmt.Errorf("write header: %w", err)
	}
	for _, v := range out {
		if err := w.Write(v); err != nil {
			return report, fmt.Errorf("write variant: %w", err)
		}
	}
	return report, nil
}

func printReport(w io.Writer, r transform.Report) {
	fmt.Fprintf(w, "Transformed %d of %d records\n", r.Transformed, r.Total)
	if r.ChromosomeErrors > 0 {
		fmt.Fprintf(w, "  unknown chromosome: %d\n", r.ChromosomeErrors)
	}
	if r.NonPositive > 0 {
		fmt.Fprintf(w, "  non-positive position: %d\n", r.NonPositive)
	}
	if r.EvaluationErrors > 0 {
		fmt.Fprintf(w, "  evaluation error: %d\n", r.EvaluationErrors)
	}
	fmt.Fprintf(w, "Positions %s -> %s\n", r.InputRange, r.OutputRange)
}
