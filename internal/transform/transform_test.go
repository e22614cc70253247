package transform

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/inodb/vibe-rsid/internal/chrom"
	"github.com/inodb/vibe-rsid/internal/equation"
	"github.com/inodb/vibe-rsid/internal/vcf"
)

func variant(c string, pos int64) *vcf.Variant {
	return &vcf.Variant{Chrom: c, Pos: pos, ID: ".", Ref: "A", Alt: "G", Rest: []string{"A", "G", "30", "PASS"}}
}

func TestTransform_EndToEndRefSeq(t *testing.T) {
	in := []*vcf.Variant{variant("chr16", 100)}

	out, report, err := Transform(in, Options{
		Equation: mustEquation(t, "x + 55758218"),
		Target:   16,
		Format:   chrom.RefSeq,
	})
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Equal(t, "NC_000016.10", out[0].Chrom)
	assert.Equal(t, int64(55758318), out[0].Pos)
	assert.Equal(t, []string{"A", "G", "30", "PASS"}, out[0].Rest)

	// Input is untouched.
	assert.Equal(t, "chr16", in[0].Chrom)
	assert.Equal(t, int64(100), in[0].Pos)

	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 1, report.Transformed)
	assert.Equal(t, 0, report.Excluded())
}

func TestTransform_CountsFailuresByKind(t *testing.T) {
	in := []*vcf.Variant{
		variant("chr16", 600000),         // ok
		variant("chrUn_gl000220", 700),   // chromosome error
		variant("16", 300000),            // non-positive
		variant("NC_000016.10", 1000000), // division by zero
		variant("16", 2000000),           // ok
	}

	eq := mustEquation(t, "x - 400000 if x != 1000000 else 1 / (x - 1000000)")
	out, report, err := Transform(in, Options{Equation: eq, Target: 16, Format: chrom.UCSC})
	require.NoError(t, err)

	require.Len(t, out, 2)
	assert.Equal(t, "chr16", out[0].Chrom)
	assert.Equal(t, int64(200000), out[0].Pos)
	assert.Equal(t, int64(1600000), out[1].Pos)

	assert.Equal(t, Report{
		Total:            5,
		Transformed:      2,
		ChromosomeErrors: 1,
		NonPositive:      1,
		EvaluationErrors: 1,
		InputRange:       Range{Min: 700, Max: 2000000},
		OutputRange:      Range{Min: 200000, Max: 1600000},
	}, report)
	assert.Equal(t, 3, report.Excluded())
}

func TestTransform_NonPositiveIsNotEvaluationError(t *testing.T) {
	_, report, err := Transform([]*vcf.Variant{variant("chr16", 500000)}, Options{
		Equation: mustEquation(t, "x - 1000000"),
		Target:   16,
		Format:   chrom.RefSeq,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.NonPositive)
	assert.Equal(t, 0, report.EvaluationErrors)
	assert.Equal(t, 0, report.Transformed)
}

func TestTransform_KeepsOwnChromosome(t *testing.T) {
	in := []*vcf.Variant{variant("chr1", 10), variant("NC_000023.11", 20), variant("MT", 30)}

	out, report, err := Transform(in, Options{Equation: mustEquation(t, "x"), Format: chrom.Ensembl})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, 3, report.Transformed)

	assert.Equal(t, "1", out[0].Chrom)
	assert.Equal(t, "X", out[1].Chrom)
	assert.Equal(t, "MT", out[2].Chrom)
}

func TestTransform_PreservesOrder(t *testing.T) {
	var in []*vcf.Variant
	for i := range 50 {
		in = append(in, variant("16", int64(1000-i)))
	}

	out, _, err := Transform(in, Options{Equation: mustEquation(t, "x * 2"), Target: 16, Format: chrom.Numeric})
	require.NoError(t, err)
	require.Len(t, out, 50)
	for i, v := range out {
		assert.Equal(t, int64(2*(1000-i)), v.Pos)
		assert.Equal(t, "16", v.Chrom)
	}
}

func TestOptions_Validate(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	_, err = New(Options{Equation: mustEquation(t, "x"), Target: 30})
	assert.Error(t, err)

	_, err = New(Options{Equation: mustEquation(t, "x"), Target: chrom.X})
	assert.NoError(t, err)
}

func TestRun_StreamsAndLogsExclusions(t *testing.T) {
	input := "##fileformat=VCFv4.2\n#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n" +
		"chr16\t100\t.\tA\tG\t50\tPASS\tDP=3\n" +
		"chrUn\t200\t.\tC\tT\t50\tPASS\t.\n" +
		"chr16\t300\trs1\tG\tA\t.\tq10\t.\n"

	p, err := vcf.NewParserFromReader(strings.NewReader(input))
	require.NoError(t, err)

	tr, err := New(Options{Equation: mustEquation(t, "x + 55758218"), Target: 16, Format: chrom.RefSeq})
	require.NoError(t, err)

	core, logs := observer.New(zap.DebugLevel)
	tr.SetLogger(zap.New(core))

	var buf bytes.Buffer
	w := vcf.NewWriter(&buf)
	report, err := tr.Run(p, w)
	require.NoError(t, err)
	require.NoError(t, w.Flush())

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Transformed)
	assert.Equal(t, 1, report.ChromosomeErrors)
	assert.Equal(t,
		"NC_000016.10\t55758318\t.\tA\tG\t50\tPASS\tDP=3\n"+
			"NC_000016.10\t55758518\trs1\tG\tA\t.\tq10\t.\n",
		buf.String())

	entries := logs.FilterMessage("excluding record").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "chrUn:200", entries[0].ContextMap()["record"])
}

func TestRun_ParseErrorIsFatal(t *testing.T) {
	input := "#CHROM\tPOS\tID\tREF\tALT\nchr16\tabc\t.\tA\tG\n"
	p, err := vcf.NewParserFromReader(strings.NewReader(input))
	require.NoError(t, err)

	tr, err := New(Options{Equation: mustEquation(t, "x"), Format: chrom.UCSC})
	require.NoError(t, err)

	_, err = tr.Run(p, vcf.NewWriter(&bytes.Buffer{}))
	require.Error(t, err)
	var pe *vcf.ParseError
	assert.ErrorAs(t, err, &pe)
}

func TestContigs(t *testing.T) {
	records := []*vcf.Variant{variant("NC_000016.10", 1), variant("chr16", 2), variant("chrX", 3), variant("bogus", 4)}
	assert.Equal(t, []string{
		"##contig=<ID=NC_000016.10,length=90338345,assembly=GRCh38>",
		"##contig=<ID=NC_000023.11,length=156040895,assembly=GRCh38>",
	}, Contigs(records, chrom.RefSeq))
}

func TestMetaLine(t *testing.T) {
	eq := mustEquation(t, "55758218 + x if x < 2358\nelse\tx")
	assert.Equal(t, `##vibe-rsid=<Equation="55758218 + x if x < 2358 else x",Format=UCSC>`,
		MetaLine(eq, chrom.UCSC, ""))
	assert.Equal(t, `##vibe-rsid=<Run=r1,Equation="55758218 + x if x < 2358 else x",Format=RefSeq>`,
		MetaLine(eq, chrom.RefSeq, "r1"))
}

func TestRange_String(t *testing.T) {
	assert.Equal(t, "-", Range{}.String())
	assert.Equal(t, "5 - 10", Range{Min: 5, Max: 10}.String())
}

func mustEquation(t *testing.T, text string) *equation.Equation {
	t.Helper()
	eq, err := equation.Validate(text)
	require.NoError(t, err)
	return eq
}
