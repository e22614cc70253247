package vcf

import (
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_SampleFile(t *testing.T) {
	testFile := findTestFile(t, "ces1_sample.vcf")

	parser, err := NewParser(testFile)
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}
	defer parser.Close()

	v, err := parser.Next()
	if err != nil {
		t.Fatalf("Failed to read variant: %v", err)
	}
	if v == nil {
		t.Fatal("Expected a variant, got nil")
	}

	if v.Chrom != "chr16" {
		t.Errorf("Expected chrom chr16, got %s", v.Chrom)
	}
	if v.Pos != 100 {
		t.Errorf("Expected pos 100, got %d", v.Pos)
	}
	if v.ID != "." {
		t.Errorf("Expected ID ., got %s", v.ID)
	}
	if v.Ref != "A" || v.Alt != "G" {
		t.Errorf("Expected A>G, got %s>%s", v.Ref, v.Alt)
	}
	if !v.HasQual || v.Qual != 50.5 {
		t.Errorf("Expected qual 50.5, got %v (has=%v)", v.Qual, v.HasQual)
	}
	if v.Filter != "PASS" {
		t.Errorf("Expected filter PASS, got %s", v.Filter)
	}
	if !v.NeedsLookup() {
		t.Error("Record with '.' ID should need lookup")
	}

	count := 1
	for {
		v, err := parser.Next()
		if err != nil {
			t.Fatalf("Error reading variant: %v", err)
		}
		if v == nil {
			break
		}
		count++
	}
	if count != 4 {
		t.Errorf("Expected 4 variants, got %d", count)
	}
}

func TestParser_Header(t *testing.T) {
	testFile := findTestFile(t, "ces1_sample.vcf")

	parser, err := NewParser(testFile)
	require.NoError(t, err)
	defer parser.Close()

	header := parser.Header()
	require.Len(t, header, 5)
	assert.Equal(t, "##fileformat=VCFv4.2", header[0])
	assert.True(t, strings.HasPrefix(header[len(header)-1], "#CHROM"))
	assert.Equal(t, []string{"#CHROM", "POS", "ID", "REF", "ALT", "QUAL", "FILTER", "INFO", "FORMAT", "SAMPLE1"}, parser.Columns())
	assert.Equal(t, 5, parser.LineNumber())
}

func TestParser_MissingQualAndExtraColumns(t *testing.T) {
	input := "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\n" +
		"16\t40000\tNORSID\tT\tC,G\t.\tLowQual\t.\tGT:DP\t1/2:12\n"

	p, err := NewParserFromReader(strings.NewReader(input))
	require.NoError(t, err)

	v, err := p.Next()
	require.NoError(t, err)
	require.NotNil(t, v)

	assert.False(t, v.HasQual)
	assert.Equal(t, "C,G", v.Alt)
	assert.Equal(t, "LowQual", v.Filter)
	assert.Equal(t, []string{"T", "C,G", ".", "LowQual", ".", "GT:DP", "1/2:12"}, v.Rest)
	assert.True(t, v.NeedsLookup())
}

func TestParser_MinimalColumns(t *testing.T) {
	input := "#CHROM\tPOS\tID\tREF\tALT\n1\t10\trs9\tA\tT"

	p, err := NewParserFromReader(strings.NewReader(input))
	require.NoError(t, err)

	v, err := p.Next()
	require.NoError(t, err)
	require.NotNil(t, v, "final line without newline must be read")
	assert.Equal(t, "rs9", v.ID)
	assert.True(t, v.HasRSID())
	assert.False(t, v.HasQual)
	assert.Empty(t, v.Filter)

	v, err = p.Next()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestParser_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  int
		msg   string
	}{
		{
			name:  "no header",
			input: "1\t10\t.\tA\tT\n",
			line:  1,
			msg:   "expected #CHROM header line",
		},
		{
			name:  "empty input",
			input: "",
			line:  0,
			msg:   "no #CHROM header line found",
		},
		{
			name:  "too few columns",
			input: "#CHROM\tPOS\tID\tREF\tALT\n1\t10\t.\tA\n",
			line:  2,
			msg:   "expected at least 5 columns, found 4",
		},
		{
			name:  "non-numeric position",
			input: "#CHROM\tPOS\tID\tREF\tALT\n1\tabc\t.\tA\tT\n",
			line:  2,
			msg:   "invalid position: abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewParserFromReader(strings.NewReader(tt.input))
			if err == nil {
				_, err = p.Next()
			}
			require.Error(t, err)

			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.line, pe.Line)
			assert.Equal(t, tt.msg, pe.Message)
		})
	}
}

func TestParser_Gzip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.vcf.gz")

	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte("##fileformat=VCFv4.2\n#CHROM\tPOS\tID\tREF\tALT\nchr1\t5\t.\tA\tC\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	p, err := NewParser(path)
	require.NoError(t, err)
	defer p.Close()

	variants, err := ReadAll(p)
	require.NoError(t, err)
	require.Len(t, variants, 1)
	assert.Equal(t, "chr1", variants[0].Chrom)
}

func TestParser_NotFound(t *testing.T) {
	_, err := NewParser("/nonexistent/input.vcf")
	require.Error(t, err)
	assert.True(t, os.IsNotExist(errors.Unwrap(err)))
}

func TestParseError(t *testing.T) {
	err := &ParseError{
		Line:    42,
		Message: "expected at least 5 columns, found 4",
	}

	expected := "vcf parse error at line 42: expected at least 5 columns, found 4"
	if err.Error() != expected {
		t.Errorf("Error message mismatch: got %q, want %q", err.Error(), expected)
	}
}

// findTestFile locates a test file in the testdata directory.
func findTestFile(t *testing.T, name string) string {
	t.Helper()

	// Try different relative paths
	paths := []string{
		filepath.Join("testdata", name),
		filepath.Join("..", "..", "testdata", name),
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	t.Fatalf("Test file not found: %s", name)
	return ""
}
