package vcf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/biogo/hts/bgzf"
)

// Writer writes VCF records. Columns from REF onward are written exactly as
// they were read.
type Writer struct {
	w       *bufio.Writer
	closers []io.Closer
	count   int
}

// NewWriter creates a writer on top of w. Close flushes but does not close w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Create creates the file at path and returns a writer for it. Paths ending
// in ".gz" are written as BGZF so they can be indexed with tabix.
func Create(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create vcf file: %w", err)
	}

	if strings.HasSuffix(path, ".gz") {
		bg := bgzf.NewWriter(f, 1)
		return &Writer{w: bufio.NewWriter(bg), closers: []io.Closer{bg, f}}, nil
	}
	return &Writer{w: bufio.NewWriter(f), closers: []io.Closer{f}}, nil
}

// WriteHeader writes header lines, one per line.
func (vw *Writer) WriteHeader(lines []string) error {
	for _, line := range lines {
		if _, err := vw.w.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// Write writes a single record.
func (vw *Writer) Write(v *Variant) error {
	vw.w.WriteString(v.Chrom)
	vw.w.WriteByte('\t')
	vw.w.WriteString(formatPos(v.Pos))
	vw.w.WriteByte('\t')
	vw.w.WriteString(v.ID)
	for _, col := range v.columnsFromRef() {
		vw.w.WriteByte('\t')
		vw.w.WriteString(col)
	}
	if err := vw.w.WriteByte('\n'); err != nil {
		return err
	}
	vw.count++
	return nil
}

// Count returns the number of records written.
func (vw *Writer) Count() int {
	return vw.count
}

// Flush flushes any buffered data to the underlying writer.
func (vw *Writer) Flush() error {
	return vw.w.Flush()
}

// Close flushes buffered data and closes any file opened by Create.
func (vw *Writer) Close() error {
	err := vw.w.Flush()
	for _, c := range vw.closers {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	vw.closers = nil
	return err
}

// columnsFromRef returns the raw trailing columns, or REF/ALT for variants
// built in code without them.
func (v *Variant) columnsFromRef() []string {
	if v.Rest != nil {
		return v.Rest
	}
	cols := []string{v.Ref, v.Alt}
	if v.HasQual || v.Filter != "" {
		qual := MissingValue
		if v.HasQual {
			qual = strconv.FormatFloat(v.Qual, 'f', -1, 64)
		}
		cols = append(cols, qual)
		if v.Filter != "" {
			cols = append(cols, v.Filter)
		}
	}
	return cols
}

func formatPos(pos int64) string {
	return strconv.FormatInt(pos, 10)
}
