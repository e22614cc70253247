package vcf

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
)

// ErrInvalidFile is wrapped by every Validate failure.
var ErrInvalidFile = errors.New("invalid vcf file")

// RequiredColumns must all appear in the #CHROM header line.
var RequiredColumns = []string{"#CHROM", "POS", "ID", "REF", "ALT"}

// validateRows is how many leading data rows Validate parses.
const validateRows = 3

// Validate performs a pre-flight check of a VCF file: the extension, the
// #CHROM header and its required columns, and that the first rows parse.
func Validate(path string) error {
	lower := strings.ToLower(path)
	if !strings.HasSuffix(lower, ".vcf") && !strings.HasSuffix(lower, ".vcf.gz") {
		return fmt.Errorf("%w: %s: file must have a .vcf or .vcf.gz extension", ErrInvalidFile, path)
	}

	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}

	p, err := NewParser(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	defer p.Close()

	for _, col := range RequiredColumns {
		if !slices.Contains(p.Columns(), col) {
			return fmt.Errorf("%w: %s: missing required column %s", ErrInvalidFile, path, col)
		}
	}

	for i := range validateRows {
		v, err := p.Next()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidFile, err)
		}
		if v == nil {
			if i == 0 {
				return fmt.Errorf("%w: %s: no data rows", ErrInvalidFile, path)
			}
			break
		}
	}

	return nil
}
