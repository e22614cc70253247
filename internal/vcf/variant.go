// Package vcf provides VCF file parsing and writing.
package vcf

import (
	"strings"

	"github.com/inodb/vibe-rsid/internal/chrom"
)

// NoRSID marks a record that was looked up and has no known rsID.
const NoRSID = "NORSID"

// MissingValue is the VCF placeholder for an empty field.
const MissingValue = "."

// Variant represents a single record from a VCF file.
//
// Only Chrom, Pos and ID are ever rewritten. Rest holds the raw columns from
// REF onward and is written back unchanged; Ref, Alt, Qual and Filter are
// parsed views of it. Rest is shared between copies and must not be modified.
type Variant struct {
	Chrom   string   // Chromosome name as found in the file (e.g. "16", "chr16", "NC_000016.10")
	Pos     int64    // 1-based genomic position
	ID      string   // Variant identifier (rsID, "." or NORSID)
	Ref     string   // Reference allele
	Alt     string   // Alternate allele(s), comma separated
	Qual    float64  // Quality score, valid when HasQual is set
	HasQual bool     // false when QUAL is "." or absent
	Filter  string   // Filter status, empty when the column is absent
	Rest    []string // Raw columns from REF onward
}

// Key normalizes the chromosome name to its canonical key.
func (v *Variant) Key() (chrom.Key, error) {
	return chrom.Normalize(v.Chrom)
}

// HasRSID reports whether the ID column holds an rsID.
func (v *Variant) HasRSID() bool {
	return strings.HasPrefix(v.ID, "rs")
}

// NeedsLookup reports whether the record has no identifier yet.
func (v *Variant) NeedsLookup() bool {
	return v.ID == MissingValue || v.ID == NoRSID || v.ID == ""
}

// Clone returns a shallow copy. The raw trailing columns are shared.
func (v *Variant) Clone() *Variant {
	c := *v
	return &c
}

// Location formats the record as chrom:pos.
func (v *Variant) Location() string {
	var b strings.Builder
	b.WriteString(v.Chrom)
	b.WriteByte(':')
	b.WriteString(formatPos(v.Pos))
	return b.String()
}
