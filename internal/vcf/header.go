package vcf

import "strings"

// ReplaceContigs returns a copy of header with every ##contig line removed and
// contigs inserted in their place, or before the #CHROM line if there were none.
func ReplaceContigs(header, contigs []string) []string {
	out := make([]string, 0, len(header)+len(contigs))
	inserted := false
	for _, line := range header {
		if strings.HasPrefix(line, "##contig=") {
			if !inserted {
				out = append(out, contigs...)
				inserted = true
			}
			continue
		}
		if strings.HasPrefix(line, "#CHROM") && !inserted {
			out = append(out, contigs...)
			inserted = true
		}
		out = append(out, line)
	}
	if !inserted {
		out = append(out, contigs...)
	}
	return out
}

// AddMeta returns a copy of header with line inserted before the #CHROM line.
func AddMeta(header []string, line string) []string {
	out := make([]string, 0, len(header)+1)
	added := false
	for _, h := range header {
		if strings.HasPrefix(h, "#CHROM") && !added {
			out = append(out, line)
			added = true
		}
		out = append(out, h)
	}
	if !added {
		out = append(out, line)
	}
	return out
}
