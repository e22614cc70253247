package chrom

import (
	"fmt"
	"strconv"
	"strings"
)

// Format is a chromosome naming convention.
type Format int

const (
	RefSeq  Format = iota // NC_000016.10
	UCSC                  // chr16
	Ensembl               // 16, X, MT
	Numeric               // 16, 23, 25
)

var formatNames = [...]string{
	RefSeq:  "RefSeq",
	UCSC:    "UCSC",
	Ensembl: "Ensembl",
	Numeric: "numeric",
}

func (f Format) String() string {
	if f < 0 || int(f) >= len(formatNames) {
		return fmt.Sprintf("Format(%d)", int(f))
	}
	return formatNames[f]
}

// Formats returns every supported naming convention.
func Formats() []Format {
	return []Format{RefSeq, UCSC, Ensembl, Numeric}
}

// ParseFormat parses a format name such as "RefSeq" or "ucsc".
func ParseFormat(s string) (Format, error) {
	for i, name := range formatNames {
		if strings.EqualFold(s, name) {
			return Format(i), nil
		}
	}
	return 0, fmt.Errorf("unknown chromosome format %q (want RefSeq, UCSC, Ensembl or numeric)", s)
}

// GRCh38 RefSeq accessions, indexed by Key.
var refSeqAccessions = [NumKeys + 1]string{
	1:  "NC_000001.11",
	2:  "NC_000002.12",
	3:  "NC_000003.12",
	4:  "NC_000004.12",
	5:  "NC_000005.10",
	6:  "NC_000006.12",
	7:  "NC_000007.14",
	8:  "NC_000008.11",
	9:  "NC_000009.12",
	10: "NC_000010.11",
	11: "NC_000011.10",
	12: "NC_000012.12",
	13: "NC_000013.11",
	14: "NC_000014.9",
	15: "NC_000015.10",
	16: "NC_000016.10",
	17: "NC_000017.11",
	18: "NC_000018.10",
	19: "NC_000019.10",
	20: "NC_000020.11",
	21: "NC_000021.9",
	22: "NC_000022.11",
	X:  "NC_000023.11",
	Y:  "NC_000024.10",
	MT: "NC_012920.1",
}

// GRCh38 sequence lengths, indexed by Key.
var grch38Lengths = [NumKeys + 1]int64{
	1:  248956422,
	2:  242193529,
	3:  198295559,
	4:  190214555,
	5:  181538259,
	6:  170805979,
	7:  159345973,
	8:  145138636,
	9:  138394717,
	10: 133797422,
	11: 135086622,
	12: 133275309,
	13: 114364328,
	14: 107043718,
	15: 101991189,
	16: 90338345,
	17: 83257441,
	18: 80373285,
	19: 58617616,
	20: 64444167,
	21: 46709983,
	22: 50818468,
	X:  156040895,
	Y:  57227415,
	MT: 16569,
}

// Render returns the name of k in the given convention. It panics if k is not
// a valid key, since keys only come from Normalize or the package constants.
func Render(k Key, f Format) string {
	if !k.Valid() {
		panic(fmt.Sprintf("chrom: render of invalid key %d", uint8(k)))
	}

	switch f {
	case RefSeq:
		return refSeqAccessions[k]
	case UCSC:
		if k == MT {
			return "chrM"
		}
		return "chr" + ensemblName(k)
	case Numeric:
		return strconv.Itoa(int(k))
	default:
		return ensemblName(k)
	}
}

func ensemblName(k Key) string {
	switch k {
	case X:
		return "X"
	case Y:
		return "Y"
	case MT:
		return "MT"
	}
	return strconv.Itoa(int(k))
}

// Length returns the GRCh38 length of k in bases, or 0 for an invalid key.
func Length(k Key) int64 {
	if !k.Valid() {
		return 0
	}
	return grch38Lengths[k]
}

// ContigHeader returns a VCF ##contig meta line for k in the given convention.
func ContigHeader(k Key, f Format) string {
	return fmt.Sprintf("##contig=<ID=%s,length=%d,assembly=GRCh38>", Render(k, f), Length(k))
}
