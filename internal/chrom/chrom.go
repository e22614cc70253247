// Package chrom normalizes human chromosome identifiers between naming conventions.
package chrom

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Key is the canonical chromosome key. Autosomes use their number,
// X, Y and MT use 23, 24 and 25. The zero value is not a chromosome.
type Key uint8

// Canonical keys for the non-autosomal chromosomes.
const (
	X  Key = 23
	Y  Key = 24
	MT Key = 25
)

// NumKeys is the number of chromosomes known to the normalizer.
const NumKeys = 25

// Valid reports whether k denotes a chromosome.
func (k Key) Valid() bool {
	return k >= 1 && k <= NumKeys
}

// String returns the Ensembl-style name (e.g. "16", "X", "MT").
func (k Key) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Key(%d)", uint8(k))
	}
	return Render(k, Ensembl)
}

// Keys returns all canonical keys in karyotype order.
func Keys() []Key {
	keys := make([]Key, NumKeys)
	for i := range keys {
		keys[i] = Key(i + 1)
	}
	return keys
}

// ErrUnknownChromosome is wrapped by every normalization failure.
var ErrUnknownChromosome = errors.New("unknown chromosome")

// ParseError reports a chromosome identifier that is not in the closed set.
type ParseError struct {
	Raw string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: %q", ErrUnknownChromosome, e.Raw)
}

func (e *ParseError) Unwrap() error {
	return ErrUnknownChromosome
}

// mtAccession is the RefSeq accession number of the rCRS mitochondrial genome.
const mtAccession = 12920

// Normalize parses a chromosome identifier in RefSeq, UCSC, Ensembl or numeric
// form and returns its canonical key. Letters are matched case-insensitively and
// RefSeq version suffixes are ignored.
func Normalize(raw string) (Key, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return 0, &ParseError{Raw: raw}
	}

	if rest, ok := strings.CutPrefix(s, "NC_"); ok {
		if dot := strings.IndexByte(rest, '.'); dot >= 0 {
			rest = rest[:dot]
		}
		n, err := strconv.Atoi(rest)
		if err != nil || rest == "" || rest[0] == '+' || rest[0] == '-' {
			return 0, &ParseError{Raw: raw}
		}
		switch {
		case n == mtAccession:
			return MT, nil
		case n >= 1 && n <= int(Y):
			return Key(n), nil
		}
		return 0, &ParseError{Raw: raw}
	}

	s = strings.TrimPrefix(s, "CHR")
	switch s {
	case "X":
		return X, nil
	case "Y":
		return Y, nil
	case "M", "MT":
		return MT, nil
	}

	// Only plain digits; strconv would also accept signs.
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, &ParseError{Raw: raw}
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > NumKeys {
		return 0, &ParseError{Raw: raw}
	}
	return Key(n), nil
}
