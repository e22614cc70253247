package vcf

import (
	"testing"

	"github.com/inodb/vibe-rsid/internal/chrom"
)

func TestVariant_HasRSID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"single rsID", "rs1234", true},
		{"multiple rsIDs", "rs1,rs2", true},
		{"missing", ".", false},
		{"looked up, none", "NORSID", false},
		{"other identifier", "COSV123", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &Variant{ID: tt.id}
			if got := v.HasRSID(); got != tt.want {
				t.Errorf("HasRSID() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVariant_NeedsLookup(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"missing", ".", true},
		{"NORSID", "NORSID", true},
		{"empty", "", true},
		{"rsID", "rs1234", false},
		{"other identifier", "COSV123", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &Variant{ID: tt.id}
			if got := v.NeedsLookup(); got != tt.want {
				t.Errorf("NeedsLookup() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVariant_Key(t *testing.T) {
	tests := []struct {
		chrom   string
		want    chrom.Key
		wantErr bool
	}{
		{"chr16", 16, false},
		{"NC_000016.10", 16, false},
		{"16", 16, false},
		{"chrM", chrom.MT, false},
		{"chrUn_gl000220", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.chrom, func(t *testing.T) {
			v := &Variant{Chrom: tt.chrom}
			got, err := v.Key()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Key() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Key() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVariant_CloneSharesRest(t *testing.T) {
	v := &Variant{Chrom: "chr16", Pos: 100, ID: ".", Rest: []string{"A", "G"}}
	c := v.Clone()
	c.Chrom = "NC_000016.10"
	c.Pos = 55758318

	if v.Chrom != "chr16" || v.Pos != 100 {
		t.Errorf("Clone modified the original: %s", v.Location())
	}
	if &c.Rest[0] != &v.Rest[0] {
		t.Error("Clone should share the raw columns")
	}
	if c.Location() != "NC_000016.10:55758318" {
		t.Errorf("Location() = %s", c.Location())
	}
}
