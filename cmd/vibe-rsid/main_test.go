package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-rsid/internal/duckdb"
	"github.com/inodb/vibe-rsid/internal/vcf"
)

var sampleVCF = filepath.Join("..", "..", "testdata", "ces1_sample.vcf")

// runCLI runs the command with HOME pointed at a temp dir so no user config
// or cache is touched.
func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("VIBE_RSID_ENTREZ_EMAIL", "")
	return home
}

func TestEquationTest(t *testing.T) {
	isolate(t)

	code, out, _ := runCLI(t, "equation", "test", "x - 500 if x > 500 else x", "--positions", "100,500,1000")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "Equation: x - 500 if x > 500 else x")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, []string{"100", "100"}, strings.Fields(lines[3]))
	assert.Equal(t, []string{"500", "500"}, strings.Fields(lines[4]))
	assert.Equal(t, []string{"1000", "500"}, strings.Fields(lines[5]))
}

func TestEquationTest_NonPositive(t *testing.T) {
	isolate(t)

	code, out, _ := runCLI(t, "equation", "test", "x - 1000", "--positions", "1000")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "excluded: not positive")
}

func TestEquationTest_Rejected(t *testing.T) {
	isolate(t)

	for _, expr := range []string{"", "y + 1", "__import__('os')", "x.real"} {
		t.Run(expr, func(t *testing.T) {
			code, _, stderr := runCLI(t, "equation", "test", expr)
			assert.Equal(t, ExitUsage, code)
			assert.Contains(t, stderr, "invalid equation")
		})
	}
}

func TestEquationPresets(t *testing.T) {
	isolate(t)

	code, out, _ := runCLI(t, "equation", "presets")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "ces1p1-ces1")
	assert.Contains(t, out, "x + 55758218")
	assert.NotContains(t, out, "invalid")
}

func TestConfigSetGet(t *testing.T) {
	home := isolate(t)
	cfg := filepath.Join(home, "vibe.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("output:\n  format: UCSC\n"), 0644))

	code, out, _ := runCLI(t, "--config", cfg, "config", "set", "entrez.email", "lab@example.org")
	require.Equal(t, ExitSuccess, code, out)

	code, out, _ = runCLI(t, "--config", cfg, "config", "get", "entrez.email")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "lab@example.org\n", out)

	// Defaults are not written to the file.
	data, err := os.ReadFile(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(data), "lab@example.org")
	assert.Contains(t, string(data), "format: UCSC")
	assert.NotContains(t, string(data), "presets")

	code, out, _ = runCLI(t, "--config", cfg, "config")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "email: lab@example.org")
	assert.Contains(t, out, "ces1p1-ces1")
}

func TestConfigGet_Unset(t *testing.T) {
	isolate(t)

	code, _, stderr := runCLI(t, "config", "get", "entrez.api_key")
	assert.Equal(t, ExitError, code)
	assert.Contains(t, stderr, "not set")
}

func TestTransform(t *testing.T) {
	isolate(t)
	out := filepath.Join(t.TempDir(), "out.vcf")

	code, _, stderr := runCLI(t, "transform", "--preset", "ces1p1-ces1", "-c", "16", "-f", "UCSC", "-o", out, sampleVCF)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stderr, "Transformed 4 of 4 records")

	p, err := vcf.NewParser(out)
	require.NoError(t, err)
	defer p.Close()
	records, err := vcf.ReadAll(p)
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "chr16", records[0].Chrom)
	assert.Equal(t, int64(55758318), records[0].Pos)
	assert.Equal(t, int64(55798218), records[3].Pos)
	assert.Contains(t, p.Header(), `##vibe-rsid=<Equation="x + 55758218",Format=UCSC>`)
}

func TestTransform_Stdout(t *testing.T) {
	isolate(t)

	code, stdout, stderr := runCLI(t, "transform", "-e", "x - 2400", "-f", "Ensembl", sampleVCF)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stderr, "non-positive position: 2")
	assert.Contains(t, stdout, "##contig=<ID=16,")
	assert.Contains(t, stdout, "16\t100\trs1234\t")
}

func TestUsageErrors(t *testing.T) {
	isolate(t)

	tests := []struct {
		name string
		args []string
	}{
		{"no equation", []string{"transform", sampleVCF}},
		{"equation and preset", []string{"transform", "-e", "x", "-p", "ces1p1-ces1", sampleVCF}},
		{"unknown preset", []string{"transform", "-p", "nope", sampleVCF}},
		{"bad chromosome", []string{"transform", "-e", "x", "-c", "chr99", sampleVCF}},
		{"bad format", []string{"transform", "-e", "x", "-f", "GenBank", sampleVCF}},
		{"missing email", []string{"run", "--no-cache", "-e", "x", "-o", t.TempDir(), sampleVCF}},
		{"missing input", []string{"run", "--no-cache", "--email", "a@b.c", "-e", "x", "-o", t.TempDir(), "missing.vcf"}},
		{"no input", []string{"run", "-e", "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCLI(t, tt.args...)
			assert.Equal(t, ExitUsage, code, stderr)
		})
	}
}

func TestRun_AgainstFakeEntrez(t *testing.T) {
	home := isolate(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.URL.Query().Get("term"), "55758318[POS]") {
			w.Write([]byte(`{"esearchresult":{"count":"1","idlist":["111"]}}`))
			return
		}
		w.Write([]byte(`{"esearchresult":{"count":"0","idlist":[]}}`))
	}))
	defer srv.Close()

	t.Setenv("VIBE_RSID_ENTREZ_BASE_URL", srv.URL)
	outDir := t.TempDir()
	metrics := filepath.Join(outDir, "metrics.prom")
	cache := filepath.Join(home, "lookups.duckdb")

	args := []string{"run", "-p", "ces1p1-ces1", "-c", "16",
		"--email", "lab@example.org", "--min-delay", "0s", "--workers", "2",
		"--cache", cache, "--metrics-file", metrics, "-o", outDir, sampleVCF}

	code, stdout, stderr := runCLI(t, args...)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "3 queried, 1 found, 2 not found, 0 failed, 0 cancelled")
	assert.Contains(t, stdout, "With rsID:      2")

	annotated := filepath.Join(outDir, "ces1_sample_results", "ces1_sample_annotated.vcf")
	data, err := os.ReadFile(annotated)
	require.NoError(t, err)
	assert.Contains(t, string(data), "NC_000016.10\t55758318\trs111\t")

	prom, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "vibe_rsid_")

	// A second run is answered from the cache.
	code, stdout, stderr = runCLI(t, args...)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "(3 from cache)")

	code, stdout, _ = runCLI(t, "cache", "stats", "--cache", cache)
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "Positions:  3")
	assert.Contains(t, stdout, "Runs:       2")

	code, stdout, _ = runCLI(t, "cache", "runs", "--cache", cache)
	require.Equal(t, ExitSuccess, code)
	assert.Len(t, strings.Split(strings.TrimSpace(stdout), "\n"), 3)

	code, _, _ = runCLI(t, "cache", "clear", "--cache", cache)
	require.Equal(t, ExitSuccess, code)
	code, stdout, _ = runCLI(t, "cache", "stats", "--cache", cache)
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "Positions:  0")
}

func TestCacheRuns_ShortRunID(t *testing.T) {
	home := isolate(t)
	cache := filepath.Join(home, "lookups.duckdb")

	store, err := duckdb.Open(cache)
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, store.RecordRun(duckdb.Run{
		ID:         "r1",
		Input:      duckdb.FileFingerprint{Path: "a.vcf", Size: 1, ModTime: now},
		Equation:   "x",
		StartedAt:  now,
		FinishedAt: now,
		Records:    5,
	}))
	require.NoError(t, store.Close())

	code, stdout, stderr := runCLI(t, "cache", "runs", "--cache", cache)
	require.Equal(t, ExitSuccess, code, stderr)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "r1", strings.Fields(lines[1])[0])
}
