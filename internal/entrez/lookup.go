// Package entrez looks up dbSNP rsIDs for genomic positions through NCBI
// E-utilities, with bounded concurrency, request pacing and retries.
package entrez

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/inodb/vibe-rsid/internal/chrom"
)

// maxIDs is the retmax sent with every search.
const maxIDs = 20

// Lookup answers whether dbSNP has variants at a position. A nil slice with a
// nil error means nothing was found.
type Lookup interface {
	Lookup(ctx context.Context, key chrom.Key, pos int64) ([]string, error)
}

// LookupFunc adapts a function to the Lookup interface.
type LookupFunc func(ctx context.Context, key chrom.Key, pos int64) ([]string, error)

// Lookup calls f.
func (f LookupFunc) Lookup(ctx context.Context, key chrom.Key, pos int64) ([]string, error) {
	return f(ctx, key, pos)
}

// RetryableError marks a transient failure: a timeout, throttling or a
// server-side error.
type RetryableError struct {
	StatusCode int // 0 for transport errors
	Err        error
}

func (e *RetryableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("retryable: HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("retryable: %v", e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Retryable wraps err as a *RetryableError.
func Retryable(err error) error {
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// HTTPLookup queries the esearch endpoint of E-utilities.
type HTTPLookup struct {
	baseURL    string
	email      string
	apiKey     string
	tool       string
	httpClient *http.Client
}

// NewHTTPLookup creates a lookup from cfg. Timeouts are applied per request
// through the context, so the http.Client carries none.
func NewHTTPLookup(cfg Config) *HTTPLookup {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	tool := cfg.Tool
	if tool == "" {
		tool = DefaultTool
	}
	return &HTTPLookup{
		baseURL:    strings.TrimRight(base, "/"),
		email:      cfg.Email,
		apiKey:     cfg.APIKey,
		tool:       tool,
		httpClient: &http.Client{},
	}
}

// SetHTTPClient replaces the underlying HTTP client.
func (l *HTTPLookup) SetHTTPClient(c *http.Client) {
	l.httpClient = c
}

// Term returns the esearch term for a position, e.g. "16[CHR] AND 100[POS]".
func Term(key chrom.Key, pos int64) string {
	return fmt.Sprintf("%s[CHR] AND %d[POS]", chrom.Render(key, chrom.Ensembl), pos)
}

// URL returns the request URL for a position.
func (l *HTTPLookup) URL(key chrom.Key, pos int64) string {
	q := url.Values{}
	q.Set("db", "snp")
	q.Set("term", Term(key, pos))
	q.Set("retmode", "json")
	q.Set("retmax", strconv.Itoa(maxIDs))
	q.Set("tool", l.tool)
	q.Set("email", l.email)
	if l.apiKey != "" {
		q.Set("api_key", l.apiKey)
	}
	return l.baseURL + "/esearch.fcgi?" + q.Encode()
}

type esearchResponse struct {
	Result *struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
		// ERROR is set by E-utilities for malformed terms.
		Error string `json:"ERROR"`
	} `json:"esearchresult"`
	// Error is set for request-level failures such as exceeded rate limits.
	Error string `json:"error"`
}

// Lookup performs one search. IDs are returned with the "rs" prefix.
func (l *HTTPLookup) Lookup(ctx context.Context, key chrom.Key, pos int64) ([]string, error) {
	if !key.Valid() {
		return nil, fmt.Errorf("lookup: invalid chromosome %v", key)
	}
	if pos < 1 {
		return nil, fmt.Errorf("lookup: invalid position %d", pos)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL(key, pos), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		// Timeouts, resets and refused connections are all transient from
		// the point of view of a batch run.
		return nil, &RetryableError{Err: fmt.Errorf("esearch request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("esearch: %s", strings.TrimSpace(string(body)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, &RetryableError{StatusCode: resp.StatusCode, Err: err}
		}
		return nil, fmt.Errorf("HTTP %d: %w", resp.StatusCode, err)
	}

	var sr esearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode esearch response: %w", err)
	}
	if sr.Error != "" {
		if strings.Contains(strings.ToLower(sr.Error), "rate limit") {
			return nil, &RetryableError{StatusCode: resp.StatusCode, Err: errors.New(sr.Error)}
		}
		return nil, fmt.Errorf("esearch: %s", sr.Error)
	}
	if sr.Result == nil {
		return nil, errors.New("esearch: response has no esearchresult")
	}
	if sr.Result.Error != "" {
		return nil, fmt.Errorf("esearch: %s", sr.Result.Error)
	}

	if len(sr.Result.IDList) == 0 {
		return nil, nil
	}
	ids := make([]string, len(sr.Result.IDList))
	for i, id := range sr.Result.IDList {
		ids[i] = "rs" + id
	}
	return ids, nil
}
