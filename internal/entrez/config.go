package entrez

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultBaseURL is the NCBI E-utilities endpoint.
const DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// DefaultTool is the tool name reported to NCBI with every request.
const DefaultTool = "vibe-rsid"

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid entrez config")

// Config holds the identification and scheduling settings of a Client.
type Config struct {
	Email   string // required by NCBI usage policy
	APIKey  string // optional; raises the NCBI rate limit
	Tool    string
	BaseURL string

	MaxConcurrency int           // requests in flight at once
	MinDelay       time.Duration // minimum spacing between request starts
	MaxRetries     int           // retries after the first attempt
	BaseBackoff    time.Duration
	BackoffFactor  float64
	MaxBackoff     time.Duration
	RequestTimeout time.Duration // per attempt
}

// DefaultConfig returns the settings used by the command line tool. Email is
// left empty and must be supplied by the caller.
func DefaultConfig() Config {
	return Config{
		Tool:           DefaultTool,
		BaseURL:        DefaultBaseURL,
		MaxConcurrency: 3,
		MinDelay:       500 * time.Millisecond,
		MaxRetries:     4,
		BaseBackoff:    time.Second,
		BackoffFactor:  2,
		MaxBackoff:     30 * time.Second,
		RequestTimeout: 30 * time.Second,
	}
}

// Validate reports configuration that makes a run impossible.
func (c Config) Validate() error {
	email := strings.TrimSpace(c.Email)
	switch {
	case email == "":
		return fmt.Errorf("%w: email is required", ErrInvalidConfig)
	case !strings.Contains(email, "@"):
		return fmt.Errorf("%w: email %q is not an address", ErrInvalidConfig, c.Email)
	case c.MaxConcurrency < 1:
		return fmt.Errorf("%w: max concurrency must be at least 1, got %d", ErrInvalidConfig, c.MaxConcurrency)
	case c.MinDelay < 0:
		return fmt.Errorf("%w: min delay must not be negative", ErrInvalidConfig)
	case c.MaxRetries < 0:
		return fmt.Errorf("%w: max retries must not be negative, got %d", ErrInvalidConfig, c.MaxRetries)
	case c.BaseBackoff < 0 || c.MaxBackoff < 0:
		return fmt.Errorf("%w: backoff must not be negative", ErrInvalidConfig)
	case c.BackoffFactor < 1:
		return fmt.Errorf("%w: backoff factor must be at least 1, got %g", ErrInvalidConfig, c.BackoffFactor)
	case c.RequestTimeout <= 0:
		return fmt.Errorf("%w: request timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// Backoffs returns the wait before each retry: BaseBackoff * BackoffFactor^n,
// capped at MaxBackoff when MaxBackoff is set.
func (c Config) Backoffs() []time.Duration {
	out := make([]time.Duration, c.MaxRetries)
	d := float64(c.BaseBackoff)
	for i := range out {
		wait := time.Duration(d)
		if c.MaxBackoff > 0 && wait > c.MaxBackoff {
			wait = c.MaxBackoff
		}
		out[i] = wait
		d *= c.BackoffFactor
	}
	return out
}
