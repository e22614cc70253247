package entrez

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	valid := DefaultConfig()
	valid.Email = "user@example.org"

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing email", func(c *Config) { c.Email = "" }, "email is required"},
		{"blank email", func(c *Config) { c.Email = "   " }, "email is required"},
		{"not an address", func(c *Config) { c.Email = "user" }, "not an address"},
		{"zero concurrency", func(c *Config) { c.MaxConcurrency = 0 }, "max concurrency"},
		{"negative delay", func(c *Config) { c.MinDelay = -time.Second }, "min delay"},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, "max retries"},
		{"shrinking backoff", func(c *Config) { c.BackoffFactor = 0.5 }, "backoff factor"},
		{"no timeout", func(c *Config) { c.RequestTimeout = 0 }, "request timeout"},
		{"no retries", func(c *Config) { c.MaxRetries = 0 }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestConfig_Backoffs(t *testing.T) {
	cfg := Config{
		MaxRetries:    5,
		BaseBackoff:   time.Second,
		BackoffFactor: 2,
		MaxBackoff:    5 * time.Second,
	}
	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second,
	}, cfg.Backoffs())

	cfg.MaxRetries = 0
	assert.Empty(t, cfg.Backoffs())
}
