package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for inconsistencies. Credentials
// may legitimately be absent here: a client can also receive them
// programmatically.
func (c *Config) Validate() error {
	var errs []string

	if c.Credentials.AccessKey != "" && c.Credentials.SecretKey == "" {
		errs = append(errs, "credentials: access_key set without secret_key")
	}
	if c.Credentials.APIKey != "" && c.Credentials.APISecret == "" {
		errs = append(errs, "credentials: api_key set without api_secret")
	}

	if !strings.HasPrefix(c.Endpoint.BaseURL, "http://") && !strings.HasPrefix(c.Endpoint.BaseURL, "https://") {
		errs = append(errs, fmt.Sprintf("endpoint: base_url %q must be http(s)", c.Endpoint.BaseURL))
	}
	if !strings.HasPrefix(c.Endpoint.IdentityURL, "http://") && !strings.HasPrefix(c.Endpoint.IdentityURL, "https://") {
		errs = append(errs, fmt.Sprintf("endpoint: identity_url %q must be http(s)", c.Endpoint.IdentityURL))
	}

	if c.Retry.Count < 1 {
		errs = append(errs, "retry: count must be >= 1")
	}
	if c.Retry.BackoffFactor < 0 {
		errs = append(errs, "retry: backoff_factor must be >= 0")
	}

	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.RequestsPerMinute < 0 || c.RateLimit.TokensPerMinute < 0 {
		errs = append(errs, "rate_limit: quotas must be >= 0")
	}
	if c.RateLimit.Redis.Addr != "" && c.RateLimit.Postgres.DSN != "" {
		errs = append(errs, "rate_limit: redis and postgres stores are mutually exclusive")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
