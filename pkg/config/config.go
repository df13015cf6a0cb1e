// Package config provides unified configuration for the lingyun client.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. .env file in the working directory, if present
//  4. Environment variable overrides (LINGYUN_ prefix)
//  5. File reference resolution (_file suffix fields)
//  6. Validation
package config

import "time"

// Config holds all configuration for a lingyun client.
type Config struct {
	Credentials CredentialsConfig `yaml:"credentials"`
	Endpoint    EndpointConfig    `yaml:"endpoint"`
	Retry       RetryConfig       `yaml:"retry"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
}

// CredentialsConfig selects the auth strategy. An access key / secret
// key pair signs each request; an api key / api secret pair exchanges
// for a bearer token. When both are present, signing wins.
type CredentialsConfig struct {
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	SecretKeyFile string `yaml:"secret_key_file"` // _file variant for secret_key
	APIKey        string `yaml:"api_key"`
	APISecret     string `yaml:"api_secret"`
	APISecretFile string `yaml:"api_secret_file"` // _file variant for api_secret
	TenantID      string `yaml:"tenant_id"`
}

// EndpointConfig holds the API and identity host settings.
type EndpointConfig struct {
	// BaseURL is the API host. Default: https://api.lingyun.dev
	BaseURL string `yaml:"base_url"`

	// IdentityURL is the token endpoint host. Default: https://auth.lingyun.dev
	IdentityURL string `yaml:"identity_url"`

	// Timeout bounds a single non-streaming HTTP exchange.
	Timeout time.Duration `yaml:"timeout"` // default: 60s
}

// RetryConfig holds transient-failure recovery settings.
type RetryConfig struct {
	Count         int           `yaml:"count"`          // total attempts, default: 3
	Timeout       time.Duration `yaml:"timeout"`        // overall budget, default: 0 (none)
	BackoffFactor float64       `yaml:"backoff_factor"` // default: 1
	MaxWait       time.Duration `yaml:"max_wait"`       // per-sleep cap, default: 120s
}

// RateLimitConfig holds local and distributed backpressure settings.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	TokensPerMinute   float64 `yaml:"tokens_per_minute"`

	// Redis, when its address is set, moves the bucket into a shared
	// store so multiple processes respect one quota.
	Redis RedisConfig `yaml:"redis"`

	// Postgres is the CAS-based alternative shared store.
	Postgres PostgresConfig `yaml:"postgres"`
}

// RedisConfig holds distributed rate-limit store settings.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Key      string        `yaml:"key"` // limiter identity, default: "default"
	TTL      time.Duration `yaml:"ttl"` // default: 10m
}

// PostgresConfig holds the Postgres-backed limiter settings.
type PostgresConfig struct {
	DSN     string        `yaml:"dsn"`
	DSNFile string        `yaml:"dsn_file"` // _file variant for dsn
	Key     string        `yaml:"key"`
	TTL     time.Duration `yaml:"ttl"`
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Endpoint: EndpointConfig{
			BaseURL:     "https://api.lingyun.dev",
			IdentityURL: "https://auth.lingyun.dev",
			Timeout:     60 * time.Second,
		},
		Retry: RetryConfig{
			Count:         3,
			BackoffFactor: 1,
			MaxWait:       120 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Redis: RedisConfig{
				Key: "default",
				TTL: 10 * time.Minute,
			},
			Postgres: PostgresConfig{
				Key: "default",
				TTL: 10 * time.Minute,
			},
		},
	}
}
