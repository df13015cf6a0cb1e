package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/lingyun-ai/lingyun-go/pkg/auth"
	"github.com/lingyun-ai/lingyun-go/pkg/config"
	"github.com/lingyun-ai/lingyun-go/pkg/ratelimit"
	"github.com/lingyun-ai/lingyun-go/pkg/retry"
)

// Client executes requests against the lingyun platform. Construct one
// per credential set and share it across goroutines; there is no
// process-global client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      auth.CredentialProvider
	limiter    ratelimit.Limiter
	policy     retry.Policy
	logger     *slog.Logger

	// local is non-nil when the limiter supports dynamic capacity
	// updates discovered from response headers.
	local *ratelimit.Local

	endpointOverrides map[endpointKey]string
}

// Option customizes a Client beyond its configuration.
type Option func(*Client)

// WithHTTPClient replaces the transport used for non-streaming calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithCredentialProvider replaces the provider derived from config,
// for custom auth strategies.
func WithCredentialProvider(p auth.CredentialProvider) Option {
	return func(c *Client) { c.creds = p }
}

// WithLimiter replaces the limiter derived from config, for example a
// shared distributed bucket built by the caller.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
		c.local, _ = l.(*ratelimit.Local)
	}
}

// WithModelEndpoint registers or overrides the endpoint slug for a
// model under an operation.
func WithModelEndpoint(op Operation, model, slug string) Option {
	return func(c *Client) {
		c.endpointOverrides[endpointKey{op, model}] = slug
	}
}

// New builds a Client from a loaded configuration. The credential
// strategy follows the config: an access key / secret key pair signs
// requests, an api key / api secret pair uses bearer tokens.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	timeout := cfg.Endpoint.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	c := &Client{
		baseURL:           strings.TrimRight(cfg.Endpoint.BaseURL, "/"),
		httpClient:        &http.Client{Timeout: timeout},
		logger:            slog.Default(),
		endpointOverrides: make(map[endpointKey]string),
		policy: retry.Policy{
			MaxAttempts:   cfg.Retry.Count,
			BackoffFactor: cfg.Retry.BackoffFactor,
			MaxWait:       cfg.Retry.MaxWait,
			Budget:        cfg.Retry.Timeout,
		},
	}

	switch {
	case cfg.Credentials.AccessKey != "":
		c.creds = auth.NewSigner(auth.Credential{
			Key:    cfg.Credentials.AccessKey,
			Secret: cfg.Credentials.SecretKey,
		})
	case cfg.Credentials.APIKey != "":
		c.creds = auth.NewTokenProvider(
			auth.Credential{Key: cfg.Credentials.APIKey, Secret: cfg.Credentials.APISecret},
			strings.TrimRight(cfg.Endpoint.IdentityURL, "/"),
			auth.TokenProviderOptions{TenantID: cfg.Credentials.TenantID},
		)
	}

	if cfg.RateLimit.Redis.Addr != "" {
		capacity, rate := distributedQuota(cfg.RateLimit)
		if capacity > 0 {
			rdb := redis.NewClient(&redis.Options{
				Addr:     cfg.RateLimit.Redis.Addr,
				Password: cfg.RateLimit.Redis.Password,
				DB:       cfg.RateLimit.Redis.DB,
			})
			// The shared bucket counts requests, not tokens.
			c.limiter = ratelimit.FixedCost(ratelimit.NewRedisBucket(rdb, ratelimit.RedisBucketConfig{
				Key:                 cfg.RateLimit.Redis.Key,
				Capacity:            capacity,
				RefillRatePerSecond: rate,
				TTL:                 cfg.RateLimit.Redis.TTL,
			}), 1)
		}
	}
	if c.limiter == nil && cfg.RateLimit.Postgres.DSN != "" {
		capacity, rate := distributedQuota(cfg.RateLimit)
		if capacity > 0 {
			pool, err := pgxpool.New(context.Background(), cfg.RateLimit.Postgres.DSN)
			if err != nil {
				return nil, fmt.Errorf("rate limiter store: %w", err)
			}
			bucket, err := ratelimit.NewPostgresBucket(context.Background(), pool, ratelimit.PostgresBucketConfig{
				Key:                 cfg.RateLimit.Postgres.Key,
				Capacity:            capacity,
				RefillRatePerSecond: rate,
				TTL:                 cfg.RateLimit.Postgres.TTL,
			})
			if err != nil {
				return nil, fmt.Errorf("rate limiter store: %w", err)
			}
			c.limiter = ratelimit.FixedCost(bucket, 1)
		}
	}
	if c.limiter == nil {
		local := ratelimit.NewLocal(ratelimit.Config{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			TokensPerMinute:   cfg.RateLimit.TokensPerMinute,
		})
		c.limiter = local
		c.local, _ = local.(*ratelimit.Local)
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.creds == nil {
		return nil, errMissingCredentials
	}
	return c, nil
}

// distributedQuota derives the shared bucket's capacity and refill
// rate from the configured per-minute quota, falling back to the
// per-second one.
func distributedQuota(cfg config.RateLimitConfig) (capacity, ratePerSecond float64) {
	if cfg.RequestsPerMinute > 0 {
		return cfg.RequestsPerMinute, cfg.RequestsPerMinute / 60
	}
	if cfg.RequestsPerSecond > 0 {
		return cfg.RequestsPerSecond, cfg.RequestsPerSecond
	}
	return 0, 0
}
