package ratelimit

import (
	"context"
	"math"
	"sync"

	"golang.org/x/time/rate"

	"github.com/lingyun-ai/lingyun-go/pkg/api"
)

// Config holds the quota for a limiter. A zero value on a dimension
// leaves that dimension unlimited; an all-zero Config yields a no-op
// limiter.
type Config struct {
	RequestsPerSecond float64
	RequestsPerMinute float64
	TokensPerMinute   float64
}

// enabled reports whether any dimension carries a quota.
func (c Config) enabled() bool {
	return c.RequestsPerSecond > 0 || c.RequestsPerMinute > 0 || c.TokensPerMinute > 0
}

// Local is an in-process multi-dimension token-bucket limiter. Each
// configured dimension is an independent bucket; an acquire must be
// granted by all of them, so the most restrictive rate wins.
//
// The per-second bucket holds a single token: requests are paced at
// the configured rate rather than allowed to burst a full second's
// quota at once. The per-minute buckets hold a full window's quota.
type Local struct {
	rps *rate.Limiter
	rpm *rate.Limiter
	tpm *rate.Limiter

	mu      sync.Mutex
	updated bool
}

// NewLocal builds a limiter from cfg. When no dimension is configured
// the returned limiter is a pass-through.
func NewLocal(cfg Config) Limiter {
	if !cfg.enabled() {
		return Nop()
	}
	l := &Local{}
	if cfg.RequestsPerSecond > 0 {
		l.rps = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	if cfg.RequestsPerMinute > 0 {
		l.rpm = rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60), int(math.Ceil(cfg.RequestsPerMinute)))
	}
	if cfg.TokensPerMinute > 0 {
		l.tpm = rate.NewLimiter(rate.Limit(cfg.TokensPerMinute/60), int(math.Ceil(cfg.TokensPerMinute)))
	}
	return l
}

// Acquire blocks until every configured dimension grants the request.
// The request dimensions consume 1 each; the token dimension consumes
// ceil(cost). A cost larger than the token bucket's capacity fails
// fast instead of blocking forever.
func (l *Local) Acquire(ctx context.Context, cost float64) error {
	if l.rps != nil {
		if err := l.rps.Wait(ctx); err != nil {
			return waitErr(err)
		}
	}
	if l.rpm != nil {
		if err := l.rpm.Wait(ctx); err != nil {
			return waitErr(err)
		}
	}
	if l.tpm != nil {
		n := int(math.Ceil(cost))
		if n < 1 {
			n = 1
		}
		if n > l.tpm.Burst() {
			return api.NewFatalError(api.CodeInvalidArgument,
				"rate limiter: request token estimate exceeds tokens-per-minute capacity")
		}
		if err := l.tpm.WaitN(ctx, n); err != nil {
			return waitErr(err)
		}
	}
	return nil
}

// UpdateCapacity applies a quota discovered at runtime (for example
// from a control-plane response header) to the per-minute buckets.
// Only the first call is consulted, even when no bucket is configured
// to receive it; concurrent callers racing to apply the same discovery
// do not thrash the buckets. Earned tokens are preserved by the
// underlying buckets when limits change. Reports whether any bucket
// changed.
func (l *Local) UpdateCapacity(requestsPerMinute, tokensPerMinute float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.updated {
		return false
	}
	l.updated = true
	applied := false
	if requestsPerMinute > 0 && l.rpm != nil {
		l.rpm.SetLimit(rate.Limit(requestsPerMinute / 60))
		l.rpm.SetBurst(int(math.Ceil(requestsPerMinute)))
		applied = true
	}
	if tokensPerMinute > 0 && l.tpm != nil {
		l.tpm.SetLimit(rate.Limit(tokensPerMinute / 60))
		l.tpm.SetBurst(int(math.Ceil(tokensPerMinute)))
		applied = true
	}
	return applied
}
