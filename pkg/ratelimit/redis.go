package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lingyun-ai/lingyun-go/pkg/api"
)

// acquireScript is the whole bucket update as one server-side script,
// so concurrent processes never interleave a read with a write. Time
// comes from the Redis server clock, which keeps every process on one
// clock regardless of local skew.
//
// The script debits the cost up front: tokens may go negative, and the
// returned value is how long the caller must sleep before its grant is
// effective (0 means granted immediately). The key's TTL is refreshed
// on every acquire so abandoned limiters expire.
const acquireScript = `
local t = redis.call('TIME')
local now = tonumber(t[1]) + tonumber(t[2]) / 1000000
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local cost = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local state = redis.call('HMGET', KEYS[1], 'ts', 'tokens')
local ts = tonumber(state[1])
local tokens = tonumber(state[2])
if ts == nil or tokens == nil then
  ts = now
  tokens = capacity
end

local elapsed = now - ts
if elapsed < 0 then
  elapsed = 0
end
tokens = tokens + elapsed * rate
if tokens > capacity then
  tokens = capacity
end

tokens = tokens - cost
local wait = 0
if tokens < 0 then
  wait = -tokens / rate
end

redis.call('HMSET', KEYS[1], 'ts', now, 'tokens', tokens, 'capacity', capacity, 'rate', rate)
redis.call('PEXPIRE', KEYS[1], ttl)
return tostring(wait)
`

var redisAcquire = redis.NewScript(acquireScript)

// RedisBucket is a distributed token bucket whose state lives in Redis
// under one key per limiter identity. Multiple processes sharing the
// key collectively respect one quota.
type RedisBucket struct {
	client     redis.UniversalClient
	key        string
	capacity   float64
	refillRate float64
	ttl        time.Duration
}

// RedisBucketConfig configures a RedisBucket.
type RedisBucketConfig struct {
	// Key identifies the shared bucket; processes with the same key
	// share the quota.
	Key string

	// Capacity is the maximum number of accumulated permits.
	Capacity float64

	// RefillRatePerSecond is how fast permits accrue.
	RefillRatePerSecond float64

	// TTL expires abandoned buckets. Refreshed on each acquire.
	// Default: 10 minutes.
	TTL time.Duration
}

// NewRedisBucket creates a distributed bucket on the given client.
func NewRedisBucket(client redis.UniversalClient, cfg RedisBucketConfig) *RedisBucket {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisBucket{
		client:     client,
		key:        "lingyun:ratelimit:" + cfg.Key,
		capacity:   cfg.Capacity,
		refillRate: cfg.RefillRatePerSecond,
		ttl:        ttl,
	}
}

// Acquire debits cost from the shared bucket and sleeps out any wait
// the store returned. A cost above the bucket's capacity can never be
// granted and fails fast.
func (b *RedisBucket) Acquire(ctx context.Context, cost float64) error {
	if cost > b.capacity {
		return api.NewFatalError(api.CodeInvalidArgument,
			"rate limiter: cost exceeds distributed bucket capacity")
	}
	if cost <= 0 {
		cost = 1
	}

	res, err := redisAcquire.Run(ctx, b.client, []string{b.key},
		b.capacity,
		b.refillRate,
		cost,
		b.ttl.Milliseconds(),
	).Result()
	if err != nil {
		return api.NewTransientError(api.CodeServiceUnavailable,
			"rate limiter store: "+err.Error())
	}

	wait, err := strconv.ParseFloat(res.(string), 64)
	if err != nil {
		return api.NewTransientError(api.CodeServiceUnavailable,
			"rate limiter store returned malformed wait: "+err.Error())
	}
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(time.Duration(wait * float64(time.Second)))
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return api.NewTimeoutError("rate limiter wait: " + ctx.Err().Error())
	}
}
