// Package ratelimit gates outbound requests against configured quota.
//
// Three dimensions are supported independently and combined by taking
// the most restrictive effective rate: requests per second, requests
// per minute, and size-weighted tokens per minute.
//
// Local keeps the buckets in process memory. RedisBucket and
// PostgresBucket share one logical bucket across processes: Redis via
// a single atomic Lua script per acquire, Postgres via an optimistic
// compare-and-swap loop on a versioned row.
package ratelimit
