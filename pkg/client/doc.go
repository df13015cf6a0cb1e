// Package client is the lingyun SDK entry point. It composes the
// credential provider, rate limiter, retry executor, and stream
// decoder into one call path:
//
//	acquire permit -> authenticate -> send -> decode -> classify -> retry
//
// A Client is safe for concurrent use; the cached access token and the
// local rate-limit buckets are the only shared mutable state and both
// serialize internally.
package client
