// Package sse turns an incrementally-arriving event-stream body into a
// lazy, forward-only sequence of decoded values.
//
// Decoder handles the line and frame layer: bytes arrive in chunks of
// arbitrary size that may split a line or a multi-byte character, and
// only complete frames are surfaced. Stream adds the domain layer:
// event-type filtering, the [DONE] sentinel, embedded error payloads,
// and JSON decoding into the response type.
package sse
