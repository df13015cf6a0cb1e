package sse

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/lingyun-ai/lingyun-go/pkg/api"
)

// doneSentinel is the platform's explicit end-of-stream marker.
const doneSentinel = "[DONE]"

// Stream is a lazy, forward-only, non-restartable sequence of decoded
// responses. Each Recv pulls more bytes on demand; the consumer may
// stop at any point and Close to release the connection promptly.
type Stream[T any] struct {
	dec     *Decoder
	allowed map[string]struct{}

	received int
	done     bool
	err      error
}

// NewStream decodes body into values of type T. Events whose type is
// not in allowedTypes are silently dropped; the default (empty) SSE
// event type is always forwarded. The server multiplexes auxiliary
// channels over named event types, so unknown types must not break the
// primary decode.
func NewStream[T any](body io.ReadCloser, allowedTypes ...string) *Stream[T] {
	var allowed map[string]struct{}
	if len(allowedTypes) > 0 {
		allowed = make(map[string]struct{}, len(allowedTypes))
		for _, t := range allowedTypes {
			allowed[t] = struct{}{}
		}
	}
	return &Stream[T]{dec: NewDecoder(body), allowed: allowed}
}

// Recv returns the next decoded response. It returns io.EOF at the end
// of the sequence: after [DONE], or after a connection close once at
// least some data arrived (partial output cannot be replayed, so a
// drop after progress is a graceful end, not an error). A close before
// any byte arrived is a transient service error.
func (s *Stream[T]) Recv() (T, error) {
	var zero T
	if s.done {
		if s.err != nil {
			return zero, s.err
		}
		return zero, io.EOF
	}

	for {
		ev, err := s.dec.Next()
		if err != nil {
			return zero, s.finish(err)
		}

		if !s.accepts(ev.Type) {
			continue
		}

		if strings.TrimSpace(ev.Data) == doneSentinel {
			s.done = true
			s.dec.Close()
			return zero, io.EOF
		}

		// An application error can arrive inside a frame even on an
		// HTTP 200 stream.
		var payload api.ErrorPayload
		if json.Unmarshal([]byte(ev.Data), &payload) == nil && payload.ErrorCode != 0 {
			return zero, s.fail(api.Classify(payload.ErrorCode, payload.ErrorMsg))
		}

		var value T
		if err := json.Unmarshal([]byte(ev.Data), &value); err != nil {
			return zero, s.fail(api.NewStreamDecodeError("unparseable event payload: " + err.Error()))
		}
		s.received++
		return value, nil
	}
}

// Err returns the terminal error, if the stream ended on one.
func (s *Stream[T]) Err() error { return s.err }

// Close abandons the stream and releases the underlying connection
// without draining it. Safe to call at any point and more than once.
func (s *Stream[T]) Close() error {
	s.done = true
	return s.dec.Close()
}

// accepts applies the event-type allow-list.
func (s *Stream[T]) accepts(eventType string) bool {
	if eventType == "" {
		return true
	}
	if s.allowed == nil {
		return false
	}
	_, ok := s.allowed[eventType]
	return ok
}

// finish maps the decoder's end-of-stream into the sequence contract:
// a drop before any byte arrived is a transient error (the request can
// be safely replayed); a drop after progress ends the sequence
// gracefully because partial output cannot be replayed.
func (s *Stream[T]) finish(err error) error {
	if !s.dec.SawBytes() && s.received == 0 {
		msg := "stream closed before any data was received"
		if err != io.EOF {
			msg = "stream read failed: " + err.Error()
		}
		return s.fail(api.NewTransientError(api.CodeStreamInterruption, msg))
	}
	s.done = true
	s.dec.Close()
	return io.EOF
}

// fail records the terminal error and closes the connection.
func (s *Stream[T]) fail(err error) error {
	s.done = true
	s.err = err
	s.dec.Close()
	return s.err
}
