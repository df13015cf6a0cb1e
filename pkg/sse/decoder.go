package sse

import (
	"bytes"
	"io"
	"strings"
)

// Event is one decoded SSE frame. Type is empty for the default SSE
// event type. Data joins the frame's data lines with newlines.
type Event struct {
	Type string
	Data string
	Raw  []string
}

// Decoder reads SSE frames from a byte stream. It buffers incomplete
// trailing bytes between reads, so chunk boundaries may fall anywhere,
// including inside a UTF-8 sequence. Not safe for concurrent use: one
// consumer owns the decode state.
type Decoder struct {
	r   io.ReadCloser
	buf []byte

	pendingType string
	pendingData []string
	pendingRaw  []string

	sawBytes   bool
	closed     bool
	emptyReads int
}

// maxEmptyReads bounds consecutive zero-byte, nil-error reads before
// the decoder gives up, as bufio does.
const maxEmptyReads = 100

// NewDecoder wraps body. The caller (or Stream) must Close the decoder
// to release the connection.
func NewDecoder(body io.ReadCloser) *Decoder {
	return &Decoder{r: body}
}

// SawBytes reports whether any bytes at all arrived on the stream.
// A connection that closes without a single byte is distinguishable
// from one that made progress first.
func (d *Decoder) SawBytes() bool { return d.sawBytes }

// Close releases the underlying connection without draining it.
func (d *Decoder) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	return d.r.Close()
}

// Next returns the next complete frame, blocking on the underlying
// reader as needed. It returns io.EOF when the stream ends; a frame
// left unterminated by the close is discarded, matching SSE semantics.
func (d *Decoder) Next() (*Event, error) {
	if d.closed {
		return nil, io.EOF
	}
	for {
		line, ok := d.nextLine()
		if !ok {
			if err := d.fill(); err != nil {
				return nil, err
			}
			continue
		}
		if ev := d.feed(line); ev != nil {
			return ev, nil
		}
	}
}

// nextLine pops one complete line from the buffer, stripping the
// terminator. A trailing partial line stays buffered for the next fill.
func (d *Decoder) nextLine() (string, bool) {
	i := bytes.IndexByte(d.buf, '\n')
	if i < 0 {
		return "", false
	}
	line := d.buf[:i]
	d.buf = d.buf[i+1:]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return string(line), true
}

// fill reads one chunk from the body into the buffer.
func (d *Decoder) fill() error {
	chunk := make([]byte, 4096)
	n, err := d.r.Read(chunk)
	if n > 0 {
		d.sawBytes = true
		d.emptyReads = 0
		d.buf = append(d.buf, chunk[:n]...)
		return nil
	}
	if err == nil {
		d.emptyReads++
		if d.emptyReads >= maxEmptyReads {
			return io.ErrNoProgress
		}
		return nil
	}
	return err
}

// feed accumulates one line into the pending frame and returns the
// frame when a blank line flushes it.
func (d *Decoder) feed(line string) *Event {
	if line == "" {
		if len(d.pendingRaw) == 0 {
			return nil
		}
		ev := &Event{
			Type: d.pendingType,
			Data: strings.Join(d.pendingData, "\n"),
			Raw:  d.pendingRaw,
		}
		d.pendingType = ""
		d.pendingData = nil
		d.pendingRaw = nil
		return ev
	}

	// Comment lines are ignored entirely.
	if strings.HasPrefix(line, ":") {
		return nil
	}

	d.pendingRaw = append(d.pendingRaw, line)

	field, value := splitField(line)
	switch field {
	case "event":
		d.pendingType = value
	case "data":
		d.pendingData = append(d.pendingData, value)
	}
	return nil
}

// splitField splits "field: value" at the first colon, stripping one
// leading space from the value. A line with no colon is a field with
// an empty value.
func splitField(line string) (field, value string) {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return line, ""
	}
	field, value = line[:i], line[i+1:]
	value = strings.TrimPrefix(value, " ")
	return field, value
}
