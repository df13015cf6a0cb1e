package sse

import (
	"io"
	"strings"
	"testing"
)

// chunkedReader yields the payload in fixed-size chunks so tests can
// force frame and rune splits at arbitrary byte boundaries.
type chunkedReader struct {
	data      []byte
	chunkSize int
	pos       int
	closed    bool
}

func newChunkedReader(data string, chunkSize int) *chunkedReader {
	return &chunkedReader{data: []byte(data), chunkSize: chunkSize}
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	end := r.pos + r.chunkSize
	if end > len(r.data) {
		end = len(r.data)
	}
	n := copy(p, r.data[r.pos:end])
	r.pos += n
	return n, nil
}

func (r *chunkedReader) Close() error {
	r.closed = true
	return nil
}

func collectEvents(t *testing.T, d *Decoder) []*Event {
	t.Helper()
	var events []*Event
	for {
		ev, err := d.Next()
		if err == io.EOF {
			return events
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		events = append(events, ev)
	}
}

func TestDecodeBasicFrames(t *testing.T) {
	payload := "data: one\n\nevent: meta\ndata: two\n\n"
	d := NewDecoder(io.NopCloser(strings.NewReader(payload)))
	events := collectEvents(t, d)

	if len(events) != 2 {
		t.Fatalf("decoded %d events, want 2", len(events))
	}
	if events[0].Type != "" || events[0].Data != "one" {
		t.Errorf("event 0 = %+v", events[0])
	}
	if events[1].Type != "meta" || events[1].Data != "two" {
		t.Errorf("event 1 = %+v", events[1])
	}
}

func TestChunkSizeDoesNotChangeDecode(t *testing.T) {
	payload := "data: {\"result\":\"你好\"}\n\n" +
		": heartbeat comment\n" +
		"event: aux\ndata: {\"plugin\":\"x\"}\n\n" +
		"data: line one\ndata: line two\n\n"

	whole := collectEvents(t, NewDecoder(io.NopCloser(strings.NewReader(payload))))

	for _, size := range []int{1, 2, 3, 7, len(payload)} {
		chunked := collectEvents(t, NewDecoder(newChunkedReader(payload, size)))
		if len(chunked) != len(whole) {
			t.Fatalf("chunk size %d: %d events, want %d", size, len(chunked), len(whole))
		}
		for i := range whole {
			if chunked[i].Type != whole[i].Type || chunked[i].Data != whole[i].Data {
				t.Errorf("chunk size %d, event %d: got %+v, want %+v",
					size, i, chunked[i], whole[i])
			}
		}
	}
}

func TestMultiByteRuneSplitAcrossChunks(t *testing.T) {
	// "中" is three bytes; chunk size 1 splits every rune.
	payload := "data: 中文测试\n\n"
	events := collectEvents(t, NewDecoder(newChunkedReader(payload, 1)))
	if len(events) != 1 || events[0].Data != "中文测试" {
		t.Fatalf("events = %+v, want one event with intact runes", events)
	}
}

func TestCommentLinesIgnored(t *testing.T) {
	payload := ": keep-alive\ndata: real\n: another comment\n\n"
	events := collectEvents(t, NewDecoder(io.NopCloser(strings.NewReader(payload))))
	if len(events) != 1 || events[0].Data != "real" {
		t.Fatalf("events = %+v, want single event with data \"real\"", events)
	}
	for _, raw := range events[0].Raw {
		if strings.HasPrefix(raw, ":") {
			t.Errorf("comment accumulated into frame: %q", raw)
		}
	}
}

func TestMultipleDataLinesJoined(t *testing.T) {
	payload := "data: first\ndata: second\n\n"
	events := collectEvents(t, NewDecoder(io.NopCloser(strings.NewReader(payload))))
	if len(events) != 1 || events[0].Data != "first\nsecond" {
		t.Fatalf("events = %+v, want joined data lines", events)
	}
}

func TestCRLFLineEndings(t *testing.T) {
	payload := "data: one\r\n\r\ndata: two\r\n\r\n"
	events := collectEvents(t, NewDecoder(io.NopCloser(strings.NewReader(payload))))
	if len(events) != 2 || events[0].Data != "one" || events[1].Data != "two" {
		t.Fatalf("events = %+v, want two clean events", events)
	}
}

func TestLeadingSpaceStrippedOnce(t *testing.T) {
	payload := "data:  padded\n\ndata:no-space\n\n"
	events := collectEvents(t, NewDecoder(io.NopCloser(strings.NewReader(payload))))
	if events[0].Data != " padded" {
		t.Errorf("data = %q, want single leading space preserved", events[0].Data)
	}
	if events[1].Data != "no-space" {
		t.Errorf("data = %q, want %q", events[1].Data, "no-space")
	}
}

func TestUnterminatedTrailingFrameDiscarded(t *testing.T) {
	payload := "data: complete\n\ndata: cut off mid-fra"
	events := collectEvents(t, NewDecoder(io.NopCloser(strings.NewReader(payload))))
	if len(events) != 1 || events[0].Data != "complete" {
		t.Fatalf("events = %+v, want only the complete frame", events)
	}
}

func TestSawBytes(t *testing.T) {
	empty := NewDecoder(io.NopCloser(strings.NewReader("")))
	if _, err := empty.Next(); err != io.EOF {
		t.Fatalf("Next on empty stream: %v", err)
	}
	if empty.SawBytes() {
		t.Error("SawBytes = true on an empty stream")
	}

	d := NewDecoder(io.NopCloser(strings.NewReader("data: x\n\n")))
	if _, err := d.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !d.SawBytes() {
		t.Error("SawBytes = false after reading data")
	}
}

func TestCloseReleasesReaderPromptly(t *testing.T) {
	r := newChunkedReader("data: x\n\ndata: y\n\n", 4096)
	d := NewDecoder(r)
	if _, err := d.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !r.closed {
		t.Error("underlying reader not closed")
	}
	if _, err := d.Next(); err != io.EOF {
		t.Errorf("Next after Close = %v, want io.EOF", err)
	}
}

// stuckReader returns (0, nil) forever, modeling a transport that stops
// delivering without closing.
type stuckReader struct{}

func (stuckReader) Read([]byte) (int, error) { return 0, nil }
func (stuckReader) Close() error             { return nil }

func TestDecoderGivesUpOnNoProgressReader(t *testing.T) {
	d := NewDecoder(stuckReader{})
	if _, err := d.Next(); err != io.ErrNoProgress {
		t.Fatalf("Next = %v, want io.ErrNoProgress", err)
	}
}
