package providers

import "testing"

func TestSSEParserBasic(t *testing.T) {
	var p SSEParser
	events := p.Feed("event: message_start\ndata: {\"type\":\"start\"}\n\n")

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].EventType != "message_start" {
		t.Fatalf("expected message_start, got %q", events[0].EventType)
	}
	if events[0].Data != `{"type":"start"}` {
		t.Fatalf("unexpected data: %q", events[0].Data)
	}
}

func TestSSEParserMultipleEvents(t *testing.T) {
	var p SSEParser
	events := p.Feed("event: a\ndata: 1\n\nevent: b\ndata: 2\n\n")

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].EventType != "a" || events[0].Data != "1" {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[1].EventType != "b" || events[1].Data != "2" {
		t.Fatalf("unexpected second event: %+v", events[1])
	}
}

func TestSSEParserChunked(t *testing.T) {
	var p SSEParser

	first := p.Feed("event: a\ndata: {\"x\":")
	if len(first) != 0 {
		t.Fatalf("expected no complete events from a partial chunk, got %d", len(first))
	}

	second := p.Feed("1}\n\n")
	if len(second) != 1 {
		t.Fatalf("expected 1 event after the chunk completes, got %d", len(second))
	}
	if second[0].Data != `{"x":1}` {
		t.Fatalf("unexpected reassembled data: %q", second[0].Data)
	}
}

func TestSSEParserMultiLineDataJoinedWithNewline(t *testing.T) {
	var p SSEParser
	events := p.Feed("data: line one\ndata: line two\n\n")

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Data != "line one\nline two" {
		t.Fatalf("unexpected joined data: %q", events[0].Data)
	}
}

func TestSSEParserNoSpaceAfterColonTolerated(t *testing.T) {
	var p SSEParser
	events := p.Feed("event:ping\ndata:{}\n\n")

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].EventType != "ping" || events[0].Data != "{}" {
		t.Fatalf("unexpected event: %+v", events[0])
	}
}
