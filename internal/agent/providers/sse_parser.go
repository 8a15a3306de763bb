package providers

import "strings"

// SSEEvent is one decoded Server-Sent Event: an optional type and a data
// payload with any multi-line "data:" fields already joined by "\n".
type SSEEvent struct {
	EventType string
	Data      string
}

// SSEParser is an incremental Server-Sent Events decoder for callers that
// receive a stream in arbitrary-sized chunks (HTTP body reads, websocket
// frames) rather than line by line. Unlike ParseSSEStream, it never reads
// from an io.Reader itself: the caller feeds it raw bytes as they arrive
// and gets back zero or more complete events, with any trailing partial
// event held in an internal buffer until the rest arrives.
type SSEParser struct {
	buffer strings.Builder
}

// Feed appends chunk to the parser's buffer and returns every event that
// became complete as a result. A chunk split mid-event (even mid-line)
// is handled correctly: the partial data simply waits in the buffer for
// the next Feed call.
func (p *SSEParser) Feed(chunk string) []SSEEvent {
	p.buffer.WriteString(chunk)
	buf := p.buffer.String()

	var events []SSEEvent
	for {
		idx := strings.Index(buf, "\n\n")
		if idx == -1 {
			break
		}
		block := buf[:idx]
		buf = buf[idx+2:]

		if ev, ok := parseSSEBlock(block); ok {
			events = append(events, ev)
		}
	}

	p.buffer.Reset()
	p.buffer.WriteString(buf)
	return events
}

func parseSSEBlock(block string) (SSEEvent, bool) {
	var eventType string
	var dataLines []string

	for _, line := range strings.Split(block, "\n") {
		switch {
		case strings.HasPrefix(line, "event: "):
			eventType = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimPrefix(line, "event:")
		case strings.HasPrefix(line, "data: "):
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(line, "data:"))
		}
	}

	if eventType == "" && len(dataLines) == 0 {
		return SSEEvent{}, false
	}
	return SSEEvent{EventType: eventType, Data: strings.Join(dataLines, "\n")}, true
}
