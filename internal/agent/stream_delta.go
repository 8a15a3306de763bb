package agent

import (
	"context"

	"github.com/haasonsaas/nexus/pkg/models"
)

// StreamDeltaKind discriminates the events a streaming LLM client emits
// while producing one assistant turn.
type StreamDeltaKind string

const (
	// TextDelta carries an incremental slice of assistant text.
	TextDelta StreamDeltaKind = "text_delta"
	// ThinkingStartDelta announces the start of an extended-thinking block.
	ThinkingStartDelta StreamDeltaKind = "thinking_start"
	// ThinkingTextDelta carries an incremental slice of extended-thinking
	// text.
	ThinkingTextDelta StreamDeltaKind = "thinking_text_delta"
	// ThinkingEndDelta signals the end of an extended-thinking block.
	ThinkingEndDelta StreamDeltaKind = "thinking_end"
	// ToolCallStarted announces a new tool call, before its arguments
	// have been fully streamed.
	ToolCallStarted StreamDeltaKind = "tool_call_started"
	// ToolCallArgsDelta carries an incremental slice of a tool call's
	// JSON argument payload, keyed by ToolCallID.
	ToolCallArgsDelta StreamDeltaKind = "tool_call_args_delta"
	// ToolCallComplete signals that a tool call's arguments are fully
	// buffered and the call is ready to dispatch.
	ToolCallComplete StreamDeltaKind = "tool_call_complete"
	// MessageStop signals the end of the assistant turn.
	MessageStop StreamDeltaKind = "message_stop"
)

// StreamDelta is one unit of a provider-agnostic streamed response. A
// ChatStream call emits a sequence of these terminated by exactly one
// MessageStop (or an error on the channel's error slot).
type StreamDelta struct {
	Kind StreamDeltaKind

	// Text holds the incremental content for TextDelta.
	Text string

	// Thinking holds the incremental content for ThinkingTextDelta.
	Thinking string

	// ToolCallID identifies the tool call a ToolCallStarted,
	// ToolCallArgsDelta, or ToolCallComplete delta refers to.
	ToolCallID string

	// ToolName is set on ToolCallStarted.
	ToolName string

	// ArgsDelta carries the incremental JSON fragment for
	// ToolCallArgsDelta.
	ArgsDelta string

	// ToolCall is the fully assembled call, set on ToolCallComplete.
	ToolCall *models.ToolCall

	// StopReason is set on MessageStop ("end_turn", "tool_use",
	// "max_tokens", etc., provider-defined).
	StopReason string

	// Err terminates the stream early when non-nil. No further deltas
	// follow one carrying an error.
	Err error
}

// chunkToStreamDeltas adapts the legacy CompletionChunk shape emitted by
// Complete into the StreamDelta vocabulary, so existing providers can be
// consumed through ChatStream without each one being rewritten around
// the new streaming contract individually.
func chunkToStreamDeltas(c *CompletionChunk) []*StreamDelta {
	if c == nil {
		return nil
	}
	if c.Error != nil {
		return []*StreamDelta{{Kind: MessageStop, Err: c.Error}}
	}

	var deltas []*StreamDelta
	if c.ThinkingStart {
		deltas = append(deltas, &StreamDelta{Kind: ThinkingStartDelta})
	}
	if c.Thinking != "" {
		deltas = append(deltas, &StreamDelta{Kind: ThinkingTextDelta, Thinking: c.Thinking})
	}
	if c.ThinkingEnd {
		deltas = append(deltas, &StreamDelta{Kind: ThinkingEndDelta})
	}
	if c.Text != "" {
		deltas = append(deltas, &StreamDelta{Kind: TextDelta, Text: c.Text})
	}
	if c.ToolCall != nil {
		deltas = append(deltas,
			&StreamDelta{Kind: ToolCallStarted, ToolCallID: c.ToolCall.ID, ToolName: c.ToolCall.Name},
			&StreamDelta{Kind: ToolCallComplete, ToolCallID: c.ToolCall.ID, ToolCall: c.ToolCall},
		)
	}
	if c.Done {
		deltas = append(deltas, &StreamDelta{Kind: MessageStop, StopReason: "end_turn"})
	}
	return deltas
}

// ChatStream adapts any LLMProvider's Complete method into the
// StreamDelta channel vocabulary that the Security Gate and Agent Loop
// consume. It is the seam every provider flows through on the way to
// becoming a provider-agnostic stream.
func ChatStream(ctx context.Context, p LLMProvider, req *CompletionRequest) (<-chan *StreamDelta, error) {
	chunks, err := p.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make(chan *StreamDelta)
	go func() {
		defer close(out)
		for chunk := range chunks {
			for _, d := range chunkToStreamDeltas(chunk) {
				select {
				case out <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
