package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/haasonsaas/nexus/pkg/models"
)

// deltaTestProvider completes with a fixed sequence of CompletionChunks,
// used to verify ChatStream's adaptation into the StreamDelta vocabulary.
type deltaTestProvider struct {
	chunks []CompletionChunk
}

func (p *deltaTestProvider) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	ch := make(chan *CompletionChunk, len(p.chunks))
	for i := range p.chunks {
		ch <- &p.chunks[i]
	}
	close(ch)
	return ch, nil
}

func (p *deltaTestProvider) Name() string        { return "delta-test" }
func (p *deltaTestProvider) Models() []Model     { return nil }
func (p *deltaTestProvider) SupportsTools() bool { return true }

func TestChatStreamTextDeltas(t *testing.T) {
	provider := &deltaTestProvider{chunks: []CompletionChunk{
		{Text: "hello "},
		{Text: "world"},
		{Done: true},
	}}

	stream, err := ChatStream(context.Background(), provider, &CompletionRequest{})
	if err != nil {
		t.Fatalf("ChatStream() error = %v", err)
	}

	var text string
	var sawStop bool
	for delta := range stream {
		switch delta.Kind {
		case TextDelta:
			text += delta.Text
		case MessageStop:
			sawStop = true
			if delta.StopReason != "end_turn" {
				t.Errorf("StopReason = %q, want %q", delta.StopReason, "end_turn")
			}
		}
	}

	if text != "hello world" {
		t.Errorf("text = %q, want %q", text, "hello world")
	}
	if !sawStop {
		t.Error("expected a MessageStop delta")
	}
}

func TestChatStreamToolCall(t *testing.T) {
	call := &models.ToolCall{ID: "call-1", Name: "lookup", Input: json.RawMessage(`{}`)}
	provider := &deltaTestProvider{chunks: []CompletionChunk{
		{ToolCall: call},
		{Done: true},
	}}

	stream, err := ChatStream(context.Background(), provider, &CompletionRequest{})
	if err != nil {
		t.Fatalf("ChatStream() error = %v", err)
	}

	var started, completed bool
	for delta := range stream {
		switch delta.Kind {
		case ToolCallStarted:
			started = true
			if delta.ToolName != call.Name {
				t.Errorf("ToolName = %q, want %q", delta.ToolName, call.Name)
			}
		case ToolCallComplete:
			completed = true
			if delta.ToolCall != call {
				t.Error("expected the assembled tool call to survive the adaptation")
			}
		}
	}

	if !started || !completed {
		t.Errorf("started=%v completed=%v, want both true", started, completed)
	}
}

func TestChatStreamThinkingDeltas(t *testing.T) {
	provider := &deltaTestProvider{chunks: []CompletionChunk{
		{ThinkingStart: true},
		{Thinking: "considering options"},
		{ThinkingEnd: true},
		{Text: "answer"},
		{Done: true},
	}}

	stream, err := ChatStream(context.Background(), provider, &CompletionRequest{})
	if err != nil {
		t.Fatalf("ChatStream() error = %v", err)
	}

	var order []StreamDeltaKind
	var thinkingText string
	for delta := range stream {
		order = append(order, delta.Kind)
		if delta.Kind == ThinkingTextDelta {
			thinkingText = delta.Thinking
		}
	}

	want := []StreamDeltaKind{ThinkingStartDelta, ThinkingTextDelta, ThinkingEndDelta, TextDelta, MessageStop}
	if len(order) != len(want) {
		t.Fatalf("got %d deltas, want %d: %v", len(order), len(want), order)
	}
	for i, k := range want {
		if order[i] != k {
			t.Errorf("delta[%d] = %q, want %q", i, order[i], k)
		}
	}
	if thinkingText != "considering options" {
		t.Errorf("thinking text = %q, want %q", thinkingText, "considering options")
	}
}

func TestChatStreamPropagatesError(t *testing.T) {
	wantErr := errors.New("upstream failed")
	provider := &deltaTestProvider{chunks: []CompletionChunk{
		{Error: wantErr},
	}}

	stream, err := ChatStream(context.Background(), provider, &CompletionRequest{})
	if err != nil {
		t.Fatalf("ChatStream() error = %v", err)
	}

	delta := <-stream
	if delta.Kind != MessageStop {
		t.Fatalf("Kind = %q, want %q", delta.Kind, MessageStop)
	}
	if delta.Err != wantErr {
		t.Fatalf("Err = %v, want %v", delta.Err, wantErr)
	}
}

func TestChatStreamRespectsContextCancellation(t *testing.T) {
	chunks := make([]CompletionChunk, 0, 1000)
	for i := 0; i < 1000; i++ {
		chunks = append(chunks, CompletionChunk{Text: "x"})
	}
	provider := &deltaTestProvider{chunks: chunks}

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := ChatStream(ctx, provider, &CompletionRequest{})
	if err != nil {
		t.Fatalf("ChatStream() error = %v", err)
	}

	<-stream
	cancel()

	// Draining should terminate promptly once the context is cancelled,
	// rather than blocking until all 1000 chunks are adapted.
	for range stream {
	}
}
