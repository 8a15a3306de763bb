package agent

import (
	"context"
	"encoding/json"
	"testing"
)

type contextualTestTool struct {
	lastCtx ToolContext
}

func (t *contextualTestTool) Name() string            { return "ctx_tool" }
func (t *contextualTestTool) Description() string     { return "records the ToolContext it was called with" }
func (t *contextualTestTool) Schema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (t *contextualTestTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	return &ToolResult{Content: "no context"}, nil
}
func (t *contextualTestTool) ExecuteWithContext(ctx context.Context, tc ToolContext, params json.RawMessage) (*ToolResult, error) {
	t.lastCtx = tc
	return &ToolResult{Content: "with context: " + tc.SessionID}, nil
}

func TestExecuteWithContextPrefersContextualTool(t *testing.T) {
	registry := NewToolRegistry()
	tool := &contextualTestTool{}
	registry.Register(tool)

	result, err := registry.ExecuteWithContext(context.Background(), ToolContext{SessionID: "sess-1"}, "ctx_tool", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content != "with context: sess-1" {
		t.Fatalf("expected ExecuteWithContext to run, got %q", result.Content)
	}
}

func TestExecuteWithContextFallsBackToExecute(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(&tieredTestTool{name: "plain_tool", tier: 0})

	result, err := registry.ExecuteWithContext(context.Background(), ToolContext{}, "plain_tool", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content != "ok" {
		t.Fatalf("expected fallback to Execute, got %q", result.Content)
	}
}

func TestExecuteWithContextUnknownTool(t *testing.T) {
	registry := NewToolRegistry()
	result, err := registry.ExecuteWithContext(context.Background(), ToolContext{}, "missing", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error result for an unknown tool")
	}
}

func TestRegisterValidatedRejectsBadSchema(t *testing.T) {
	registry := NewToolRegistry()
	tool := &contextualTestTool{}
	// Valid schema should register cleanly.
	if err := registry.RegisterValidated(tool); err != nil {
		t.Fatalf("unexpected error registering valid schema: %v", err)
	}

	bad := &schemaTestTool{schema: json.RawMessage(`{"type": 123}`)}
	if err := registry.RegisterValidated(bad); err == nil {
		t.Fatal("expected an error for an invalid schema")
	}
	if _, ok := registry.Get(bad.Name()); ok {
		t.Fatal("expected a tool with an invalid schema not to be registered")
	}
}

type schemaTestTool struct {
	schema json.RawMessage
}

func (t *schemaTestTool) Name() string           { return "bad_tool" }
func (t *schemaTestTool) Description() string    { return "" }
func (t *schemaTestTool) Schema() json.RawMessage { return t.schema }
func (t *schemaTestTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	return nil, nil
}
