package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// SandboxDescriptor is an opaque handle to a tool's isolated execution
// environment (a Firecracker microVM, typically). The core never
// creates or tears down sandboxes itself; it only carries the
// descriptor through to tools that declare RequiresSandbox() so an
// external sandbox manager can wire one in.
type SandboxDescriptor struct {
	// ID identifies the running microVM, container, or equivalent.
	ID string
	// SocketPath is the Firecracker API socket for this sandbox, when
	// the descriptor was populated by a firecracker-go-sdk-backed manager.
	SocketPath string
}

// ToolContext carries per-call state a Tool may need beyond its raw
// JSON parameters: which session and workspace it is running for, and
// optional capabilities that most tools never touch.
type ToolContext struct {
	SessionID     string
	WorkingDir    string
	ConfigPath    string
	Sandbox       *SandboxDescriptor
	SpawnSubAgent func(ctx context.Context, prompt string) (string, error)
}

// ContextualTool is implemented by tools that need ToolContext. The
// registry calls ExecuteWithContext in preference to Execute when a
// tool implements this interface; tools that only need their raw
// parameters can ignore it entirely and implement Execute alone.
type ContextualTool interface {
	ExecuteWithContext(ctx context.Context, tc ToolContext, params json.RawMessage) (*ToolResult, error)
}

// ExecuteWithContext runs a tool by name, passing tc through when the
// tool implements ContextualTool, falling back to plain Execute
// otherwise.
func (r *ToolRegistry) ExecuteWithContext(ctx context.Context, tc ToolContext, name string, params json.RawMessage) (*ToolResult, error) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return &ToolResult{Content: "tool not found: " + name, IsError: true}, nil
	}

	if ct, ok := tool.(ContextualTool); ok {
		return ct.ExecuteWithContext(ctx, tc, params)
	}
	return tool.Execute(ctx, params)
}

// RegisterValidated compiles tool's JSON Schema before registering it,
// rejecting tools whose declared schema is not itself valid JSON
// Schema. This catches a malformed schema at startup instead of at the
// first (and every subsequent) call the model makes against it.
func (r *ToolRegistry) RegisterValidated(tool Tool) error {
	schema := tool.Schema()
	if len(schema) > 0 {
		if _, err := jsonschema.CompileString(tool.Name()+".schema.json", string(schema)); err != nil {
			return fmt.Errorf("tool %q: invalid input schema: %w", tool.Name(), err)
		}
	}
	r.Register(tool)
	return nil
}
