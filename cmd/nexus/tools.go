package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/haasonsaas/nexus/internal/agent"
	"github.com/haasonsaas/nexus/pkg/models"
)

// builtinTools returns the small illustrative tool set registered against
// every session: a read-only file reader (T0, never asks) and a shell
// executor (T4, always denied unless the operator's security policy
// overrides it explicitly).
func builtinTools() []agent.Tool {
	return []agent.Tool{
		&readFileTool{},
		&shellTool{},
	}
}

type readFileTool struct{}

func (readFileTool) Name() string        { return "read_file" }
func (readFileTool) Description() string { return "Read the contents of a file relative to the workspace." }
func (readFileTool) Tier() models.SecurityTier { return models.TierReadOnly }

func (readFileTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "Path to the file to read"}
		},
		"required": ["path"]
	}`)
}

func (readFileTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return &agent.ToolResult{Content: fmt.Sprintf("invalid params: %v", err), IsError: true}, nil
	}
	if filepath.IsAbs(input.Path) {
		return &agent.ToolResult{Content: "path must be relative to the workspace", IsError: true}, nil
	}
	data, err := os.ReadFile(input.Path)
	if err != nil {
		return &agent.ToolResult{Content: err.Error(), IsError: true}, nil
	}
	return &agent.ToolResult{Content: string(data)}, nil
}

// shellTool runs an arbitrary shell command. Its tier (T4/Dangerous) means
// the Security Gate denies it outright unless the operator's policy
// explicitly carves out an exception via AlwaysAsk/NeverAsk.
type shellTool struct{}

func (shellTool) Name() string              { return "shell" }
func (shellTool) Description() string       { return "Run a shell command. Destructive; gated by policy." }
func (shellTool) Tier() models.SecurityTier { return models.TierDangerous }

func (shellTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"command": {"type": "string", "description": "Shell command to execute"}
		},
		"required": ["command"]
	}`)
}

func (shellTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return &agent.ToolResult{Content: fmt.Sprintf("invalid params: %v", err), IsError: true}, nil
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", input.Command)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return &agent.ToolResult{Content: fmt.Sprintf("%s\n%v", out, err), IsError: true}, nil
	}
	return &agent.ToolResult{Content: string(out)}, nil
}
