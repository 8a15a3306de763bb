package agent

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

// DefaultSystemPrompt is used when no override is configured and no
// workspace-local prompt file is present.
const DefaultSystemPrompt = `You are Nexus, a fast and capable AI agent. You work directly in the user's workspace, using the tools available to you to read, write, and reason about their code and data. Be direct, be correct, and prefer taking action over asking unnecessary questions.`

// contextFiles lists the workspace-local files build_default_context
// looks for, in the order they are assembled into the final prompt.
// AGENTS.toml is parsed for structured config; the rest are loaded
// verbatim as markdown sections.
var contextFiles = []struct {
	name  string
	label string
}{
	{"SOUL.md", "Identity"},
	{"TOOLS.md", "Tools"},
	{"USER.md", "User"},
	{"IDENTITY.md", "Identity Details"},
	{"BOOT.md", "Boot Sequence"},
	{"HEARTBEAT.md", "Heartbeat"},
}

// ContextBuilder assembles the system-prompt ChatMessage for a turn out
// of a base prompt, optional file-backed sections, ad hoc instructions,
// and MCP resource summaries. Parts are joined with a horizontal rule so
// the assembled prompt reads as a sequence of clearly separated
// sections rather than one run-on block.
type ContextBuilder struct {
	parts []string
}

// NewContextBuilder returns an empty builder.
func NewContextBuilder() *ContextBuilder {
	return &ContextBuilder{}
}

// WithBasePrompt appends the base system prompt as the first (or next) part.
func (b *ContextBuilder) WithBasePrompt(prompt string) *ContextBuilder {
	if strings.TrimSpace(prompt) != "" {
		b.parts = append(b.parts, prompt)
	}
	return b
}

// WithFile loads path and appends its content under a markdown H1 labeled
// label. A missing or unreadable file is silently omitted: workspaces are
// not required to carry every optional context file, and a partial
// context is preferable to failing the turn outright.
func (b *ContextBuilder) WithFile(path, label string) *ContextBuilder {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Debug("context builder: skipping unreadable file", "path", path, "err", err)
		return b
	}
	content := strings.TrimSpace(string(data))
	if content == "" {
		return b
	}
	b.parts = append(b.parts, "# "+label+"\n\n"+content)
	return b
}

// WithInstructions appends free-form instructions (e.g. per-session
// steering text) as their own part.
func (b *ContextBuilder) WithInstructions(instructions string) *ContextBuilder {
	if strings.TrimSpace(instructions) != "" {
		b.parts = append(b.parts, instructions)
	}
	return b
}

// MCPResource names a single piece of context contributed by an MCP
// server: a resource URI, a human label, and its content.
type MCPResource struct {
	URI     string
	Label   string
	Content string
}

// WithMCPResources appends one part per resource, each labeled with its
// URI so the model can distinguish where a fact came from.
func (b *ContextBuilder) WithMCPResources(resources []MCPResource) *ContextBuilder {
	for _, r := range resources {
		if strings.TrimSpace(r.Content) == "" {
			continue
		}
		b.parts = append(b.parts, "# "+r.Label+" ("+r.URI+")\n\n"+r.Content)
	}
	return b
}

// Build joins all parts with a horizontal rule and returns the system
// message ready to prepend to a turn's message history.
func (b *ContextBuilder) Build() models.Message {
	return models.Message{
		Role:      models.RoleSystem,
		Content:   strings.Join(b.parts, "\n\n---\n\n"),
		CreatedAt: time.Now(),
	}
}

// ResolveSystemPrompt resolves a configured system prompt spec. A spec
// beginning with "file:" is read relative to workspace; anything else is
// used as a literal prompt. An empty spec resolves to DefaultSystemPrompt.
func ResolveSystemPrompt(spec, workspace string) string {
	if strings.TrimSpace(spec) == "" {
		return DefaultSystemPrompt
	}
	if rest, ok := strings.CutPrefix(spec, "file:"); ok {
		path := rest
		if !filepath.IsAbs(path) {
			path = filepath.Join(workspace, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("context builder: failed to read system prompt file, falling back to default", "path", path, "err", err)
			return DefaultSystemPrompt
		}
		return strings.TrimSpace(string(data))
	}
	return spec
}

// BuildDefaultContext assembles the standard workspace context: the
// resolved system prompt followed by whichever of SOUL.md, TOOLS.md,
// USER.md, IDENTITY.md, BOOT.md, and HEARTBEAT.md exist under workspace.
// systemPromptOverride, if non-empty, is passed through ResolveSystemPrompt
// in place of any configured default.
func BuildDefaultContext(workspace, systemPromptOverride string) models.Message {
	builder := NewContextBuilder().WithBasePrompt(ResolveSystemPrompt(systemPromptOverride, workspace))
	for _, f := range contextFiles {
		builder = builder.WithFile(filepath.Join(workspace, f.name), f.label)
	}
	return builder.Build()
}
