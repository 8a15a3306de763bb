// Package main provides the CLI entry point for the Nexus agent runtime.
//
// Nexus drives a tiered-approval agentic loop against one or more LLM
// providers (Anthropic, OpenAI, Google, Bedrock, OpenRouter, Azure,
// Ollama, Copilot) with tool execution gated by a Security Gate and an
// out-of-band Approval Broker.
//
// # Basic Usage
//
// Start an interactive session:
//
//	nexus chat --config nexus.yaml
//
// # Environment Variables
//
//   - NEXUS_CONFIG: Path to configuration file (default: nexus.yaml)
//   - ANTHROPIC_API_KEY, OPENAI_API_KEY, GOOGLE_API_KEY, OPENROUTER_API_KEY
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information - populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nexus",
		Short: "Nexus - multi-provider agentic runtime",
		Long: `Nexus drives a tiered-approval agentic loop against one or more LLM
providers with gated, auditable tool execution.

Documentation: https://github.com/haasonsaas/nexus`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildChatCmd(),
	)

	return rootCmd
}

func resolveConfigPath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv("NEXUS_CONFIG"); env != "" {
		return env
	}
	return "nexus.yaml"
}
