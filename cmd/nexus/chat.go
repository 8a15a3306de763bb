package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/haasonsaas/nexus/internal/agent"
	"github.com/haasonsaas/nexus/internal/agent/tape"
	"github.com/haasonsaas/nexus/internal/config"
	"github.com/haasonsaas/nexus/pkg/models"
	"github.com/spf13/cobra"
)

var (
	chatConfigPath string
	chatRecordPath string
)

func buildChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session against the agentic loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath(chatConfigPath))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			rt, err := buildRuntime(cfg)
			if err != nil {
				return fmt.Errorf("build runtime: %w", err)
			}

			var recorder *tape.Recorder
			if chatRecordPath != "" {
				recorder = tape.NewRecorder(rt.provider).WithSystemPrompt(resolveSystemPrompt(cfg))
				loopConfig := agent.DefaultLoopConfig()
				loopConfig.SecurityGate = rt.gate
				rt.loop = agent.NewAgenticLoop(recorder, rt.registry, rt.sessions, loopConfig)
			}

			if err := runChat(cmd.Context(), rt, os.Stdin, os.Stdout); err != nil {
				return err
			}
			if recorder != nil {
				return writeTape(recorder, chatRecordPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&chatConfigPath, "config", "", "path to nexus.yaml (default: $NEXUS_CONFIG or ./nexus.yaml)")
	cmd.Flags().StringVar(&chatRecordPath, "record", "", "record the session's provider turns to this file as a replayable tape")
	return cmd
}

// runChat drives one interactive REPL: each line of in becomes a user
// message fed to the agentic loop, with tool output and approval
// prompts interleaved on out. A background goroutine watches the event
// bus for approval.requested events and resolves them against the same
// scanner, so a tiered tool call pauses the conversation for an
// operator decision exactly where the Security Gate requires one.
func runChat(ctx context.Context, rt *runtime, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)

	sessionManager := agent.NewSessionManager()
	const agentID = "nexus"
	key := sessionManager.GetOrCreate("cli:local", "cli")
	session, err := rt.sessions.GetOrCreate(ctx, key, agentID, models.ChannelCLI, "local")
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	go watchApprovals(rt, scanner, out)

	fmt.Fprintln(out, "nexus chat - type a message, Ctrl-D to exit")
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		msg := &models.Message{
			Role:    models.RoleUser,
			Content: text,
			Channel: models.ChannelCLI,
		}

		chunks, err := rt.loop.Run(ctx, session, msg)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		for chunk := range chunks {
			printChunk(chunk, out)
		}
	}
}

func printChunk(chunk *agent.ResponseChunk, out io.Writer) {
	switch {
	case chunk.Error != nil:
		fmt.Fprintf(out, "[error] %s\n", chunk.Error.Message)
	case chunk.Text != "":
		fmt.Fprint(out, chunk.Text)
	case chunk.ToolResult != nil:
		fmt.Fprintf(out, "\n[tool result] %s\n", chunk.ToolResult.Content)
	}
}

// watchApprovals subscribes to the event bus and, for every pending
// approval request, prompts the operator on out and reads a y/n
// response from scanner before resolving it through the broker. It runs
// for the lifetime of the process.
func watchApprovals(rt *runtime, scanner *bufio.Scanner, out io.Writer) {
	sub := rt.bus.Subscribe()
	defer sub.Close()

	for event := range sub.Recv() {
		if event.Type != models.AgentEventApprovalRequested || event.Approval == nil || event.Approval.Request == nil {
			continue
		}
		req := event.Approval.Request
		fmt.Fprintf(out, "\n[approval required] tool=%s tier=%s input=%s\napprove? (y/n): ",
			req.ToolName, req.Tier, req.InputSummary)

		approved := false
		if scanner.Scan() {
			approved = strings.EqualFold(strings.TrimSpace(scanner.Text()), "y")
		}

		decision := models.ApprovalDecision{Kind: models.ApprovalDenied}
		if approved {
			decision = models.ApprovalDecision{Kind: models.ApprovalApproved}
		}
		rt.broker.Respond(req.ID, decision)
	}
}

// writeTape marshals the recorded session and writes it to path, for
// later replay through tape.NewReplayer in tests or debugging sessions.
func writeTape(recorder *tape.Recorder, path string) error {
	data, err := recorder.Tape().Marshal()
	if err != nil {
		return fmt.Errorf("marshal tape: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write tape: %w", err)
	}
	return nil
}
