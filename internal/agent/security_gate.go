package agent

import (
	"context"
	"log/slog"

	"github.com/haasonsaas/nexus/pkg/models"
)

// TierAware is implemented by tools that know their own security tier.
// Tools that don't implement it are treated as TierWorkspaceWrite, the
// safest tier that still assumes the tool mutates local state.
type TierAware interface {
	Tier() models.SecurityTier
}

// GateOutcome is the final, binary result of a security gate evaluation.
// There is no third "pending" state visible to callers: Evaluate always
// blocks until the call is resolved one way or the other.
type GateOutcome string

const (
	GateAllowed GateOutcome = "allowed"
	GateDenied  GateOutcome = "denied"
)

// GateResult is the outcome of evaluating one tool call against a
// SecurityPolicy, including enough detail to synthesize a ToolResult
// when the call is denied.
type GateResult struct {
	Outcome GateOutcome
	Reason  string
	Tier    models.SecurityTier
}

// SecurityGate is the single choke point every tool call passes through
// before execution. It computes a decision for a tool call by an ordered
// procedure over the policy's name lists and tier table, asking a human
// via the approval broker when the policy says to, and always resolves
// to an explicit allow or deny so the tool-call-closure invariant holds:
// no tool call is ever silently dropped.
type SecurityGate struct {
	policy   *models.SecurityPolicy
	broker   *ApprovalBroker
	registry *ToolRegistry
}

// NewSecurityGate builds a gate over policy, resolving "ask" outcomes
// through broker and tiers through registry. A nil policy falls back to
// models.DefaultSecurityPolicy.
func NewSecurityGate(policy *models.SecurityPolicy, broker *ApprovalBroker, registry *ToolRegistry) *SecurityGate {
	if policy == nil {
		policy = models.DefaultSecurityPolicy()
	}
	return &SecurityGate{policy: policy, broker: broker, registry: registry}
}

// SetPolicy atomically replaces the policy the gate consults. Intended
// for hot-reload of the security policy file.
func (g *SecurityGate) SetPolicy(policy *models.SecurityPolicy) {
	if policy == nil {
		return
	}
	g.policy = policy
}

// tierOf resolves a tool's tier from the registry, defaulting to
// TierWorkspaceWrite when the tool is unregistered or does not declare
// a tier of its own.
func (g *SecurityGate) tierOf(toolName string) models.SecurityTier {
	if g.registry == nil {
		return models.TierWorkspaceWrite
	}
	tool, ok := g.registry.Get(toolName)
	if !ok {
		return models.TierWorkspaceWrite
	}
	if aware, ok := tool.(TierAware); ok {
		return aware.Tier()
	}
	return models.TierWorkspaceWrite
}

// Evaluate decides whether toolCall may execute. The ordered procedure
// is: always_deny, then never_ask, then always_ask, then the tier
// table. always_deny wins over every other list, including never_ask,
// so a name that is both never-ask and always-deny is denied.
//
// An "ask" decision blocks on the approval broker for up to the
// policy's ApprovalTimeoutSecs (or the broker's own 300s default). A
// broker timeout or ctx cancellation resolves to GateDenied, never to
// a hang or a silently dropped call.
func (g *SecurityGate) Evaluate(ctx context.Context, sessionID string, toolCall models.ToolCall) GateResult {
	tier := g.tierOf(toolCall.Name)

	if matchesPattern(g.policy.AlwaysDeny, toolCall.Name) {
		return GateResult{Outcome: GateDenied, Reason: "tool is always denied", Tier: tier}
	}
	if matchesPattern(g.policy.NeverAsk, toolCall.Name) {
		return GateResult{Outcome: GateAllowed, Reason: "tool never requires approval", Tier: tier}
	}
	if matchesPattern(g.policy.AlwaysAsk, toolCall.Name) {
		return g.ask(ctx, sessionID, toolCall, tier, "tool always requires approval")
	}

	decision := g.policy.TierPolicy[tier]
	if decision == "" {
		decision = models.DefaultTierPolicy()[tier]
	}

	switch decision {
	case models.PolicyDeny:
		return GateResult{Outcome: GateDenied, Reason: "tier " + tier.String() + " is denied by policy", Tier: tier}
	case models.PolicyAsk:
		return g.ask(ctx, sessionID, toolCall, tier, "tier "+tier.String()+" requires approval")
	default:
		return GateResult{Outcome: GateAllowed, Reason: "tier " + tier.String() + " is allowed by policy", Tier: tier}
	}
}

func (g *SecurityGate) ask(ctx context.Context, sessionID string, toolCall models.ToolCall, tier models.SecurityTier, reason string) GateResult {
	if g.broker == nil {
		slog.Warn("security gate: ask decision with no approval broker wired, denying", "tool", toolCall.Name)
		return GateResult{Outcome: GateDenied, Reason: "no approval broker available", Tier: tier}
	}

	req := models.ApprovalRequest{
		ToolName:     toolCall.Name,
		Tier:         tier,
		InputSummary: models.SummarizeInput(string(toolCall.Input)),
		SessionID:    sessionID,
	}

	decision, err := g.broker.Request(ctx, req, g.policy.ApprovalTimeoutSecs)
	if err != nil || !decision.Approved() {
		if decision.Reason != "" {
			reason = decision.Reason
		} else if err != nil {
			reason = err.Error()
		}
		return GateResult{Outcome: GateDenied, Reason: reason, Tier: tier}
	}
	return GateResult{Outcome: GateAllowed, Reason: "approved by operator", Tier: tier}
}
