package main

import (
	"fmt"
	"time"

	"github.com/haasonsaas/nexus/internal/agent"
	"github.com/haasonsaas/nexus/internal/agent/providers"
	"github.com/haasonsaas/nexus/internal/agent/routing"
	"github.com/haasonsaas/nexus/internal/config"
	"github.com/haasonsaas/nexus/internal/events"
	"github.com/haasonsaas/nexus/internal/observability"
	"github.com/haasonsaas/nexus/internal/sessions"
)

// runtime bundles the wired components a chat session drives. Every
// field is a real, live instance of its core component - nothing here
// is a stub swapped in at test time.
type runtime struct {
	cfg      *config.Config
	provider agent.LLMProvider
	registry *agent.ToolRegistry
	bus      *events.Bus
	broker   *agent.ApprovalBroker
	gate     *agent.SecurityGate
	sessions sessions.Store
	loop     *agent.AgenticLoop
	metrics  *observability.Metrics
	logger   *observability.Logger
}

// buildRuntime constructs the full eight-component stack (events bus,
// approval broker, security gate, failover-wrapped streaming provider,
// tool registry, context builder inputs, session store, agentic loop)
// directly - the loop that actually runs a turn, not a Runtime-style
// wrapper around it.
func buildRuntime(cfg *config.Config) (*runtime, error) {
	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	metrics := observability.NewMetrics()

	provider, err := buildProviderChain(cfg)
	if err != nil {
		return nil, fmt.Errorf("build provider chain: %w", err)
	}

	registry := agent.NewToolRegistry()
	for _, t := range builtinTools() {
		registry.Register(t)
	}

	bus := events.New(256)
	broker := agent.NewApprovalBroker(bus)
	policy := cfg.Security.Policy()
	gate := agent.NewSecurityGate(policy, broker, registry)

	store, err := buildSessionStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("build session store: %w", err)
	}

	loopConfig := agent.DefaultLoopConfig()
	loopConfig.SecurityGate = gate

	loop := agent.NewAgenticLoop(provider, registry, store, loopConfig)
	if model := cfg.LLM.Providers[cfg.LLM.DefaultProvider].DefaultModel; model != "" {
		loop.SetDefaultModel(model)
	}
	loop.SetDefaultSystem(resolveSystemPrompt(cfg))

	return &runtime{
		cfg:      cfg,
		provider: provider,
		registry: registry,
		bus:      bus,
		broker:   broker,
		gate:     gate,
		sessions: store,
		loop:     loop,
		metrics:  metrics,
		logger:   logger,
	}, nil
}

// buildProviderChain constructs every provider the config references (the
// default, the fallback chain, and any routing rule targets), then picks
// the primary: a tag-based routing.Router when routing rules are
// configured, the default provider directly otherwise. The primary and
// every fallback-chain provider are wired into a FailoverOrchestrator, so
// a routed or direct pick still fails over on a retryable provider error.
func buildProviderChain(cfg *config.Config) (agent.LLMProvider, error) {
	required := map[string]bool{cfg.LLM.DefaultProvider: true}
	for _, name := range cfg.LLM.FallbackChain {
		required[name] = true
	}
	for _, rule := range cfg.LLM.Routing.Rules {
		required[rule.Provider] = true
	}

	named := make(map[string]agent.LLMProvider, len(required))
	for name := range required {
		providerCfg, ok := cfg.LLM.Providers[name]
		if !ok {
			continue
		}
		p, err := newNamedProvider(name, providerCfg)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", name, err)
		}
		named[name] = p
	}

	primary, ok := named[cfg.LLM.DefaultProvider]
	if !ok {
		return nil, fmt.Errorf("default provider %q could not be constructed", cfg.LLM.DefaultProvider)
	}

	if len(cfg.LLM.Routing.Rules) > 0 {
		primary = routing.NewRouter(routing.Config{
			DefaultProvider: cfg.LLM.DefaultProvider,
			Rules:           convertRoutingRules(cfg.LLM.Routing.Rules),
		}, named)
	}

	orchestrator := agent.NewFailoverOrchestrator(primary, agent.DefaultFailoverConfig())
	for _, name := range cfg.LLM.FallbackChain {
		if p, ok := named[name]; ok {
			orchestrator.AddProvider(p)
		}
	}
	return orchestrator, nil
}

func convertRoutingRules(rules []config.RoutingRule) []routing.Rule {
	out := make([]routing.Rule, len(rules))
	for i, r := range rules {
		out[i] = routing.Rule{
			Name:   r.Name,
			Match:  routing.Match{Patterns: r.Patterns, Tags: r.Tags},
			Target: routing.Target{Provider: r.Provider, Model: r.Model},
		}
	}
	return out
}

func newNamedProvider(name string, cfg config.ProviderConfig) (agent.LLMProvider, error) {
	switch name {
	case "anthropic":
		return providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.DefaultModel,
			MaxRetries:   3,
			RetryDelay:   time.Second,
		})
	case "openai":
		return providers.NewOpenAIProvider(cfg.APIKey), nil
	case "google":
		return providers.NewGoogleProvider(providers.GoogleConfig{
			APIKey:     cfg.APIKey,
			MaxRetries: 3,
			RetryDelay: time.Second,
		})
	case "openrouter":
		return providers.NewOpenRouterProvider(providers.OpenRouterConfig{
			APIKey:       cfg.APIKey,
			DefaultModel: cfg.DefaultModel,
			AppName:      "nexus",
		})
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

func buildSessionStore(cfg *config.Config) (sessions.Store, error) {
	switch cfg.Session.Store {
	case "cockroach":
		return sessions.NewCockroachStoreFromDSN(cfg.Session.DSN, nil)
	default:
		return sessions.NewMemoryStore(), nil
	}
}

func resolveSystemPrompt(cfg *config.Config) string {
	return agent.ResolveSystemPrompt(cfg.Workspace.SystemPrompt, cfg.Workspace.Path)
}
