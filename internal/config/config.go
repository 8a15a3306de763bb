// Package config loads the YAML configuration that wires the agent
// runtime: provider credentials and failover order, the security
// policy, session storage, workspace location, and logging.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/haasonsaas/nexus/pkg/models"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration document for the nexus CLI.
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Security  SecurityConfig  `yaml:"security"`
	Session   SessionConfig   `yaml:"session"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LLMConfig describes the providers available to the agent loop and the
// order in which the failover orchestrator should try them.
type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider"`
	Providers       map[string]ProviderConfig `yaml:"providers"`

	// FallbackChain lists provider IDs to try, in order, after
	// DefaultProvider. Providers absent from Providers are skipped.
	FallbackChain []string `yaml:"fallback_chain"`

	// Routing configures tag-based request routing across Providers.
	// When Rules is empty, DefaultProvider is used directly instead.
	Routing RoutingConfig `yaml:"routing"`
}

// RoutingConfig configures a routing.Router over the configured providers.
type RoutingConfig struct {
	Rules []RoutingRule `yaml:"rules"`
}

// RoutingRule picks a provider/model target when a request's content
// matches Patterns or the heuristic classifier assigns one of Tags.
type RoutingRule struct {
	Name     string   `yaml:"name"`
	Patterns []string `yaml:"patterns"`
	Tags     []string `yaml:"tags"`
	Provider string   `yaml:"provider"`
	Model    string   `yaml:"model"`
}

// ProviderConfig holds one provider's credentials and defaults.
type ProviderConfig struct {
	APIKey       string `yaml:"api_key"`
	DefaultModel string `yaml:"default_model"`
	BaseURL      string `yaml:"base_url"`
}

// SecurityConfig maps onto models.SecurityPolicy.
type SecurityConfig struct {
	NeverAsk            []string `yaml:"never_ask"`
	AlwaysAsk           []string `yaml:"always_ask"`
	AlwaysDeny          []string `yaml:"always_deny"`
	ApprovalTimeoutSecs int      `yaml:"approval_timeout_secs"`
}

// Policy converts the loaded SecurityConfig into a models.SecurityPolicy,
// filling the tier table with the package defaults.
func (s SecurityConfig) Policy() *models.SecurityPolicy {
	policy := models.DefaultSecurityPolicy()
	policy.NeverAsk = s.NeverAsk
	policy.AlwaysAsk = s.AlwaysAsk
	policy.AlwaysDeny = s.AlwaysDeny
	if s.ApprovalTimeoutSecs > 0 {
		policy.ApprovalTimeoutSecs = s.ApprovalTimeoutSecs
	}
	return policy
}

// SessionConfig selects and configures the session store backend.
type SessionConfig struct {
	// Store is "memory" or "cockroach". Default: "memory".
	Store string `yaml:"store"`
	// DSN is the Cockroach/Postgres connection string, required when
	// Store is "cockroach".
	DSN string `yaml:"dsn"`
}

// WorkspaceConfig points the context builder at the files it assembles
// into the system prompt for a turn.
type WorkspaceConfig struct {
	Path string `yaml:"path"`
	// SystemPrompt overrides the default prompt. A "file:" prefix is
	// read relative to Path; anything else is used literally.
	SystemPrompt string `yaml:"system_prompt"`
}

// LoggingConfig configures internal/observability's structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads, expands, and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("failed to parse config: expected single document")
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides lets provider API keys be supplied without editing
// the config file, matching the common *_API_KEY convention.
func applyEnvOverrides(cfg *Config) {
	if cfg.LLM.Providers == nil {
		cfg.LLM.Providers = map[string]ProviderConfig{}
	}
	for name, env := range map[string]string{
		"anthropic":  "ANTHROPIC_API_KEY",
		"openai":     "OPENAI_API_KEY",
		"google":     "GOOGLE_API_KEY",
		"openrouter": "OPENROUTER_API_KEY",
	} {
		key := os.Getenv(env)
		if key == "" {
			continue
		}
		p := cfg.LLM.Providers[name]
		if p.APIKey == "" {
			p.APIKey = key
			cfg.LLM.Providers[name] = p
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.LLM.DefaultProvider == "" {
		cfg.LLM.DefaultProvider = "anthropic"
	}
	if cfg.Session.Store == "" {
		cfg.Session.Store = "memory"
	}
	if cfg.Workspace.Path == "" {
		cfg.Workspace.Path = "."
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Security.ApprovalTimeoutSecs <= 0 {
		cfg.Security.ApprovalTimeoutSecs = 300
	}
}

func validateConfig(cfg *Config) error {
	if _, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]; !ok {
		return fmt.Errorf("config: default_provider %q has no matching entry under llm.providers", cfg.LLM.DefaultProvider)
	}
	switch cfg.Session.Store {
	case "memory":
	case "cockroach":
		if cfg.Session.DSN == "" {
			return fmt.Errorf("config: session.store is %q but session.dsn is empty", cfg.Session.Store)
		}
	default:
		return fmt.Errorf("config: session.store must be \"memory\" or \"cockroach\", got %q", cfg.Session.Store)
	}
	return nil
}
