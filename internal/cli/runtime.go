package cli

import (
	"fmt"
	"log/slog"

	"github.com/CrewClaw/CrewClaw/internal/config"
	"github.com/CrewClaw/CrewClaw/internal/hooks"
	"github.com/CrewClaw/CrewClaw/internal/policy"
	"github.com/CrewClaw/CrewClaw/internal/provider"
	"github.com/CrewClaw/CrewClaw/internal/store"
	"github.com/CrewClaw/CrewClaw/internal/tools"
	"github.com/CrewClaw/CrewClaw/internal/trace"
)

// runtime bundles the components shared by the agent and team commands.
type runtime struct {
	cfg      *config.Config
	provider provider.LLMProvider
	registry *tools.Registry
	rules    []policy.Rule
	mode     policy.Mode
	hooks    *hooks.Runner
	store    *store.Service
	trace    *trace.Publisher
}

// buildRuntime assembles providers, tools, policy, and sinks from the
// loaded configuration.
func buildRuntime(cfg *config.Config, teamName string) (*runtime, error) {
	if cfg.Provider.APIKey == "" {
		return nil, fmt.Errorf("no API key configured (set CREWCLAW_PROVIDER_API_KEY or edit the config file)")
	}

	rt := &runtime{
		cfg:      cfg,
		provider: provider.NewOpenAIProvider(cfg.Provider.APIKey, cfg.Provider.BaseURL, cfg.Model.Name),
		registry: tools.NewRegistry(),
		hooks:    hooks.NewRunner(),
		mode:     policy.Mode(cfg.Policy.Mode),
	}
	if rt.mode == "" {
		rt.mode = policy.ModeDefault
	}
	for _, tool := range tools.DefaultTools() {
		rt.registry.Register(tool)
	}

	for _, raw := range cfg.Policy.Deny {
		rule, err := policy.ParseRule(policy.Deny, raw)
		if err != nil {
			return nil, fmt.Errorf("bad deny rule %q: %w", raw, err)
		}
		rt.rules = append(rt.rules, rule)
	}
	for _, raw := range cfg.Policy.Allow {
		rule, err := policy.ParseRule(policy.Allow, raw)
		if err != nil {
			return nil, fmt.Errorf("bad allow rule %q: %w", raw, err)
		}
		rt.rules = append(rt.rules, rule)
	}

	if cfg.Store.Enabled {
		svc, err := store.NewService(cfg.Store.DBPath)
		if err != nil {
			slog.Warn("store disabled", "error", err)
		} else {
			rt.store = svc
			rt.hooks.AddSink(svc)
		}
	}

	if cfg.Trace.Enabled {
		pub, err := trace.NewPublisher(cfg.Trace.Brokers, teamName)
		if err != nil {
			slog.Warn("trace mirror disabled", "error", err)
		} else {
			rt.trace = pub
			rt.hooks.AddSink(pub)
		}
	}

	return rt, nil
}

// close releases the runtime's store and trace resources.
func (rt *runtime) close() {
	if rt.store != nil {
		rt.store.Close()
	}
	if rt.trace != nil {
		rt.trace.Close()
	}
}
