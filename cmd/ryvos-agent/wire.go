package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Ryvos/ryvos-sub000/internal/agent"
	"github.com/Ryvos/ryvos-sub000/internal/agent/providers"
	"github.com/Ryvos/ryvos-sub000/internal/approval"
	"github.com/Ryvos/ryvos-sub000/internal/checkpoint"
	"github.com/Ryvos/ryvos-sub000/internal/config"
	"github.com/Ryvos/ryvos-sub000/internal/eventbus"
	"github.com/Ryvos/ryvos-sub000/internal/guardian"
	"github.com/Ryvos/ryvos-sub000/internal/journal"
	"github.com/Ryvos/ryvos-sub000/internal/observability"
	"github.com/Ryvos/ryvos-sub000/internal/runlog"
	"github.com/Ryvos/ryvos-sub000/internal/security"
	"github.com/Ryvos/ryvos-sub000/internal/sessionstore"
	"github.com/Ryvos/ryvos-sub000/internal/tools"
	"github.com/Ryvos/ryvos-sub000/internal/toolregistry"
)

// runOptions collects the flags every subcommand needs to wire a Runtime,
// kept as one struct so buildRunCmd and buildChatCmd share the exact same
// wiring instead of drifting apart.
type runOptions struct {
	configPath string
	workspace  string
	useMock    bool
	apiKey     string
	runlogDir  string
}

// deps is everything a subcommand needs once wiring is complete.
type deps struct {
	runtime *agent.Runtime
	bus     *eventbus.Bus
	broker  *approval.Broker
	log     *observability.Logger
}

// wireDeps builds the full collaborator graph for one CLI invocation,
// following the teacher's pattern of a single per-command setup function
// (see loadMCPManager in the teacher's cmd/nexus) rather than a global
// container. The returned cleanup func must be deferred by the caller even
// on error, since some collaborators (checkpoint DB, runlog files) may
// have opened successfully before a later step failed.
func wireDeps(opts runOptions) (*deps, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}

	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, cleanup, fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	log := observability.NewLogger(observability.LogConfig{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.AddSource,
	})

	bus := eventbus.New()
	store := sessionstore.NewInMemory()
	journ := journal.NewInMemory()
	broker := approval.New()

	registry := toolregistry.New()
	if err := registry.Register(tools.NewShell(30 * time.Second)); err != nil {
		return nil, cleanup, fmt.Errorf("registering shell tool: %w", err)
	}
	if err := registry.Register(tools.NewReadFile(opts.workspace)); err != nil {
		return nil, cleanup, fmt.Errorf("registering read_file tool: %w", err)
	}

	policy, err := cfg.SecurityPolicy()
	if err != nil {
		return nil, cleanup, fmt.Errorf("building security policy: %w", err)
	}
	gate := security.NewGate(registry, broker, bus, policy, log)
	if cfg.Security.ApprovalTimeout > 0 {
		gate.SetApprovalTimeout(cfg.Security.ApprovalTimeout)
	}

	provider, err := buildProvider(opts)
	if err != nil {
		return nil, cleanup, err
	}

	runtimeOpts := agent.Options{
		MaxTurns:                  cfg.Agent.MaxTurns,
		MaxDuration:               cfg.Agent.MaxDuration,
		MaxContextTokens:          cfg.Agent.MaxContextTokens,
		MaxToolOutputTokens:       cfg.Agent.MaxToolOutputTokens,
		ReflexionFailureThreshold: cfg.Agent.ReflexionFailureThreshold,
		ParallelTools:             cfg.Agent.ParallelTools,
		EnableSummarization:       cfg.Agent.EnableSummarization,
		Model:                     cfg.Agent.Model,
		SystemPrompt:              cfg.Agent.SystemPrompt,
	}
	rt := agent.NewRuntime(provider, gate, store, journ, bus, log, runtimeOpts)
	rt = rt.WithMetrics(agent.NewMetrics(prometheus.NewRegistry()))

	tracer, shutdownTracer := observability.NewTracer(observability.TraceConfig{
		ServiceName: "ryvos-agent",
		Endpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	})
	closers = append(closers, func() error { return shutdownTracer(context.Background()) })
	rt = rt.WithTracer(tracer)

	if cfg.Guardian.Enabled {
		metrics := guardian.NewMetrics(prometheus.NewRegistry())
		g := guardian.New(guardian.Config{
			DoomLoopThreshold: cfg.Guardian.DoomLoopThreshold,
			StallTimeout:      cfg.Guardian.StallTimeout,
			TokenBudget:       cfg.Guardian.TokenBudget,
			TokenWarnPct:      cfg.Guardian.TokenWarnPct,
		}, bus, metrics, log)
		rt = rt.WithGuardian(g)
	}

	if cfg.Checkpoint.Enabled {
		cp, err := checkpoint.OpenSQLite(cfg.Checkpoint.DSN)
		if err != nil {
			return nil, cleanup, fmt.Errorf("opening checkpoint store: %w", err)
		}
		closers = append(closers, cp.Close)
		rt = rt.WithCheckpoints(cp)
	}

	if opts.runlogDir != "" {
		rl := runlog.Open(opts.runlogDir, bus.Subscribe())
		closers = append(closers, rl.Close)
	}

	return &deps{runtime: rt, bus: bus, broker: broker, log: log}, cleanup, nil
}

func buildProvider(opts runOptions) (agent.LLMProvider, error) {
	if opts.useMock {
		return providers.NewMockProvider(providers.TextTurn("(mock) hello from ryvos-agent")), nil
	}
	apiKey := opts.apiKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("an Anthropic API key is required; pass --api-key, set ANTHROPIC_API_KEY, or run with --mock")
	}
	return providers.NewAnthropicProvider(providers.AnthropicConfig{APIKey: apiKey})
}
