package agent

import (
	"time"

	agentcontext "github.com/Ryvos/ryvos-sub000/internal/agent/context"
	"github.com/Ryvos/ryvos-sub000/internal/checkpoint"
	"github.com/Ryvos/ryvos-sub000/internal/eventbus"
	"github.com/Ryvos/ryvos-sub000/internal/guardian"
	"github.com/Ryvos/ryvos-sub000/internal/journal"
	"github.com/Ryvos/ryvos-sub000/internal/observability"
	"github.com/Ryvos/ryvos-sub000/internal/sessionstore"
)

// noopTracer is what NewRuntime installs by default, so loop.go and
// tool_turn.go can call r.tracer.TraceXxx unconditionally instead of
// nil-checking on every turn and tool call.
func noopTracer() *observability.Tracer {
	t, _ := observability.NewTracer(observability.TraceConfig{})
	return t
}

// Options configures a Runtime. Fields with a documented default may be
// left zero; NewRuntime fills them in, mirroring the teacher's
// NewXxx(config) constructor convention of normalizing zero values rather
// than erroring on them.
type Options struct {
	MaxTurns                  int           // default 25
	MaxDuration               time.Duration // default 600s; a negative value disables the cap
	MaxContextTokens          int           // default 80000
	MaxToolOutputTokens       int           // default 4000
	ReflexionFailureThreshold int           // default 3
	ParallelTools             bool
	MaxToolConcurrency        int           // default 4, only relevant when ParallelTools
	PerToolTimeout            time.Duration // default 30s
	EnableSummarization       bool
	Model                     string
	SystemPrompt              string
}

func (o Options) withDefaults() Options {
	if o.MaxTurns <= 0 {
		o.MaxTurns = 25
	}
	if o.MaxDuration == 0 {
		o.MaxDuration = 600 * time.Second
	}
	if o.MaxContextTokens <= 0 {
		o.MaxContextTokens = 80_000
	}
	if o.MaxToolOutputTokens <= 0 {
		o.MaxToolOutputTokens = 4_000
	}
	if o.ReflexionFailureThreshold <= 0 {
		o.ReflexionFailureThreshold = 3
	}
	if o.MaxToolConcurrency <= 0 {
		o.MaxToolConcurrency = 4
	}
	if o.PerToolTimeout == 0 {
		o.PerToolTimeout = 30 * time.Second
	}
	if o.Model == "" {
		o.Model = "claude-sonnet-4-5"
	}
	return o
}

// Runtime drives the ReAct loop for one agent: it owns no per-run state
// itself (that lives in the session store, journal, and an optional
// checkpoint store), so a single Runtime can serve many concurrent Run
// calls across different sessions.
//
// Grounded on original_source/crates/ryvos-agent/src/agent_loop.rs's
// AgentRuntime and the teacher's internal/agent.Runtime composition of
// provider + registry + stores + bus.
type Runtime struct {
	provider LLMProvider
	gate     gate
	store    sessionstore.Store
	journal  journal.Journal
	bus      *eventbus.Bus
	log      *observability.Logger

	checkpoints checkpoint.Store
	guardian    *guardian.Guardian
	summarizer  agentcontext.Summarizer
	metrics     *Metrics
	tracer      *observability.Tracer

	opts Options
}

// NewRuntime builds a Runtime from its required collaborators. Optional
// collaborators (checkpoint store, guardian wiring, summarizer) are
// attached afterward via the With* methods.
func NewRuntime(provider LLMProvider, secGate gate, store sessionstore.Store, j journal.Journal, bus *eventbus.Bus, log *observability.Logger, opts Options) *Runtime {
	return &Runtime{
		provider: provider,
		gate:     secGate,
		store:    store,
		journal:  j,
		bus:      bus,
		log:      log,
		tracer:   noopTracer(),
		opts:     opts.withDefaults(),
	}
}

// WithCheckpoints attaches a checkpoint store; a nil store (the default)
// disables checkpointing entirely.
func (r *Runtime) WithCheckpoints(store checkpoint.Store) *Runtime {
	r.checkpoints = store
	return r
}

// WithGuardian attaches a watchdog. Every tool call and token delta the
// loop observes is fed to it, and GuardianActions it emits are checked
// after each turn. A nil Guardian (the default) disables watchdog
// integration entirely.
func (r *Runtime) WithGuardian(g *guardian.Guardian) *Runtime {
	r.guardian = g
	return r
}

// WithSummarizer enables phase-aware context summarization instead of pure
// truncation once the conversation exceeds MaxContextTokens. Without one,
// the loop falls back to context.PruneToBudget.
func (r *Runtime) WithSummarizer(s agentcontext.Summarizer) *Runtime {
	r.summarizer = s
	return r
}

// WithMetrics attaches turn/tool-duration histograms. Without one, the loop
// simply skips recording them.
func (r *Runtime) WithMetrics(m *Metrics) *Runtime {
	r.metrics = m
	return r
}

// WithTracer replaces the default no-op tracer with one that exports spans,
// built via observability.NewTracer.
func (r *Runtime) WithTracer(t *observability.Tracer) *Runtime {
	if t != nil {
		r.tracer = t
	}
	return r
}
