// Package guardian implements the watchdog (component C7): doom-loop
// detection over recent tool-call fingerprints, stall detection via a
// timed wakeup racing event receipt, and token-budget soft-warn/hard-stop.
// It reaches the runtime only through a one-way GuardianAction channel; a
// hard stop is a GuardianCancel action on that channel. It never calls back
// into the runtime or the agent package, avoiding an import cycle.
//
// Grounded 1:1 on original_source/crates/ryvos-agent/src/guardian.rs.
package guardian

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/Ryvos/ryvos-sub000/internal/eventbus"
	"github.com/Ryvos/ryvos-sub000/internal/observability"
	"github.com/Ryvos/ryvos-sub000/pkg/models"
)

// Config mirrors original_source's GuardianConfig defaults.
type Config struct {
	DoomLoopThreshold int           // consecutive identical fingerprints before firing
	StallTimeout      time.Duration // time without any event before firing a stall warning
	TokenBudget       int           // 0 disables the budget check
	TokenWarnPct      int           // percent of budget that triggers a soft warning
	HintRateLimit     rate.Limit    // max hint events/sec published to the bus
}

// DefaultConfig matches §6's configuration defaults.
func DefaultConfig() Config {
	return Config{
		DoomLoopThreshold: 3,
		StallTimeout:      120 * time.Second,
		TokenBudget:       0,
		TokenWarnPct:      80,
		HintRateLimit:     1,
	}
}

// Metrics are the prometheus counters the guardian exposes.
type Metrics struct {
	DoomLoopsDetected prometheus.Counter
	StallsDetected    prometheus.Counter
	BudgetWarnings    prometheus.Counter
	BudgetAborts      prometheus.Counter
}

// NewMetrics registers and returns the guardian's counters under reg. Pass
// a fresh prometheus.Registry in tests to avoid collisions with the
// default global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DoomLoopsDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ryvos_guardian_doom_loops_total",
			Help: "Number of doom-loop conditions detected.",
		}),
		StallsDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ryvos_guardian_stalls_total",
			Help: "Number of stall conditions detected.",
		}),
		BudgetWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ryvos_guardian_budget_warnings_total",
			Help: "Number of soft token-budget warnings issued.",
		}),
		BudgetAborts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ryvos_guardian_budget_aborts_total",
			Help: "Number of hard token-budget aborts issued.",
		}),
	}
	reg.MustRegister(m.DoomLoopsDetected, m.StallsDetected, m.BudgetWarnings, m.BudgetAborts)
	return m
}

// fingerprintWindow tracks the most recent tool-call fingerprint and how
// many times in a row it has repeated, for doom-loop detection.
type fingerprintWindow struct {
	mu      sync.Mutex
	last    string
	streak  int
	maxSeen int
}

func (w *fingerprintWindow) observe(fp string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if fp == w.last {
		w.streak++
	} else {
		w.last = fp
		w.streak = 1
	}
	if w.streak > w.maxSeen {
		w.maxSeen = w.streak
	}
	return w.streak
}

func (w *fingerprintWindow) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.last = ""
	w.streak = 0
}

// Fingerprint hashes a tool name and its raw input into a stable
// comparison key for doom-loop detection.
func Fingerprint(toolName string, rawInput []byte) string {
	h := sha256.New()
	h.Write([]byte(toolName))
	h.Write([]byte{0})
	h.Write(rawInput)
	return hex.EncodeToString(h.Sum(nil))
}

// Guardian is fed tool calls and token usage by the Runtime (and activity
// signals through WatchStalls), publishes guardian events on the bus, and
// emits GuardianActions when it observes a doom loop, a stall, or a
// token-budget breach. It does not subscribe to the bus.
type Guardian struct {
	cfg     Config
	bus     *eventbus.Bus
	actions chan models.GuardianAction
	metrics *Metrics
	log     *observability.Logger
	limiter *rate.Limiter

	window       fingerprintWindow
	tokensUsed   int
	warnedBudget bool

	mu sync.Mutex
}

// New creates a Guardian that publishes actions on the channel returned by
// Actions, which the Runtime reads; the Guardian never imports
// internal/agent.
func New(cfg Config, bus *eventbus.Bus, metrics *Metrics, log *observability.Logger) *Guardian {
	if cfg.HintRateLimit <= 0 {
		cfg.HintRateLimit = 1
	}
	return &Guardian{
		cfg:     cfg,
		bus:     bus,
		actions: make(chan models.GuardianAction, 8),
		metrics: metrics,
		log:     log,
		limiter: rate.NewLimiter(cfg.HintRateLimit, 1),
	}
}

// Actions returns the one-way channel the Runtime should read
// GuardianActions from.
func (g *Guardian) Actions() <-chan models.GuardianAction {
	return g.actions
}

// Reset clears all per-run state. Called on RunComplete/RunError so a new
// run starts with a clean doom-loop window and token counter.
func (g *Guardian) Reset() {
	g.window.reset()
	g.mu.Lock()
	g.tokensUsed = 0
	g.warnedBudget = false
	g.mu.Unlock()
}

// ObserveToolCall feeds one tool invocation's fingerprint into the
// doom-loop detector. It publishes GuardianDoomLoop and sends an
// InjectHint action once the same fingerprint repeats DoomLoopThreshold
// times consecutively, then resets the window so it does not fire again
// every subsequent call. A doom loop is a nudge, not a kill switch: the
// runtime stays in control and the model gets a chance to course-correct.
func (g *Guardian) ObserveToolCall(toolName string, rawInput []byte) {
	fp := Fingerprint(toolName, rawInput)
	streak := g.window.observe(fp)
	if streak >= g.cfg.DoomLoopThreshold {
		g.window.reset()
		if g.metrics != nil {
			g.metrics.DoomLoopsDetected.Inc()
		}
		g.bus.Publish(models.AgentEvent{
			Type: models.EventGuardianDoomLoop, Timestamp: time.Now().UTC(),
			ToolName: toolName, ConsecutiveCalls: streak,
		})
		g.emitHint(fmt.Sprintf("You have called %q %d times in a row with the same input. Try a different approach instead of repeating this call.", toolName, streak))
	}
}

// ObserveTokens accumulates token usage and fires a soft InjectHint warning
// (once) then a hard CancelRun when the configured budget is exceeded. A
// zero TokenBudget disables this check entirely.
func (g *Guardian) ObserveTokens(delta int) {
	if g.cfg.TokenBudget <= 0 {
		return
	}
	g.mu.Lock()
	g.tokensUsed += delta
	used := g.tokensUsed
	warnThreshold := g.cfg.TokenBudget * g.cfg.TokenWarnPct / 100
	alreadyWarned := g.warnedBudget
	if used >= warnThreshold && !alreadyWarned {
		g.warnedBudget = true
	}
	g.mu.Unlock()

	if used > g.cfg.TokenBudget {
		if g.metrics != nil {
			g.metrics.BudgetAborts.Inc()
		}
		g.bus.Publish(models.AgentEvent{
			Type: models.EventGuardianBudgetAlert, Timestamp: time.Now().UTC(),
			TokensUsed: used, TokensBudget: g.cfg.TokenBudget, IsHardStop: true,
		})
		g.emitCancel(fmt.Sprintf("token budget exceeded: %d/%d used", used, g.cfg.TokenBudget))
		return
	}
	if used >= warnThreshold && !alreadyWarned {
		if g.metrics != nil {
			g.metrics.BudgetWarnings.Inc()
		}
		g.bus.Publish(models.AgentEvent{
			Type: models.EventGuardianBudgetAlert, Timestamp: time.Now().UTC(),
			TokensUsed: used, TokensBudget: g.cfg.TokenBudget, IsHardStop: false,
		})
		g.emitHint(fmt.Sprintf("Approaching token budget: %d/%d tokens used (%d%%). Wrap up soon.", used, g.cfg.TokenBudget, g.cfg.TokenWarnPct))
	}
}

// WatchStalls blocks until ctx is cancelled, firing a GuardianStall event
// and an InjectHint any time more than StallTimeout elapses without a
// received event on activity. The Runtime should send on activity each
// time it makes forward progress.
func (g *Guardian) WatchStalls(ctx context.Context, activity <-chan struct{}) {
	timer := time.NewTimer(g.cfg.StallTimeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-activity:
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(g.cfg.StallTimeout)
		case <-timer.C:
			if g.metrics != nil {
				g.metrics.StallsDetected.Inc()
			}
			elapsed := g.cfg.StallTimeout.Seconds()
			g.bus.Publish(models.AgentEvent{Type: models.EventGuardianStall, Timestamp: time.Now().UTC(), ElapsedSecs: elapsed})
			g.emitHint(fmt.Sprintf("No progress for %.0fs. Consider a different approach or wrapping up.", elapsed))
			timer.Reset(g.cfg.StallTimeout)
		}
	}
}

// emitHint rate-limits hint delivery so a flapping condition cannot flood
// the bus or the runtime's action channel, then sends the InjectHint
// action and publishes a corresponding GuardianHint bus event.
func (g *Guardian) emitHint(text string) {
	if !g.limiter.Allow() {
		return
	}
	action := models.GuardianAction{Kind: models.GuardianHint, Text: text}
	select {
	case g.actions <- action:
	default:
		g.log.Warn(context.Background(), "guardian action channel full, dropping hint")
	}
	g.bus.Publish(models.AgentEvent{Type: models.EventGuardianHint, Timestamp: time.Now().UTC(), Hint: text})
}

// emitCancel sends a CancelRun action unconditionally; a hard stop is
// never dropped by the hint rate limiter.
func (g *Guardian) emitCancel(reason string) {
	action := models.GuardianAction{Kind: models.GuardianCancel, Reason: reason}
	select {
	case g.actions <- action:
	default:
		g.log.Warn(context.Background(), "guardian action channel full, dropping cancellation")
	}
}
