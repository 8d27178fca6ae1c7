package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Ryvos/ryvos-sub000/internal/agent/providers"
	"github.com/Ryvos/ryvos-sub000/internal/approval"
	"github.com/Ryvos/ryvos-sub000/internal/eventbus"
	"github.com/Ryvos/ryvos-sub000/internal/guardian"
	"github.com/Ryvos/ryvos-sub000/internal/journal"
	"github.com/Ryvos/ryvos-sub000/internal/observability"
	"github.com/Ryvos/ryvos-sub000/internal/security"
	"github.com/Ryvos/ryvos-sub000/internal/sessionstore"
	"github.com/Ryvos/ryvos-sub000/internal/toolregistry"
	"github.com/Ryvos/ryvos-sub000/pkg/models"
)

// echoTool is a T0 tool that returns its "text" input field verbatim, or an
// error result if the field is missing, for scripting tool-call round-trips.
type echoTool struct {
	tier    models.SecurityTier
	failing bool
}

func (e echoTool) Name() string        { return "echo" }
func (e echoTool) Description() string { return "echoes its text input" }
func (e echoTool) InputSchema() []byte { return []byte(`{}`) }
func (e echoTool) Tier() models.SecurityTier {
	if e.tier == 0 {
		return models.TierT0
	}
	return e.tier
}

func (e echoTool) Execute(ctx context.Context, input []byte) (models.ToolResult, error) {
	if e.failing {
		return models.ToolResult{Content: "boom", IsError: true}, nil
	}
	var parsed struct {
		Text string `json:"text"`
	}
	_ = json.Unmarshal(input, &parsed)
	return models.ToolResult{Content: parsed.Text}, nil
}

type testHarness struct {
	t        *testing.T
	bus      *eventbus.Bus
	sub      *eventbus.Subscription
	store    *sessionstore.InMemory
	journal  *journal.InMemory
	registry *toolregistry.Registry
	gate     *security.Gate
	log      *observability.Logger
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	bus := eventbus.New()
	reg := toolregistry.New()
	broker := approval.New()
	log := observability.NewLogger(observability.LogConfig{Level: "error"})
	policy := models.DefaultSecurityPolicy()
	gate := security.NewGate(reg, broker, bus, policy, log)
	gate.SetApprovalTimeout(50 * time.Millisecond)

	return &testHarness{
		t:        t,
		bus:      bus,
		sub:      bus.Subscribe(),
		store:    sessionstore.NewInMemory(),
		journal:  journal.NewInMemory(),
		registry: reg,
		gate:     gate,
		log:      log,
	}
}

func (h *testHarness) newRuntime(provider LLMProvider, opts Options) *Runtime {
	return NewRuntime(provider, h.gate, h.store, h.journal, h.bus, h.log, opts)
}

func (h *testHarness) drainEvents() []models.AgentEvent {
	var out []models.AgentEvent
	for {
		select {
		case ev := <-h.sub.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

// Scenario 1: empty tool registry, single text turn.
func TestRunEmptyToolSingleTurn(t *testing.T) {
	h := newHarness(t)
	provider := providers.NewMockProvider(providers.TextTurn("hi there"))
	rt := h.newRuntime(provider, Options{})

	res, err := rt.Run(context.Background(), RunRequest{SessionID: "s1", RunID: "r1", UserMessage: "hello"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.FinalText != "hi there" {
		t.Fatalf("FinalText = %q, want %q", res.FinalText, "hi there")
	}
	if res.Turns != 1 {
		t.Fatalf("Turns = %d, want 1", res.Turns)
	}
	if res.StopKind != "complete" {
		t.Fatalf("StopKind = %q, want complete", res.StopKind)
	}

	events := h.drainEvents()
	if len(events) == 0 || events[0].Type != models.EventRunStarted {
		t.Fatalf("expected RunStarted first, got %+v", eventTypes(events))
	}
	if events[len(events)-1].Type != models.EventRunComplete {
		t.Fatalf("expected RunComplete last, got %+v", eventTypes(events))
	}

	history, err := h.store.History(context.Background(), "s1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2 (user + assistant)", len(history))
	}
	if history[0].Role != models.RoleUser || history[0].Text() != "hello" {
		t.Fatalf("history[0] = %+v", history[0])
	}
	if history[1].Role != models.RoleAssistant || history[1].Text() != "hi there" {
		t.Fatalf("history[1] = %+v", history[1])
	}
}

// Scenario 2: one tool-call round trip across two turns.
func TestRunOneToolCallRoundTrip(t *testing.T) {
	h := newHarness(t)
	if err := h.registry.Register(echoTool{}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	provider := providers.NewMockProvider(
		providers.ToolCallTurn("tu-1", "echo", `{"text":"x"}`),
		providers.TextTurn("done"),
	)
	rt := h.newRuntime(provider, Options{})

	res, err := rt.Run(context.Background(), RunRequest{SessionID: "s2", RunID: "r2", UserMessage: "go"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.FinalText != "done" {
		t.Fatalf("FinalText = %q, want done", res.FinalText)
	}
	if res.Turns != 2 {
		t.Fatalf("Turns = %d, want 2", res.Turns)
	}

	events := h.drainEvents()
	var sawToolRequested, sawToolResult bool
	toolRequestedBeforeResult := true
	seenRequested := false
	for _, ev := range events {
		switch ev.Type {
		case models.EventToolCallRequested:
			sawToolRequested = true
			seenRequested = true
		case models.EventToolCallResult:
			sawToolResult = true
			if !seenRequested {
				toolRequestedBeforeResult = false
			}
			if ev.ToolName != "echo" {
				t.Fatalf("tool result name = %q, want echo", ev.ToolName)
			}
			if ev.Result == nil || ev.Result.Content != "x" || ev.Result.IsError {
				t.Fatalf("tool result = %+v", ev.Result)
			}
		}
	}
	if !sawToolRequested || !sawToolResult {
		t.Fatalf("expected both ToolCallRequested and ToolCallResult events, got %+v", eventTypes(events))
	}
	if !toolRequestedBeforeResult {
		t.Fatal("ToolCallRequested must precede ToolCallResult")
	}
}

// Scenario 5: reflexion hint appears after repeated tool failure.
func TestRunReflexionHintAfterRepeatedFailures(t *testing.T) {
	h := newHarness(t)
	if err := h.registry.Register(echoTool{failing: true}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	turn := providers.ToolCallTurn("tu-1", "echo", `{"text":"x"}`)
	provider := providers.NewMockProvider(turn, turn, turn, providers.TextTurn("giving up"))
	rt := h.newRuntime(provider, Options{ReflexionFailureThreshold: 3})

	res, err := rt.Run(context.Background(), RunRequest{SessionID: "s5", RunID: "r5", UserMessage: "go"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Turns != 4 {
		t.Fatalf("Turns = %d, want 4", res.Turns)
	}

	events := h.drainEvents()
	var hint string
	for _, ev := range events {
		if ev.Type == models.EventReflexionHint {
			hint = ev.Hint
		}
	}
	if hint == "" {
		t.Fatal("expected a reflexion hint event")
	}
	if !strings.Contains(hint, "failed 3 times") {
		t.Fatalf("hint = %q, want substring 'failed 3 times'", hint)
	}
}

// Max-turns exceeded: a provider that always requests the same tool call
// never reaches end_turn, so the loop must stop once MaxTurns is exhausted.
func TestRunMaxTurnsExceeded(t *testing.T) {
	h := newHarness(t)
	if err := h.registry.Register(echoTool{}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	turn := providers.ToolCallTurn("tu-1", "echo", `{"text":"x"}`)
	provider := providers.NewMockProvider(turn)
	rt := h.newRuntime(provider, Options{MaxTurns: 3})

	res, err := rt.Run(context.Background(), RunRequest{SessionID: "s3", RunID: "r3", UserMessage: "go"})
	if !errors.Is(err, ErrMaxTurnsExceeded) {
		t.Fatalf("err = %v, want ErrMaxTurnsExceeded", err)
	}
	if res.StopKind != "max_turns" {
		t.Fatalf("StopKind = %q, want max_turns", res.StopKind)
	}
	if res.Turns != 4 {
		t.Fatalf("Turns = %d, want 4 (loop checks the bound before running turn 4)", res.Turns)
	}
}

// Max-duration exceeded: a provider whose stream sleeps past the budget on
// every call must be stopped by the elapsed-time check, not run forever.
func TestRunMaxDurationExceeded(t *testing.T) {
	h := newHarness(t)
	provider := &slowProvider{delay: 30 * time.Millisecond}
	rt := h.newRuntime(provider, Options{MaxDuration: 20 * time.Millisecond, MaxTurns: 1000})

	res, err := rt.Run(context.Background(), RunRequest{SessionID: "s4", RunID: "r4", UserMessage: "go"})
	if !errors.Is(err, ErrMaxDurationExceeded) {
		t.Fatalf("err = %v, want ErrMaxDurationExceeded", err)
	}
	if res.StopKind != "max_duration" {
		t.Fatalf("StopKind = %q, want max_duration", res.StopKind)
	}
}

// Guardian hint: a doom loop detected mid-run injects a corrective hint as
// a user-role message and lets the run continue, rather than killing it.
func TestRunGuardianInjectsHintOnDoomLoop(t *testing.T) {
	h := newHarness(t)
	if err := h.registry.Register(echoTool{}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	turn := providers.ToolCallTurn("tu-1", "echo", `{"text":"x"}`)
	provider := providers.NewMockProvider(turn, turn, turn, turn, turn)

	cfg := guardian.DefaultConfig()
	cfg.DoomLoopThreshold = 2
	g := guardian.New(cfg, h.bus, nil, h.log)

	rt := h.newRuntime(provider, Options{MaxTurns: 4}).WithGuardian(g)

	res, err := rt.Run(context.Background(), RunRequest{SessionID: "s6", RunID: "r6", UserMessage: "go"})
	if err == nil {
		t.Fatal("expected ErrMaxTurnsExceeded since the hint does not stop the run")
	}
	if res.StopKind != "max_turns" {
		t.Fatalf("StopKind = %q, want max_turns: a doom-loop hint must not cancel the run", res.StopKind)
	}

	history, herr := h.store.History(context.Background(), "s6")
	if herr != nil {
		t.Fatalf("History: %v", herr)
	}
	found := false
	for _, m := range history {
		if m.Role == models.RoleUser {
			for _, b := range m.Content {
				if b.Type == models.ContentText && strings.Contains(b.Text, "echo") {
					found = true
				}
			}
		}
	}
	if !found {
		t.Fatal("expected a guardian hint mentioning the looping tool to be appended as a user message")
	}
}

// Guardian cancel: a hard token-budget stop must cancel the run, unlike a
// doom-loop hint.
func TestRunGuardianCancelsOnBudgetHardStop(t *testing.T) {
	h := newHarness(t)
	if err := h.registry.Register(echoTool{}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	turn := providers.ToolCallTurn("tu-1", "echo", `{"text":"x"}`)
	provider := providers.NewMockProvider(turn, turn, turn)

	cfg := guardian.DefaultConfig()
	cfg.TokenBudget = 1
	g := guardian.New(cfg, h.bus, nil, h.log)

	rt := h.newRuntime(provider, Options{MaxTurns: 20}).WithGuardian(g)

	res, err := rt.Run(context.Background(), RunRequest{SessionID: "s8", RunID: "r8", UserMessage: "go"})
	if err == nil {
		t.Fatal("expected an error from a guardian budget cancel")
	}
	if res.StopKind != "guardian_cancelled" {
		t.Fatalf("StopKind = %q, want guardian_cancelled", res.StopKind)
	}
}

// Cancellation: a context cancelled before Run is called must be observed
// at the first suspension point.
func TestRunRespectsCancellation(t *testing.T) {
	h := newHarness(t)
	provider := providers.NewMockProvider(providers.TextTurn("should not run"))
	rt := h.newRuntime(provider, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := rt.Run(ctx, RunRequest{SessionID: "s7", RunID: "r7", UserMessage: "go"})
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
	if res.StopKind != "cancelled" {
		t.Fatalf("StopKind = %q, want cancelled", res.StopKind)
	}
}

func eventTypes(events []models.AgentEvent) []models.AgentEventType {
	out := make([]models.AgentEventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

// slowProvider is a hand-written LLMProvider that sleeps before emitting a
// tool call against an unregistered tool (so dispatch fails fast as an
// error tool-result rather than blocking), used to exercise the
// max-duration budget by making the second iteration of the loop observe
// elapsed time past the limit.
type slowProvider struct {
	delay time.Duration
}

func (p *slowProvider) Name() string { return "slow" }

func (p *slowProvider) Complete(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	ch := make(chan StreamEvent, 2)
	go func() {
		defer close(ch)
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return
		}
		ch <- StreamEvent{Delta: models.StreamDelta{Kind: models.DeltaToolUse, ToolUseID: "tu-slow", ToolName: "does-not-exist", InputDelta: `{}`}}
		ch <- StreamEvent{Delta: models.StreamDelta{Kind: models.DeltaStopReason, StopReason: "tool_use"}}
	}()
	return ch, nil
}
