package security

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Ryvos/ryvos-sub000/internal/approval"
	"github.com/Ryvos/ryvos-sub000/internal/eventbus"
	"github.com/Ryvos/ryvos-sub000/internal/observability"
	"github.com/Ryvos/ryvos-sub000/internal/toolregistry"
	"github.com/Ryvos/ryvos-sub000/pkg/models"
)

type fakeTool struct {
	name string
	tier models.SecurityTier
}

func (f fakeTool) Name() string              { return f.name }
func (f fakeTool) Description() string       { return "fake" }
func (f fakeTool) InputSchema() []byte       { return []byte(`{}`) }
func (f fakeTool) Tier() models.SecurityTier { return f.tier }
func (f fakeTool) Execute(ctx context.Context, input []byte) (models.ToolResult, error) {
	return models.ToolResult{Content: "done"}, nil
}

func newTestGate(t *testing.T, policy models.SecurityPolicy) (*Gate, *toolregistry.Registry, *approval.Broker, *eventbus.Bus) {
	t.Helper()
	reg := toolregistry.New()
	broker := approval.New()
	bus := eventbus.New()
	log := observability.NewLogger(observability.LogConfig{Level: "error"})
	return NewGate(reg, broker, bus, policy, log), reg, broker, bus
}

func TestDecideTruthTable(t *testing.T) {
	denyAboveT3 := models.TierT3

	cases := []struct {
		name      string
		tier      models.SecurityTier
		denyAbove *models.SecurityTier
		wantKind  models.GateDecisionKind
	}{
		{"read_file", models.TierT0, nil, models.GateAllow},
		{"write_file", models.TierT1, nil, models.GateAllow},
		{"delete_file", models.TierT2, nil, models.GateNeedApproval},
		{"format_disk", models.TierT4, nil, models.GateNeedApproval},
		{"format_disk", models.TierT4, &denyAboveT3, models.GateDeny},
		{"delete_file", models.TierT2, &denyAboveT3, models.GateNeedApproval},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			policy := models.DefaultSecurityPolicy()
			policy.DenyAbove = tc.denyAbove
			gate, reg, _, _ := newTestGate(t, policy)
			if err := reg.Register(fakeTool{name: tc.name, tier: tc.tier}); err != nil {
				t.Fatalf("Register: %v", err)
			}

			decision, _, err := gate.Decide(tc.name, []byte(`{}`))
			if err != nil {
				t.Fatalf("Decide: %v", err)
			}
			if decision.Kind != tc.wantKind {
				t.Fatalf("Decide(%s) kind = %v, want %v", tc.name, decision.Kind, tc.wantKind)
			}
		})
	}
}

func TestDecideUnknownTool(t *testing.T) {
	gate, _, _, _ := newTestGate(t, models.DefaultSecurityPolicy())
	_, _, err := gate.Decide("does-not-exist", nil)
	var notFound *ToolNotFoundError
	if err == nil {
		t.Fatal("expected error for unknown tool")
	}
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ToolNotFoundError, got %T: %v", err, err)
	}
}

func TestPatternMatcherEscalatesBashTools(t *testing.T) {
	m := NewPatternMatcher()
	tier, label, ok := m.Escalate("bash", "rm -rf /")
	if !ok {
		t.Fatal("expected a match for recursive force delete")
	}
	if tier != models.TierT4 {
		t.Fatalf("tier = %v, want T4", tier)
	}
	if label != "recursive_force_delete" {
		t.Fatalf("label = %q", label)
	}
}

func TestPatternMatcherIgnoresNonExecutableTools(t *testing.T) {
	m := NewPatternMatcher()
	_, _, ok := m.Escalate("read_file", "rm -rf /")
	if ok {
		t.Fatal("expected no match for a non-executable tool")
	}
}

func TestPatternMatcherCaseInsensitiveSQL(t *testing.T) {
	m := NewPatternMatcher()
	_, _, ok := m.Escalate("run_sql", "drop table users")
	if !ok {
		t.Fatal("expected case-insensitive match on destructive SQL")
	}
}

func TestExecuteAllowRunsTool(t *testing.T) {
	gate, reg, _, _ := newTestGate(t, models.DefaultSecurityPolicy())
	_ = reg.Register(fakeTool{name: "echo", tier: models.TierT0})

	result, err := gate.Execute(context.Background(), "sess-1", "run-1", "tu-1", "echo", []byte(`{}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Content != "done" {
		t.Fatalf("result.Content = %q", result.Content)
	}
}

func TestExecuteNeedsApprovalTimesOut(t *testing.T) {
	gate, reg, _, _ := newTestGate(t, models.DefaultSecurityPolicy())
	_ = reg.Register(fakeTool{name: "delete_file", tier: models.TierT2})
	gate.SetApprovalTimeout(20 * time.Millisecond)

	_, err := gate.Execute(context.Background(), "sess-1", "run-1", "tu-1", "delete_file", []byte(`{}`))
	if err == nil {
		t.Fatal("expected timeout error with no approver present")
	}
}

func TestExecuteApprovedRuns(t *testing.T) {
	gate, reg, broker, bus := newTestGate(t, models.DefaultSecurityPolicy())
	_ = reg.Register(fakeTool{name: "delete_file", tier: models.TierT2})
	gate.SetApprovalTimeout(time.Second)

	sub := bus.Subscribe()
	defer sub.Unsubscribe()
	go func() {
		for ev := range sub.Events() {
			if ev.Type == models.EventApprovalRequested && ev.Approval != nil {
				broker.Resolve(models.ApprovalResponse{RequestID: ev.Approval.RequestID, Decision: models.ApprovalApproved})
				return
			}
		}
	}()

	result, err := gate.Execute(context.Background(), "sess-1", "run-1", "tu-1", "delete_file", []byte(`{}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Content != "done" {
		t.Fatalf("result.Content = %q", result.Content)
	}
}

func TestExecuteDenyAbovePublishesToolBlocked(t *testing.T) {
	denyAboveT3 := models.TierT3
	policy := models.DefaultSecurityPolicy()
	policy.DenyAbove = &denyAboveT3
	gate, reg, _, bus := newTestGate(t, policy)
	_ = reg.Register(fakeTool{name: "format_disk", tier: models.TierT4})

	sub := bus.Subscribe()
	defer sub.Unsubscribe()

	_, err := gate.Execute(context.Background(), "sess-1", "run-1", "tu-1", "format_disk", []byte(`{}`))
	var blocked *ToolBlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected ToolBlockedError, got %T: %v", err, err)
	}

	select {
	case ev := <-sub.Events():
		if ev.Type != models.EventToolBlocked || ev.ToolTier != models.TierT4 {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a ToolBlocked event on the bus")
	}
}

func TestSummarizeInputPerTool(t *testing.T) {
	cases := []struct {
		tool  string
		input string
		want  string
	}{
		{"shell", `{"command":"ls -la"}`, "ls -la"},
		{"read_file", `{"path":"notes.txt"}`, "notes.txt"},
		{"web_search", `{"query":"go generics"}`, "go generics"},
		{"spawn_agent", `{"prompt":"short"}`, "short"},
		{"unknown_tool", `{"a":1}`, `{"a":1}`},
	}
	for _, tc := range cases {
		got := summarizeInput(tc.tool, []byte(tc.input))
		if got != tc.want {
			t.Fatalf("summarizeInput(%s) = %q, want %q", tc.tool, got, tc.want)
		}
	}
}

func TestExecuteDeniedReturnsError(t *testing.T) {
	gate, reg, broker, bus := newTestGate(t, models.DefaultSecurityPolicy())
	_ = reg.Register(fakeTool{name: "delete_file", tier: models.TierT2})
	gate.SetApprovalTimeout(time.Second)

	sub := bus.Subscribe()
	defer sub.Unsubscribe()
	go func() {
		for ev := range sub.Events() {
			if ev.Type == models.EventApprovalRequested && ev.Approval != nil {
				broker.Resolve(models.ApprovalResponse{RequestID: ev.Approval.RequestID, Decision: models.ApprovalDenied})
				return
			}
		}
	}()

	_, err := gate.Execute(context.Background(), "sess-1", "run-1", "tu-1", "delete_file", []byte(`{}`))
	var denied *ApprovalDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected ApprovalDeniedError, got %T: %v", err, err)
	}
}
