package security

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Ryvos/ryvos-sub000/internal/approval"
	"github.com/Ryvos/ryvos-sub000/internal/eventbus"
	"github.com/Ryvos/ryvos-sub000/internal/observability"
	"github.com/Ryvos/ryvos-sub000/internal/toolregistry"
	"github.com/Ryvos/ryvos-sub000/pkg/models"
)

// Gate evaluates each tool call against policy, escalates its tier when the
// call's content matches a dangerous pattern, and round-trips through the
// Broker when a human decision is required. Grounded on
// original_source/crates/ryvos-agent/src/gate.rs's SecurityGate.
type Gate struct {
	registry *toolregistry.Registry
	broker   *approval.Broker
	bus      *eventbus.Bus
	policy   models.SecurityPolicy
	matcher  *PatternMatcher
	log      *observability.Logger

	approvalTimeout time.Duration
}

// NewGate builds a Gate over the given registry, approval broker, and bus.
func NewGate(registry *toolregistry.Registry, broker *approval.Broker, bus *eventbus.Bus, policy models.SecurityPolicy, log *observability.Logger) *Gate {
	return &Gate{
		registry:        registry,
		broker:          broker,
		bus:             bus,
		policy:          policy,
		matcher:         NewPatternMatcher(),
		log:             log,
		approvalTimeout: 60 * time.Second,
	}
}

// SetApprovalTimeout overrides the default 60s wait for a human decision.
func (g *Gate) SetApprovalTimeout(d time.Duration) {
	g.approvalTimeout = d
}

// Definitions exposes the registry's tool definitions so the runtime can
// advertise them to the LLM provider without importing internal/toolregistry
// itself.
func (g *Gate) Definitions() []models.ToolDefinition {
	return g.registry.Definitions()
}

// EffectiveTier returns the tier that governs this call: the tool's static
// tier, or a higher tier if the pattern matcher detects dangerous content,
// or an explicit per-tool policy override (which always wins).
func (g *Gate) EffectiveTier(tool toolregistry.Tool, rawInput []byte) (tier models.SecurityTier, reason string) {
	if override, ok := g.policy.ToolOverrides[tool.Name()]; ok {
		return override, "tool override"
	}

	tier = tool.Tier()
	reason = "static tier"
	if escalated, label, matched := g.matcher.Escalate(tool.Name(), string(rawInput)); matched && escalated > tier {
		tier = escalated
		reason = "dangerous pattern: " + label
	}
	return tier, reason
}

// Decide evaluates a tool call against policy without running it or
// awaiting an approval. It reports Allow, Deny, or NeedApproval.
func (g *Gate) Decide(toolName string, rawInput []byte) (models.GateDecision, toolregistry.Tool, error) {
	tool, ok := g.registry.Get(toolName)
	if !ok {
		return models.GateDecision{}, nil, &ToolNotFoundError{ToolName: toolName}
	}

	tier, reason := g.EffectiveTier(tool, rawInput)

	if g.policy.DenyAbove != nil && tier > *g.policy.DenyAbove {
		return models.GateDecision{Kind: models.GateDeny, Tier: tier, Reason: reason}, tool, nil
	}
	if tier <= g.policy.AutoApproveUpTo {
		return models.GateDecision{Kind: models.GateAllow, Tier: tier, Reason: reason}, tool, nil
	}
	return models.GateDecision{Kind: models.GateNeedApproval, Tier: tier, Reason: reason}, tool, nil
}

// Execute runs the full gate-to-execution pipeline for one tool call:
// decide, request approval if needed, publish the relevant events, and
// invoke the tool on an allow outcome. ctx governs both the approval wait
// and the tool's own execution deadline.
func (g *Gate) Execute(ctx context.Context, sessionID, runID, toolUseID, toolName string, rawInput []byte) (models.ToolResult, error) {
	decision, tool, err := g.Decide(toolName, rawInput)
	if err != nil {
		return models.ToolResult{}, err
	}

	switch decision.Kind {
	case models.GateDeny:
		g.bus.Publish(models.AgentEvent{
			Type: models.EventToolBlocked, SessionID: sessionID, RunID: runID, Timestamp: time.Now().UTC(),
			ToolUseID: toolUseID, ToolName: toolName, ToolTier: decision.Tier,
			Message: decision.Reason,
		})
		return models.ToolResult{}, &ToolBlockedError{ToolName: toolName, Reason: decision.Reason}

	case models.GateNeedApproval:
		if err := g.requestApproval(ctx, sessionID, runID, toolUseID, toolName, rawInput, decision); err != nil {
			return models.ToolResult{}, err
		}
	}

	if err := g.registry.ValidateInput(toolName, rawJSONToAny(rawInput)); err != nil {
		return models.ToolResult{}, &ToolBlockedError{ToolName: toolName, Reason: err.Error()}
	}

	result, err := tool.Execute(ctx, rawInput)
	if err != nil {
		if ctx.Err() != nil {
			return models.ToolResult{}, &ToolTimeoutError{ToolName: toolName, Cause: ctx.Err()}
		}
		return models.ToolResult{}, err
	}
	return result, nil
}

func (g *Gate) requestApproval(ctx context.Context, sessionID, runID, toolUseID, toolName string, rawInput []byte, decision models.GateDecision) error {
	req := models.ApprovalRequest{
		RequestID: approval.NewRequestID(),
		SessionID: sessionID,
		ToolName:  toolName,
		ToolInput: summarizeInput(toolName, rawInput),
		Tier:      decision.Tier,
		Reason:    decision.Reason,
		CreatedAt: time.Now().UTC(),
	}

	g.bus.Publish(models.AgentEvent{
		Type:      models.EventApprovalRequested,
		SessionID: sessionID,
		RunID:     runID,
		Timestamp: req.CreatedAt,
		ToolUseID: toolUseID,
		ToolName:  toolName,
		ToolTier:  decision.Tier,
		Approval:  &req,
	})

	resp, err := g.broker.Await(ctx, req, g.approvalTimeout)
	if err != nil {
		g.log.Warn(ctx, "approval wait failed", "tool", toolName, "request_id", req.RequestID, "error", err)
		return &ApprovalTimeoutError{ToolName: toolName, RequestID: req.RequestID}
	}

	g.bus.Publish(models.AgentEvent{
		Type:      models.EventApprovalResolved,
		SessionID: sessionID,
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		ToolUseID: toolUseID,
		ToolName:  toolName,
		Decision:  resp.Decision,
	})

	if resp.Decision != models.ApprovalApproved {
		return &ApprovalDeniedError{ToolName: toolName, RequestID: req.RequestID, Note: resp.Note}
	}
	return nil
}

func rawJSONToAny(raw []byte) any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return map[string]any{}
	}
	return v
}
