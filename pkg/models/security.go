package models

import "fmt"

// SecurityTier ranks how dangerous a tool invocation is judged to be.
// Tiers are ordered: T0 is safest, T4 requires explicit human approval.
type SecurityTier int

const (
	TierT0 SecurityTier = iota // read-only, always allowed
	TierT1                     // low-risk side effects, auto-approvable
	TierT2                     // moderate risk, policy-gated
	TierT3                     // high risk, requires approval unless overridden
	TierT4                     // destructive/irreversible, always requires approval
)

func (t SecurityTier) String() string {
	switch t {
	case TierT0:
		return "T0"
	case TierT1:
		return "T1"
	case TierT2:
		return "T2"
	case TierT3:
		return "T3"
	case TierT4:
		return "T4"
	default:
		return fmt.Sprintf("T?(%d)", int(t))
	}
}

// ParseSecurityTier parses the canonical "T0".."T4" spelling.
func ParseSecurityTier(s string) (SecurityTier, error) {
	switch s {
	case "T0":
		return TierT0, nil
	case "T1":
		return TierT1, nil
	case "T2":
		return TierT2, nil
	case "T3":
		return TierT3, nil
	case "T4":
		return TierT4, nil
	default:
		return 0, fmt.Errorf("models: invalid security tier %q", s)
	}
}

// GateDecisionKind discriminates the outcome of a security gate evaluation.
type GateDecisionKind string

const (
	GateAllow        GateDecisionKind = "allow"
	GateDeny         GateDecisionKind = "deny"
	GateNeedApproval GateDecisionKind = "need_approval"
)

// GateDecision is the result of evaluating a tool call against policy,
// before any approval round-trip occurs.
type GateDecision struct {
	Kind   GateDecisionKind
	Tier   SecurityTier
	Reason string
}

// SecurityPolicy configures the static portion of the security gate.
type SecurityPolicy struct {
	// AutoApproveUpTo is the highest tier that is allowed without a human
	// approval round-trip.
	AutoApproveUpTo SecurityTier
	// DenyAbove, when set, denies any call whose effective tier exceeds
	// it outright, before the auto-approve comparison runs. Nil disables
	// the deny path entirely. Invariant: AutoApproveUpTo < *DenyAbove
	// when both are set.
	DenyAbove *SecurityTier
	// ToolOverrides pins specific tool names to a tier regardless of the
	// pattern matcher's verdict.
	ToolOverrides map[string]SecurityTier
}

// DefaultSecurityPolicy matches the original implementation's defaults.
func DefaultSecurityPolicy() SecurityPolicy {
	return SecurityPolicy{
		AutoApproveUpTo: TierT1,
		ToolOverrides:   map[string]SecurityTier{},
	}
}
