package security

import (
	"regexp"
	"strings"

	"github.com/Ryvos/ryvos-sub000/pkg/models"
)

// DangerousPattern pairs a compiled regex with the tier it escalates a
// matching tool call to and a human-readable label used in gate-decision
// reasons and logs.
type DangerousPattern struct {
	Label string
	Tier  models.SecurityTier
	re    *regexp.Regexp
}

// defaultDangerousPatterns mirrors the original implementation's nine
// default patterns verbatim: recursive/forced deletion, raw disk writes,
// filesystem creation, permission blow-outs, privilege escalation,
// pipe-to-shell installs, fork bombs, destructive SQL, and credential
// exfiltration via environment dumps.
var defaultDangerousPatterns = []struct {
	label string
	tier  models.SecurityTier
	expr  string
}{
	{"recursive_force_delete", models.TierT4, `rm\s+(-\w*r\w*f\w*|-\w*f\w*r\w*)\s+/`},
	{"raw_disk_write", models.TierT4, `\bdd\s+.*of=/dev/`},
	{"filesystem_format", models.TierT4, `\bmkfs(\.\w+)?\b`},
	{"world_writable_permissions", models.TierT3, `chmod\s+(-R\s+)?0?777\b`},
	{"privilege_escalation", models.TierT3, `\bsudo\b|\bsu\s+-`},
	{"pipe_to_shell_install", models.TierT3, `curl[^|]*\|\s*(sudo\s+)?(bash|sh)\b|wget[^|]*\|\s*(sudo\s+)?(bash|sh)\b`},
	{"fork_bomb", models.TierT4, `:\(\)\s*\{\s*:\s*\|\s*:\s*&?\s*\}\s*;\s*:`},
	{"destructive_sql", models.TierT4, `(?i)\bDROP\s+(TABLE|DATABASE)\b|\bTRUNCATE\s+TABLE\b`},
	{"env_credential_dump", models.TierT3, `\benv\b\s*(\||>)|\bprintenv\b\s*(\||>)`},
}

// PatternMatcher escalates a tool call's effective tier when its input
// text matches a known-dangerous shape, regardless of the tool's static
// tier. Patterns are compiled once at construction.
type PatternMatcher struct {
	patterns []DangerousPattern
}

// NewPatternMatcher compiles the default pattern set plus any extra
// patterns supplied by configuration.
func NewPatternMatcher(extra ...DangerousPattern) *PatternMatcher {
	patterns := make([]DangerousPattern, 0, len(defaultDangerousPatterns)+len(extra))
	for _, p := range defaultDangerousPatterns {
		patterns = append(patterns, DangerousPattern{Label: p.label, Tier: p.tier, re: regexp.MustCompile(p.expr)})
	}
	patterns = append(patterns, extra...)
	return &PatternMatcher{patterns: patterns}
}

// Escalate inspects toolName and the raw input text and returns the
// highest tier implied by any matching pattern, along with its label. ok
// is false when nothing matched.
func (m *PatternMatcher) Escalate(toolName, input string) (tier models.SecurityTier, label string, ok bool) {
	// Only tools whose name contains a shell-execution verb are subject to
	// content inspection, matching the original gate's "effective_tier"
	// escalation. Eligibility is decided by the name alone, so a read-only
	// tool named "bash_history_search" still gets scanned.
	if !looksExecutable(toolName) {
		return 0, "", false
	}
	best := models.SecurityTier(-1)
	for _, p := range m.patterns {
		if p.re.MatchString(input) && p.Tier > best {
			best = p.Tier
			label = p.Label
		}
	}
	if best < 0 {
		return 0, "", false
	}
	return best, label, true
}

func looksExecutable(toolName string) bool {
	name := strings.ToLower(toolName)
	for _, verb := range []string{"bash", "shell", "exec", "run", "sh", "terminal"} {
		if strings.Contains(name, verb) {
			return true
		}
	}
	return false
}
