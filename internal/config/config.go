// Package config defines the agent core's typed configuration and loads it
// from YAML, grounded on the teacher's internal/config package (struct
// shape, yaml tags, typed defaults) simplified from the teacher's
// $include-resolving multi-file loader since this module has a single
// flat config document.
package config

import (
	"time"

	"github.com/Ryvos/ryvos-sub000/pkg/models"
)

// Config is the agent core's full runtime configuration.
type Config struct {
	Agent     AgentConfig     `yaml:"agent"`
	Security  SecurityConfig  `yaml:"security"`
	Guardian  GuardianConfig  `yaml:"guardian"`
	Logging   LoggingConfig   `yaml:"logging"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
}

// AgentConfig governs the ReAct loop itself.
type AgentConfig struct {
	MaxTurns                 int           `yaml:"max_turns"`
	MaxDuration               time.Duration `yaml:"max_duration"`
	MaxContextTokens          int           `yaml:"max_context_tokens"`
	MaxToolOutputTokens       int           `yaml:"max_tool_output_tokens"`
	ReflexionFailureThreshold int           `yaml:"reflexion_failure_threshold"`
	ParallelTools             bool          `yaml:"parallel_tools"`
	EnableSummarization       bool          `yaml:"enable_summarization"`
	Model                     string        `yaml:"model"`
	SystemPrompt              string        `yaml:"system_prompt"`
}

// SecurityConfig governs the gate's static policy.
type SecurityConfig struct {
	AutoApproveUpTo string        `yaml:"auto_approve_up_to"`
	ApprovalTimeout time.Duration `yaml:"approval_timeout"`
	// DenyAbove, when non-empty, denies any call whose effective tier
	// exceeds this tier outright. Empty disables the deny path.
	DenyAbove string `yaml:"deny_above"`
}

// GuardianConfig governs the watchdog.
type GuardianConfig struct {
	Enabled           bool          `yaml:"enabled"`
	DoomLoopThreshold int           `yaml:"doom_loop_threshold"`
	StallTimeout      time.Duration `yaml:"stall_timeout"`
	TokenBudget       int           `yaml:"token_budget"`
	TokenWarnPct      int           `yaml:"token_warn_pct"`
}

// LoggingConfig governs the observability.Logger constructed at startup.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

// CheckpointConfig governs the optional checkpoint store.
type CheckpointConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

// Default returns the configuration defaults specified in §6, sourced from
// original_source/crates/ryvos-core/src/config.rs's AgentConfig/GuardianConfig.
func Default() Config {
	return Config{
		Agent: AgentConfig{
			MaxTurns:                  25,
			MaxDuration:               600 * time.Second,
			MaxContextTokens:          80_000,
			MaxToolOutputTokens:       4_000,
			ReflexionFailureThreshold: 3,
			ParallelTools:             true,
			EnableSummarization:       true,
			Model:                     "claude-sonnet-4-5",
		},
		Security: SecurityConfig{
			AutoApproveUpTo: models.TierT1.String(),
			ApprovalTimeout: 60 * time.Second,
		},
		Guardian: GuardianConfig{
			Enabled:           true,
			DoomLoopThreshold: 3,
			StallTimeout:      120 * time.Second,
			TokenBudget:       0,
			TokenWarnPct:      80,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Checkpoint: CheckpointConfig{
			Enabled: false,
		},
	}
}

// SecurityPolicy converts the loaded SecurityConfig into the models type
// the security Gate consumes.
func (c Config) SecurityPolicy() (models.SecurityPolicy, error) {
	tier, err := models.ParseSecurityTier(c.Security.AutoApproveUpTo)
	if err != nil {
		return models.SecurityPolicy{}, err
	}
	policy := models.SecurityPolicy{
		AutoApproveUpTo: tier,
		ToolOverrides:   map[string]models.SecurityTier{},
	}
	if c.Security.DenyAbove != "" {
		denyAbove, err := models.ParseSecurityTier(c.Security.DenyAbove)
		if err != nil {
			return models.SecurityPolicy{}, err
		}
		policy.DenyAbove = &denyAbove
	}
	return policy, nil
}
