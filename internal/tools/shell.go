// Package tools provides a small set of demo toolregistry.Tool
// implementations for cmd/ryvos-agent: a shell command runner and a file
// reader. Grounded on the teacher's internal/tools/exec and
// internal/tools/files packages, trimmed to their synchronous,
// single-command case since this module has no background-process
// manager to adapt.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/Ryvos/ryvos-sub000/pkg/models"
)

// Shell runs a command through /bin/sh -c, grounded on the teacher's
// exec.ExecTool.Execute synchronous path. It carries SecurityTier T3 by
// default: the gate's dangerous-pattern matcher can still escalate
// individual calls higher (e.g. a recursive delete becomes T4).
type Shell struct {
	tier    models.SecurityTier
	timeout time.Duration
}

// NewShell builds a Shell tool. A zero timeout defaults to 30s.
func NewShell(timeout time.Duration) *Shell {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Shell{tier: models.TierT3, timeout: timeout}
}

func (t *Shell) Name() string        { return "shell" }
func (t *Shell) Description() string { return "Run a shell command and return its combined stdout/stderr." }
func (t *Shell) Tier() models.SecurityTier { return t.tier }

func (t *Shell) InputSchema() []byte {
	return []byte(`{
		"type": "object",
		"properties": {
			"command": {"type": "string", "description": "Shell command to run via /bin/sh -c."}
		},
		"required": ["command"]
	}`)
}

func (t *Shell) Execute(ctx context.Context, input []byte) (models.ToolResult, error) {
	var parsed struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(input, &parsed); err != nil {
		return models.ToolResult{}, fmt.Errorf("tools: shell: invalid input: %w", err)
	}
	command := strings.TrimSpace(parsed.Command)
	if command == "" {
		return models.ToolResult{Content: "command is required", IsError: true}, nil
	}

	runCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", command)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return models.ToolResult{Content: fmt.Sprintf("%s\nexit error: %v", out.String(), err), IsError: true}, nil
	}
	return models.ToolResult{Content: out.String()}, nil
}
