package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Ryvos/ryvos-sub000/pkg/models"
)

// ReadFile reads a file from disk, grounded on the teacher's
// internal/tools/files/read.go. It is confined to files under root and
// carries SecurityTier T1 since it is read-only.
type ReadFile struct {
	root string
}

// NewReadFile builds a ReadFile tool confined to the given root directory.
func NewReadFile(root string) *ReadFile {
	return &ReadFile{root: root}
}

func (t *ReadFile) Name() string            { return "read_file" }
func (t *ReadFile) Description() string     { return "Read a text file relative to the workspace root." }
func (t *ReadFile) Tier() models.SecurityTier { return models.TierT1 }

func (t *ReadFile) InputSchema() []byte {
	return []byte(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "Path relative to the workspace root."}
		},
		"required": ["path"]
	}`)
}

func (t *ReadFile) Execute(ctx context.Context, input []byte) (models.ToolResult, error) {
	var parsed struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(input, &parsed); err != nil {
		return models.ToolResult{}, fmt.Errorf("tools: read_file: invalid input: %w", err)
	}

	resolved, err := t.resolve(parsed.Path)
	if err != nil {
		return models.ToolResult{Content: err.Error(), IsError: true}, nil
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return models.ToolResult{Content: fmt.Sprintf("read %s: %v", parsed.Path, err), IsError: true}, nil
	}
	return models.ToolResult{Content: string(data)}, nil
}

// resolve rejects any path that would escape root once cleaned, the same
// containment check the teacher's files.resolver applies before every
// file-tool operation.
func (t *ReadFile) resolve(rel string) (string, error) {
	if strings.TrimSpace(rel) == "" {
		return "", fmt.Errorf("path is required")
	}
	root, err := filepath.Abs(t.root)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	joined := filepath.Join(root, rel)
	if !strings.HasPrefix(joined, root+string(filepath.Separator)) && joined != root {
		return "", fmt.Errorf("path %q escapes workspace root", rel)
	}
	return joined, nil
}
