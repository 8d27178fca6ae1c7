// Package toolregistry implements the tool registry (part of C5): the
// catalog of tools the agent runtime can invoke, each carrying its static
// security tier and JSON Schema for input validation. Grounded on the
// teacher's tool-policy normalization in internal/tools/policy/types.go,
// generalized from the teacher's alias/profile system to a flat
// name-keyed registry since this module does not carry the teacher's
// multi-channel tool-profile concept.
package toolregistry

import (
	"context"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Ryvos/ryvos-sub000/pkg/models"
)

// Tool is anything the agent runtime can invoke by name.
type Tool interface {
	Name() string
	Description() string
	InputSchema() []byte
	Tier() models.SecurityTier
	Execute(ctx context.Context, input []byte) (models.ToolResult, error)
}

// Registry is a concurrency-safe catalog of Tools, keyed by name.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	schemas map[string]*jsonschema.Schema
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		schemas: make(map[string]*jsonschema.Schema),
	}
}

// Register adds a tool to the registry, compiling and validating its input
// schema. Registration fails if the schema does not compile, catching a
// malformed tool definition before the agent ever tries to call it.
func (r *Registry) Register(t Tool) error {
	compiler := jsonschema.NewCompiler()
	schemaURL := "mem://" + t.Name() + ".json"
	if err := compiler.AddResource(schemaURL, rawSchemaReader(t.InputSchema())); err != nil {
		return fmt.Errorf("toolregistry: tool %q: %w", t.Name(), err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return fmt.Errorf("toolregistry: tool %q: invalid input schema: %w", t.Name(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("toolregistry: tool %q already registered", t.Name())
	}
	r.tools[t.Name()] = t
	r.schemas[t.Name()] = schema
	return nil
}

// Get returns the named tool, or false if it is not registered.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// ValidateInput checks raw JSON input against the named tool's compiled
// schema. Returns an error describing the first schema violation.
func (r *Registry) ValidateInput(name string, input any) error {
	r.mu.RLock()
	schema, ok := r.schemas[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("toolregistry: tool %q not registered", name)
	}
	if err := schema.Validate(input); err != nil {
		return fmt.Errorf("toolregistry: tool %q: %w", name, err)
	}
	return nil
}

// Definitions returns the ToolDefinition for every registered tool, in the
// form the LLMProvider expects to see.
func (r *Registry) Definitions() []models.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]models.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, models.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	return defs
}

// List returns the names of every registered tool.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}
