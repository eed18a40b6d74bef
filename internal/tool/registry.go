// Package tool declares the tools a model may call and executes them.
package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gosuda/deepsearch/internal/domain"
)

// Func runs a tool with already validated arguments. The returned value is
// JSON-encoded into the tool result.
type Func func(ctx context.Context, args json.RawMessage) (any, error)

// Definition describes one callable tool. It is immutable after registration.
type Definition struct {
	Name        string
	Description string
	Parameters  json.RawMessage
	Execute     Func
}

type entry struct {
	def    Definition
	schema map[string]any
}

// Registry maps tool names to definitions. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]entry
}

func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{tools: make(map[string]entry, len(defs))}
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds def. The parameter schema must be a JSON object.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidDefinition)
	}
	if def.Execute == nil {
		return fmt.Errorf("%w: %q has no executor", ErrInvalidDefinition, def.Name)
	}

	var schema map[string]any
	if len(def.Parameters) > 0 {
		if err := json.Unmarshal(def.Parameters, &schema); err != nil {
			return fmt.Errorf("%w: %q parameters: %w", ErrInvalidDefinition, def.Name, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tools[def.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateTool, def.Name)
	}
	r.tools[def.Name] = entry{def: def, schema: schema}

	return nil
}

func (r *Registry) Lookup(name string) (Definition, error) {
	r.mu.RLock()
	e, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}
	return e.def, nil
}

// Execute validates args against the tool's schema and runs it.
//
// Lookup and validation failures wrap ErrToolNotFound and ErrInvalidArguments.
// Executor failures are returned as *ExecutionError. When ctx itself is done
// its error is returned unwrapped.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	e, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}

	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	if err := validateArguments(e.schema, args); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidArguments, name, err)
	}

	out, err := e.def.Execute(ctx, args)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, ErrInvalidArguments) {
			return nil, err
		}
		return nil, &ExecutionError{Tool: name, Err: err}
	}

	return out, nil
}

// Specs returns the declared tools sorted by name.
func (r *Registry) Specs() []domain.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]domain.ToolSpec, 0, len(r.tools))
	for _, e := range r.tools {
		specs = append(specs, domain.ToolSpec{
			Name:        e.def.Name,
			Description: e.def.Description,
			Parameters:  e.def.Parameters,
		})
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })

	return specs
}
