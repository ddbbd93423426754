// Package command provides the generic execution framework mutating commands
// run through: a registry built explicitly at startup, an executor that
// brackets every mutation with before/after snapshots for the audit trail,
// and snapshot-based undo/redo.
package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

var (
	// ErrUnknownCommand is returned when a command name is not registered.
	ErrUnknownCommand = errors.New("command: unknown command")
	// ErrDuplicateCommand is returned when a name is registered twice.
	ErrDuplicateCommand = errors.New("command: duplicate command")
	// ErrNotUndoable is returned when a command has no restore function.
	ErrNotUndoable = errors.New("command: not undoable")
)

// Actor identifies who is executing a command within a tenant.
type Actor struct {
	TenantID uuid.UUID
	ID       string
}

// Outcome is what a mutate function reports back to the executor: the
// affected resource plus its serialized state before and after the change.
type Outcome struct {
	ResourceID string
	Before     json.RawMessage
	After      json.RawMessage
	Result     any
}

// MutateFunc applies a command payload and reports the outcome.
type MutateFunc func(ctx context.Context, actor Actor, payload json.RawMessage) (Outcome, error)

// RestoreFunc reinstates a previously captured resource state. Commands
// without one cannot be undone.
type RestoreFunc func(ctx context.Context, actor Actor, resourceID string, state json.RawMessage) error

// Definition binds a command name to its behaviour.
type Definition struct {
	Name         string
	ResourceType string
	Mutate       MutateFunc
	Restore      RestoreFunc
}

// Registry holds command definitions. It is assembled once during startup
// and passed to the executor by reference; nothing registers itself at
// import time.
type Registry struct {
	defs map[string]Definition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds a definition. Names must be unique and carry a mutate
// function.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return errors.New("command: name is required")
	}
	if def.Mutate == nil {
		return fmt.Errorf("command %q: mutate function is required", def.Name)
	}
	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCommand, def.Name)
	}
	r.defs[def.Name] = def
	return nil
}

// MustRegister panics on registration failure. Intended for startup wiring.
func (r *Registry) MustRegister(def Definition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Lookup returns the definition for a name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	def, ok := r.defs[name]
	return def, ok
}

// Names lists registered command names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
