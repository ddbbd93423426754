package command

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backoffice/internal/audit"
	"github.com/noah-isme/backoffice/internal/obs"
	"github.com/noah-isme/backoffice/internal/snapshot"
)

// Executor runs registered commands, records each execution in the audit
// trail and serves undo/redo requests from it.
type Executor struct {
	Registry *Registry
	Audit    audit.Service
	Logger   zerolog.Logger
}

// Execute looks up the command, applies it and appends an audit entry with
// the before/after snapshots reported by the handler. The handler's result
// is returned to the caller for rendering.
func (e *Executor) Execute(ctx context.Context, actor Actor, name string, payload json.RawMessage) (any, error) {
	def, ok := e.Registry.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}

	outcome, err := def.Mutate(ctx, actor, payload)
	if err != nil {
		obs.ObserveCommand(name, "error")
		return nil, err
	}
	obs.ObserveCommand(name, "ok")

	entry := audit.Entry{
		TenantID:     actor.TenantID,
		ActorID:      actor.ID,
		Command:      name,
		ResourceType: def.ResourceType,
		ResourceID:   outcome.ResourceID,
		Before:       outcome.Before,
		After:        outcome.After,
		Changed:      changedFields(outcome.Before, outcome.After),
	}
	if _, auditErr := e.Audit.Record(ctx, entry); auditErr != nil {
		// The mutation is already committed; losing the trail entry is
		// logged but does not fail the request.
		e.Logger.Error().Err(auditErr).Str("command", name).Msg("record audit entry")
	}
	return outcome.Result, nil
}

// Undo reinstates the before-snapshot of the actor's most recent command and
// marks the entry undone.
func (e *Executor) Undo(ctx context.Context, actor Actor) (audit.Entry, error) {
	entry, err := e.Audit.NextUndo(ctx, actor.TenantID, actor.ID)
	if err != nil {
		return audit.Entry{}, err
	}
	if err := e.restore(ctx, actor, entry, entry.Before); err != nil {
		return audit.Entry{}, err
	}
	if err := e.Audit.MarkUndone(ctx, entry.ID, true); err != nil {
		return audit.Entry{}, err
	}
	obs.ObserveCommand(entry.Command, "undo")
	return entry, nil
}

// Redo replays the after-snapshot of the actor's most recently undone
// command and clears its undo flag.
func (e *Executor) Redo(ctx context.Context, actor Actor) (audit.Entry, error) {
	entry, err := e.Audit.NextRedo(ctx, actor.TenantID, actor.ID)
	if err != nil {
		return audit.Entry{}, err
	}
	if err := e.restore(ctx, actor, entry, entry.After); err != nil {
		return audit.Entry{}, err
	}
	if err := e.Audit.MarkUndone(ctx, entry.ID, false); err != nil {
		return audit.Entry{}, err
	}
	obs.ObserveCommand(entry.Command, "redo")
	return entry, nil
}

func (e *Executor) restore(ctx context.Context, actor Actor, entry audit.Entry, state json.RawMessage) error {
	def, ok := e.Registry.Lookup(entry.Command)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, entry.Command)
	}
	if def.Restore == nil {
		return fmt.Errorf("%w: %s", ErrNotUndoable, entry.Command)
	}
	return def.Restore(ctx, actor, entry.ResourceID, state)
}

func changedFields(before, after json.RawMessage) []string {
	left, err := snapshot.FromRaw[map[string]any](before)
	if err != nil {
		return nil
	}
	right, err := snapshot.FromRaw[map[string]any](after)
	if err != nil {
		return nil
	}
	return left.Diff(right)
}
