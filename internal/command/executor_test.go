package command

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backoffice/internal/audit"
)

type memAuditStore struct {
	entries []audit.Entry
}

func (m *memAuditStore) InsertEntry(_ context.Context, entry audit.Entry) (audit.Entry, error) {
	entry.ID = uuid.New()
	m.entries = append(m.entries, entry)
	return entry, nil
}

func (m *memAuditStore) ListEntries(_ context.Context, tenantID uuid.UUID, resourceType, resourceID string, limit, offset int32) ([]audit.Entry, error) {
	var out []audit.Entry
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.TenantID == tenantID && e.ResourceType == resourceType && e.ResourceID == resourceID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memAuditStore) LastActive(_ context.Context, tenantID uuid.UUID, actorID string) (audit.Entry, error) {
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.TenantID == tenantID && e.ActorID == actorID && !e.Undone {
			return e, nil
		}
	}
	return audit.Entry{}, audit.ErrEntryNotFound
}

func (m *memAuditStore) LastUndone(_ context.Context, tenantID uuid.UUID, actorID string) (audit.Entry, error) {
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.TenantID == tenantID && e.ActorID == actorID && e.Undone {
			return e, nil
		}
	}
	return audit.Entry{}, audit.ErrEntryNotFound
}

func (m *memAuditStore) SetUndone(_ context.Context, id uuid.UUID, undone bool) error {
	for i := range m.entries {
		if m.entries[i].ID == id {
			m.entries[i].Undone = undone
			return nil
		}
	}
	return audit.ErrEntryNotFound
}

type noteState struct {
	Body string `json:"body"`
}

func testExecutor(t *testing.T, states map[string]noteState) (*Executor, *memAuditStore) {
	t.Helper()
	store := &memAuditStore{}
	registry := NewRegistry()
	registry.MustRegister(Definition{
		Name:         "note.update",
		ResourceType: "note",
		Mutate: func(_ context.Context, _ Actor, payload json.RawMessage) (Outcome, error) {
			var in struct {
				ID   string `json:"id"`
				Body string `json:"body"`
			}
			if err := json.Unmarshal(payload, &in); err != nil {
				return Outcome{}, err
			}
			before, _ := json.Marshal(states[in.ID])
			states[in.ID] = noteState{Body: in.Body}
			after, _ := json.Marshal(states[in.ID])
			return Outcome{ResourceID: in.ID, Before: before, After: after, Result: states[in.ID]}, nil
		},
		Restore: func(_ context.Context, _ Actor, resourceID string, state json.RawMessage) error {
			var restored noteState
			if err := json.Unmarshal(state, &restored); err != nil {
				return err
			}
			states[resourceID] = restored
			return nil
		},
	})
	registry.MustRegister(Definition{
		Name:         "note.touch",
		ResourceType: "note",
		Mutate: func(_ context.Context, _ Actor, _ json.RawMessage) (Outcome, error) {
			return Outcome{ResourceID: "fixed"}, nil
		},
	})
	exec := &Executor{
		Registry: registry,
		Audit:    audit.Service{Store: store, Enabled: true},
		Logger:   zerolog.Nop(),
	}
	return exec, store
}

func TestExecuteRecordsAuditEntry(t *testing.T) {
	t.Parallel()

	states := map[string]noteState{"n1": {Body: "old"}}
	exec, store := testExecutor(t, states)
	actor := Actor{TenantID: uuid.New(), ID: "user-1"}

	result, err := exec.Execute(context.Background(), actor, "note.update", json.RawMessage(`{"id":"n1","body":"new"}`))
	require.NoError(t, err)
	require.Equal(t, noteState{Body: "new"}, result)

	require.Len(t, store.entries, 1)
	entry := store.entries[0]
	require.Equal(t, "note.update", entry.Command)
	require.Equal(t, "note", entry.ResourceType)
	require.Equal(t, "n1", entry.ResourceID)
	require.Equal(t, []string{"body"}, entry.Changed)
	require.JSONEq(t, `{"body":"old"}`, string(entry.Before))
	require.JSONEq(t, `{"body":"new"}`, string(entry.After))
}

func TestExecuteUnknownCommand(t *testing.T) {
	t.Parallel()

	exec, _ := testExecutor(t, map[string]noteState{})
	_, err := exec.Execute(context.Background(), Actor{TenantID: uuid.New(), ID: "u"}, "nope", nil)
	require.ErrorIs(t, err, ErrUnknownCommand)
}

func TestUndoRedoRoundtrip(t *testing.T) {
	t.Parallel()

	states := map[string]noteState{"n1": {Body: "v1"}}
	exec, _ := testExecutor(t, states)
	actor := Actor{TenantID: uuid.New(), ID: "user-1"}
	ctx := context.Background()

	_, err := exec.Execute(ctx, actor, "note.update", json.RawMessage(`{"id":"n1","body":"v2"}`))
	require.NoError(t, err)
	require.Equal(t, "v2", states["n1"].Body)

	entry, err := exec.Undo(ctx, actor)
	require.NoError(t, err)
	require.Equal(t, "note.update", entry.Command)
	require.Equal(t, "v1", states["n1"].Body)

	// Nothing active remains for this actor.
	_, err = exec.Undo(ctx, actor)
	require.ErrorIs(t, err, audit.ErrNothingToUndo)

	_, err = exec.Redo(ctx, actor)
	require.NoError(t, err)
	require.Equal(t, "v2", states["n1"].Body)

	_, err = exec.Redo(ctx, actor)
	require.ErrorIs(t, err, audit.ErrNothingToRedo)
}

func TestUndoWithoutRestoreFunc(t *testing.T) {
	t.Parallel()

	exec, _ := testExecutor(t, map[string]noteState{})
	actor := Actor{TenantID: uuid.New(), ID: "user-2"}
	ctx := context.Background()

	_, err := exec.Execute(ctx, actor, "note.touch", nil)
	require.NoError(t, err)

	_, err = exec.Undo(ctx, actor)
	require.ErrorIs(t, err, ErrNotUndoable)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	def := Definition{Name: "x", Mutate: func(context.Context, Actor, json.RawMessage) (Outcome, error) {
		return Outcome{}, nil
	}}
	require.NoError(t, registry.Register(def))
	require.ErrorIs(t, registry.Register(def), ErrDuplicateCommand)
	require.Equal(t, []string{"x"}, registry.Names())
}
