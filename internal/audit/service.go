package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNothingToUndo is returned when the actor has no entry left to undo.
	ErrNothingToUndo = errors.New("audit: nothing to undo")
	// ErrNothingToRedo is returned when the actor has no undone entry to
	// replay.
	ErrNothingToRedo = errors.New("audit: nothing to redo")
	// ErrEntryNotFound is returned by stores when no matching entry exists.
	ErrEntryNotFound = errors.New("audit: entry not found")
)

// Entry is one audited command execution with its before/after snapshots.
type Entry struct {
	ID           uuid.UUID       `json:"id"`
	TenantID     uuid.UUID       `json:"tenantId"`
	ActorID      string          `json:"actorId"`
	Command      string          `json:"command"`
	ResourceType string          `json:"resourceType"`
	ResourceID   string          `json:"resourceId"`
	Before       json.RawMessage `json:"before,omitempty"`
	After        json.RawMessage `json:"after,omitempty"`
	Changed      []string        `json:"changed,omitempty"`
	Undone       bool            `json:"undone"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Store defines the persistence operations the audit service needs.
type Store interface {
	InsertEntry(ctx context.Context, entry Entry) (Entry, error)
	ListEntries(ctx context.Context, tenantID uuid.UUID, resourceType, resourceID string, limit, offset int32) ([]Entry, error)
	LastActive(ctx context.Context, tenantID uuid.UUID, actorID string) (Entry, error)
	LastUndone(ctx context.Context, tenantID uuid.UUID, actorID string) (Entry, error)
	SetUndone(ctx context.Context, id uuid.UUID, undone bool) error
}

// Service persists the command audit trail and drives undo bookkeeping.
type Service struct {
	Store   Store
	Enabled bool
}

// Record appends an entry to the trail. A disabled service drops entries
// silently so command execution never depends on audit availability.
func (s Service) Record(ctx context.Context, entry Entry) (Entry, error) {
	if !s.Enabled {
		return entry, nil
	}
	if s.Store == nil {
		return Entry{}, errors.New("audit: store not configured")
	}
	return s.Store.InsertEntry(ctx, entry)
}

// List returns entries for a resource, newest first.
func (s Service) List(ctx context.Context, tenantID uuid.UUID, resourceType, resourceID string, limit, offset int32) ([]Entry, error) {
	if s.Store == nil {
		return nil, errors.New("audit: store not configured")
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.Store.ListEntries(ctx, tenantID, resourceType, resourceID, limit, offset)
}

// NextUndo returns the actor's most recent entry that has not been undone.
func (s Service) NextUndo(ctx context.Context, tenantID uuid.UUID, actorID string) (Entry, error) {
	if s.Store == nil {
		return Entry{}, errors.New("audit: store not configured")
	}
	entry, err := s.Store.LastActive(ctx, tenantID, actorID)
	if errors.Is(err, ErrEntryNotFound) {
		return Entry{}, ErrNothingToUndo
	}
	return entry, err
}

// NextRedo returns the actor's most recently undone entry.
func (s Service) NextRedo(ctx context.Context, tenantID uuid.UUID, actorID string) (Entry, error) {
	if s.Store == nil {
		return Entry{}, errors.New("audit: store not configured")
	}
	entry, err := s.Store.LastUndone(ctx, tenantID, actorID)
	if errors.Is(err, ErrEntryNotFound) {
		return Entry{}, ErrNothingToRedo
	}
	return entry, err
}

// MarkUndone flips the undo flag on an entry.
func (s Service) MarkUndone(ctx context.Context, id uuid.UUID, undone bool) error {
	if s.Store == nil {
		return errors.New("audit: store not configured")
	}
	return s.Store.SetUndone(ctx, id, undone)
}
