package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backoffice/internal/audit"
)

// AuditStore persists the command audit trail.
type AuditStore struct {
	DB DB
}

const insertAuditEntrySQL = `
INSERT INTO audit_entries (id, tenant_id, actor_id, command, resource_type, resource_id, before_state, after_state, changed_fields, undone, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
RETURNING id, tenant_id, actor_id, command, resource_type, resource_id, before_state, after_state, changed_fields, undone, created_at`

// InsertEntry appends one entry and returns it with the database timestamp.
func (s AuditStore) InsertEntry(ctx context.Context, entry audit.Entry) (audit.Entry, error) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	row := s.DB.QueryRow(ctx, insertAuditEntrySQL,
		pgUUID(entry.ID),
		pgUUID(entry.TenantID),
		entry.ActorID,
		entry.Command,
		entry.ResourceType,
		entry.ResourceID,
		entry.Before,
		entry.After,
		entry.Changed,
		entry.Undone,
	)
	return scanAuditEntry(row)
}

const listAuditEntriesSQL = `
SELECT id, tenant_id, actor_id, command, resource_type, resource_id, before_state, after_state, changed_fields, undone, created_at
FROM audit_entries
WHERE tenant_id = $1 AND resource_type = $2 AND resource_id = $3
ORDER BY created_at DESC
LIMIT $4 OFFSET $5`

// ListEntries returns a page of entries for one resource, newest first.
func (s AuditStore) ListEntries(ctx context.Context, tenantID uuid.UUID, resourceType, resourceID string, limit, offset int32) ([]audit.Entry, error) {
	rows, err := s.DB.Query(ctx, listAuditEntriesSQL, pgUUID(tenantID), resourceType, resourceID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

const lastActiveAuditEntrySQL = `
SELECT id, tenant_id, actor_id, command, resource_type, resource_id, before_state, after_state, changed_fields, undone, created_at
FROM audit_entries
WHERE tenant_id = $1 AND actor_id = $2 AND undone = false
ORDER BY created_at DESC
LIMIT 1`

// LastActive returns the actor's newest entry that has not been undone.
func (s AuditStore) LastActive(ctx context.Context, tenantID uuid.UUID, actorID string) (audit.Entry, error) {
	row := s.DB.QueryRow(ctx, lastActiveAuditEntrySQL, pgUUID(tenantID), actorID)
	entry, err := scanAuditEntry(row)
	if err != nil {
		return audit.Entry{}, mapEntryError(err)
	}
	return entry, nil
}

const lastUndoneAuditEntrySQL = `
SELECT id, tenant_id, actor_id, command, resource_type, resource_id, before_state, after_state, changed_fields, undone, created_at
FROM audit_entries
WHERE tenant_id = $1 AND actor_id = $2 AND undone = true
ORDER BY created_at DESC
LIMIT 1`

// LastUndone returns the actor's newest undone entry.
func (s AuditStore) LastUndone(ctx context.Context, tenantID uuid.UUID, actorID string) (audit.Entry, error) {
	row := s.DB.QueryRow(ctx, lastUndoneAuditEntrySQL, pgUUID(tenantID), actorID)
	entry, err := scanAuditEntry(row)
	if err != nil {
		return audit.Entry{}, mapEntryError(err)
	}
	return entry, nil
}

const setAuditEntryUndoneSQL = `UPDATE audit_entries SET undone = $2 WHERE id = $1`

// SetUndone flips the undone flag on an entry.
func (s AuditStore) SetUndone(ctx context.Context, id uuid.UUID, undone bool) error {
	tag, err := s.DB.Exec(ctx, setAuditEntryUndoneSQL, pgUUID(id), undone)
	if err != nil {
		return fmt.Errorf("set audit entry undone: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return audit.ErrEntryNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuditEntry(row rowScanner) (audit.Entry, error) {
	var (
		entry   audit.Entry
		id, tid pgtype.UUID
	)
	err := row.Scan(&id, &tid, &entry.ActorID, &entry.Command, &entry.ResourceType, &entry.ResourceID,
		&entry.Before, &entry.After, &entry.Changed, &entry.Undone, &entry.CreatedAt)
	if err != nil {
		return audit.Entry{}, err
	}
	entry.ID = fromPgUUID(id)
	entry.TenantID = fromPgUUID(tid)
	return entry, nil
}

func mapEntryError(err error) error {
	if mapped := mapRowError(err); mapped == ErrNotFound {
		return audit.ErrEntryNotFound
	} else if mapped != nil {
		return mapped
	}
	return err
}
