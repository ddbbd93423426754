package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// NoteRow is a free-form note attached to a quote or order.
type NoteRow struct {
	ID           uuid.UUID
	ResourceType string
	ResourceID   uuid.UUID
	Author       string
	Body         string
	CreatedAt    time.Time
}

// NoteStore persists notes.
type NoteStore struct {
	DB DB
}

const insertNoteSQL = `
INSERT INTO notes (id, tenant_id, resource_type, resource_id, author, body, created_at)
VALUES ($1, $2, $3, $4, $5, $6, now())
RETURNING id, resource_type, resource_id, author, body, created_at`

// Insert attaches a note to a resource.
func (s NoteStore) Insert(ctx context.Context, row NoteRow) (NoteRow, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return NoteRow{}, err
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	out, err := scanNote(s.DB.QueryRow(ctx, insertNoteSQL,
		pgUUID(row.ID), tid, row.ResourceType, pgUUID(row.ResourceID), row.Author, row.Body))
	if err != nil {
		return NoteRow{}, mapRowError(err)
	}
	return out, nil
}

const getNoteSQL = `
SELECT id, resource_type, resource_id, author, body, created_at
FROM notes WHERE tenant_id = $1 AND id = $2`

// Get returns one note by id.
func (s NoteStore) Get(ctx context.Context, id uuid.UUID) (NoteRow, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return NoteRow{}, err
	}
	out, err := scanNote(s.DB.QueryRow(ctx, getNoteSQL, tid, pgUUID(id)))
	if err != nil {
		return NoteRow{}, mapRowError(err)
	}
	return out, nil
}

const listNotesSQL = `
SELECT id, resource_type, resource_id, author, body, created_at
FROM notes
WHERE tenant_id = $1 AND resource_type = $2 AND resource_id = $3
ORDER BY created_at DESC
LIMIT $4 OFFSET $5`

// ListByResource returns a resource's notes newest first.
func (s NoteStore) ListByResource(ctx context.Context, resourceType string, resourceID uuid.UUID, limit, offset int32) ([]NoteRow, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.Query(ctx, listNotesSQL, tid, resourceType, pgUUID(resourceID), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var notes []NoteRow
	for rows.Next() {
		row, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, row)
	}
	return notes, rows.Err()
}

const updateNoteSQL = `
UPDATE notes SET body = $3 WHERE tenant_id = $1 AND id = $2
RETURNING id, resource_type, resource_id, author, body, created_at`

// UpdateBody replaces a note's body.
func (s NoteStore) UpdateBody(ctx context.Context, id uuid.UUID, body string) (NoteRow, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return NoteRow{}, err
	}
	out, err := scanNote(s.DB.QueryRow(ctx, updateNoteSQL, tid, pgUUID(id), body))
	if err != nil {
		return NoteRow{}, mapRowError(err)
	}
	return out, nil
}

const deleteNoteSQL = `DELETE FROM notes WHERE tenant_id = $1 AND id = $2`

// Delete removes a note.
func (s NoteStore) Delete(ctx context.Context, id uuid.UUID) error {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return err
	}
	tag, err := s.DB.Exec(ctx, deleteNoteSQL, tid, pgUUID(id))
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanNote(row rowScanner) (NoteRow, error) {
	var (
		out            NoteRow
		id, resourceID pgtype.UUID
	)
	err := row.Scan(&id, &out.ResourceType, &resourceID, &out.Author, &out.Body, &out.CreatedAt)
	if err != nil {
		return NoteRow{}, err
	}
	out.ID = fromPgUUID(id)
	out.ResourceID = fromPgUUID(resourceID)
	return out, nil
}
