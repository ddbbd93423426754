package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// TagRow is a named label attachable to documents.
type TagRow struct {
	ID   uuid.UUID
	Name string
}

// TagStore persists tags and their document assignments.
type TagStore struct {
	DB DB
}

const upsertTagSQL = `
INSERT INTO tags (id, tenant_id, name)
VALUES ($1, $2, $3)
ON CONFLICT (tenant_id, name) DO UPDATE SET name = EXCLUDED.name
RETURNING id, name`

// Upsert creates a tag or returns the existing one with that name.
func (s TagStore) Upsert(ctx context.Context, name string) (TagRow, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return TagRow{}, err
	}
	out, err := scanTag(s.DB.QueryRow(ctx, upsertTagSQL, pgUUID(uuid.New()), tid, name))
	if err != nil {
		return TagRow{}, mapRowError(err)
	}
	return out, nil
}

const listTagsSQL = `
SELECT id, name FROM tags WHERE tenant_id = $1 ORDER BY name`

// List returns the tenant's tags alphabetically.
func (s TagStore) List(ctx context.Context) ([]TagRow, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.Query(ctx, listTagsSQL, tid)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var tags []TagRow
	for rows.Next() {
		row, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, row)
	}
	return tags, rows.Err()
}

const listDocumentTagsSQL = `
SELECT t.id, t.name
FROM tags t
JOIN document_tags dt ON dt.tag_id = t.id
WHERE t.tenant_id = $1 AND dt.document_id = $2
ORDER BY t.name`

// ListByDocument returns the tags assigned to one document.
func (s TagStore) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]TagRow, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.Query(ctx, listDocumentTagsSQL, tid, pgUUID(documentID))
	if err != nil {
		return nil, fmt.Errorf("list document tags: %w", err)
	}
	defer rows.Close()

	var tags []TagRow
	for rows.Next() {
		row, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, row)
	}
	return tags, rows.Err()
}

const attachTagSQL = `
INSERT INTO document_tags (document_id, tag_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING`

const detachTagSQL = `
DELETE FROM document_tags WHERE document_id = $1 AND tag_id = $2`

// SyncDocument reconciles a document's tag assignments against the wanted
// tag names. Missing tags are created, extra assignments are removed.
func (s TagStore) SyncDocument(ctx context.Context, documentID uuid.UUID, names []string) ([]TagRow, error) {
	current, err := s.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}
	existing := make(map[string]TagRow, len(current))
	for _, tag := range current {
		existing[tag.Name] = tag
	}

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]TagRow, 0, len(names))
	for _, name := range names {
		tag, ok := existing[name]
		if !ok {
			tag, err = scanTag(tx.QueryRow(ctx, upsertTagSQL, pgUUID(uuid.New()), tid, name))
			if err != nil {
				return nil, mapRowError(err)
			}
			if _, err := tx.Exec(ctx, attachTagSQL, pgUUID(documentID), pgUUID(tag.ID)); err != nil {
				return nil, fmt.Errorf("attach tag: %w", err)
			}
		}
		result = append(result, tag)
	}
	for name, tag := range existing {
		if !wanted[name] {
			if _, err := tx.Exec(ctx, detachTagSQL, pgUUID(documentID), pgUUID(tag.ID)); err != nil {
				return nil, fmt.Errorf("detach tag: %w", err)
			}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return result, nil
}

func scanTag(row rowScanner) (TagRow, error) {
	var (
		out TagRow
		id  pgtype.UUID
	)
	if err := row.Scan(&id, &out.Name); err != nil {
		return TagRow{}, err
	}
	out.ID = fromPgUUID(id)
	return out, nil
}
