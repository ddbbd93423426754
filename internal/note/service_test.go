package note

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backoffice/internal/document"
	"github.com/noah-isme/backoffice/internal/store"
)

type memNotes struct {
	rows map[uuid.UUID]store.NoteRow
}

func (m *memNotes) Insert(_ context.Context, row store.NoteRow) (store.NoteRow, error) {
	row.ID = uuid.New()
	row.CreatedAt = time.Now().UTC()
	m.rows[row.ID] = row
	return row, nil
}

func (m *memNotes) Get(_ context.Context, id uuid.UUID) (store.NoteRow, error) {
	row, ok := m.rows[id]
	if !ok {
		return store.NoteRow{}, store.ErrNotFound
	}
	return row, nil
}

func (m *memNotes) ListByResource(_ context.Context, resourceType string, resourceID uuid.UUID, _, _ int32) ([]store.NoteRow, error) {
	var out []store.NoteRow
	for _, row := range m.rows {
		if row.ResourceType == resourceType && row.ResourceID == resourceID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memNotes) UpdateBody(_ context.Context, id uuid.UUID, body string) (store.NoteRow, error) {
	row, ok := m.rows[id]
	if !ok {
		return store.NoteRow{}, store.ErrNotFound
	}
	row.Body = body
	m.rows[id] = row
	return row, nil
}

func (m *memNotes) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.rows[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

type stubDocs struct {
	id   uuid.UUID
	kind string
}

func (d *stubDocs) Get(_ context.Context, id uuid.UUID, kind string) (store.DocumentRow, error) {
	if id != d.id || kind != d.kind {
		return store.DocumentRow{}, store.ErrNotFound
	}
	return store.DocumentRow{ID: id, Kind: kind}, nil
}

func testService(kind string) (*Service, *stubDocs) {
	docs := &stubDocs{id: uuid.New(), kind: kind}
	return &Service{Notes: &memNotes{rows: map[uuid.UUID]store.NoteRow{}}, Documents: docs}, docs
}

func TestCreateAndListNotes(t *testing.T) {
	t.Parallel()

	svc, docs := testService(document.KindQuote)
	ctx := context.Background()

	note, err := svc.Create(ctx, document.KindQuote, docs.id, "user-1", "  call customer back  ")
	require.NoError(t, err)
	require.Equal(t, "call customer back", note.Body)
	require.Equal(t, "user-1", note.Author)

	notes, err := svc.ListByResource(ctx, document.KindQuote, docs.id, 50, 0)
	require.NoError(t, err)
	require.Len(t, notes, 1)
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()

	svc, docs := testService(document.KindOrder)
	ctx := context.Background()

	_, err := svc.Create(ctx, "invoice", docs.id, "u", "body")
	require.ErrorIs(t, err, ErrInvalidResource)

	_, err = svc.Create(ctx, document.KindOrder, docs.id, "u", "   ")
	require.ErrorIs(t, err, ErrEmptyBody)

	_, err = svc.Create(ctx, document.KindOrder, uuid.New(), "u", "body")
	require.ErrorIs(t, err, ErrResourceNotFound)
}

func TestUpdateAndDelete(t *testing.T) {
	t.Parallel()

	svc, docs := testService(document.KindOrder)
	ctx := context.Background()

	note, err := svc.Create(ctx, document.KindOrder, docs.id, "u", "first")
	require.NoError(t, err)

	updated, err := svc.UpdateBody(ctx, note.ID, "second")
	require.NoError(t, err)
	require.Equal(t, "second", updated.Body)

	_, err = svc.UpdateBody(ctx, note.ID, " ")
	require.ErrorIs(t, err, ErrEmptyBody)

	require.NoError(t, svc.Delete(ctx, note.ID))
	require.ErrorIs(t, svc.Delete(ctx, note.ID), ErrNotFound)
}
