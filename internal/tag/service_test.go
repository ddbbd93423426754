package tag

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backoffice/internal/document"
	"github.com/noah-isme/backoffice/internal/store"
)

type memTags struct {
	byName   map[string]store.TagRow
	assigned map[uuid.UUID]map[string]struct{}
}

func newMemTags() *memTags {
	return &memTags{
		byName:   map[string]store.TagRow{},
		assigned: map[uuid.UUID]map[string]struct{}{},
	}
}

func (m *memTags) Upsert(_ context.Context, name string) (store.TagRow, error) {
	if row, ok := m.byName[name]; ok {
		return row, nil
	}
	row := store.TagRow{ID: uuid.New(), Name: name}
	m.byName[name] = row
	return row, nil
}

func (m *memTags) List(_ context.Context) ([]store.TagRow, error) {
	var out []store.TagRow
	for _, row := range m.byName {
		out = append(out, row)
	}
	return out, nil
}

func (m *memTags) ListByDocument(_ context.Context, documentID uuid.UUID) ([]store.TagRow, error) {
	var out []store.TagRow
	for name := range m.assigned[documentID] {
		out = append(out, m.byName[name])
	}
	return out, nil
}

func (m *memTags) SyncDocument(ctx context.Context, documentID uuid.UUID, names []string) ([]store.TagRow, error) {
	next := map[string]struct{}{}
	var out []store.TagRow
	for _, name := range names {
		row, err := m.Upsert(ctx, name)
		if err != nil {
			return nil, err
		}
		next[name] = struct{}{}
		out = append(out, row)
	}
	m.assigned[documentID] = next
	return out, nil
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

func TestSyncNormalizesAndDiffs(t *testing.T) {
	t.Parallel()

	docs := &stubDocs{id: uuid.New(), kind: document.KindOrder}
	svc := &Service{Tags: newMemTags(), Documents: docs}
	ctx := context.Background()

	tags, err := svc.Sync(ctx, document.KindOrder, docs.id, []string{" VIP ", "rush", "vip"})
	require.NoError(t, err)
	require.Len(t, tags, 2)

	tags, err = svc.Sync(ctx, document.KindOrder, docs.id, []string{"rush"})
	require.NoError(t, err)
	require.Len(t, tags, 1)
	require.Equal(t, "rush", tags[0].Name)

	listed, err := svc.ListByDocument(ctx, document.KindOrder, docs.id)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	// The detached tag still exists tenant-wide.
	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestSyncRejectsBadInput(t *testing.T) {
	t.Parallel()

	docs := &stubDocs{id: uuid.New(), kind: document.KindQuote}
	svc := &Service{Tags: newMemTags(), Documents: docs}
	ctx := context.Background()

	_, err := svc.Sync(ctx, "invoice", docs.id, []string{"vip"})
	require.ErrorIs(t, err, ErrInvalidResource)

	_, err = svc.Sync(ctx, document.KindQuote, uuid.New(), []string{"vip"})
	require.ErrorIs(t, err, ErrResourceNotFound)

	_, err = svc.Sync(ctx, document.KindQuote, docs.id, []string{"  "})
	require.ErrorIs(t, err, ErrEmptyName)
}
