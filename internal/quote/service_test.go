package quote

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backoffice/internal/calc"
	"github.com/noah-isme/backoffice/internal/document"
	"github.com/noah-isme/backoffice/internal/store"
)

type memDocs struct {
	rows map[uuid.UUID]store.DocumentRow
}

func newMemDocs() *memDocs {
	return &memDocs{rows: map[uuid.UUID]store.DocumentRow{}}
}

func (m *memDocs) Insert(_ context.Context, row store.DocumentRow) (store.DocumentRow, error) {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if _, ok := m.rows[row.ID]; ok {
		return store.DocumentRow{}, store.ErrConflict
	}
	row.CreatedAt = time.Now().UTC()
	row.UpdatedAt = row.CreatedAt
	m.rows[row.ID] = row
	return row, nil
}

func (m *memDocs) Get(_ context.Context, id uuid.UUID, kind string) (store.DocumentRow, error) {
	row, ok := m.rows[id]
	if !ok || row.Kind != kind {
		return store.DocumentRow{}, store.ErrNotFound
	}
	return row, nil
}

func (m *memDocs) List(_ context.Context, kind string, status *string, _, _ int32) ([]store.DocumentRow, error) {
	var out []store.DocumentRow
	for _, row := range m.rows {
		if row.Kind != kind {
			continue
		}
		if status != nil && row.Status != *status {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (m *memDocs) Update(_ context.Context, row store.DocumentRow) (store.DocumentRow, error) {
	current, ok := m.rows[row.ID]
	if !ok || current.Kind != row.Kind {
		return store.DocumentRow{}, store.ErrNotFound
	}
	row.CreatedAt = current.CreatedAt
	row.UpdatedAt = time.Now().UTC()
	m.rows[row.ID] = row
	return row, nil
}

func (m *memDocs) Delete(_ context.Context, id uuid.UUID, kind string) error {
	row, ok := m.rows[id]
	if !ok || row.Kind != kind {
		return store.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func decPtr(t *testing.T, s string) *decimal.Decimal {
	t.Helper()
	d := dec(t, s)
	return &d
}

func testLines(t *testing.T) []document.Line {
	t.Helper()
	return []document.Line{{
		Kind:     "product",
		Label:    "Desk lamp",
		Quantity: 2,
		UnitNet:  decPtr(t, "10.00"),
		TaxRate:  dec(t, "0.20"),
	}}
}

func decodeTotals(t *testing.T, raw json.RawMessage) calc.Result {
	t.Helper()
	var result calc.Result
	require.NoError(t, json.Unmarshal(raw, &result))
	return result
}

func TestCreateCalculatesTotals(t *testing.T) {
	t.Parallel()

	svc := &Service{Documents: newMemDocs(), DefaultCurrency: "EUR"}
	quote, err := svc.Create(context.Background(), uuid.New(), Content{Lines: testLines(t)})
	require.NoError(t, err)

	require.Equal(t, document.QuoteStatusDraft, quote.Status)
	require.Equal(t, "EUR", quote.Currency)
	require.Len(t, quote.Lines, 1)

	result := decodeTotals(t, quote.Totals)
	require.Equal(t, "20.00", result.Totals.SubtotalNet.StringFixed(2))
	require.Equal(t, "4.00", result.Totals.TaxTotal.StringFixed(2))
	require.Equal(t, "24.00", result.Totals.GrandTotalGross.StringFixed(2))
	require.Nil(t, result.Totals.Outstanding)
}

func TestCreateRejectsInvalidLine(t *testing.T) {
	t.Parallel()

	svc := &Service{Documents: newMemDocs(), DefaultCurrency: "EUR"}
	_, err := svc.Create(context.Background(), uuid.New(), Content{Lines: []document.Line{{
		Kind:     "product",
		Label:    "No price",
		Quantity: 1,
	}}})
	require.Error(t, err)
	require.True(t, calc.IsInvalidLineInput(err))
}

func TestUpdateRecalculatesAndKeepsCurrency(t *testing.T) {
	t.Parallel()

	docs := newMemDocs()
	svc := &Service{Documents: docs, DefaultCurrency: "EUR"}
	ctx := context.Background()
	tenantID := uuid.New()

	quote, err := svc.Create(ctx, tenantID, Content{Currency: "usd", Lines: testLines(t)})
	require.NoError(t, err)
	require.Equal(t, "USD", quote.Currency)

	lines := testLines(t)
	lines[0].Quantity = 3
	updated, err := svc.Update(ctx, tenantID, quote.ID, Content{Lines: lines})
	require.NoError(t, err)
	require.Equal(t, "USD", updated.Currency)

	result := decodeTotals(t, updated.Totals)
	require.Equal(t, "36.00", result.Totals.GrandTotalGross.StringFixed(2))
}

func TestConvertToOrder(t *testing.T) {
	t.Parallel()

	docs := newMemDocs()
	svc := &Service{Documents: docs, DefaultCurrency: "EUR"}
	ctx := context.Background()
	tenantID := uuid.New()

	quote, err := svc.Create(ctx, tenantID, Content{Lines: testLines(t)})
	require.NoError(t, err)

	order, err := svc.ConvertToOrder(ctx, tenantID, quote.ID)
	require.NoError(t, err)
	require.Equal(t, document.KindOrder, order.Kind)
	require.Equal(t, document.OrderStatusOpen, order.Status)
	require.NotNil(t, order.ConvertedFromID)
	require.Equal(t, quote.ID, *order.ConvertedFromID)

	result := decodeTotals(t, order.Totals)
	require.NotNil(t, result.Totals.Outstanding)
	require.Equal(t, "24.00", result.Totals.Outstanding.StringFixed(2))

	converted, err := svc.Get(ctx, quote.ID)
	require.NoError(t, err)
	require.Equal(t, document.QuoteStatusConverted, converted.Status)

	_, err = svc.ConvertToOrder(ctx, tenantID, quote.ID)
	require.ErrorIs(t, err, ErrAlreadyConverted)

	_, err = svc.Update(ctx, tenantID, quote.ID, Content{Lines: testLines(t)})
	require.ErrorIs(t, err, ErrAlreadyConverted)

	require.ErrorIs(t, svc.Delete(ctx, quote.ID), ErrAlreadyConverted)
}

func TestDeleteRemovesQuote(t *testing.T) {
	t.Parallel()

	docs := newMemDocs()
	svc := &Service{Documents: docs, DefaultCurrency: "EUR"}
	ctx := context.Background()

	quote, err := svc.Create(ctx, uuid.New(), Content{Lines: testLines(t)})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, quote.ID))
	_, err = svc.Get(ctx, quote.ID)
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, svc.Delete(ctx, quote.ID), ErrNotFound)
}

func TestRestoreStateEmptyDeletes(t *testing.T) {
	t.Parallel()

	docs := newMemDocs()
	svc := &Service{Documents: docs, DefaultCurrency: "EUR"}
	ctx := context.Background()
	tenantID := uuid.New()

	quote, err := svc.Create(ctx, tenantID, Content{Lines: testLines(t)})
	require.NoError(t, err)

	require.NoError(t, svc.RestoreState(ctx, tenantID, quote.ID, nil))
	_, err = svc.Get(ctx, quote.ID)
	require.ErrorIs(t, err, ErrNotFound)

	// Restoring an already-absent quote is a no-op.
	require.NoError(t, svc.RestoreState(ctx, tenantID, quote.ID, json.RawMessage("null")))
}

func TestRestoreStateReinsertsDeleted(t *testing.T) {
	t.Parallel()

	docs := newMemDocs()
	svc := &Service{Documents: docs, DefaultCurrency: "EUR"}
	ctx := context.Background()
	tenantID := uuid.New()

	quote, err := svc.Create(ctx, tenantID, Content{Reference: "Q-100", Lines: testLines(t)})
	require.NoError(t, err)

	state, err := svc.Snapshot(ctx, quote.ID)
	require.NoError(t, err)
	encoded, err := json.Marshal(state)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, quote.ID))
	require.NoError(t, svc.RestoreState(ctx, tenantID, quote.ID, encoded))

	restored, err := svc.Get(ctx, quote.ID)
	require.NoError(t, err)
	require.Equal(t, quote.ID, restored.ID)
	require.Equal(t, "Q-100", restored.Reference)
	require.Equal(t, document.QuoteStatusDraft, restored.Status)

	result := decodeTotals(t, restored.Totals)
	require.Equal(t, "24.00", result.Totals.GrandTotalGross.StringFixed(2))
}
