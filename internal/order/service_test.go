package order

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

type memMethods struct {
	rows map[uuid.UUID]store.MethodRow
}

func (m *memMethods) Get(_ context.Context, id uuid.UUID, kind string) (store.MethodRow, error) {
	row, ok := m.rows[id]
	if !ok || row.Kind != kind {
		return store.MethodRow{}, store.ErrNotFound
	}
	return row, nil
}

type memPayments struct {
	totals map[uuid.UUID]store.PaymentTotals
}

func (m *memPayments) TotalsByOrder(_ context.Context, orderID uuid.UUID) (store.PaymentTotals, error) {
	return m.totals[orderID], nil
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

// seedOrder plants an open order row with the given lines and returns the
// wired service plus the order id.
func seedOrder(t *testing.T) (*Service, *memDocs, *memMethods, *memPayments, uuid.UUID) {
	t.Helper()
	linesJSON, err := document.EncodeLines(testLines(t))
	require.NoError(t, err)
	adjustmentsJSON, err := document.EncodeAdjustments(nil)
	require.NoError(t, err)

	id := uuid.New()
	docs := &memDocs{rows: map[uuid.UUID]store.DocumentRow{id: {
		ID:          id,
		Kind:        document.KindOrder,
		Status:      document.OrderStatusOpen,
		Currency:    "EUR",
		Lines:       linesJSON,
		Adjustments: adjustmentsJSON,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}}}
	methods := &memMethods{rows: map[uuid.UUID]store.MethodRow{}}
	payments := &memPayments{totals: map[uuid.UUID]store.PaymentTotals{}}
	svc := &Service{Documents: docs, Methods: methods, Payments: payments}
	return svc, docs, methods, payments, id
}

func decodeTotals(t *testing.T, raw json.RawMessage) calc.Result {
	t.Helper()
	var result calc.Result
	require.NoError(t, json.Unmarshal(raw, &result))
	return result
}

func findByKey(adjustments []document.Adjustment, key string) *document.Adjustment {
	for i := range adjustments {
		if adjustments[i].CalculatorKey != nil && *adjustments[i].CalculatorKey == key {
			return &adjustments[i]
		}
	}
	return nil
}

func TestSetShippingMethodAddsProviderAdjustment(t *testing.T) {
	t.Parallel()

	svc, _, methods, _, orderID := seedOrder(t)
	methodID := uuid.New()
	methods.rows[methodID] = store.MethodRow{
		ID:             methodID,
		Kind:           store.MethodKindShipping,
		Code:           "dhl-standard",
		Name:           "DHL Standard",
		ProviderKey:    "dhl",
		BaseRateNet:    dec(t, "4.90"),
		PerItemRateNet: dec(t, "0.50"),
	}

	order, err := svc.SetShippingMethod(context.Background(), uuid.New(), orderID, &methodID)
	require.NoError(t, err)
	require.NotNil(t, order.ShippingMethodID)

	shipping := findByKey(order.Adjustments, calc.ShippingProviderPrefix+"dhl")
	require.NotNil(t, shipping)
	// base 4.90 plus 0.50 per item over 2 items
	require.Equal(t, "5.90", shipping.AmountNet.StringFixed(2))

	result := decodeTotals(t, order.Totals)
	require.Equal(t, "5.90", result.Totals.ShippingNet.StringFixed(2))
	require.Equal(t, "29.90", result.Totals.GrandTotalGross.StringFixed(2))
}

func TestSetShippingMethodUnknown(t *testing.T) {
	t.Parallel()

	svc, _, _, _, orderID := seedOrder(t)
	missing := uuid.New()
	_, err := svc.SetShippingMethod(context.Background(), uuid.New(), orderID, &missing)
	require.ErrorIs(t, err, ErrMethodNotFound)
}

func TestClearShippingMethodDropsAdjustment(t *testing.T) {
	t.Parallel()

	svc, _, methods, _, orderID := seedOrder(t)
	methodID := uuid.New()
	methods.rows[methodID] = store.MethodRow{
		ID:          methodID,
		Kind:        store.MethodKindShipping,
		Code:        "dhl-standard",
		Name:        "DHL Standard",
		ProviderKey: "dhl",
		BaseRateNet: dec(t, "4.90"),
	}
	ctx := context.Background()
	tenantID := uuid.New()

	_, err := svc.SetShippingMethod(ctx, tenantID, orderID, &methodID)
	require.NoError(t, err)

	order, err := svc.SetShippingMethod(ctx, tenantID, orderID, nil)
	require.NoError(t, err)
	require.Nil(t, order.ShippingMethodID)
	require.Nil(t, findByKey(order.Adjustments, calc.ShippingProviderPrefix+"dhl"))

	result := decodeTotals(t, order.Totals)
	require.Equal(t, "0.00", result.Totals.ShippingNet.StringFixed(2))
}

func TestSetPaymentMethodAddsSurcharge(t *testing.T) {
	t.Parallel()

	svc, _, methods, _, orderID := seedOrder(t)
	methodID := uuid.New()
	methods.rows[methodID] = store.MethodRow{
		ID:          methodID,
		Kind:        store.MethodKindPayment,
		Code:        "card",
		Name:        "Credit card",
		ProviderKey: "stripe",
		FeeRate:     dec(t, "0.02"),
	}

	order, err := svc.SetPaymentMethod(context.Background(), uuid.New(), orderID, &methodID)
	require.NoError(t, err)

	surcharge := findByKey(order.Adjustments, calc.PaymentProviderPrefix+"stripe")
	require.NotNil(t, surcharge)

	// 2% of the 20.00 line subtotal
	result := decodeTotals(t, order.Totals)
	require.Equal(t, "0.40", result.Totals.SurchargeTotal.StringFixed(2))
}

func TestUpdateContentKeepsManualOverride(t *testing.T) {
	t.Parallel()

	svc, _, methods, _, orderID := seedOrder(t)
	methodID := uuid.New()
	methods.rows[methodID] = store.MethodRow{
		ID:          methodID,
		Kind:        store.MethodKindShipping,
		Code:        "dhl-standard",
		Name:        "DHL Standard",
		ProviderKey: "dhl",
		BaseRateNet: dec(t, "4.90"),
	}
	ctx := context.Background()
	tenantID := uuid.New()

	order, err := svc.SetShippingMethod(ctx, tenantID, orderID, &methodID)
	require.NoError(t, err)

	// The operator rewrites the shipping charge to a negotiated flat price.
	edited := order.Adjustments
	shipping := findByKey(edited, calc.ShippingProviderPrefix+"dhl")
	require.NotNil(t, shipping)
	shipping.AmountNet = decPtr(t, "2.00")
	shipping.AmountGross = nil

	updated, err := svc.UpdateContent(ctx, tenantID, orderID, Content{
		Lines:       order.Lines,
		Adjustments: edited,
	})
	require.NoError(t, err)

	kept := findByKey(updated.Adjustments, calc.ShippingProviderPrefix+"dhl")
	require.NotNil(t, kept)
	require.Equal(t, "2.00", kept.AmountNet.StringFixed(2))
	require.Equal(t, true, kept.Metadata["manualOverride"])

	// Re-running the providers must not clobber the override.
	recalced, err := svc.Recalculate(ctx, tenantID, orderID)
	require.NoError(t, err)
	again := findByKey(recalced.Adjustments, calc.ShippingProviderPrefix+"dhl")
	require.NotNil(t, again)
	require.Equal(t, "2.00", again.AmountNet.StringFixed(2))
}

func TestRecalculateReconcilesPayments(t *testing.T) {
	t.Parallel()

	svc, _, _, payments, orderID := seedOrder(t)
	ctx := context.Background()
	tenantID := uuid.New()

	payments.totals[orderID] = store.PaymentTotals{Paid: dec(t, "24.00")}
	order, err := svc.Recalculate(ctx, tenantID, orderID)
	require.NoError(t, err)

	result := decodeTotals(t, order.Totals)
	require.NotNil(t, result.Totals.Outstanding)
	require.Equal(t, "0.00", result.Totals.Outstanding.StringFixed(2))

	// A refund reopens the balance.
	payments.totals[orderID] = store.PaymentTotals{Paid: dec(t, "24.00"), Refunded: dec(t, "10.00")}
	order, err = svc.Recalculate(ctx, tenantID, orderID)
	require.NoError(t, err)
	result = decodeTotals(t, order.Totals)
	require.Equal(t, "10.00", result.Totals.Outstanding.StringFixed(2))
}

func TestSetStatusTransitions(t *testing.T) {
	t.Parallel()

	svc, _, _, _, orderID := seedOrder(t)
	ctx := context.Background()

	_, err := svc.SetStatus(ctx, orderID, document.OrderStatusFulfilled)
	require.ErrorIs(t, err, ErrInvalidTransition)

	order, err := svc.SetStatus(ctx, orderID, document.OrderStatusPaid)
	require.NoError(t, err)
	require.Equal(t, document.OrderStatusPaid, order.Status)

	order, err = svc.SetStatus(ctx, orderID, document.OrderStatusFulfilled)
	require.NoError(t, err)
	require.Equal(t, document.OrderStatusFulfilled, order.Status)

	_, err = svc.SetStatus(ctx, orderID, document.OrderStatusOpen)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSnapshotRestoreRoundtrip(t *testing.T) {
	t.Parallel()

	svc, _, _, _, orderID := seedOrder(t)
	ctx := context.Background()
	tenantID := uuid.New()

	before, err := svc.Snapshot(ctx, orderID)
	require.NoError(t, err)
	encoded, err := json.Marshal(before)
	require.NoError(t, err)

	lines := testLines(t)
	lines[0].Quantity = 5
	_, err = svc.UpdateContent(ctx, tenantID, orderID, Content{Lines: lines})
	require.NoError(t, err)

	require.NoError(t, svc.RestoreState(ctx, tenantID, orderID, encoded))
	restored, err := svc.Get(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, restored.Lines, 1)
	require.Equal(t, int64(2), restored.Lines[0].Quantity)

	result := decodeTotals(t, restored.Totals)
	require.Equal(t, "24.00", result.Totals.GrandTotalGross.StringFixed(2))
}
