package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backoffice/internal/command"
	"github.com/noah-isme/backoffice/internal/document"
	"github.com/noah-isme/backoffice/internal/order"
	"github.com/noah-isme/backoffice/internal/store"
)

type memPayments struct {
	rows map[uuid.UUID]store.PaymentRow
}

func (m *memPayments) Insert(_ context.Context, row store.PaymentRow) (store.PaymentRow, error) {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if _, ok := m.rows[row.ID]; ok {
		return store.PaymentRow{}, store.ErrConflict
	}
	row.CreatedAt = time.Now().UTC()
	m.rows[row.ID] = row
	return row, nil
}

func (m *memPayments) ListByOrder(_ context.Context, orderID uuid.UUID) ([]store.PaymentRow, error) {
	var out []store.PaymentRow
	for _, row := range m.rows {
		if row.OrderID == orderID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memPayments) TotalsByOrder(_ context.Context, orderID uuid.UUID) (store.PaymentTotals, error) {
	var totals store.PaymentTotals
	for _, row := range m.rows {
		if row.OrderID != orderID {
			continue
		}
		if row.Kind == store.PaymentKindRefund {
			totals.Refunded = totals.Refunded.Add(row.Amount)
		} else {
			totals.Paid = totals.Paid.Add(row.Amount)
		}
	}
	return totals, nil
}

func (m *memPayments) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.rows[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

// stubOrders is a minimal order service over the in-memory ledger: the
// outstanding balance derives from a fixed grand total and the booked rows.
type stubOrders struct {
	payments   *memPayments
	id         uuid.UUID
	status     string
	currency   string
	grandGross decimal.Decimal
	recalcs    int
}

func (o *stubOrders) view(ctx context.Context) (order.Order, error) {
	totals, err := o.payments.TotalsByOrder(ctx, o.id)
	if err != nil {
		return order.Order{}, err
	}
	outstanding := o.grandGross.Sub(totals.Paid).Add(totals.Refunded)
	if outstanding.IsNegative() {
		outstanding = decimal.Zero
	}
	raw, err := json.Marshal(map[string]any{
		"totals": map[string]any{"outstandingAmount": outstanding},
	})
	if err != nil {
		return order.Order{}, err
	}
	return order.Order{ID: o.id, Status: o.status, Currency: o.currency, Totals: raw}, nil
}

func (o *stubOrders) Get(ctx context.Context, id uuid.UUID) (order.Order, error) {
	if id != o.id {
		return order.Order{}, order.ErrNotFound
	}
	return o.view(ctx)
}

func (o *stubOrders) Recalculate(ctx context.Context, _, id uuid.UUID) (order.Order, error) {
	if id != o.id {
		return order.Order{}, order.ErrNotFound
	}
	o.recalcs++
	return o.view(ctx)
}

func (o *stubOrders) SetStatus(ctx context.Context, id uuid.UUID, status string) (order.Order, error) {
	if id != o.id {
		return order.Order{}, order.ErrNotFound
	}
	o.status = status
	return o.view(ctx)
}

func testService(t *testing.T) (*Service, *stubOrders, *memPayments) {
	t.Helper()
	payments := &memPayments{rows: map[uuid.UUID]store.PaymentRow{}}
	orders := &stubOrders{
		payments:   payments,
		id:         uuid.New(),
		status:     document.OrderStatusOpen,
		currency:   "EUR",
		grandGross: decimal.RequireFromString("24.00"),
	}
	return &Service{Payments: payments, Orders: orders}, orders, payments
}

func TestRecordPaymentSettlesOrder(t *testing.T) {
	t.Parallel()

	svc, orders, _ := testService(t)
	ctx := context.Background()

	record, err := svc.Record(ctx, uuid.New(), Input{
		OrderID: orders.id,
		Kind:    store.PaymentKindPayment,
		Amount:  decimal.RequireFromString("24.00"),
		Method:  "bank-transfer",
	})
	require.NoError(t, err)
	require.Equal(t, store.PaymentKindPayment, record.Kind)
	require.Equal(t, "EUR", record.Currency)
	require.Equal(t, document.OrderStatusPaid, orders.status)
	require.Equal(t, 1, orders.recalcs)
}

func TestRecordPartialPaymentKeepsOpen(t *testing.T) {
	t.Parallel()

	svc, orders, _ := testService(t)
	_, err := svc.Record(context.Background(), uuid.New(), Input{
		OrderID: orders.id,
		Kind:    store.PaymentKindPayment,
		Amount:  decimal.RequireFromString("10.00"),
	})
	require.NoError(t, err)
	require.Equal(t, document.OrderStatusOpen, orders.status)
}

func TestRecordValidation(t *testing.T) {
	t.Parallel()

	svc, orders, _ := testService(t)
	ctx := context.Background()
	tenantID := uuid.New()

	cases := []struct {
		name string
		in   Input
		want error
	}{
		{"unknown kind", Input{OrderID: orders.id, Kind: "chargeback", Amount: decimal.NewFromInt(1)}, ErrInvalidKind},
		{"zero amount", Input{OrderID: orders.id, Kind: store.PaymentKindPayment}, ErrInvalidAmount},
		{"negative amount", Input{OrderID: orders.id, Kind: store.PaymentKindPayment, Amount: decimal.NewFromInt(-5)}, ErrInvalidAmount},
		{"currency mismatch", Input{OrderID: orders.id, Kind: store.PaymentKindPayment, Amount: decimal.NewFromInt(5), Currency: "USD"}, ErrCurrencyMismatch},
		{"missing order", Input{OrderID: uuid.New(), Kind: store.PaymentKindPayment, Amount: decimal.NewFromInt(5)}, ErrOrderNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Record(ctx, tenantID, tc.in)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestRefundCannotExceedPaid(t *testing.T) {
	t.Parallel()

	svc, orders, _ := testService(t)
	ctx := context.Background()
	tenantID := uuid.New()

	_, err := svc.Record(ctx, tenantID, Input{
		OrderID: orders.id,
		Kind:    store.PaymentKindPayment,
		Amount:  decimal.RequireFromString("10.00"),
	})
	require.NoError(t, err)

	_, err = svc.Record(ctx, tenantID, Input{
		OrderID: orders.id,
		Kind:    store.PaymentKindRefund,
		Amount:  decimal.RequireFromString("15.00"),
	})
	require.ErrorIs(t, err, ErrRefundExceedsPaid)

	_, err = svc.Record(ctx, tenantID, Input{
		OrderID: orders.id,
		Kind:    store.PaymentKindRefund,
		Amount:  decimal.RequireFromString("10.00"),
	})
	require.NoError(t, err)

	ledger, err := svc.ListByOrder(ctx, orders.id)
	require.NoError(t, err)
	require.Len(t, ledger.Payments, 2)
	require.Equal(t, "10.00", ledger.Paid.StringFixed(2))
	require.Equal(t, "10.00", ledger.Refunded.StringFixed(2))
}

func TestRecordCommandUndoRedo(t *testing.T) {
	t.Parallel()

	svc, orders, payments := testService(t)
	ctx := context.Background()
	actor := command.Actor{TenantID: uuid.New(), ID: "user-1"}

	defs := svc.Commands()
	require.Len(t, defs, 1)
	def := defs[0]
	require.Equal(t, CommandRecord, def.Name)

	payload := fmt.Sprintf(`{"orderId":%q,"kind":"payment","amount":"24.00"}`, orders.id)
	outcome, err := def.Mutate(ctx, actor, json.RawMessage(payload))
	require.NoError(t, err)
	require.Len(t, payments.rows, 1)

	// Undo deletes the ledger entry and recalculates the order.
	require.NoError(t, def.Restore(ctx, actor, outcome.ResourceID, outcome.Before))
	require.Empty(t, payments.rows)

	// Redo re-books it under the original id.
	require.NoError(t, def.Restore(ctx, actor, outcome.ResourceID, outcome.After))
	require.Len(t, payments.rows, 1)
	id, err := uuid.Parse(outcome.ResourceID)
	require.NoError(t, err)
	require.Contains(t, payments.rows, id)
}
