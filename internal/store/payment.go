package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Payment record kinds.
const (
	PaymentKindPayment = "payment"
	PaymentKindRefund  = "refund"
)

// PaymentRow is one payment or refund booked against an order.
type PaymentRow struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	Kind      string
	Amount    decimal.Decimal
	Currency  string
	Method    string
	Reference string
	CreatedAt time.Time
}

// PaymentTotals are the summed payment and refund amounts for one order.
type PaymentTotals struct {
	Paid     decimal.Decimal
	Refunded decimal.Decimal
}

// PaymentStore persists payment and refund records.
type PaymentStore struct {
	DB DB
}

const insertPaymentSQL = `
INSERT INTO payments (id, tenant_id, order_id, kind, amount, currency, method, reference, created_at)
VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, now())
RETURNING id, order_id, kind, amount::text, currency, method, reference, created_at`

// Insert books one payment or refund.
func (s PaymentStore) Insert(ctx context.Context, row PaymentRow) (PaymentRow, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return PaymentRow{}, err
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	out, err := scanPayment(s.DB.QueryRow(ctx, insertPaymentSQL,
		pgUUID(row.ID), tid, pgUUID(row.OrderID), row.Kind,
		decimalArg(row.Amount), row.Currency, row.Method, row.Reference))
	if err != nil {
		return PaymentRow{}, mapRowError(err)
	}
	return out, nil
}

const listPaymentsSQL = `
SELECT id, order_id, kind, amount::text, currency, method, reference, created_at
FROM payments
WHERE tenant_id = $1 AND order_id = $2
ORDER BY created_at`

// ListByOrder returns the order's payment records oldest first.
func (s PaymentStore) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]PaymentRow, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.Query(ctx, listPaymentsSQL, tid, pgUUID(orderID))
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []PaymentRow
	for rows.Next() {
		row, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, row)
	}
	return payments, rows.Err()
}

const paymentTotalsSQL = `
SELECT
  COALESCE(SUM(amount) FILTER (WHERE kind = 'payment'), 0)::text,
  COALESCE(SUM(amount) FILTER (WHERE kind = 'refund'), 0)::text
FROM payments
WHERE tenant_id = $1 AND order_id = $2`

// TotalsByOrder sums the paid and refunded amounts for one order.
func (s PaymentStore) TotalsByOrder(ctx context.Context, orderID uuid.UUID) (PaymentTotals, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return PaymentTotals{}, err
	}
	var paidRaw, refundedRaw string
	if err := s.DB.QueryRow(ctx, paymentTotalsSQL, tid, pgUUID(orderID)).Scan(&paidRaw, &refundedRaw); err != nil {
		return PaymentTotals{}, fmt.Errorf("payment totals: %w", err)
	}
	paid, err := parseDecimal(paidRaw)
	if err != nil {
		return PaymentTotals{}, fmt.Errorf("parse paid total: %w", err)
	}
	refunded, err := parseDecimal(refundedRaw)
	if err != nil {
		return PaymentTotals{}, fmt.Errorf("parse refunded total: %w", err)
	}
	return PaymentTotals{Paid: paid, Refunded: refunded}, nil
}

const deletePaymentSQL = `DELETE FROM payments WHERE tenant_id = $1 AND id = $2`

// Delete removes one payment record.
func (s PaymentStore) Delete(ctx context.Context, id uuid.UUID) error {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return err
	}
	tag, err := s.DB.Exec(ctx, deletePaymentSQL, tid, pgUUID(id))
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPayment(row rowScanner) (PaymentRow, error) {
	var (
		out         PaymentRow
		id, orderID pgtype.UUID
		amountRaw   string
	)
	err := row.Scan(&id, &orderID, &out.Kind, &amountRaw, &out.Currency, &out.Method, &out.Reference, &out.CreatedAt)
	if err != nil {
		return PaymentRow{}, err
	}
	amount, err := parseDecimal(amountRaw)
	if err != nil {
		return PaymentRow{}, fmt.Errorf("parse payment amount: %w", err)
	}
	out.ID = fromPgUUID(id)
	out.OrderID = fromPgUUID(orderID)
	out.Amount = amount
	return out, nil
}
