// Package payment keeps the payment and refund ledger per order. Records are
// append-only; every booking re-runs the order totals so the outstanding
// balance stays consistent with the ledger.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backoffice/internal/document"
	"github.com/noah-isme/backoffice/internal/events"
	"github.com/noah-isme/backoffice/internal/order"
	"github.com/noah-isme/backoffice/internal/store"
)

var (
	// ErrOrderNotFound is returned when the referenced order does not exist.
	ErrOrderNotFound = errors.New("order not found")
	// ErrNotFound is returned when the payment record does not exist.
	ErrNotFound = errors.New("payment not found")
	// ErrInvalidAmount is returned for a zero or negative amount.
	ErrInvalidAmount = errors.New("payment amount must be positive")
	// ErrInvalidKind is returned for an unknown record kind.
	ErrInvalidKind = errors.New("payment kind must be payment or refund")
	// ErrCurrencyMismatch is returned when the record currency differs from
	// the order currency.
	ErrCurrencyMismatch = errors.New("payment currency does not match order")
	// ErrRefundExceedsPaid is returned when a refund would push the refunded
	// total past the paid total.
	ErrRefundExceedsPaid = errors.New("refund exceeds paid total")
)

type paymentStore interface {
	Insert(ctx context.Context, row store.PaymentRow) (store.PaymentRow, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]store.PaymentRow, error)
	TotalsByOrder(ctx context.Context, orderID uuid.UUID) (store.PaymentTotals, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type orderService interface {
	Get(ctx context.Context, id uuid.UUID) (order.Order, error)
	Recalculate(ctx context.Context, tenantID, id uuid.UUID) (order.Order, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) (order.Order, error)
}

// Service books payments and refunds and keeps order totals in sync.
type Service struct {
	Payments paymentStore
	Orders   orderService
	Events   *events.Bus
}

// Payment is the API-facing view of one ledger record.
type Payment struct {
	ID        uuid.UUID       `json:"id"`
	OrderID   uuid.UUID       `json:"orderId"`
	Kind      string          `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Method    string          `json:"method,omitempty"`
	Reference string          `json:"reference,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Input is the booking request for one payment or refund.
type Input struct {
	OrderID   uuid.UUID       `json:"orderId"`
	Kind      string          `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Method    string          `json:"method"`
	Reference string          `json:"reference"`
}

// Ledger is an order's records together with the summed totals.
type Ledger struct {
	Payments []Payment       `json:"payments"`
	Paid     decimal.Decimal `json:"paidTotalAmount"`
	Refunded decimal.Decimal `json:"refundedTotalAmount"`
}

// Record books one payment or refund against an order and recalculates the
// order. A payment that settles the outstanding balance moves an open order
// to paid.
func (s *Service) Record(ctx context.Context, tenantID uuid.UUID, in Input) (Payment, error) {
	if in.Kind != store.PaymentKindPayment && in.Kind != store.PaymentKindRefund {
		return Payment{}, ErrInvalidKind
	}
	if !in.Amount.IsPositive() {
		return Payment{}, ErrInvalidAmount
	}

	ord, err := s.Orders.Get(ctx, in.OrderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return Payment{}, ErrOrderNotFound
		}
		return Payment{}, err
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = ord.Currency
	}
	if currency != ord.Currency {
		return Payment{}, ErrCurrencyMismatch
	}

	if in.Kind == store.PaymentKindRefund {
		totals, err := s.Payments.TotalsByOrder(ctx, in.OrderID)
		if err != nil {
			return Payment{}, err
		}
		if totals.Refunded.Add(in.Amount).GreaterThan(totals.Paid) {
			return Payment{}, ErrRefundExceedsPaid
		}
	}

	row, err := s.Payments.Insert(ctx, store.PaymentRow{
		OrderID:   in.OrderID,
		Kind:      in.Kind,
		Amount:    in.Amount,
		Currency:  currency,
		Method:    strings.TrimSpace(in.Method),
		Reference: strings.TrimSpace(in.Reference),
	})
	if err != nil {
		return Payment{}, err
	}

	recalced, err := s.Orders.Recalculate(ctx, tenantID, in.OrderID)
	if err != nil {
		return Payment{}, err
	}
	if in.Kind == store.PaymentKindPayment && recalced.Status == document.OrderStatusOpen && settled(recalced) {
		if _, err := s.Orders.SetStatus(ctx, in.OrderID, document.OrderStatusPaid); err != nil {
			return Payment{}, err
		}
	}

	topic := events.TopicPaymentRecorded
	if in.Kind == store.PaymentKindRefund {
		topic = events.TopicRefundRecorded
	}
	s.emit(ctx, topic, in.OrderID, map[string]any{
		"paymentId": row.ID,
		"kind":      row.Kind,
		"amount":    row.Amount,
		"currency":  row.Currency,
	})
	return toPayment(row), nil
}

// ListByOrder returns the order's ledger with summed totals.
func (s *Service) ListByOrder(ctx context.Context, orderID uuid.UUID) (Ledger, error) {
	if _, err := s.Orders.Get(ctx, orderID); err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return Ledger{}, ErrOrderNotFound
		}
		return Ledger{}, err
	}
	rows, err := s.Payments.ListByOrder(ctx, orderID)
	if err != nil {
		return Ledger{}, err
	}
	totals, err := s.Payments.TotalsByOrder(ctx, orderID)
	if err != nil {
		return Ledger{}, err
	}
	payments := make([]Payment, 0, len(rows))
	for _, row := range rows {
		payments = append(payments, toPayment(row))
	}
	return Ledger{Payments: payments, Paid: totals.Paid, Refunded: totals.Refunded}, nil
}

// remove deletes one ledger record and recalculates the order. Used by the
// undo machinery only; the HTTP surface never deletes payments.
func (s *Service) remove(ctx context.Context, tenantID, paymentID, orderID uuid.UUID) error {
	if err := s.Payments.Delete(ctx, paymentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	_, err := s.Orders.Recalculate(ctx, tenantID, orderID)
	return err
}

// reinstate re-books a previously removed record under its original id. Used
// by the redo machinery.
func (s *Service) reinstate(ctx context.Context, tenantID uuid.UUID, record Payment) error {
	_, err := s.Payments.Insert(ctx, store.PaymentRow{
		ID:        record.ID,
		OrderID:   record.OrderID,
		Kind:      record.Kind,
		Amount:    record.Amount,
		Currency:  record.Currency,
		Method:    record.Method,
		Reference: record.Reference,
	})
	if err != nil {
		return err
	}
	_, err = s.Orders.Recalculate(ctx, tenantID, record.OrderID)
	return err
}

func (s *Service) emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) {
	if s.Events == nil {
		return
	}
	_, _ = s.Events.Emit(ctx, topic, aggregateID, payload)
}

func settled(ord order.Order) bool {
	var result struct {
		Totals struct {
			Outstanding *decimal.Decimal `json:"outstandingAmount"`
		} `json:"totals"`
	}
	if err := json.Unmarshal(ord.Totals, &result); err != nil {
		return false
	}
	return result.Totals.Outstanding != nil && result.Totals.Outstanding.IsZero()
}

func toPayment(row store.PaymentRow) Payment {
	return Payment{
		ID:        row.ID,
		OrderID:   row.OrderID,
		Kind:      row.Kind,
		Amount:    row.Amount,
		Currency:  row.Currency,
		Method:    row.Method,
		Reference: row.Reference,
		CreatedAt: row.CreatedAt,
	}
}
