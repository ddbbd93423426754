// Package order implements the order lifecycle: content mutation, provider
// driven shipping and payment adjustments, recalculation and outstanding
// balance reconciliation against recorded payments.
package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backoffice/internal/calc"
	"github.com/noah-isme/backoffice/internal/document"
	"github.com/noah-isme/backoffice/internal/events"
	"github.com/noah-isme/backoffice/internal/obs"
	"github.com/noah-isme/backoffice/internal/store"
)

var (
	// ErrNotFound is returned when the order does not exist for the tenant.
	ErrNotFound = errors.New("order not found")
	// ErrMethodNotFound is returned when a referenced method does not exist.
	ErrMethodNotFound = errors.New("method not found")
	// ErrInvalidTransition is returned for a disallowed status change.
	ErrInvalidTransition = errors.New("invalid order status transition")
)

type documentStore interface {
	Get(ctx context.Context, id uuid.UUID, kind string) (store.DocumentRow, error)
	List(ctx context.Context, kind string, status *string, limit, offset int32) ([]store.DocumentRow, error)
	Update(ctx context.Context, row store.DocumentRow) (store.DocumentRow, error)
}

type methodStore interface {
	Get(ctx context.Context, id uuid.UUID, kind string) (store.MethodRow, error)
}

type paymentTotalsStore interface {
	TotalsByOrder(ctx context.Context, orderID uuid.UUID) (store.PaymentTotals, error)
}

// Service coordinates order persistence, provider adjustments and
// recalculation.
type Service struct {
	Documents documentStore
	Methods   methodStore
	Payments  paymentTotalsStore
	Events    *events.Bus
}

// Order is the API-facing view of an order document.
type Order struct {
	ID               uuid.UUID             `json:"id"`
	Status           string                `json:"status"`
	Currency         string                `json:"currency"`
	Reference        string                `json:"reference,omitempty"`
	ShippingMethodID *uuid.UUID            `json:"shippingMethodId,omitempty"`
	PaymentMethodID  *uuid.UUID            `json:"paymentMethodId,omitempty"`
	Lines            []document.Line       `json:"lines"`
	Adjustments      []document.Adjustment `json:"adjustments"`
	Totals           json.RawMessage       `json:"totals,omitempty"`
	ConvertedFromID  *uuid.UUID            `json:"convertedFromId,omitempty"`
	CreatedAt        time.Time             `json:"createdAt"`
	UpdatedAt        time.Time             `json:"updatedAt"`
}

// Content is the operator-mutable payload of an order.
type Content struct {
	Reference   string                `json:"reference"`
	Lines       []document.Line       `json:"lines"`
	Adjustments []document.Adjustment `json:"adjustments"`
}

// State is the full snapshot used by the undo machinery.
type State struct {
	Status           string                `json:"status"`
	Currency         string                `json:"currency"`
	Reference        string                `json:"reference"`
	ShippingMethodID *uuid.UUID            `json:"shippingMethodId,omitempty"`
	PaymentMethodID  *uuid.UUID            `json:"paymentMethodId,omitempty"`
	Lines            []document.Line       `json:"lines"`
	Adjustments      []document.Adjustment `json:"adjustments"`
}

// Get loads one order.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	row, err := s.Documents.Get(ctx, id, document.KindOrder)
	if err != nil {
		return Order{}, mapStoreErr(err)
	}
	return toOrder(row)
}

// List returns orders, optionally filtered by status.
func (s *Service) List(ctx context.Context, status *string, limit, offset int32) ([]Order, error) {
	rows, err := s.Documents.List(ctx, document.KindOrder, status, limit, offset)
	if err != nil {
		return nil, err
	}
	orders := make([]Order, 0, len(rows))
	for _, row := range rows {
		order, err := toOrder(row)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// UpdateContent replaces the order's lines and adjustments. Provider managed
// adjustments the operator edited are flagged so re-evaluation keeps them;
// untouched provider adjustments are replaced by freshly computed ones.
func (s *Service) UpdateContent(ctx context.Context, tenantID, id uuid.UUID, content Content) (Order, error) {
	row, err := s.Documents.Get(ctx, id, document.KindOrder)
	if err != nil {
		return Order{}, mapStoreErr(err)
	}

	calcCtx, err := s.buildContext(ctx, tenantID, row)
	if err != nil {
		return Order{}, err
	}

	supplied := document.AdjustmentDrafts(content.Adjustments, row.Currency)
	fresh := calc.ProviderAdjustments(calcCtx, document.LineDrafts(content.Lines, row.Currency))
	merged := calc.MergeProviderAdjustments(flagManualEdits(supplied, fresh), fresh)

	if ref := strings.TrimSpace(content.Reference); ref != "" {
		row.Reference = ref
	}
	return s.persist(ctx, row, content.Lines, document.AdjustmentsFromDrafts(merged), calcCtx)
}

// SetShippingMethod attaches (or clears) the shipping method and re-runs the
// provider calculators, preserving manual overrides.
func (s *Service) SetShippingMethod(ctx context.Context, tenantID, id uuid.UUID, methodID *uuid.UUID) (Order, error) {
	return s.setMethod(ctx, tenantID, id, methodID, store.MethodKindShipping)
}

// SetPaymentMethod attaches (or clears) the payment method and re-runs the
// provider calculators, preserving manual overrides.
func (s *Service) SetPaymentMethod(ctx context.Context, tenantID, id uuid.UUID, methodID *uuid.UUID) (Order, error) {
	return s.setMethod(ctx, tenantID, id, methodID, store.MethodKindPayment)
}

func (s *Service) setMethod(ctx context.Context, tenantID, id uuid.UUID, methodID *uuid.UUID, kind string) (Order, error) {
	row, err := s.Documents.Get(ctx, id, document.KindOrder)
	if err != nil {
		return Order{}, mapStoreErr(err)
	}
	if methodID != nil {
		if _, err := s.Methods.Get(ctx, *methodID, kind); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return Order{}, ErrMethodNotFound
			}
			return Order{}, err
		}
	}
	if kind == store.MethodKindShipping {
		row.ShippingMethodID = methodID
	} else {
		row.PaymentMethodID = methodID
	}

	calcCtx, err := s.buildContext(ctx, tenantID, row)
	if err != nil {
		return Order{}, err
	}
	lines, err := document.DecodeLines(row.Lines)
	if err != nil {
		return Order{}, err
	}
	existing, err := document.DecodeAdjustments(row.Adjustments)
	if err != nil {
		return Order{}, err
	}

	fresh := calc.ProviderAdjustments(calcCtx, document.LineDrafts(lines, row.Currency))
	merged := calc.MergeProviderAdjustments(document.AdjustmentDrafts(existing, row.Currency), fresh)
	return s.persist(ctx, row, lines, document.AdjustmentsFromDrafts(merged), calcCtx)
}

// Recalculate re-runs the totals engine over the stored content, pulling
// current payment totals. Used after payments change.
func (s *Service) Recalculate(ctx context.Context, tenantID, id uuid.UUID) (Order, error) {
	row, err := s.Documents.Get(ctx, id, document.KindOrder)
	if err != nil {
		return Order{}, mapStoreErr(err)
	}
	calcCtx, err := s.buildContext(ctx, tenantID, row)
	if err != nil {
		return Order{}, err
	}
	lines, err := document.DecodeLines(row.Lines)
	if err != nil {
		return Order{}, err
	}
	adjustments, err := document.DecodeAdjustments(row.Adjustments)
	if err != nil {
		return Order{}, err
	}
	return s.persist(ctx, row, lines, adjustments, calcCtx)
}

// SetStatus transitions the order through its state machine.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status string) (Order, error) {
	row, err := s.Documents.Get(ctx, id, document.KindOrder)
	if err != nil {
		return Order{}, mapStoreErr(err)
	}
	if !allowedTransition(row.Status, status) {
		return Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, row.Status, status)
	}
	previous := row.Status
	row.Status = status
	updated, err := s.Documents.Update(ctx, row)
	if err != nil {
		return Order{}, mapStoreErr(err)
	}
	if previous != status {
		switch status {
		case document.OrderStatusPaid:
			s.emit(ctx, events.TopicOrderPaid, updated.ID, map[string]any{"status": status})
		case document.OrderStatusCanceled:
			s.emit(ctx, events.TopicOrderCanceled, updated.ID, map[string]any{"status": status})
		}
	}
	return toOrder(updated)
}

// Snapshot captures the order's full mutable state for the audit trail.
func (s *Service) Snapshot(ctx context.Context, id uuid.UUID) (State, error) {
	row, err := s.Documents.Get(ctx, id, document.KindOrder)
	if err != nil {
		return State{}, mapStoreErr(err)
	}
	lines, err := document.DecodeLines(row.Lines)
	if err != nil {
		return State{}, err
	}
	adjustments, err := document.DecodeAdjustments(row.Adjustments)
	if err != nil {
		return State{}, err
	}
	return State{
		Status:           row.Status,
		Currency:         row.Currency,
		Reference:        row.Reference,
		ShippingMethodID: row.ShippingMethodID,
		PaymentMethodID:  row.PaymentMethodID,
		Lines:            lines,
		Adjustments:      adjustments,
	}, nil
}

// RestoreState reinstates a captured state and recalculates totals.
func (s *Service) RestoreState(ctx context.Context, tenantID, id uuid.UUID, state json.RawMessage) error {
	if len(state) == 0 || string(state) == "null" {
		return errors.New("order state snapshot is empty")
	}
	var target State
	if err := json.Unmarshal(state, &target); err != nil {
		return fmt.Errorf("decode order state: %w", err)
	}
	row, err := s.Documents.Get(ctx, id, document.KindOrder)
	if err != nil {
		return mapStoreErr(err)
	}
	row.Status = target.Status
	row.Currency = target.Currency
	row.Reference = target.Reference
	row.ShippingMethodID = target.ShippingMethodID
	row.PaymentMethodID = target.PaymentMethodID

	calcCtx, err := s.buildContext(ctx, tenantID, row)
	if err != nil {
		return err
	}
	_, err = s.persist(ctx, row, target.Lines, target.Adjustments, calcCtx)
	return err
}

func (s *Service) persist(ctx context.Context, row store.DocumentRow, lines []document.Line, adjustments []document.Adjustment, calcCtx calc.Context) (Order, error) {
	started := time.Now()
	result, totalsJSON, err := document.Recalculate(calc.DocumentKindOrder, lines, adjustments, calcCtx)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	obs.ObserveCalculation(document.KindOrder, outcome, obs.DurationMillis(time.Since(started)))
	if err != nil {
		return Order{}, err
	}

	if row.Lines, err = document.EncodeLines(lines); err != nil {
		return Order{}, err
	}
	if row.Adjustments, err = document.EncodeAdjustments(adjustments); err != nil {
		return Order{}, err
	}
	row.Totals = totalsJSON

	updated, err := s.Documents.Update(ctx, row)
	if err != nil {
		return Order{}, mapStoreErr(err)
	}
	s.emit(ctx, events.TopicTotalsCalculated, updated.ID, result.Totals)
	return toOrder(updated)
}

func (s *Service) buildContext(ctx context.Context, tenantID uuid.UUID, row store.DocumentRow) (calc.Context, error) {
	calcCtx := calc.Context{
		TenantID: tenantID,
		Currency: row.Currency,
		Existing: &calc.ExistingTotals{},
	}
	if row.ShippingMethodID != nil {
		method, err := s.Methods.Get(ctx, *row.ShippingMethodID, store.MethodKindShipping)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return calc.Context{}, ErrMethodNotFound
			}
			return calc.Context{}, err
		}
		calcCtx.ShippingMethod = document.MethodInfo(method)
	}
	if row.PaymentMethodID != nil {
		method, err := s.Methods.Get(ctx, *row.PaymentMethodID, store.MethodKindPayment)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return calc.Context{}, ErrMethodNotFound
			}
			return calc.Context{}, err
		}
		calcCtx.PaymentMethod = document.MethodInfo(method)
	}
	if s.Payments != nil {
		totals, err := s.Payments.TotalsByOrder(ctx, row.ID)
		if err != nil {
			return calc.Context{}, err
		}
		calcCtx.Existing = &calc.ExistingTotals{
			PaidTotal:     totals.Paid,
			RefundedTotal: totals.Refunded,
		}
	}
	return calcCtx, nil
}

func (s *Service) emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) {
	if s.Events == nil {
		return
	}
	_, _ = s.Events.Emit(ctx, topic, aggregateID, payload)
}

// flagManualEdits marks supplied provider adjustments whose amounts no
// longer agree with the freshly computed drafts as manually overridden.
func flagManualEdits(supplied, fresh []calc.AdjustmentDraft) []calc.AdjustmentDraft {
	computed := make(map[string]calc.AdjustmentDraft, len(fresh))
	for _, draft := range fresh {
		if draft.CalculatorKey != nil {
			computed[*draft.CalculatorKey] = draft
		}
	}
	out := make([]calc.AdjustmentDraft, 0, len(supplied))
	for _, draft := range supplied {
		if calc.IsProviderManaged(draft.CalculatorKey) && !calc.HasManualOverride(draft) {
			if reference, ok := computed[*draft.CalculatorKey]; ok && !sameAmounts(draft, reference) {
				draft = calc.MarkManualOverride(draft)
			}
		}
		out = append(out, draft)
	}
	return out
}

func sameAmounts(a, b calc.AdjustmentDraft) bool {
	return decimalPtrEqual(a.Rate, b.Rate) &&
		decimalPtrEqual(a.AmountNet, b.AmountNet) &&
		decimalPtrEqual(a.AmountGross, b.AmountGross)
}

func decimalPtrEqual(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func allowedTransition(current, next string) bool {
	if current == next {
		return true
	}
	switch current {
	case document.OrderStatusOpen:
		return next == document.OrderStatusPaid || next == document.OrderStatusCanceled
	case document.OrderStatusPaid:
		return next == document.OrderStatusFulfilled || next == document.OrderStatusCanceled
	default:
		return false
	}
}

func toOrder(row store.DocumentRow) (Order, error) {
	lines, err := document.DecodeLines(row.Lines)
	if err != nil {
		return Order{}, err
	}
	adjustments, err := document.DecodeAdjustments(row.Adjustments)
	if err != nil {
		return Order{}, err
	}
	return Order{
		ID:               row.ID,
		Status:           row.Status,
		Currency:         row.Currency,
		Reference:        row.Reference,
		ShippingMethodID: row.ShippingMethodID,
		PaymentMethodID:  row.PaymentMethodID,
		Lines:            lines,
		Adjustments:      adjustments,
		Totals:           row.Totals,
		ConvertedFromID:  row.ConvertedFromID,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}, nil
}

func mapStoreErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
