// Package shipment tracks outbound shipments per order and their status
// history. Transitions run through a fixed state machine; every transition
// is appended to the shipment's event log.
package shipment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backoffice/internal/document"
	"github.com/noah-isme/backoffice/internal/events"
	"github.com/noah-isme/backoffice/internal/order"
	"github.com/noah-isme/backoffice/internal/store"
)

// Shipment statuses.
const (
	StatusPending        = "pending"
	StatusPacked         = "packed"
	StatusShipped        = "shipped"
	StatusOutForDelivery = "out_for_delivery"
	StatusDelivered      = "delivered"
	StatusCanceled       = "canceled"
)

var (
	// ErrNotFound is returned when the shipment does not exist.
	ErrNotFound = errors.New("shipment not found")
	// ErrOrderNotFound is returned when the referenced order does not exist.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderNotShippable is returned when the order cannot take shipments.
	ErrOrderNotShippable = errors.New("order is not shippable")
	// ErrInvalidTransition is returned for a disallowed status change.
	ErrInvalidTransition = errors.New("invalid shipment status transition")
)

type shipmentStore interface {
	Insert(ctx context.Context, row store.ShipmentRow) (store.ShipmentRow, error)
	Get(ctx context.Context, id uuid.UUID) (store.ShipmentRow, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]store.ShipmentRow, error)
	SetStatus(ctx context.Context, id uuid.UUID, status, note string) (store.ShipmentRow, error)
	Events(ctx context.Context, shipmentID uuid.UUID) ([]store.ShipmentEventRow, error)
}

type orderGetter interface {
	Get(ctx context.Context, id uuid.UUID) (order.Order, error)
}

// Service manages shipments and their lifecycle.
type Service struct {
	Shipments shipmentStore
	Orders    orderGetter
	Events    *events.Bus
}

// Shipment is the API-facing view of one shipment.
type Shipment struct {
	ID           uuid.UUID `json:"id"`
	OrderID      uuid.UUID `json:"orderId"`
	Status       string    `json:"status"`
	Carrier      string    `json:"carrier,omitempty"`
	TrackingCode string    `json:"trackingCode,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Event is one recorded status transition.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Status    string    `json:"status"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Input is the creation request for a shipment.
type Input struct {
	OrderID      uuid.UUID `json:"orderId"`
	Carrier      string    `json:"carrier"`
	TrackingCode string    `json:"trackingCode"`
}

// Create opens a pending shipment for an order. Canceled orders cannot take
// new shipments.
func (s *Service) Create(ctx context.Context, in Input) (Shipment, error) {
	ord, err := s.Orders.Get(ctx, in.OrderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return Shipment{}, ErrOrderNotFound
		}
		return Shipment{}, err
	}
	if ord.Status == document.OrderStatusCanceled {
		return Shipment{}, ErrOrderNotShippable
	}

	row, err := s.Shipments.Insert(ctx, store.ShipmentRow{
		OrderID:      in.OrderID,
		Status:       StatusPending,
		Carrier:      strings.TrimSpace(in.Carrier),
		TrackingCode: strings.TrimSpace(in.TrackingCode),
	})
	if err != nil {
		return Shipment{}, err
	}
	return toShipment(row), nil
}

// Get returns one shipment.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Shipment, error) {
	row, err := s.Shipments.Get(ctx, id)
	if err != nil {
		return Shipment{}, mapStoreErr(err)
	}
	return toShipment(row), nil
}

// ListByOrder returns an order's shipments.
func (s *Service) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]Shipment, error) {
	if _, err := s.Orders.Get(ctx, orderID); err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	rows, err := s.Shipments.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	shipments := make([]Shipment, 0, len(rows))
	for _, row := range rows {
		shipments = append(shipments, toShipment(row))
	}
	return shipments, nil
}

// SetStatus transitions the shipment and appends the transition to its event
// log. A successful transition publishes the matching domain event.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status, note string) (Shipment, error) {
	row, err := s.Shipments.Get(ctx, id)
	if err != nil {
		return Shipment{}, mapStoreErr(err)
	}
	if !allowedTransition(row.Status, status) {
		return Shipment{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, row.Status, status)
	}
	if row.Status == status {
		return toShipment(row), nil
	}

	updated, err := s.Shipments.SetStatus(ctx, id, status, note)
	if err != nil {
		return Shipment{}, mapStoreErr(err)
	}
	if topic := topicFor(status); topic != "" && s.Events != nil {
		_, _ = s.Events.Emit(ctx, topic, updated.OrderID, map[string]any{
			"shipmentId": updated.ID,
			"status":     status,
		})
	}
	return toShipment(updated), nil
}

// History returns the shipment's transition log oldest first.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]Event, error) {
	if _, err := s.Shipments.Get(ctx, id); err != nil {
		return nil, mapStoreErr(err)
	}
	rows, err := s.Shipments.Events(ctx, id)
	if err != nil {
		return nil, err
	}
	history := make([]Event, 0, len(rows))
	for _, row := range rows {
		history = append(history, Event{
			ID:        row.ID,
			Status:    row.Status,
			Note:      row.Note,
			CreatedAt: row.CreatedAt,
		})
	}
	return history, nil
}

func allowedTransition(current, next string) bool {
	if current == next {
		return true
	}
	switch current {
	case StatusPending:
		return next == StatusPacked || next == StatusCanceled
	case StatusPacked:
		return next == StatusShipped || next == StatusCanceled
	case StatusShipped:
		return next == StatusOutForDelivery || next == StatusDelivered || next == StatusCanceled
	case StatusOutForDelivery:
		return next == StatusDelivered || next == StatusCanceled
	default:
		// delivered and canceled are terminal
		return false
	}
}

func topicFor(status string) string {
	switch status {
	case StatusPacked:
		return events.TopicShipmentPacked
	case StatusShipped:
		return events.TopicShipmentShipped
	case StatusOutForDelivery:
		return events.TopicShipmentOutForDelivery
	case StatusDelivered:
		return events.TopicShipmentDelivered
	case StatusCanceled:
		return events.TopicShipmentCanceled
	default:
		return ""
	}
}

func toShipment(row store.ShipmentRow) Shipment {
	return Shipment{
		ID:           row.ID,
		OrderID:      row.OrderID,
		Status:       row.Status,
		Carrier:      row.Carrier,
		TrackingCode: row.TrackingCode,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

func mapStoreErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
