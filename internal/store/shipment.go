package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// ShipmentRow is one shipment for an order.
type ShipmentRow struct {
	ID           uuid.UUID
	OrderID      uuid.UUID
	Status       string
	Carrier      string
	TrackingCode string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ShipmentEventRow records one status transition of a shipment.
type ShipmentEventRow struct {
	ID         uuid.UUID
	ShipmentID uuid.UUID
	Status     string
	Note       string
	CreatedAt  time.Time
}

// ShipmentStore persists shipments and their transition history.
type ShipmentStore struct {
	DB DB
}

const insertShipmentSQL = `
INSERT INTO shipments (id, tenant_id, order_id, status, carrier, tracking_code, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now(), now())
RETURNING id, order_id, status, carrier, tracking_code, created_at, updated_at`

// Insert creates a shipment.
func (s ShipmentStore) Insert(ctx context.Context, row ShipmentRow) (ShipmentRow, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return ShipmentRow{}, err
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	out, err := scanShipment(s.DB.QueryRow(ctx, insertShipmentSQL,
		pgUUID(row.ID), tid, pgUUID(row.OrderID), row.Status, row.Carrier, row.TrackingCode))
	if err != nil {
		return ShipmentRow{}, mapRowError(err)
	}
	return out, nil
}

const getShipmentSQL = `
SELECT id, order_id, status, carrier, tracking_code, created_at, updated_at
FROM shipments WHERE tenant_id = $1 AND id = $2`

// Get returns one shipment by id.
func (s ShipmentStore) Get(ctx context.Context, id uuid.UUID) (ShipmentRow, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return ShipmentRow{}, err
	}
	out, err := scanShipment(s.DB.QueryRow(ctx, getShipmentSQL, tid, pgUUID(id)))
	if err != nil {
		return ShipmentRow{}, mapRowError(err)
	}
	return out, nil
}

const listShipmentsSQL = `
SELECT id, order_id, status, carrier, tracking_code, created_at, updated_at
FROM shipments WHERE tenant_id = $1 AND order_id = $2
ORDER BY created_at`

// ListByOrder returns the order's shipments oldest first.
func (s ShipmentStore) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]ShipmentRow, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.Query(ctx, listShipmentsSQL, tid, pgUUID(orderID))
	if err != nil {
		return nil, fmt.Errorf("list shipments: %w", err)
	}
	defer rows.Close()

	var shipments []ShipmentRow
	for rows.Next() {
		row, err := scanShipment(rows)
		if err != nil {
			return nil, err
		}
		shipments = append(shipments, row)
	}
	return shipments, rows.Err()
}

const updateShipmentStatusSQL = `
UPDATE shipments SET status = $3, updated_at = now()
WHERE tenant_id = $1 AND id = $2
RETURNING id, order_id, status, carrier, tracking_code, created_at, updated_at`

const insertShipmentEventSQL = `
INSERT INTO shipment_events (id, shipment_id, status, note, created_at)
VALUES ($1, $2, $3, $4, now())`

// SetStatus updates the shipment status and records the transition in the
// same transaction.
func (s ShipmentStore) SetStatus(ctx context.Context, id uuid.UUID, status, note string) (ShipmentRow, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return ShipmentRow{}, err
	}

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return ShipmentRow{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	out, err := scanShipment(tx.QueryRow(ctx, updateShipmentStatusSQL, tid, pgUUID(id), status))
	if err != nil {
		return ShipmentRow{}, mapRowError(err)
	}
	if _, err := tx.Exec(ctx, insertShipmentEventSQL, pgUUID(uuid.New()), pgUUID(id), status, note); err != nil {
		return ShipmentRow{}, fmt.Errorf("insert shipment event: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return ShipmentRow{}, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

const listShipmentEventsSQL = `
SELECT e.id, e.shipment_id, e.status, e.note, e.created_at
FROM shipment_events e
JOIN shipments s ON s.id = e.shipment_id
WHERE s.tenant_id = $1 AND e.shipment_id = $2
ORDER BY e.created_at`

// Events returns the shipment's transition history oldest first.
func (s ShipmentStore) Events(ctx context.Context, shipmentID uuid.UUID) ([]ShipmentEventRow, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.Query(ctx, listShipmentEventsSQL, tid, pgUUID(shipmentID))
	if err != nil {
		return nil, fmt.Errorf("list shipment events: %w", err)
	}
	defer rows.Close()

	var events []ShipmentEventRow
	for rows.Next() {
		var (
			event          ShipmentEventRow
			id, shipmentID pgtype.UUID
		)
		if err := rows.Scan(&id, &shipmentID, &event.Status, &event.Note, &event.CreatedAt); err != nil {
			return nil, err
		}
		event.ID = fromPgUUID(id)
		event.ShipmentID = fromPgUUID(shipmentID)
		events = append(events, event)
	}
	return events, rows.Err()
}

func scanShipment(row rowScanner) (ShipmentRow, error) {
	var (
		out         ShipmentRow
		id, orderID pgtype.UUID
	)
	err := row.Scan(&id, &orderID, &out.Status, &out.Carrier, &out.TrackingCode, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return ShipmentRow{}, err
	}
	out.ID = fromPgUUID(id)
	out.OrderID = fromPgUUID(orderID)
	return out, nil
}
