package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// DomainEventRow is one persisted domain event.
type DomainEventRow struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	Topic        string
	AggregateID  uuid.UUID
	Payload      json.RawMessage
	OccurredAt   time.Time
	DispatchedAt *time.Time
}

// EventStore persists domain events.
type EventStore struct {
	DB DB
}

const insertDomainEventSQL = `
INSERT INTO domain_events (id, tenant_id, topic, aggregate_id, payload, occurred_at)
VALUES ($1, $2, $3, $4, $5, now())
RETURNING id, tenant_id, topic, aggregate_id, payload, occurred_at, dispatched_at`

// InsertDomainEvent persists one event.
func (s EventStore) InsertDomainEvent(ctx context.Context, topic string, aggregateID uuid.UUID, payload json.RawMessage) (DomainEventRow, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return DomainEventRow{}, err
	}
	out, err := scanDomainEvent(s.DB.QueryRow(ctx, insertDomainEventSQL,
		pgUUID(uuid.New()), tid, topic, pgUUID(aggregateID), payload))
	if err != nil {
		return DomainEventRow{}, mapRowError(err)
	}
	return out, nil
}

const listPendingEventsSQL = `
SELECT id, tenant_id, topic, aggregate_id, payload, occurred_at, dispatched_at
FROM domain_events
WHERE dispatched_at IS NULL
ORDER BY occurred_at
LIMIT $1`

// ListPending returns undispatched events oldest first. Not tenant scoped;
// the dispatch worker drains all tenants.
func (s EventStore) ListPending(ctx context.Context, limit int32) ([]DomainEventRow, error) {
	rows, err := s.DB.Query(ctx, listPendingEventsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending events: %w", err)
	}
	defer rows.Close()

	var events []DomainEventRow
	for rows.Next() {
		row, err := scanDomainEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, row)
	}
	return events, rows.Err()
}

const markEventDispatchedSQL = `
UPDATE domain_events SET dispatched_at = now() WHERE id = $1 AND dispatched_at IS NULL`

// MarkDispatched stamps an event as delivered.
func (s EventStore) MarkDispatched(ctx context.Context, id uuid.UUID) error {
	tag, err := s.DB.Exec(ctx, markEventDispatchedSQL, pgUUID(id))
	if err != nil {
		return fmt.Errorf("mark event dispatched: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDomainEvent(row rowScanner) (DomainEventRow, error) {
	var (
		out            DomainEventRow
		id, tid, aggID pgtype.UUID
		dispatchedAt   *time.Time
	)
	err := row.Scan(&id, &tid, &out.Topic, &aggID, &out.Payload, &out.OccurredAt, &dispatchedAt)
	if err != nil {
		return DomainEventRow{}, err
	}
	out.ID = fromPgUUID(id)
	out.TenantID = fromPgUUID(tid)
	out.AggregateID = fromPgUUID(aggID)
	out.DispatchedAt = dispatchedAt
	return out, nil
}
