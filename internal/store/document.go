package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// DocumentRow is one quote or order. Lines, adjustments and the totals
// snapshot are stored as JSONB; the calculation engine is the source of truth
// for their shape.
type DocumentRow struct {
	ID               uuid.UUID
	Kind             string
	Status           string
	Currency         string
	Reference        string
	ChannelID        *uuid.UUID
	ShippingMethodID *uuid.UUID
	PaymentMethodID  *uuid.UUID
	Lines            json.RawMessage
	Adjustments      json.RawMessage
	Totals           json.RawMessage
	ConvertedFromID  *uuid.UUID
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// DocumentStore persists quotes and orders.
type DocumentStore struct {
	DB DB
}

const documentColumns = `id, kind, status, currency, reference, channel_id, shipping_method_id, payment_method_id, lines, adjustments, totals, converted_from_id, created_at, updated_at`

const insertDocumentSQL = `
INSERT INTO documents (id, tenant_id, kind, status, currency, reference, channel_id, shipping_method_id, payment_method_id, lines, adjustments, totals, converted_from_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now(), now())
RETURNING ` + documentColumns

// Insert creates a document.
func (s DocumentStore) Insert(ctx context.Context, row DocumentRow) (DocumentRow, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return DocumentRow{}, err
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	out, err := scanDocument(s.DB.QueryRow(ctx, insertDocumentSQL,
		pgUUID(row.ID), tid, row.Kind, row.Status, row.Currency, row.Reference,
		pgUUIDPtr(row.ChannelID), pgUUIDPtr(row.ShippingMethodID), pgUUIDPtr(row.PaymentMethodID),
		row.Lines, row.Adjustments, row.Totals, pgUUIDPtr(row.ConvertedFromID)))
	if err != nil {
		return DocumentRow{}, mapRowError(err)
	}
	return out, nil
}

const getDocumentSQL = `
SELECT ` + documentColumns + `
FROM documents WHERE tenant_id = $1 AND id = $2 AND kind = $3`

// Get returns one document of the given kind.
func (s DocumentStore) Get(ctx context.Context, id uuid.UUID, kind string) (DocumentRow, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return DocumentRow{}, err
	}
	out, err := scanDocument(s.DB.QueryRow(ctx, getDocumentSQL, tid, pgUUID(id), kind))
	if err != nil {
		return DocumentRow{}, mapRowError(err)
	}
	return out, nil
}

const listDocumentsSQL = `
SELECT ` + documentColumns + `
FROM documents
WHERE tenant_id = $1 AND kind = $2 AND ($3::text IS NULL OR status = $3)
ORDER BY created_at DESC
LIMIT $4 OFFSET $5`

// List returns documents of one kind, newest first, optionally by status.
func (s DocumentStore) List(ctx context.Context, kind string, status *string, limit, offset int32) ([]DocumentRow, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.Query(ctx, listDocumentsSQL, tid, kind, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []DocumentRow
	for rows.Next() {
		row, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, row)
	}
	return docs, rows.Err()
}

const updateDocumentSQL = `
UPDATE documents
SET status = $3, currency = $4, reference = $5, channel_id = $6, shipping_method_id = $7,
    payment_method_id = $8, lines = $9, adjustments = $10, totals = $11, updated_at = now()
WHERE tenant_id = $1 AND id = $2
RETURNING ` + documentColumns

// Update replaces the mutable document fields, including the recalculated
// totals snapshot.
func (s DocumentStore) Update(ctx context.Context, row DocumentRow) (DocumentRow, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return DocumentRow{}, err
	}
	out, err := scanDocument(s.DB.QueryRow(ctx, updateDocumentSQL,
		tid, pgUUID(row.ID), row.Status, row.Currency, row.Reference,
		pgUUIDPtr(row.ChannelID), pgUUIDPtr(row.ShippingMethodID), pgUUIDPtr(row.PaymentMethodID),
		row.Lines, row.Adjustments, row.Totals))
	if err != nil {
		return DocumentRow{}, mapRowError(err)
	}
	return out, nil
}

const deleteDocumentSQL = `DELETE FROM documents WHERE tenant_id = $1 AND id = $2 AND kind = $3`

// Delete removes a document of the given kind.
func (s DocumentStore) Delete(ctx context.Context, id uuid.UUID, kind string) error {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return err
	}
	tag, err := s.DB.Exec(ctx, deleteDocumentSQL, tid, pgUUID(id), kind)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDocument(row rowScanner) (DocumentRow, error) {
	var (
		out                      DocumentRow
		id                       pgtype.UUID
		channelID, shipID, payID pgtype.UUID
		convertedFromID          pgtype.UUID
	)
	err := row.Scan(&id, &out.Kind, &out.Status, &out.Currency, &out.Reference,
		&channelID, &shipID, &payID, &out.Lines, &out.Adjustments, &out.Totals,
		&convertedFromID, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return DocumentRow{}, err
	}
	out.ID = fromPgUUID(id)
	out.ChannelID = uuidPtr(channelID)
	out.ShippingMethodID = uuidPtr(shipID)
	out.PaymentMethodID = uuidPtr(payID)
	out.ConvertedFromID = uuidPtr(convertedFromID)
	return out, nil
}

func pgUUIDPtr(id *uuid.UUID) pgtype.UUID {
	if id == nil {
		return pgtype.UUID{}
	}
	return pgUUID(*id)
}

func uuidPtr(v pgtype.UUID) *uuid.UUID {
	if !v.Valid {
		return nil
	}
	id := uuid.UUID(v.Bytes)
	return &id
}
