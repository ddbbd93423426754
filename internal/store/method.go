package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Method kinds.
const (
	MethodKindShipping = "shipping"
	MethodKindPayment  = "payment"
)

// MethodRow is a shipping or payment method. Rate columns that do not apply
// to a kind stay zero.
type MethodRow struct {
	ID             uuid.UUID
	Kind           string
	Code           string
	Name           string
	ProviderKey    string
	BaseRateNet    decimal.Decimal
	PerItemRateNet decimal.Decimal
	FeeRate        decimal.Decimal
	FeeFlatNet     decimal.Decimal
	Settings       json.RawMessage
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// MethodStore persists shipping and payment methods.
type MethodStore struct {
	DB DB
}

const methodColumns = `id, kind, code, name, provider_key, base_rate_net::text, per_item_rate_net::text, fee_rate::text, fee_flat_net::text, settings, active, created_at, updated_at`

const insertMethodSQL = `
INSERT INTO methods (id, tenant_id, kind, code, name, provider_key, base_rate_net, per_item_rate_net, fee_rate, fee_flat_net, settings, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9::numeric, $10::numeric, $11, $12, now(), now())
RETURNING ` + methodColumns

// Insert creates a method. Duplicate kind+code within a tenant returns
// ErrConflict.
func (s MethodStore) Insert(ctx context.Context, row MethodRow) (MethodRow, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return MethodRow{}, err
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	out, err := scanMethod(s.DB.QueryRow(ctx, insertMethodSQL,
		pgUUID(row.ID), tid, row.Kind, row.Code, row.Name, row.ProviderKey,
		decimalArg(row.BaseRateNet), decimalArg(row.PerItemRateNet),
		decimalArg(row.FeeRate), decimalArg(row.FeeFlatNet), row.Settings, row.Active))
	if err != nil {
		return MethodRow{}, mapRowError(err)
	}
	return out, nil
}

const getMethodSQL = `
SELECT ` + methodColumns + `
FROM methods WHERE tenant_id = $1 AND id = $2 AND kind = $3`

// Get returns one method of the given kind.
func (s MethodStore) Get(ctx context.Context, id uuid.UUID, kind string) (MethodRow, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return MethodRow{}, err
	}
	out, err := scanMethod(s.DB.QueryRow(ctx, getMethodSQL, tid, pgUUID(id), kind))
	if err != nil {
		return MethodRow{}, mapRowError(err)
	}
	return out, nil
}

const listMethodsSQL = `
SELECT ` + methodColumns + `
FROM methods WHERE tenant_id = $1 AND kind = $2
ORDER BY code
LIMIT $3 OFFSET $4`

// List returns the tenant's methods of one kind ordered by code.
func (s MethodStore) List(ctx context.Context, kind string, limit, offset int32) ([]MethodRow, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.Query(ctx, listMethodsSQL, tid, kind, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list methods: %w", err)
	}
	defer rows.Close()

	var methods []MethodRow
	for rows.Next() {
		row, err := scanMethod(rows)
		if err != nil {
			return nil, err
		}
		methods = append(methods, row)
	}
	return methods, rows.Err()
}

const updateMethodSQL = `
UPDATE methods
SET name = $3, provider_key = $4, base_rate_net = $5::numeric, per_item_rate_net = $6::numeric,
    fee_rate = $7::numeric, fee_flat_net = $8::numeric, settings = $9, active = $10, updated_at = now()
WHERE tenant_id = $1 AND id = $2
RETURNING ` + methodColumns

// Update replaces the mutable method fields.
func (s MethodStore) Update(ctx context.Context, row MethodRow) (MethodRow, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return MethodRow{}, err
	}
	out, err := scanMethod(s.DB.QueryRow(ctx, updateMethodSQL,
		tid, pgUUID(row.ID), row.Name, row.ProviderKey,
		decimalArg(row.BaseRateNet), decimalArg(row.PerItemRateNet),
		decimalArg(row.FeeRate), decimalArg(row.FeeFlatNet), row.Settings, row.Active))
	if err != nil {
		return MethodRow{}, mapRowError(err)
	}
	return out, nil
}

const deleteMethodSQL = `DELETE FROM methods WHERE tenant_id = $1 AND id = $2`

// Delete removes a method.
func (s MethodStore) Delete(ctx context.Context, id uuid.UUID) error {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return err
	}
	tag, err := s.DB.Exec(ctx, deleteMethodSQL, tid, pgUUID(id))
	if err != nil {
		return fmt.Errorf("delete method: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanMethod(row rowScanner) (MethodRow, error) {
	var (
		out                             MethodRow
		id                              pgtype.UUID
		baseRate, perItem, fee, feeFlat string
	)
	err := row.Scan(&id, &out.Kind, &out.Code, &out.Name, &out.ProviderKey,
		&baseRate, &perItem, &fee, &feeFlat, &out.Settings, &out.Active, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return MethodRow{}, err
	}
	out.ID = fromPgUUID(id)
	for _, pair := range []struct {
		raw string
		dst *decimal.Decimal
	}{
		{baseRate, &out.BaseRateNet},
		{perItem, &out.PerItemRateNet},
		{fee, &out.FeeRate},
		{feeFlat, &out.FeeFlatNet},
	} {
		d, err := parseDecimal(pair.raw)
		if err != nil {
			return MethodRow{}, fmt.Errorf("parse method rate: %w", err)
		}
		*pair.dst = d
	}
	return out, nil
}
