package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// TaxRateRow is a named tax rate. Rate is a decimal fraction, 0.20 for 20%.
type TaxRateRow struct {
	ID        uuid.UUID
	Name      string
	Country   string
	Rate      decimal.Decimal
	IsDefault bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TaxRateStore persists tax rates and keeps default exclusivity per
// tenant/country scope.
type TaxRateStore struct {
	DB DB
}

const clearDefaultTaxRateSQL = `
UPDATE tax_rates SET is_default = false, updated_at = now()
WHERE tenant_id = $1 AND country = $2 AND is_default = true AND id <> $3`

const insertTaxRateSQL = `
INSERT INTO tax_rates (id, tenant_id, name, country, rate, is_default, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5::numeric, $6, now(), now())
RETURNING id, name, country, rate::text, is_default, created_at, updated_at`

// Insert creates a tax rate. Marking it default demotes the previous default
// for the same country in the same transaction.
func (s TaxRateStore) Insert(ctx context.Context, row TaxRateRow) (TaxRateRow, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return TaxRateRow{}, err
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return TaxRateRow{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if row.IsDefault {
		if _, err := tx.Exec(ctx, clearDefaultTaxRateSQL, tid, row.Country, pgUUID(row.ID)); err != nil {
			return TaxRateRow{}, fmt.Errorf("clear default tax rate: %w", err)
		}
	}
	out, err := scanTaxRate(tx.QueryRow(ctx, insertTaxRateSQL,
		pgUUID(row.ID), tid, row.Name, row.Country, decimalArg(row.Rate), row.IsDefault))
	if err != nil {
		return TaxRateRow{}, mapRowError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return TaxRateRow{}, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

const getTaxRateSQL = `
SELECT id, name, country, rate::text, is_default, created_at, updated_at
FROM tax_rates WHERE tenant_id = $1 AND id = $2`

// Get returns one tax rate by id.
func (s TaxRateStore) Get(ctx context.Context, id uuid.UUID) (TaxRateRow, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return TaxRateRow{}, err
	}
	out, err := scanTaxRate(s.DB.QueryRow(ctx, getTaxRateSQL, tid, pgUUID(id)))
	if err != nil {
		return TaxRateRow{}, mapRowError(err)
	}
	return out, nil
}

const listTaxRatesSQL = `
SELECT id, name, country, rate::text, is_default, created_at, updated_at
FROM tax_rates WHERE tenant_id = $1 AND ($2::text IS NULL OR country = $2)
ORDER BY country, name
LIMIT $3 OFFSET $4`

// List returns tax rates, optionally filtered by country.
func (s TaxRateStore) List(ctx context.Context, country *string, limit, offset int32) ([]TaxRateRow, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.Query(ctx, listTaxRatesSQL, tid, country, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list tax rates: %w", err)
	}
	defer rows.Close()

	var rates []TaxRateRow
	for rows.Next() {
		row, err := scanTaxRate(rows)
		if err != nil {
			return nil, err
		}
		rates = append(rates, row)
	}
	return rates, rows.Err()
}

const updateTaxRateSQL = `
UPDATE tax_rates SET name = $3, country = $4, rate = $5::numeric, is_default = $6, updated_at = now()
WHERE tenant_id = $1 AND id = $2
RETURNING id, name, country, rate::text, is_default, created_at, updated_at`

// Update replaces the mutable fields. Promoting a rate to default demotes the
// previous default for the same country.
func (s TaxRateStore) Update(ctx context.Context, row TaxRateRow) (TaxRateRow, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return TaxRateRow{}, err
	}

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return TaxRateRow{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if row.IsDefault {
		if _, err := tx.Exec(ctx, clearDefaultTaxRateSQL, tid, row.Country, pgUUID(row.ID)); err != nil {
			return TaxRateRow{}, fmt.Errorf("clear default tax rate: %w", err)
		}
	}
	out, err := scanTaxRate(tx.QueryRow(ctx, updateTaxRateSQL,
		tid, pgUUID(row.ID), row.Name, row.Country, decimalArg(row.Rate), row.IsDefault))
	if err != nil {
		return TaxRateRow{}, mapRowError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return TaxRateRow{}, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

const deleteTaxRateSQL = `DELETE FROM tax_rates WHERE tenant_id = $1 AND id = $2`

// Delete removes a tax rate.
func (s TaxRateStore) Delete(ctx context.Context, id uuid.UUID) error {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return err
	}
	tag, err := s.DB.Exec(ctx, deleteTaxRateSQL, tid, pgUUID(id))
	if err != nil {
		return fmt.Errorf("delete tax rate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const defaultTaxRateSQL = `
SELECT id, name, country, rate::text, is_default, created_at, updated_at
FROM tax_rates WHERE tenant_id = $1 AND country = $2 AND is_default = true`

// Default returns the default rate for a country.
func (s TaxRateStore) Default(ctx context.Context, country string) (TaxRateRow, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return TaxRateRow{}, err
	}
	out, err := scanTaxRate(s.DB.QueryRow(ctx, defaultTaxRateSQL, tid, country))
	if err != nil {
		return TaxRateRow{}, mapRowError(err)
	}
	return out, nil
}

func scanTaxRate(row rowScanner) (TaxRateRow, error) {
	var (
		out     TaxRateRow
		id      pgtype.UUID
		rateRaw string
	)
	if err := row.Scan(&id, &out.Name, &out.Country, &rateRaw, &out.IsDefault, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return TaxRateRow{}, err
	}
	rate, err := parseDecimal(rateRaw)
	if err != nil {
		return TaxRateRow{}, fmt.Errorf("parse tax rate: %w", err)
	}
	out.ID = fromPgUUID(id)
	out.Rate = rate
	return out, nil
}
