package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// ChannelRow is a sales channel scoped to a tenant.
type ChannelRow struct {
	ID        uuid.UUID
	Code      string
	Name      string
	Currency  string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChannelStore persists sales channels.
type ChannelStore struct {
	DB DB
}

const insertChannelSQL = `
INSERT INTO channels (id, tenant_id, code, name, currency, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now(), now())
RETURNING id, code, name, currency, active, created_at, updated_at`

// Insert creates a channel. Duplicate codes within a tenant return ErrConflict.
func (s ChannelStore) Insert(ctx context.Context, row ChannelRow) (ChannelRow, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return ChannelRow{}, err
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	out, err := scanChannel(s.DB.QueryRow(ctx, insertChannelSQL,
		pgUUID(row.ID), tid, row.Code, row.Name, row.Currency, row.Active))
	if err != nil {
		return ChannelRow{}, mapRowError(err)
	}
	return out, nil
}

const getChannelSQL = `
SELECT id, code, name, currency, active, created_at, updated_at
FROM channels WHERE tenant_id = $1 AND id = $2`

// Get returns one channel by id.
func (s ChannelStore) Get(ctx context.Context, id uuid.UUID) (ChannelRow, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return ChannelRow{}, err
	}
	out, err := scanChannel(s.DB.QueryRow(ctx, getChannelSQL, tid, pgUUID(id)))
	if err != nil {
		return ChannelRow{}, mapRowError(err)
	}
	return out, nil
}

const listChannelsSQL = `
SELECT id, code, name, currency, active, created_at, updated_at
FROM channels WHERE tenant_id = $1
ORDER BY code
LIMIT $2 OFFSET $3`

// List returns the tenant's channels ordered by code.
func (s ChannelStore) List(ctx context.Context, limit, offset int32) ([]ChannelRow, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.Query(ctx, listChannelsSQL, tid, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	var channels []ChannelRow
	for rows.Next() {
		row, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, row)
	}
	return channels, rows.Err()
}

const updateChannelSQL = `
UPDATE channels SET name = $3, currency = $4, active = $5, updated_at = now()
WHERE tenant_id = $1 AND id = $2
RETURNING id, code, name, currency, active, created_at, updated_at`

// Update replaces the mutable channel fields.
func (s ChannelStore) Update(ctx context.Context, row ChannelRow) (ChannelRow, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return ChannelRow{}, err
	}
	out, err := scanChannel(s.DB.QueryRow(ctx, updateChannelSQL,
		tid, pgUUID(row.ID), row.Name, row.Currency, row.Active))
	if err != nil {
		return ChannelRow{}, mapRowError(err)
	}
	return out, nil
}

const deleteChannelSQL = `DELETE FROM channels WHERE tenant_id = $1 AND id = $2`

// Delete removes a channel.
func (s ChannelStore) Delete(ctx context.Context, id uuid.UUID) error {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return err
	}
	tag, err := s.DB.Exec(ctx, deleteChannelSQL, tid, pgUUID(id))
	if err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanChannel(row rowScanner) (ChannelRow, error) {
	var (
		out ChannelRow
		id  pgtype.UUID
	)
	if err := row.Scan(&id, &out.Code, &out.Name, &out.Currency, &out.Active, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return ChannelRow{}, err
	}
	out.ID = fromPgUUID(id)
	return out, nil
}
