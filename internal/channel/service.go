// Package channel manages the tenant's sales channels.
package channel

import (
	"context"
	"errors"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/backoffice/internal/store"
)

var (
	// ErrNotFound is returned when the channel does not exist for the tenant.
	ErrNotFound = errors.New("channel not found")
	// ErrDuplicateCode is returned when the channel code is already taken.
	ErrDuplicateCode = errors.New("channel code already exists")
)

type channelStore interface {
	Insert(ctx context.Context, row store.ChannelRow) (store.ChannelRow, error)
	Get(ctx context.Context, id uuid.UUID) (store.ChannelRow, error)
	List(ctx context.Context, limit, offset int32) ([]store.ChannelRow, error)
	Update(ctx context.Context, row store.ChannelRow) (store.ChannelRow, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Service manages sales channels.
type Service struct {
	Channels channelStore
	Validate *validator.Validate
}

// Channel is the API-facing view of a sales channel.
type Channel struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Currency  string    `json:"currency"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Input is the create/update payload for a channel.
type Input struct {
	Code     string `json:"code" validate:"required,min=2,max=64"`
	Name     string `json:"name" validate:"required,max=128"`
	Currency string `json:"currency" validate:"required,len=3,alpha"`
	Active   bool   `json:"active"`
}

// Create adds a sales channel.
func (s *Service) Create(ctx context.Context, in Input) (Channel, error) {
	in = normalize(in)
	if err := s.Validate.Struct(in); err != nil {
		return Channel{}, err
	}
	row, err := s.Channels.Insert(ctx, store.ChannelRow{
		Code:     in.Code,
		Name:     in.Name,
		Currency: in.Currency,
		Active:   in.Active,
	})
	if err != nil {
		return Channel{}, mapStoreErr(err)
	}
	return toChannel(row), nil
}

// Get returns one channel.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Channel, error) {
	row, err := s.Channels.Get(ctx, id)
	if err != nil {
		return Channel{}, mapStoreErr(err)
	}
	return toChannel(row), nil
}

// List returns the tenant's channels.
func (s *Service) List(ctx context.Context, limit, offset int32) ([]Channel, error) {
	rows, err := s.Channels.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	channels := make([]Channel, 0, len(rows))
	for _, row := range rows {
		channels = append(channels, toChannel(row))
	}
	return channels, nil
}

// Update replaces the channel's fields.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (Channel, error) {
	in = normalize(in)
	if err := s.Validate.Struct(in); err != nil {
		return Channel{}, err
	}
	row, err := s.Channels.Get(ctx, id)
	if err != nil {
		return Channel{}, mapStoreErr(err)
	}
	row.Code = in.Code
	row.Name = in.Name
	row.Currency = in.Currency
	row.Active = in.Active
	updated, err := s.Channels.Update(ctx, row)
	if err != nil {
		return Channel{}, mapStoreErr(err)
	}
	return toChannel(updated), nil
}

// Delete removes a channel.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return mapStoreErr(s.Channels.Delete(ctx, id))
}

func normalize(in Input) Input {
	in.Code = strings.ToLower(strings.TrimSpace(in.Code))
	in.Name = strings.TrimSpace(in.Name)
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	return in
}

func toChannel(row store.ChannelRow) Channel {
	return Channel{
		ID:        row.ID,
		Code:      row.Code,
		Name:      row.Name,
		Currency:  row.Currency,
		Active:    row.Active,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrConflict):
		return ErrDuplicateCode
	default:
		return err
	}
}
