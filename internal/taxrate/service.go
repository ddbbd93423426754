// Package taxrate manages tenant tax rates. At most one rate per country is
// the default; marking a rate default demotes the previous one in the same
// transaction.
package taxrate

import (
	"context"
	"errors"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backoffice/internal/store"
)

var (
	// ErrNotFound is returned when the tax rate does not exist for the tenant.
	ErrNotFound = errors.New("tax rate not found")
	// ErrNoDefault is returned when no default rate exists for the country.
	ErrNoDefault = errors.New("no default tax rate")
	// ErrInvalidRate is returned when the rate falls outside [0, 1).
	ErrInvalidRate = errors.New("tax rate must be a fraction in [0, 1)")
)

type taxRateStore interface {
	Insert(ctx context.Context, row store.TaxRateRow) (store.TaxRateRow, error)
	Get(ctx context.Context, id uuid.UUID) (store.TaxRateRow, error)
	List(ctx context.Context, country *string, limit, offset int32) ([]store.TaxRateRow, error)
	Update(ctx context.Context, row store.TaxRateRow) (store.TaxRateRow, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Default(ctx context.Context, country string) (store.TaxRateRow, error)
}

// Service manages tax rates.
type Service struct {
	Rates    taxRateStore
	Validate *validator.Validate
}

// TaxRate is the API-facing view of one rate. Rate is a fraction, 0.20 for
// 20%.
type TaxRate struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Country   string          `json:"country"`
	Rate      decimal.Decimal `json:"rate"`
	IsDefault bool            `json:"isDefault"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Input is the create/update payload for a tax rate.
type Input struct {
	Name      string          `json:"name" validate:"required,max=128"`
	Country   string          `json:"country" validate:"required,len=2,alpha"`
	Rate      decimal.Decimal `json:"rate"`
	IsDefault bool            `json:"isDefault"`
}

// Create adds a tax rate. A default rate demotes the country's previous
// default.
func (s *Service) Create(ctx context.Context, in Input) (TaxRate, error) {
	in, err := s.check(in)
	if err != nil {
		return TaxRate{}, err
	}
	row, err := s.Rates.Insert(ctx, store.TaxRateRow{
		Name:      in.Name,
		Country:   in.Country,
		Rate:      in.Rate,
		IsDefault: in.IsDefault,
	})
	if err != nil {
		return TaxRate{}, mapStoreErr(err)
	}
	return toTaxRate(row), nil
}

// Get returns one tax rate.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (TaxRate, error) {
	row, err := s.Rates.Get(ctx, id)
	if err != nil {
		return TaxRate{}, mapStoreErr(err)
	}
	return toTaxRate(row), nil
}

// List returns tax rates, optionally filtered by country.
func (s *Service) List(ctx context.Context, country *string, limit, offset int32) ([]TaxRate, error) {
	if country != nil {
		normalized := strings.ToUpper(strings.TrimSpace(*country))
		country = &normalized
	}
	rows, err := s.Rates.List(ctx, country, limit, offset)
	if err != nil {
		return nil, err
	}
	rates := make([]TaxRate, 0, len(rows))
	for _, row := range rows {
		rates = append(rates, toTaxRate(row))
	}
	return rates, nil
}

// Update replaces the rate's fields, keeping default exclusivity.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (TaxRate, error) {
	in, err := s.check(in)
	if err != nil {
		return TaxRate{}, err
	}
	row, err := s.Rates.Get(ctx, id)
	if err != nil {
		return TaxRate{}, mapStoreErr(err)
	}
	row.Name = in.Name
	row.Country = in.Country
	row.Rate = in.Rate
	row.IsDefault = in.IsDefault
	updated, err := s.Rates.Update(ctx, row)
	if err != nil {
		return TaxRate{}, mapStoreErr(err)
	}
	return toTaxRate(updated), nil
}

// Delete removes a tax rate.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return mapStoreErr(s.Rates.Delete(ctx, id))
}

// Default returns the country's default rate.
func (s *Service) Default(ctx context.Context, country string) (TaxRate, error) {
	row, err := s.Rates.Default(ctx, strings.ToUpper(strings.TrimSpace(country)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return TaxRate{}, ErrNoDefault
		}
		return TaxRate{}, err
	}
	return toTaxRate(row), nil
}

func (s *Service) check(in Input) (Input, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Country = strings.ToUpper(strings.TrimSpace(in.Country))
	if err := s.Validate.Struct(in); err != nil {
		return Input{}, err
	}
	if in.Rate.IsNegative() || in.Rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return Input{}, ErrInvalidRate
	}
	return in, nil
}

func toTaxRate(row store.TaxRateRow) TaxRate {
	return TaxRate{
		ID:        row.ID,
		Name:      row.Name,
		Country:   row.Country,
		Rate:      row.Rate,
		IsDefault: row.IsDefault,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func mapStoreErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
