// Package method manages the tenant's shipping and payment method catalog.
package method

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backoffice/internal/store"
)

var (
	// ErrNotFound is returned when the method does not exist for the tenant.
	ErrNotFound = errors.New("method not found")
	// ErrDuplicateCode is returned when kind+code is already taken.
	ErrDuplicateCode = errors.New("method code already exists")
	// ErrInvalidRate is returned when a rate is negative or the fee rate is
	// not a fraction below 1.
	ErrInvalidRate = errors.New("invalid method rate")
)

type methodStore interface {
	Insert(ctx context.Context, row store.MethodRow) (store.MethodRow, error)
	Get(ctx context.Context, id uuid.UUID, kind string) (store.MethodRow, error)
	List(ctx context.Context, kind string, limit, offset int32) ([]store.MethodRow, error)
	Update(ctx context.Context, row store.MethodRow) (store.MethodRow, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Service manages shipping and payment methods.
type Service struct {
	Methods  methodStore
	Validate *validator.Validate
}

// Method is the API-facing view of a shipping or payment method.
type Method struct {
	ID             uuid.UUID       `json:"id"`
	Kind           string          `json:"kind"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	ProviderKey    string          `json:"providerKey"`
	BaseRateNet    decimal.Decimal `json:"baseRateNet"`
	PerItemRateNet decimal.Decimal `json:"perItemRateNet"`
	FeeRate        decimal.Decimal `json:"feeRate"`
	FeeFlatNet     decimal.Decimal `json:"feeFlatNet"`
	Settings       json.RawMessage `json:"settings,omitempty"`
	Active         bool            `json:"active"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Input is the create/update payload for a method.
type Input struct {
	Kind           string          `json:"kind" validate:"required,oneof=shipping payment"`
	Code           string          `json:"code" validate:"required,min=2,max=64"`
	Name           string          `json:"name" validate:"required,max=128"`
	ProviderKey    string          `json:"providerKey" validate:"required,max=64"`
	BaseRateNet    decimal.Decimal `json:"baseRateNet"`
	PerItemRateNet decimal.Decimal `json:"perItemRateNet"`
	FeeRate        decimal.Decimal `json:"feeRate"`
	FeeFlatNet     decimal.Decimal `json:"feeFlatNet"`
	Settings       json.RawMessage `json:"settings"`
	Active         bool            `json:"active"`
}

// Create adds a method.
func (s *Service) Create(ctx context.Context, in Input) (Method, error) {
	in, err := s.check(in)
	if err != nil {
		return Method{}, err
	}
	row, err := s.Methods.Insert(ctx, toRow(uuid.Nil, in))
	if err != nil {
		return Method{}, mapStoreErr(err)
	}
	return toMethod(row), nil
}

// Get returns one method of the given kind.
func (s *Service) Get(ctx context.Context, id uuid.UUID, kind string) (Method, error) {
	row, err := s.Methods.Get(ctx, id, kind)
	if err != nil {
		return Method{}, mapStoreErr(err)
	}
	return toMethod(row), nil
}

// List returns the tenant's methods of one kind.
func (s *Service) List(ctx context.Context, kind string, limit, offset int32) ([]Method, error) {
	rows, err := s.Methods.List(ctx, kind, limit, offset)
	if err != nil {
		return nil, err
	}
	methods := make([]Method, 0, len(rows))
	for _, row := range rows {
		methods = append(methods, toMethod(row))
	}
	return methods, nil
}

// Update replaces the method's mutable fields. Kind and code are fixed after
// creation.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (Method, error) {
	in, err := s.check(in)
	if err != nil {
		return Method{}, err
	}
	current, err := s.Methods.Get(ctx, id, in.Kind)
	if err != nil {
		return Method{}, mapStoreErr(err)
	}
	row := toRow(id, in)
	row.Code = current.Code
	updated, err := s.Methods.Update(ctx, row)
	if err != nil {
		return Method{}, mapStoreErr(err)
	}
	return toMethod(updated), nil
}

// Delete removes a method.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return mapStoreErr(s.Methods.Delete(ctx, id))
}

func (s *Service) check(in Input) (Input, error) {
	in.Kind = strings.ToLower(strings.TrimSpace(in.Kind))
	in.Code = strings.ToLower(strings.TrimSpace(in.Code))
	in.Name = strings.TrimSpace(in.Name)
	in.ProviderKey = strings.TrimSpace(in.ProviderKey)
	if err := s.Validate.Struct(in); err != nil {
		return Input{}, err
	}
	for _, rate := range []decimal.Decimal{in.BaseRateNet, in.PerItemRateNet, in.FeeFlatNet} {
		if rate.IsNegative() {
			return Input{}, ErrInvalidRate
		}
	}
	if in.FeeRate.IsNegative() || in.FeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return Input{}, ErrInvalidRate
	}
	return in, nil
}

func toRow(id uuid.UUID, in Input) store.MethodRow {
	return store.MethodRow{
		ID:             id,
		Kind:           in.Kind,
		Code:           in.Code,
		Name:           in.Name,
		ProviderKey:    in.ProviderKey,
		BaseRateNet:    in.BaseRateNet,
		PerItemRateNet: in.PerItemRateNet,
		FeeRate:        in.FeeRate,
		FeeFlatNet:     in.FeeFlatNet,
		Settings:       in.Settings,
		Active:         in.Active,
	}
}

func toMethod(row store.MethodRow) Method {
	return Method{
		ID:             row.ID,
		Kind:           row.Kind,
		Code:           row.Code,
		Name:           row.Name,
		ProviderKey:    row.ProviderKey,
		BaseRateNet:    row.BaseRateNet,
		PerItemRateNet: row.PerItemRateNet,
		FeeRate:        row.FeeRate,
		FeeFlatNet:     row.FeeFlatNet,
		Settings:       row.Settings,
		Active:         row.Active,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
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
