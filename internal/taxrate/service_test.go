package taxrate

import (
	"context"
	"testing"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backoffice/internal/store"
)

// memRates mirrors the store's default exclusivity: inserting or updating a
// default demotes the country's previous default.
type memRates struct {
	rows map[uuid.UUID]store.TaxRateRow
}

func (m *memRates) clearDefault(country string) {
	for id, row := range m.rows {
		if row.Country == country && row.IsDefault {
			row.IsDefault = false
			m.rows[id] = row
		}
	}
}

func (m *memRates) Insert(_ context.Context, row store.TaxRateRow) (store.TaxRateRow, error) {
	if row.IsDefault {
		m.clearDefault(row.Country)
	}
	row.ID = uuid.New()
	row.CreatedAt = time.Now().UTC()
	row.UpdatedAt = row.CreatedAt
	m.rows[row.ID] = row
	return row, nil
}

func (m *memRates) Get(_ context.Context, id uuid.UUID) (store.TaxRateRow, error) {
	row, ok := m.rows[id]
	if !ok {
		return store.TaxRateRow{}, store.ErrNotFound
	}
	return row, nil
}

func (m *memRates) List(_ context.Context, country *string, _, _ int32) ([]store.TaxRateRow, error) {
	var out []store.TaxRateRow
	for _, row := range m.rows {
		if country != nil && row.Country != *country {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (m *memRates) Update(_ context.Context, row store.TaxRateRow) (store.TaxRateRow, error) {
	if _, ok := m.rows[row.ID]; !ok {
		return store.TaxRateRow{}, store.ErrNotFound
	}
	if row.IsDefault {
		m.clearDefault(row.Country)
	}
	row.UpdatedAt = time.Now().UTC()
	m.rows[row.ID] = row
	return row, nil
}

func (m *memRates) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.rows[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memRates) Default(_ context.Context, country string) (store.TaxRateRow, error) {
	for _, row := range m.rows {
		if row.Country == country && row.IsDefault {
			return row, nil
		}
	}
	return store.TaxRateRow{}, store.ErrNotFound
}

func testService() *Service {
	return &Service{
		Rates:    &memRates{rows: map[uuid.UUID]store.TaxRateRow{}},
		Validate: validator.New(),
	}
}

func TestCreateValidatesRate(t *testing.T) {
	t.Parallel()

	svc := testService()
	ctx := context.Background()

	_, err := svc.Create(ctx, Input{Name: "Over", Country: "DE", Rate: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, ErrInvalidRate)

	_, err = svc.Create(ctx, Input{Name: "Negative", Country: "DE", Rate: decimal.NewFromInt(-1)})
	require.ErrorIs(t, err, ErrInvalidRate)

	rate, err := svc.Create(ctx, Input{Name: "Standard", Country: "de", Rate: decimal.RequireFromString("0.19")})
	require.NoError(t, err)
	require.Equal(t, "DE", rate.Country)
	require.Equal(t, "0.19", rate.Rate.String())
}

func TestDefaultExclusivity(t *testing.T) {
	t.Parallel()

	svc := testService()
	ctx := context.Background()

	first, err := svc.Create(ctx, Input{Name: "Standard", Country: "DE", Rate: decimal.RequireFromString("0.19"), IsDefault: true})
	require.NoError(t, err)

	second, err := svc.Create(ctx, Input{Name: "Reduced", Country: "DE", Rate: decimal.RequireFromString("0.07"), IsDefault: true})
	require.NoError(t, err)

	// The new default demoted the previous one.
	got, err := svc.Default(ctx, "DE")
	require.NoError(t, err)
	require.Equal(t, second.ID, got.ID)

	demoted, err := svc.Get(ctx, first.ID)
	require.NoError(t, err)
	require.False(t, demoted.IsDefault)

	// A default in another country is untouched.
	_, err = svc.Create(ctx, Input{Name: "Standard", Country: "AT", Rate: decimal.RequireFromString("0.20"), IsDefault: true})
	require.NoError(t, err)
	got, err = svc.Default(ctx, "DE")
	require.NoError(t, err)
	require.Equal(t, second.ID, got.ID)
}

func TestDefaultMissing(t *testing.T) {
	t.Parallel()

	svc := testService()
	_, err := svc.Default(context.Background(), "FR")
	require.ErrorIs(t, err, ErrNoDefault)
}
