package calc

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(value string) *decimal.Decimal {
	d := dec(value)
	return &d
}

func testCtx() Context {
	return Context{Currency: "EUR"}
}

func TestEvaluateLineDerivesGrossFromNet(t *testing.T) {
	t.Parallel()

	line, err := EvaluateLine(0, LineDraft{
		Kind:     LineKindProduct,
		Quantity: 2,
		UnitNet:  decPtr("100.00"),
		TaxRate:  dec("0.20"),
	}, testCtx())
	require.NoError(t, err)

	require.True(t, line.UnitGross.Equal(dec("120.00")), "unit gross %s", line.UnitGross)
	require.True(t, line.TotalNet.Equal(dec("200.00")), "total net %s", line.TotalNet)
	require.True(t, line.TaxAmount.Equal(dec("40.00")), "tax %s", line.TaxAmount)
	require.True(t, line.TotalGross.Equal(dec("240.00")), "total gross %s", line.TotalGross)
}

func TestEvaluateLineDerivesNetFromGross(t *testing.T) {
	t.Parallel()

	line, err := EvaluateLine(0, LineDraft{
		Kind:      LineKindProduct,
		Quantity:  1,
		UnitGross: decPtr("120.00"),
		TaxRate:   dec("0.20"),
	}, testCtx())
	require.NoError(t, err)
	require.True(t, line.UnitNet.Equal(dec("100.00")), "unit net %s", line.UnitNet)
}

func TestEvaluateLineTrustsExplicitPair(t *testing.T) {
	t.Parallel()

	// 99.99 * 1.19 = 118.9881; the stored gross of 118.99 is within one
	// minor unit and must survive untouched.
	line, err := EvaluateLine(0, LineDraft{
		Kind:      LineKindCustom,
		Quantity:  1,
		UnitNet:   decPtr("99.99"),
		UnitGross: decPtr("118.99"),
		TaxRate:   dec("0.19"),
	}, testCtx())
	require.NoError(t, err)
	require.True(t, line.UnitGross.Equal(dec("118.99")))
}

func TestEvaluateLineRejectsContradictoryPair(t *testing.T) {
	t.Parallel()

	_, err := EvaluateLine(3, LineDraft{
		Kind:      LineKindProduct,
		Quantity:  1,
		UnitNet:   decPtr("100.00"),
		UnitGross: decPtr("150.00"),
		TaxRate:   dec("0.20"),
	}, testCtx())
	require.Error(t, err)
	require.True(t, IsInvalidLineInput(err))

	var lineErr *InvalidLineInputError
	require.ErrorAs(t, err, &lineErr)
	require.Equal(t, 3, lineErr.Index)
}

func TestEvaluateLineDiscountAmountWinsOverPercent(t *testing.T) {
	t.Parallel()

	line, err := EvaluateLine(0, LineDraft{
		Kind:            LineKindProduct,
		Quantity:        1,
		UnitNet:         decPtr("100.00"),
		DiscountAmount:  decPtr("5.00"),
		DiscountPercent: decPtr("0.50"),
		TaxRate:         dec("0.10"),
	}, testCtx())
	require.NoError(t, err)
	require.True(t, line.DiscountAmount.Equal(dec("5.00")), "discount %s", line.DiscountAmount)
	require.True(t, line.TotalNet.Equal(dec("95.00")))
	// Tax applies to the discounted net.
	require.True(t, line.TaxAmount.Equal(dec("9.50")), "tax %s", line.TaxAmount)
}

func TestEvaluateLinePercentDiscountOnNetBasis(t *testing.T) {
	t.Parallel()

	line, err := EvaluateLine(0, LineDraft{
		Kind:            LineKindProduct,
		Quantity:        4,
		UnitNet:         decPtr("25.00"),
		DiscountPercent: decPtr("0.10"),
		TaxRate:         dec("0.20"),
	}, testCtx())
	require.NoError(t, err)
	require.True(t, line.DiscountAmount.Equal(dec("10.00")))
	require.True(t, line.TotalNet.Equal(dec("90.00")))
	require.True(t, line.TotalGross.Equal(dec("108.00")))
}

func TestEvaluateLinePinnedTotals(t *testing.T) {
	t.Parallel()

	line, err := EvaluateLine(0, LineDraft{
		Kind:       LineKindCustom,
		Quantity:   1,
		UnitNet:    decPtr("10.00"),
		TaxRate:    dec("0.20"),
		TotalNet:   decPtr("9.00"),
		TotalGross: decPtr("10.80"),
	}, testCtx())
	require.NoError(t, err)
	require.True(t, line.TotalNet.Equal(dec("9.00")))
	require.True(t, line.TotalGross.Equal(dec("10.80")))
	require.True(t, line.TaxAmount.Equal(dec("1.80")))
}

func TestEvaluateLineRejectsBadInput(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		draft LineDraft
	}{
		{"zero quantity", LineDraft{Quantity: 0, UnitNet: decPtr("10.00")}},
		{"negative quantity", LineDraft{Quantity: -1, UnitNet: decPtr("10.00")}},
		{"negative price", LineDraft{Quantity: 1, UnitNet: decPtr("-10.00")}},
		{"missing price", LineDraft{Quantity: 1}},
		{"negative tax rate", LineDraft{Quantity: 1, UnitNet: decPtr("10.00"), TaxRate: dec("-0.1")}},
		{"negative discount", LineDraft{Quantity: 1, UnitNet: decPtr("10.00"), DiscountAmount: decPtr("-1.00")}},
		{"discount exceeds total", LineDraft{Quantity: 1, UnitNet: decPtr("10.00"), DiscountAmount: decPtr("11.00")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := EvaluateLine(0, tc.draft, testCtx())
			require.Error(t, err)
			require.True(t, IsInvalidLineInput(err), "expected InvalidLineInputError, got %v", err)
		})
	}
}

func TestEvaluateLineZeroDecimalCurrency(t *testing.T) {
	t.Parallel()

	line, err := EvaluateLine(0, LineDraft{
		Kind:     LineKindProduct,
		Quantity: 3,
		Currency: "JPY",
		UnitNet:  decPtr("1000"),
		TaxRate:  dec("0.10"),
	}, Context{Currency: "JPY"})
	require.NoError(t, err)
	require.True(t, line.TaxAmount.Equal(dec("300")))
	require.True(t, line.TotalGross.Equal(dec("3300")))
	require.Equal(t, int32(0), MinorUnits("JPY"))
}
