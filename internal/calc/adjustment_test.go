package calc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveAdjustmentsRejectsLineScope(t *testing.T) {
	t.Parallel()

	drafts := []AdjustmentDraft{
		{Scope: ScopeOrder, Kind: KindDiscount, AmountNet: decPtr("5.00")},
		{Scope: ScopeLine, Kind: KindDiscount, AmountNet: decPtr("1.00")},
	}
	_, err := ResolveAdjustments(drafts, subtotalBasis{Net: dec("100.00"), Gross: dec("120.00")}, testCtx())
	require.ErrorIs(t, err, ErrUnsupportedScope)
}

func TestResolveAdjustmentsRateAgainstSubtotal(t *testing.T) {
	t.Parallel()

	basis := subtotalBasis{Net: dec("200.00"), Gross: dec("240.00")}
	drafts := []AdjustmentDraft{
		{Scope: ScopeOrder, Kind: KindDiscount, Rate: decPtr("0.10")},
		{Scope: ScopeOrder, Kind: KindDiscount, Rate: decPtr("0.10")},
	}
	resolved, err := ResolveAdjustments(drafts, basis, testCtx())
	require.NoError(t, err)
	require.Len(t, resolved, 2)
	// Each rate applies to the line subtotal; the second does not compound
	// over the first.
	for _, adj := range resolved {
		require.True(t, adj.AmountNet.Equal(dec("20.00")), "net %s", adj.AmountNet)
		require.True(t, adj.AmountGross.Equal(dec("24.00")), "gross %s", adj.AmountGross)
	}
}

func TestResolveAdjustmentsDerivesMissingSide(t *testing.T) {
	t.Parallel()

	basis := subtotalBasis{Net: dec("100.00"), Gross: dec("120.00")}

	fromNet, err := ResolveAdjustments([]AdjustmentDraft{
		{Scope: ScopeOrder, Kind: KindSurcharge, AmountNet: decPtr("10.00")},
	}, basis, testCtx())
	require.NoError(t, err)
	require.True(t, fromNet[0].AmountGross.Equal(dec("12.00")), "gross %s", fromNet[0].AmountGross)

	fromGross, err := ResolveAdjustments([]AdjustmentDraft{
		{Scope: ScopeOrder, Kind: KindSurcharge, AmountGross: decPtr("12.00")},
	}, basis, testCtx())
	require.NoError(t, err)
	require.True(t, fromGross[0].AmountNet.Equal(dec("10.00")), "net %s", fromGross[0].AmountNet)
}

func TestResolveAdjustmentsPositionOrderStableTies(t *testing.T) {
	t.Parallel()

	drafts := []AdjustmentDraft{
		{Scope: ScopeOrder, Kind: KindSurcharge, Code: "third", Position: 5, AmountNet: decPtr("1.00")},
		{Scope: ScopeOrder, Kind: KindSurcharge, Code: "first", Position: 0, AmountNet: decPtr("1.00")},
		{Scope: ScopeOrder, Kind: KindSurcharge, Code: "second", Position: 0, AmountNet: decPtr("1.00")},
	}
	resolved, err := ResolveAdjustments(drafts, subtotalBasis{Net: dec("10.00"), Gross: dec("10.00")}, testCtx())
	require.NoError(t, err)

	codes := make([]string, 0, len(resolved))
	for _, adj := range resolved {
		codes = append(codes, adj.Code)
	}
	require.Equal(t, []string{"first", "second", "third"}, codes)
}

func TestResolveAdjustmentsMissingAmount(t *testing.T) {
	t.Parallel()

	_, err := ResolveAdjustments([]AdjustmentDraft{
		{Scope: ScopeOrder, Kind: KindCustom},
	}, subtotalBasis{Net: dec("10.00"), Gross: dec("12.00")}, testCtx())
	require.ErrorIs(t, err, ErrMissingAdjustmentAmount)
}

func TestManualOverrideRoundtrip(t *testing.T) {
	t.Parallel()

	key := ShippingProviderPrefix + "flatrate"
	draft := AdjustmentDraft{Scope: ScopeOrder, Kind: KindShipping, CalculatorKey: &key}
	require.False(t, HasManualOverride(draft))

	marked := MarkManualOverride(draft)
	require.True(t, HasManualOverride(marked))
	// The original draft's metadata is not shared with the marked copy.
	require.False(t, HasManualOverride(draft))

	manual := MarkManualOverride(AdjustmentDraft{Scope: ScopeOrder, Kind: KindDiscount})
	require.False(t, HasManualOverride(manual))
}

func TestMergeProviderAdjustments(t *testing.T) {
	t.Parallel()

	shippingKey := ShippingProviderPrefix + "flatrate"
	paymentKey := PaymentProviderPrefix + "card"

	overridden := MarkManualOverride(AdjustmentDraft{
		Scope: ScopeOrder, Kind: KindShipping, CalculatorKey: &shippingKey, AmountNet: decPtr("4.00"),
	})
	existing := []AdjustmentDraft{
		{Scope: ScopeOrder, Kind: KindDiscount, Code: "manual", AmountNet: decPtr("5.00")},
		overridden,
		{Scope: ScopeOrder, Kind: KindSurcharge, CalculatorKey: &paymentKey, AmountNet: decPtr("1.00")},
	}
	fresh := []AdjustmentDraft{
		{Scope: ScopeOrder, Kind: KindShipping, CalculatorKey: &shippingKey, AmountNet: decPtr("9.00")},
		{Scope: ScopeOrder, Kind: KindSurcharge, CalculatorKey: &paymentKey, AmountNet: decPtr("2.00")},
	}

	merged := MergeProviderAdjustments(existing, fresh)
	require.Len(t, merged, 3)

	// The manual discount survives untouched.
	require.Equal(t, "manual", merged[0].Code)
	// The user-overridden shipping charge keeps its edited amount; the fresh
	// shipping draft is dropped.
	require.True(t, merged[1].AmountNet.Equal(dec("4.00")))
	// The untouched payment surcharge is replaced by the fresh draft.
	require.True(t, merged[2].AmountNet.Equal(dec("2.00")))
}
