package calc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShippingAdjustmentRateTable(t *testing.T) {
	t.Parallel()

	ctx := Context{
		Currency: "EUR",
		ShippingMethod: &MethodInfo{
			Code:           "standard",
			Name:           "Standard Shipping",
			ProviderKey:    "flatrate",
			BaseRateNet:    dec("4.90"),
			PerItemRateNet: dec("0.50"),
		},
	}
	lines := []LineDraft{
		{Quantity: 2, UnitNet: decPtr("10.00")},
		{Quantity: 3, UnitNet: decPtr("5.00")},
	}

	adj := ShippingAdjustment(ctx, lines)
	require.NotNil(t, adj)
	require.Equal(t, KindShipping, adj.Kind)
	require.Equal(t, ShippingProviderPrefix+"flatrate", *adj.CalculatorKey)
	// 4.90 + 5 * 0.50
	require.True(t, adj.AmountNet.Equal(dec("7.40")), "net %s", adj.AmountNet)

	require.Nil(t, ShippingAdjustment(Context{Currency: "EUR"}, lines))
}

func TestPaymentSurchargeRateAndFlat(t *testing.T) {
	t.Parallel()

	rated := PaymentSurcharge(Context{
		Currency: "EUR",
		PaymentMethod: &MethodInfo{
			Code:        "card",
			ProviderKey: "stripe-like",
			FeeRate:     dec("0.029"),
		},
	})
	require.NotNil(t, rated)
	require.Equal(t, KindSurcharge, rated.Kind)
	require.NotNil(t, rated.Rate)
	require.True(t, rated.Rate.Equal(dec("0.029")))

	flat := PaymentSurcharge(Context{
		Currency: "EUR",
		PaymentMethod: &MethodInfo{
			Code:        "cod",
			ProviderKey: "cash",
			FeeFlatNet:  dec("2.00"),
		},
	})
	require.NotNil(t, flat)
	require.NotNil(t, flat.AmountNet)
	require.True(t, flat.AmountNet.Equal(dec("2.00")))

	require.Nil(t, PaymentSurcharge(Context{Currency: "EUR", PaymentMethod: &MethodInfo{Code: "free"}}))
	require.Nil(t, PaymentSurcharge(Context{Currency: "EUR"}))
}

func TestProviderAdjustmentsRoundtripThroughTotals(t *testing.T) {
	t.Parallel()

	ctx := Context{
		Currency: "EUR",
		ShippingMethod: &MethodInfo{
			Code:        "express",
			ProviderKey: "flatrate",
			BaseRateNet: dec("10.00"),
		},
		PaymentMethod: &MethodInfo{
			Code:        "card",
			ProviderKey: "card",
			FeeRate:     dec("0.02"),
		},
	}
	lines := scenarioALines()

	res, err := CalculateDocumentTotals(Input{
		DocumentKind: DocumentKindQuote,
		Lines:        lines,
		Adjustments:  ProviderAdjustments(ctx, lines),
		Context:      ctx,
	})
	require.NoError(t, err)

	require.True(t, res.Totals.ShippingNet.Equal(dec("10.00")))
	require.True(t, res.Totals.ShippingGross.Equal(dec("12.00")))
	// 2% of the 240.00 gross subtotal.
	require.True(t, res.Totals.SurchargeTotal.Equal(dec("4.80")), "surcharge %s", res.Totals.SurchargeTotal)
}
