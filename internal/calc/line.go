package calc

import (
	"github.com/shopspring/decimal"
)

// EvaluateLine resolves a single line draft against the calculation context.
// Lines are independent of one another; the index only feeds error reporting.
func EvaluateLine(idx int, draft LineDraft, ctx Context) (LineResult, error) {
	currency := draft.Currency
	if currency == "" {
		currency = ctx.Currency
	}
	if draft.Quantity <= 0 {
		return LineResult{}, &InvalidLineInputError{Index: idx, Reason: "quantity must be positive"}
	}
	if draft.TaxRate.IsNegative() {
		return LineResult{}, &InvalidLineInputError{Index: idx, Reason: "tax rate must not be negative"}
	}

	unitNet, unitGross, err := resolveUnitPrices(idx, draft, currency)
	if err != nil {
		return LineResult{}, err
	}

	qty := decimal.NewFromInt(draft.Quantity)
	baseNet := RoundAmount(unitNet.Mul(qty), currency)

	discount := decimal.Zero
	switch {
	case draft.DiscountAmount != nil:
		// Flat amount wins over percent when both are present.
		discount = *draft.DiscountAmount
	case draft.DiscountPercent != nil:
		discount = RoundAmount(baseNet.Mul(*draft.DiscountPercent), currency)
	}
	if discount.IsNegative() {
		return LineResult{}, &InvalidLineInputError{Index: idx, Reason: "discount must not be negative"}
	}

	// Discount reduces the net basis; tax is computed on the discounted net.
	totalNet := RoundAmount(baseNet.Sub(discount), currency)
	taxAmount := RoundAmount(totalNet.Mul(draft.TaxRate), currency)
	totalGross := totalNet.Add(taxAmount)

	// Pinned totals override the derived figures; callers use them to carry
	// values verbatim from storage.
	if draft.TotalNet != nil {
		totalNet = *draft.TotalNet
	}
	if draft.TotalGross != nil {
		totalGross = *draft.TotalGross
	}
	if draft.TotalNet != nil || draft.TotalGross != nil {
		taxAmount = totalGross.Sub(totalNet)
	}

	if totalNet.IsNegative() || totalGross.IsNegative() {
		return LineResult{}, &InvalidLineInputError{Index: idx, Reason: "resulting line total is negative"}
	}

	return LineResult{
		Kind:           draft.Kind,
		Label:          draft.Label,
		Quantity:       draft.Quantity,
		Currency:       currency,
		UnitNet:        unitNet,
		UnitGross:      unitGross,
		DiscountAmount: discount,
		TaxRate:        draft.TaxRate,
		TaxAmount:      taxAmount,
		TotalNet:       totalNet,
		TotalGross:     totalGross,
	}, nil
}

func resolveUnitPrices(idx int, draft LineDraft, currency string) (net, gross decimal.Decimal, err error) {
	factor := one().Add(draft.TaxRate)
	switch {
	case draft.UnitNet != nil && draft.UnitGross != nil:
		net, gross = *draft.UnitNet, *draft.UnitGross
		// Both explicit: trusted as manual overrides, but a pair that
		// contradicts the tax rate beyond one minor unit is corrupt input.
		expected := net.Mul(factor)
		if gross.Sub(expected).Abs().GreaterThan(roundingTolerance(currency)) {
			return decimal.Zero, decimal.Zero, &InvalidLineInputError{
				Index:  idx,
				Reason: "unit net and gross contradict the tax rate",
			}
		}
	case draft.UnitNet != nil:
		net = *draft.UnitNet
		gross = RoundAmount(net.Mul(factor), currency)
	case draft.UnitGross != nil:
		gross = *draft.UnitGross
		net = RoundAmount(gross.DivRound(factor, MinorUnits(currency)+4), currency)
	default:
		return decimal.Zero, decimal.Zero, &InvalidLineInputError{Index: idx, Reason: "unit price is required"}
	}
	if net.IsNegative() || gross.IsNegative() {
		return decimal.Zero, decimal.Zero, &InvalidLineInputError{Index: idx, Reason: "unit price must not be negative"}
	}
	return net, gross, nil
}
