package calc

import (
	"github.com/shopspring/decimal"
)

// ShippingAdjustment builds the system-managed shipping charge for the
// context's shipping method: base rate plus a per-item rate over the total
// line quantity. Returns nil when no shipping method is set.
func ShippingAdjustment(ctx Context, lines []LineDraft) *AdjustmentDraft {
	method := ctx.ShippingMethod
	if method == nil {
		return nil
	}
	var qty int64
	for _, line := range lines {
		if line.Quantity > 0 {
			qty += line.Quantity
		}
	}
	amount := RoundAmount(method.BaseRateNet.Add(method.PerItemRateNet.Mul(decimal.NewFromInt(qty))), ctx.Currency)
	key := ShippingProviderPrefix + method.ProviderKey
	return &AdjustmentDraft{
		Scope:         ScopeOrder,
		Kind:          KindShipping,
		Code:          method.Code,
		Label:         method.Name,
		CalculatorKey: &key,
		AmountNet:     &amount,
		Currency:      ctx.Currency,
		Position:      100,
	}
}

// PaymentSurcharge builds the system-managed payment fee for the context's
// payment method: a fractional fee rate over the line subtotal, a flat fee,
// or both. Returns nil when no payment method is set or the method carries
// no fee.
func PaymentSurcharge(ctx Context) *AdjustmentDraft {
	method := ctx.PaymentMethod
	if method == nil {
		return nil
	}
	key := PaymentProviderPrefix + method.ProviderKey
	draft := &AdjustmentDraft{
		Scope:         ScopeOrder,
		Kind:          KindSurcharge,
		Code:          method.Code,
		Label:         method.Name,
		CalculatorKey: &key,
		Currency:      ctx.Currency,
		Position:      200,
	}
	switch {
	case method.FeeRate.IsPositive():
		rate := method.FeeRate
		draft.Rate = &rate
	case method.FeeFlatNet.IsPositive():
		flat := method.FeeFlatNet
		draft.AmountNet = &flat
	default:
		return nil
	}
	return draft
}

// ProviderAdjustments returns every system-managed draft derived from the
// context's provider metadata.
func ProviderAdjustments(ctx Context, lines []LineDraft) []AdjustmentDraft {
	var drafts []AdjustmentDraft
	if adj := ShippingAdjustment(ctx, lines); adj != nil {
		drafts = append(drafts, *adj)
	}
	if adj := PaymentSurcharge(ctx); adj != nil {
		drafts = append(drafts, *adj)
	}
	return drafts
}
