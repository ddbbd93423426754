package calc

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// ShippingProviderPrefix tags adjustments produced by a shipping
	// provider calculator.
	ShippingProviderPrefix = "shipping-provider:"
	// PaymentProviderPrefix tags adjustments produced by a payment provider
	// calculator.
	PaymentProviderPrefix = "payment-provider:"

	// manualOverrideKey flags a provider-managed adjustment that a user has
	// edited; re-evaluation must not clobber it.
	manualOverrideKey = "manualOverride"
)

// IsProviderManaged reports whether the calculator key names a shipping or
// payment provider as the adjustment's origin.
func IsProviderManaged(calculatorKey *string) bool {
	if calculatorKey == nil {
		return false
	}
	return strings.HasPrefix(*calculatorKey, ShippingProviderPrefix) ||
		strings.HasPrefix(*calculatorKey, PaymentProviderPrefix)
}

// MarkManualOverride flags a provider-managed draft as user-edited. Manual
// drafts are returned unchanged.
func MarkManualOverride(draft AdjustmentDraft) AdjustmentDraft {
	if !IsProviderManaged(draft.CalculatorKey) {
		return draft
	}
	meta := make(map[string]any, len(draft.Metadata)+1)
	for k, v := range draft.Metadata {
		meta[k] = v
	}
	meta[manualOverrideKey] = true
	draft.Metadata = meta
	return draft
}

// HasManualOverride reports whether the draft carries the user-edit flag.
func HasManualOverride(draft AdjustmentDraft) bool {
	v, ok := draft.Metadata[manualOverrideKey]
	if !ok {
		return false
	}
	flag, ok := v.(bool)
	return ok && flag
}

// MergeProviderAdjustments replaces system-managed adjustments with freshly
// computed provider drafts while keeping user-overridden ones and all manual
// entries untouched. Fresh drafts whose calculator key matches an overridden
// adjustment are dropped.
func MergeProviderAdjustments(existing, fresh []AdjustmentDraft) []AdjustmentDraft {
	overridden := make(map[string]struct{})
	merged := make([]AdjustmentDraft, 0, len(existing)+len(fresh))
	for _, adj := range existing {
		if !IsProviderManaged(adj.CalculatorKey) {
			merged = append(merged, adj)
			continue
		}
		if HasManualOverride(adj) {
			overridden[*adj.CalculatorKey] = struct{}{}
			merged = append(merged, adj)
		}
		// Non-overridden provider adjustments are superseded by fresh drafts.
	}
	for _, adj := range fresh {
		if adj.CalculatorKey != nil {
			if _, ok := overridden[*adj.CalculatorKey]; ok {
				continue
			}
		}
		merged = append(merged, adj)
	}
	return merged
}

// subtotalBasis is the document line subtotal percentage-rate adjustments
// apply against. Adjustments never compound over each other.
type subtotalBasis struct {
	Net   decimal.Decimal
	Gross decimal.Decimal
}

// blendedTaxFactor returns (gross / net) over the line subtotal, used to
// derive the missing side of a one-sided flat adjustment. A zero net
// subtotal degrades to a factor of one.
func (b subtotalBasis) blendedTaxFactor() decimal.Decimal {
	if b.Net.IsZero() {
		return one()
	}
	return b.Gross.Div(b.Net)
}

// ResolveAdjustments fills in absolute amounts for each adjustment draft and
// returns them in application order: ascending position, ties preserving the
// original submission order.
func ResolveAdjustments(drafts []AdjustmentDraft, basis subtotalBasis, ctx Context) ([]AdjustmentResult, error) {
	type indexed struct {
		idx   int
		draft AdjustmentDraft
	}
	ordered := make([]indexed, len(drafts))
	for i, d := range drafts {
		ordered[i] = indexed{idx: i, draft: d}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].draft.Position < ordered[j].draft.Position
	})

	results := make([]AdjustmentResult, 0, len(ordered))
	for _, entry := range ordered {
		draft := entry.draft
		if draft.Scope == ScopeLine {
			return nil, fmt.Errorf("adjustment %d: %w", entry.idx, ErrUnsupportedScope)
		}
		currency := draft.Currency
		if currency == "" {
			currency = ctx.Currency
		}

		var net, gross decimal.Decimal
		switch {
		case draft.Rate != nil && draft.AmountNet == nil && draft.AmountGross == nil:
			net = RoundAmount(basis.Net.Mul(*draft.Rate), currency)
			gross = RoundAmount(basis.Gross.Mul(*draft.Rate), currency)
		case draft.AmountNet != nil && draft.AmountGross != nil:
			net, gross = *draft.AmountNet, *draft.AmountGross
		case draft.AmountNet != nil:
			net = *draft.AmountNet
			gross = RoundAmount(net.Mul(basis.blendedTaxFactor()), currency)
		case draft.AmountGross != nil:
			gross = *draft.AmountGross
			net = RoundAmount(gross.DivRound(basis.blendedTaxFactor(), MinorUnits(currency)+4), currency)
		default:
			return nil, fmt.Errorf("adjustment %d: %w", entry.idx, ErrMissingAdjustmentAmount)
		}

		results = append(results, AdjustmentResult{
			Scope:         ScopeOrder,
			Kind:          draft.Kind,
			Code:          draft.Code,
			Label:         draft.Label,
			CalculatorKey: draft.CalculatorKey,
			Rate:          draft.Rate,
			AmountNet:     net,
			AmountGross:   gross,
			Currency:      currency,
			Position:      draft.Position,
			Metadata:      draft.Metadata,
		})
	}
	return results, nil
}
