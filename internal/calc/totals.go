package calc

import (
	"github.com/shopspring/decimal"
)

// Input is the full argument set for one calculation run.
type Input struct {
	DocumentKind DocumentKind
	Lines        []LineDraft
	Adjustments  []AdjustmentDraft
	Context      Context
}

// Totals aggregates the document-level figures of a calculation run. The
// payment fields are populated for orders only.
type Totals struct {
	Currency string `json:"currency"`

	LineCount     int             `json:"lineCount"`
	SubtotalNet   decimal.Decimal `json:"subtotalNetAmount"`
	SubtotalGross decimal.Decimal `json:"subtotalGrossAmount"`

	DiscountTotal  decimal.Decimal `json:"discountTotalAmount"`
	TaxTotal       decimal.Decimal `json:"taxTotalAmount"`
	ShippingNet    decimal.Decimal `json:"shippingNetAmount"`
	ShippingGross  decimal.Decimal `json:"shippingGrossAmount"`
	SurchargeTotal decimal.Decimal `json:"surchargeTotalAmount"`

	GrandTotalNet   decimal.Decimal `json:"grandTotalNetAmount"`
	GrandTotalGross decimal.Decimal `json:"grandTotalGrossAmount"`

	PaidTotal     *decimal.Decimal `json:"paidTotalAmount,omitempty"`
	RefundedTotal *decimal.Decimal `json:"refundedTotalAmount,omitempty"`
	Outstanding   *decimal.Decimal `json:"outstandingAmount,omitempty"`
}

// Result is the immutable outcome of one calculation run. Lines keep input
// order; adjustments are in application order.
type Result struct {
	Lines       []LineResult       `json:"lines"`
	Adjustments []AdjustmentResult `json:"adjustments"`
	Totals      Totals             `json:"totals"`
}

// CalculateDocumentTotals evaluates every line, resolves every adjustment
// against the line subtotal and aggregates document totals. It is a pure
// function: identical inputs yield identical results, and no state survives
// the call.
func CalculateDocumentTotals(in Input) (Result, error) {
	currency := in.Context.Currency

	lines := make([]LineResult, 0, len(in.Lines))
	var subtotalNet, subtotalGross, lineDiscounts decimal.Decimal
	for i, draft := range in.Lines {
		line, err := EvaluateLine(i, draft, in.Context)
		if err != nil {
			return Result{}, err
		}
		lines = append(lines, line)
		subtotalNet = subtotalNet.Add(line.TotalNet)
		subtotalGross = subtotalGross.Add(line.TotalGross)
		lineDiscounts = lineDiscounts.Add(line.DiscountAmount)
	}

	adjustments, err := ResolveAdjustments(in.Adjustments, subtotalBasis{Net: subtotalNet, Gross: subtotalGross}, in.Context)
	if err != nil {
		return Result{}, err
	}

	grandNet := subtotalNet
	grandGross := subtotalGross
	var discountTotal, shippingNet, shippingGross, surchargeTotal decimal.Decimal
	for _, adj := range adjustments {
		switch adj.Kind {
		case KindDiscount:
			discountTotal = discountTotal.Add(adj.AmountNet)
			grandNet = grandNet.Sub(adj.AmountNet)
			grandGross = grandGross.Sub(adj.AmountGross)
		case KindShipping:
			shippingNet = shippingNet.Add(adj.AmountNet)
			shippingGross = shippingGross.Add(adj.AmountGross)
			grandNet = grandNet.Add(adj.AmountNet)
			grandGross = grandGross.Add(adj.AmountGross)
		case KindSurcharge:
			surchargeTotal = surchargeTotal.Add(adj.AmountGross)
			grandNet = grandNet.Add(adj.AmountNet)
			grandGross = grandGross.Add(adj.AmountGross)
		case KindTax:
			// Pure tax charges raise the gross side only.
			grandGross = grandGross.Add(adj.AmountGross)
		default:
			grandNet = grandNet.Add(adj.AmountNet)
			grandGross = grandGross.Add(adj.AmountGross)
		}
	}

	totals := Totals{
		Currency:        currency,
		LineCount:       len(lines),
		SubtotalNet:     subtotalNet,
		SubtotalGross:   subtotalGross,
		DiscountTotal:   lineDiscounts.Add(discountTotal),
		TaxTotal:        grandGross.Sub(grandNet),
		ShippingNet:     shippingNet,
		ShippingGross:   shippingGross,
		SurchargeTotal:  surchargeTotal,
		GrandTotalNet:   grandNet,
		GrandTotalGross: grandGross,
	}

	if in.DocumentKind == DocumentKindOrder {
		paid, refunded := decimal.Zero, decimal.Zero
		if in.Context.Existing != nil {
			paid = in.Context.Existing.PaidTotal
			refunded = in.Context.Existing.RefundedTotal
		}
		outstanding := grandGross.Sub(paid).Add(refunded)
		if outstanding.IsNegative() {
			outstanding = decimal.Zero
		}
		totals.PaidTotal = &paid
		totals.RefundedTotal = &refunded
		totals.Outstanding = &outstanding
	}

	return Result{Lines: lines, Adjustments: adjustments, Totals: totals}, nil
}
