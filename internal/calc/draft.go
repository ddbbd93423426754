package calc

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentKind distinguishes the two sales document shapes sharing the
// totals calculation.
type DocumentKind string

const (
	// DocumentKindQuote marks a quote; no payment reconciliation applies.
	DocumentKindQuote DocumentKind = "quote"
	// DocumentKindOrder marks an order; outstanding balance is reconciled
	// against recorded payments and refunds.
	DocumentKindOrder DocumentKind = "order"
)

// LineKind identifies the origin of a line item.
type LineKind string

const (
	// LineKindProduct is a catalog-backed line.
	LineKindProduct LineKind = "product"
	// LineKindCustom is a free-form line entered by an operator.
	LineKindCustom LineKind = "custom"
)

// AdjustmentScope declares the level an adjustment applies at. Only order
// scope is supported; line scope is rejected.
type AdjustmentScope string

const (
	// ScopeOrder applies the adjustment to the whole document.
	ScopeOrder AdjustmentScope = "order"
	// ScopeLine is declared but unsupported.
	ScopeLine AdjustmentScope = "line"
)

// AdjustmentKind classifies an order-level adjustment.
type AdjustmentKind string

const (
	// KindDiscount reduces the document total.
	KindDiscount AdjustmentKind = "discount"
	// KindSurcharge increases the document total.
	KindSurcharge AdjustmentKind = "surcharge"
	// KindShipping is a shipping charge, tracked in dedicated totals fields.
	KindShipping AdjustmentKind = "shipping"
	// KindTax is an additional tax charge applied on top of line taxes.
	KindTax AdjustmentKind = "tax"
	// KindCustom is an uncategorised charge.
	KindCustom AdjustmentKind = "custom"
)

// LineDraft describes a line item before evaluation. At most one of UnitNet
// and UnitGross is authoritative; the other is derived via the tax rate.
// When both are present the explicit values are trusted as manually
// overridden pricing, provided they agree with the tax rate within rounding
// tolerance.
type LineDraft struct {
	Kind     LineKind
	Label    string
	Quantity int64
	Currency string

	UnitNet   *decimal.Decimal
	UnitGross *decimal.Decimal

	// DiscountAmount is a flat per-line discount; DiscountPercent is a
	// fraction (0.10 = 10%) of the pre-discount line net. Amount wins when
	// both are supplied.
	DiscountAmount  *decimal.Decimal
	DiscountPercent *decimal.Decimal

	// TaxRate is a fraction (0.20 = 20%).
	TaxRate decimal.Decimal

	// TotalNet/TotalGross pin the line totals instead of deriving them.
	TotalNet   *decimal.Decimal
	TotalGross *decimal.Decimal
}

// LineResult is the evaluated form of a LineDraft.
type LineResult struct {
	Kind           LineKind        `json:"kind"`
	Label          string          `json:"label"`
	Quantity       int64           `json:"quantity"`
	Currency       string          `json:"currency"`
	UnitNet        decimal.Decimal `json:"unitNetAmount"`
	UnitGross      decimal.Decimal `json:"unitGrossAmount"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	TaxRate        decimal.Decimal `json:"taxRate"`
	TaxAmount      decimal.Decimal `json:"taxAmount"`
	TotalNet       decimal.Decimal `json:"totalNetAmount"`
	TotalGross     decimal.Decimal `json:"totalGrossAmount"`
}

// AdjustmentDraft describes an order-level adjustment before resolution.
type AdjustmentDraft struct {
	Scope AdjustmentScope
	Kind  AdjustmentKind
	Code  string
	Label string

	// CalculatorKey identifies the subsystem that produced the adjustment
	// (nil for manual entries). Provider-managed keys are prefixed with
	// "shipping-provider:" or "payment-provider:".
	CalculatorKey *string

	// Rate is a fraction applied to the document line subtotal. Flat
	// adjustments carry AmountNet and/or AmountGross instead; a missing
	// counterpart is derived via the document's blended tax rate.
	Rate        *decimal.Decimal
	AmountNet   *decimal.Decimal
	AmountGross *decimal.Decimal

	Currency string
	Position int
	Metadata map[string]any
}

// AdjustmentResult is an AdjustmentDraft with its absolute amounts resolved.
type AdjustmentResult struct {
	Scope         AdjustmentScope  `json:"scope"`
	Kind          AdjustmentKind   `json:"kind"`
	Code          string           `json:"code,omitempty"`
	Label         string           `json:"label,omitempty"`
	CalculatorKey *string          `json:"calculatorKey,omitempty"`
	Rate          *decimal.Decimal `json:"rate,omitempty"`
	AmountNet     decimal.Decimal  `json:"amountNet"`
	AmountGross   decimal.Decimal  `json:"amountGross"`
	Currency      string           `json:"currency"`
	Position      int              `json:"position"`
	Metadata      map[string]any   `json:"metadata,omitempty"`
}

// MethodInfo is a normalized shipping- or payment-method descriptor consumed
// by the provider calculators.
type MethodInfo struct {
	ID          uuid.UUID
	Code        string
	Name        string
	ProviderKey string

	// BaseRateNet and PerItemRateNet form the provider's rate table for
	// shipping charges.
	BaseRateNet    decimal.Decimal
	PerItemRateNet decimal.Decimal

	// FeeRate and FeeFlatNet describe a payment provider's surcharge.
	FeeRate    decimal.Decimal
	FeeFlatNet decimal.Decimal

	Settings map[string]string
}

// ExistingTotals carries already-recorded payment figures for an order.
type ExistingTotals struct {
	PaidTotal     decimal.Decimal
	RefundedTotal decimal.Decimal
}

// Context carries tenant scope, currency and provider metadata for one
// calculation run. It is read-only for the engine.
type Context struct {
	TenantID       uuid.UUID
	Currency       string
	ShippingMethod *MethodInfo
	PaymentMethod  *MethodInfo
	Existing       *ExistingTotals
}
