// Package document holds the persisted shape of quote and order contents.
// Lines and adjustments live as JSONB on the document row; this package
// converts between that shape and the calculation engine's draft types.
package document

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backoffice/internal/calc"
	"github.com/noah-isme/backoffice/internal/store"
)

// Document kinds as stored.
const (
	KindQuote = "quote"
	KindOrder = "order"
)

// Quote statuses.
const (
	QuoteStatusDraft     = "draft"
	QuoteStatusOpen      = "open"
	QuoteStatusConverted = "converted"
	QuoteStatusExpired   = "expired"
)

// Order statuses.
const (
	OrderStatusOpen      = "open"
	OrderStatusPaid      = "paid"
	OrderStatusFulfilled = "fulfilled"
	OrderStatusCanceled  = "canceled"
)

// Line is the stored form of one document line.
type Line struct {
	Kind            string           `json:"kind"`
	Label           string           `json:"label"`
	Quantity        int64            `json:"quantity"`
	UnitNet         *decimal.Decimal `json:"unitNetAmount,omitempty"`
	UnitGross       *decimal.Decimal `json:"unitGrossAmount,omitempty"`
	DiscountAmount  *decimal.Decimal `json:"discountAmount,omitempty"`
	DiscountPercent *decimal.Decimal `json:"discountPercent,omitempty"`
	TaxRate         decimal.Decimal  `json:"taxRate"`
	TotalNet        *decimal.Decimal `json:"totalNetAmount,omitempty"`
	TotalGross      *decimal.Decimal `json:"totalGrossAmount,omitempty"`
}

// Adjustment is the stored form of one document-level adjustment.
type Adjustment struct {
	Kind          string           `json:"kind"`
	Code          string           `json:"code,omitempty"`
	Label         string           `json:"label,omitempty"`
	CalculatorKey *string          `json:"calculatorKey,omitempty"`
	Rate          *decimal.Decimal `json:"rate,omitempty"`
	AmountNet     *decimal.Decimal `json:"amountNet,omitempty"`
	AmountGross   *decimal.Decimal `json:"amountGross,omitempty"`
	Position      int              `json:"position"`
	Metadata      map[string]any   `json:"metadata,omitempty"`
}

// DecodeLines parses the stored lines payload. An empty payload is an empty
// document, not an error.
func DecodeLines(raw json.RawMessage) ([]Line, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var lines []Line
	if err := json.Unmarshal(raw, &lines); err != nil {
		return nil, fmt.Errorf("decode lines: %w", err)
	}
	return lines, nil
}

// EncodeLines serializes lines for storage. Nil becomes an empty array so the
// column never holds SQL null.
func EncodeLines(lines []Line) (json.RawMessage, error) {
	if lines == nil {
		lines = []Line{}
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return nil, fmt.Errorf("encode lines: %w", err)
	}
	return data, nil
}

// DecodeAdjustments parses the stored adjustments payload.
func DecodeAdjustments(raw json.RawMessage) ([]Adjustment, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var adjustments []Adjustment
	if err := json.Unmarshal(raw, &adjustments); err != nil {
		return nil, fmt.Errorf("decode adjustments: %w", err)
	}
	return adjustments, nil
}

// EncodeAdjustments serializes adjustments for storage.
func EncodeAdjustments(adjustments []Adjustment) (json.RawMessage, error) {
	if adjustments == nil {
		adjustments = []Adjustment{}
	}
	data, err := json.Marshal(adjustments)
	if err != nil {
		return nil, fmt.Errorf("encode adjustments: %w", err)
	}
	return data, nil
}

// LineDrafts converts stored lines into calculation drafts.
func LineDrafts(lines []Line, currency string) []calc.LineDraft {
	drafts := make([]calc.LineDraft, 0, len(lines))
	for _, line := range lines {
		kind := calc.LineKind(line.Kind)
		if kind == "" {
			kind = calc.LineKindCustom
		}
		drafts = append(drafts, calc.LineDraft{
			Kind:            kind,
			Label:           line.Label,
			Quantity:        line.Quantity,
			Currency:        currency,
			UnitNet:         line.UnitNet,
			UnitGross:       line.UnitGross,
			DiscountAmount:  line.DiscountAmount,
			DiscountPercent: line.DiscountPercent,
			TaxRate:         line.TaxRate,
			TotalNet:        line.TotalNet,
			TotalGross:      line.TotalGross,
		})
	}
	return drafts
}

// AdjustmentDrafts converts stored adjustments into calculation drafts.
func AdjustmentDrafts(adjustments []Adjustment, currency string) []calc.AdjustmentDraft {
	drafts := make([]calc.AdjustmentDraft, 0, len(adjustments))
	for _, adj := range adjustments {
		drafts = append(drafts, calc.AdjustmentDraft{
			Scope:         calc.ScopeOrder,
			Kind:          calc.AdjustmentKind(adj.Kind),
			Code:          adj.Code,
			Label:         adj.Label,
			CalculatorKey: adj.CalculatorKey,
			Rate:          adj.Rate,
			AmountNet:     adj.AmountNet,
			AmountGross:   adj.AmountGross,
			Currency:      currency,
			Position:      adj.Position,
			Metadata:      adj.Metadata,
		})
	}
	return drafts
}

// AdjustmentsFromDrafts converts calculation drafts back to the stored
// shape, used after provider adjustments are merged in.
func AdjustmentsFromDrafts(drafts []calc.AdjustmentDraft) []Adjustment {
	adjustments := make([]Adjustment, 0, len(drafts))
	for _, draft := range drafts {
		adjustments = append(adjustments, Adjustment{
			Kind:          string(draft.Kind),
			Code:          draft.Code,
			Label:         draft.Label,
			CalculatorKey: draft.CalculatorKey,
			Rate:          draft.Rate,
			AmountNet:     draft.AmountNet,
			AmountGross:   draft.AmountGross,
			Position:      draft.Position,
			Metadata:      draft.Metadata,
		})
	}
	return adjustments
}

// MethodInfo normalizes a stored method row for the provider calculators.
func MethodInfo(row store.MethodRow) *calc.MethodInfo {
	settings := map[string]string{}
	if len(row.Settings) > 0 {
		// Settings are advisory; a malformed blob falls back to empty.
		_ = json.Unmarshal(row.Settings, &settings)
	}
	return &calc.MethodInfo{
		ID:             row.ID,
		Code:           row.Code,
		Name:           row.Name,
		ProviderKey:    row.ProviderKey,
		BaseRateNet:    row.BaseRateNet,
		PerItemRateNet: row.PerItemRateNet,
		FeeRate:        row.FeeRate,
		FeeFlatNet:     row.FeeFlatNet,
		Settings:       settings,
	}
}

// Recalculate runs the totals engine over stored content and returns the
// result alongside its serialized form for persistence.
func Recalculate(kind calc.DocumentKind, lines []Line, adjustments []Adjustment, ctx calc.Context) (calc.Result, json.RawMessage, error) {
	result, err := calc.CalculateDocumentTotals(calc.Input{
		DocumentKind: kind,
		Lines:        LineDrafts(lines, ctx.Currency),
		Adjustments:  AdjustmentDrafts(adjustments, ctx.Currency),
		Context:      ctx,
	})
	if err != nil {
		return calc.Result{}, nil, err
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		return calc.Result{}, nil, fmt.Errorf("encode totals: %w", err)
	}
	return result, encoded, nil
}
