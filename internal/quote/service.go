// Package quote implements the quote lifecycle: drafting line items and
// adjustments, recalculating totals on every mutation and converting an
// accepted quote into an order.
package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backoffice/internal/calc"
	"github.com/noah-isme/backoffice/internal/document"
	"github.com/noah-isme/backoffice/internal/events"
	"github.com/noah-isme/backoffice/internal/obs"
	"github.com/noah-isme/backoffice/internal/store"
)

var (
	// ErrNotFound is returned when the quote does not exist for the tenant.
	ErrNotFound = errors.New("quote not found")
	// ErrAlreadyConverted is returned when a converted quote is mutated.
	ErrAlreadyConverted = errors.New("quote already converted")
)

type documentStore interface {
	Insert(ctx context.Context, row store.DocumentRow) (store.DocumentRow, error)
	Get(ctx context.Context, id uuid.UUID, kind string) (store.DocumentRow, error)
	List(ctx context.Context, kind string, status *string, limit, offset int32) ([]store.DocumentRow, error)
	Update(ctx context.Context, row store.DocumentRow) (store.DocumentRow, error)
	Delete(ctx context.Context, id uuid.UUID, kind string) error
}

// Service coordinates quote persistence and recalculation.
type Service struct {
	Documents       documentStore
	Events          *events.Bus
	DefaultCurrency string
}

// Quote is the API-facing view of a quote document.
type Quote struct {
	ID          uuid.UUID             `json:"id"`
	Status      string                `json:"status"`
	Currency    string                `json:"currency"`
	Reference   string                `json:"reference,omitempty"`
	Lines       []document.Line       `json:"lines"`
	Adjustments []document.Adjustment `json:"adjustments"`
	Totals      json.RawMessage       `json:"totals,omitempty"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
}

// Content is the mutable payload of a quote.
type Content struct {
	Currency    string                `json:"currency"`
	Reference   string                `json:"reference"`
	Lines       []document.Line       `json:"lines"`
	Adjustments []document.Adjustment `json:"adjustments"`
}

// State is the full snapshot used by the undo machinery.
type State struct {
	Status      string                `json:"status"`
	Currency    string                `json:"currency"`
	Reference   string                `json:"reference"`
	Lines       []document.Line       `json:"lines"`
	Adjustments []document.Adjustment `json:"adjustments"`
}

// Create drafts a new quote and calculates its totals.
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, content Content) (Quote, error) {
	currency := strings.ToUpper(strings.TrimSpace(content.Currency))
	if currency == "" {
		currency = s.DefaultCurrency
	}

	result, totalsJSON, err := s.recalc(tenantID, currency, content.Lines, content.Adjustments)
	if err != nil {
		return Quote{}, err
	}

	linesJSON, err := document.EncodeLines(content.Lines)
	if err != nil {
		return Quote{}, err
	}
	adjustmentsJSON, err := document.EncodeAdjustments(content.Adjustments)
	if err != nil {
		return Quote{}, err
	}

	row, err := s.Documents.Insert(ctx, store.DocumentRow{
		Kind:        document.KindQuote,
		Status:      document.QuoteStatusDraft,
		Currency:    currency,
		Reference:   strings.TrimSpace(content.Reference),
		Lines:       linesJSON,
		Adjustments: adjustmentsJSON,
		Totals:      totalsJSON,
	})
	if err != nil {
		return Quote{}, mapStoreErr(err)
	}

	s.emit(ctx, events.TopicQuoteCreated, row.ID, result)
	return toQuote(row)
}

// Get loads one quote.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Quote, error) {
	row, err := s.Documents.Get(ctx, id, document.KindQuote)
	if err != nil {
		return Quote{}, mapStoreErr(err)
	}
	return toQuote(row)
}

// List returns quotes, optionally filtered by status.
func (s *Service) List(ctx context.Context, status *string, limit, offset int32) ([]Quote, error) {
	rows, err := s.Documents.List(ctx, document.KindQuote, status, limit, offset)
	if err != nil {
		return nil, err
	}
	quotes := make([]Quote, 0, len(rows))
	for _, row := range rows {
		quote, err := toQuote(row)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, quote)
	}
	return quotes, nil
}

// Update replaces the quote's content and recalculates totals. Converted
// quotes are immutable.
func (s *Service) Update(ctx context.Context, tenantID, id uuid.UUID, content Content) (Quote, error) {
	row, err := s.Documents.Get(ctx, id, document.KindQuote)
	if err != nil {
		return Quote{}, mapStoreErr(err)
	}
	if row.Status == document.QuoteStatusConverted {
		return Quote{}, ErrAlreadyConverted
	}

	currency := strings.ToUpper(strings.TrimSpace(content.Currency))
	if currency == "" {
		currency = row.Currency
	}
	result, totalsJSON, err := s.recalc(tenantID, currency, content.Lines, content.Adjustments)
	if err != nil {
		return Quote{}, err
	}

	row.Currency = currency
	if ref := strings.TrimSpace(content.Reference); ref != "" {
		row.Reference = ref
	}
	if row.Lines, err = document.EncodeLines(content.Lines); err != nil {
		return Quote{}, err
	}
	if row.Adjustments, err = document.EncodeAdjustments(content.Adjustments); err != nil {
		return Quote{}, err
	}
	row.Totals = totalsJSON

	updated, err := s.Documents.Update(ctx, row)
	if err != nil {
		return Quote{}, mapStoreErr(err)
	}
	s.emit(ctx, events.TopicTotalsCalculated, updated.ID, result)
	return toQuote(updated)
}

// Delete removes a quote. Converted quotes stay for the audit trail.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	row, err := s.Documents.Get(ctx, id, document.KindQuote)
	if err != nil {
		return mapStoreErr(err)
	}
	if row.Status == document.QuoteStatusConverted {
		return ErrAlreadyConverted
	}
	if err := s.Documents.Delete(ctx, id, document.KindQuote); err != nil {
		return mapStoreErr(err)
	}
	return nil
}

// ConvertToOrder turns an open quote into an order document. The quote is
// marked converted and keeps a pointer from the new order.
func (s *Service) ConvertToOrder(ctx context.Context, tenantID, id uuid.UUID) (store.DocumentRow, error) {
	row, err := s.Documents.Get(ctx, id, document.KindQuote)
	if err != nil {
		return store.DocumentRow{}, mapStoreErr(err)
	}
	if row.Status == document.QuoteStatusConverted {
		return store.DocumentRow{}, ErrAlreadyConverted
	}

	lines, err := document.DecodeLines(row.Lines)
	if err != nil {
		return store.DocumentRow{}, err
	}
	adjustments, err := document.DecodeAdjustments(row.Adjustments)
	if err != nil {
		return store.DocumentRow{}, err
	}
	// Orders reconcile payments; rerun the engine under the order kind so the
	// totals snapshot carries the payment fields from the start.
	result, totalsJSON, err := document.Recalculate(calc.DocumentKindOrder, lines, adjustments, calc.Context{
		TenantID: tenantID,
		Currency: row.Currency,
		Existing: &calc.ExistingTotals{},
	})
	if err != nil {
		return store.DocumentRow{}, err
	}

	quoteID := row.ID
	order, err := s.Documents.Insert(ctx, store.DocumentRow{
		Kind:            document.KindOrder,
		Status:          document.OrderStatusOpen,
		Currency:        row.Currency,
		Reference:       row.Reference,
		ChannelID:       row.ChannelID,
		Lines:           row.Lines,
		Adjustments:     row.Adjustments,
		Totals:          totalsJSON,
		ConvertedFromID: &quoteID,
	})
	if err != nil {
		return store.DocumentRow{}, mapStoreErr(err)
	}

	row.Status = document.QuoteStatusConverted
	if _, err := s.Documents.Update(ctx, row); err != nil {
		return store.DocumentRow{}, mapStoreErr(err)
	}

	s.emit(ctx, events.TopicQuoteConverted, row.ID, map[string]any{"orderId": order.ID})
	s.emit(ctx, events.TopicOrderCreated, order.ID, result)
	return order, nil
}

// Snapshot captures the quote's full mutable state for the audit trail.
func (s *Service) Snapshot(ctx context.Context, id uuid.UUID) (State, error) {
	row, err := s.Documents.Get(ctx, id, document.KindQuote)
	if err != nil {
		return State{}, mapStoreErr(err)
	}
	return stateFromRow(row)
}

// RestoreState reinstates a captured state, recalculating totals. An empty
// state deletes the quote (undo of a create).
func (s *Service) RestoreState(ctx context.Context, tenantID, id uuid.UUID, state json.RawMessage) error {
	if len(state) == 0 || string(state) == "null" {
		err := s.Documents.Delete(ctx, id, document.KindQuote)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	var target State
	if err := json.Unmarshal(state, &target); err != nil {
		return fmt.Errorf("decode quote state: %w", err)
	}

	_, totalsJSON, err := s.recalc(tenantID, target.Currency, target.Lines, target.Adjustments)
	if err != nil {
		return err
	}
	linesJSON, err := document.EncodeLines(target.Lines)
	if err != nil {
		return err
	}
	adjustmentsJSON, err := document.EncodeAdjustments(target.Adjustments)
	if err != nil {
		return err
	}

	row, err := s.Documents.Get(ctx, id, document.KindQuote)
	if errors.Is(mapStoreErr(err), ErrNotFound) {
		// Undo of a delete: reinstate the row under its original id.
		_, insertErr := s.Documents.Insert(ctx, store.DocumentRow{
			ID:          id,
			Kind:        document.KindQuote,
			Status:      target.Status,
			Currency:    target.Currency,
			Reference:   target.Reference,
			Lines:       linesJSON,
			Adjustments: adjustmentsJSON,
			Totals:      totalsJSON,
		})
		return insertErr
	}
	if err != nil {
		return mapStoreErr(err)
	}

	row.Status = target.Status
	row.Currency = target.Currency
	row.Reference = target.Reference
	row.Lines = linesJSON
	row.Adjustments = adjustmentsJSON
	row.Totals = totalsJSON
	_, err = s.Documents.Update(ctx, row)
	return mapStoreErr(err)
}

func (s *Service) recalc(tenantID uuid.UUID, currency string, lines []document.Line, adjustments []document.Adjustment) (calc.Result, json.RawMessage, error) {
	started := time.Now()
	result, totalsJSON, err := document.Recalculate(calc.DocumentKindQuote, lines, adjustments, calc.Context{
		TenantID: tenantID,
		Currency: currency,
	})
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	obs.ObserveCalculation(document.KindQuote, outcome, obs.DurationMillis(time.Since(started)))
	return result, totalsJSON, err
}

func (s *Service) emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) {
	if s.Events == nil {
		return
	}
	_, _ = s.Events.Emit(ctx, topic, aggregateID, payload)
}

func toQuote(row store.DocumentRow) (Quote, error) {
	lines, err := document.DecodeLines(row.Lines)
	if err != nil {
		return Quote{}, err
	}
	adjustments, err := document.DecodeAdjustments(row.Adjustments)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		ID:          row.ID,
		Status:      row.Status,
		Currency:    row.Currency,
		Reference:   row.Reference,
		Lines:       lines,
		Adjustments: adjustments,
		Totals:      row.Totals,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}

func stateFromRow(row store.DocumentRow) (State, error) {
	lines, err := document.DecodeLines(row.Lines)
	if err != nil {
		return State{}, err
	}
	adjustments, err := document.DecodeAdjustments(row.Adjustments)
	if err != nil {
		return State{}, err
	}
	return State{
		Status:      row.Status,
		Currency:    row.Currency,
		Reference:   row.Reference,
		Lines:       lines,
		Adjustments: adjustments,
	}, nil
}

func mapStoreErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
