package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backoffice/internal/events"
	"github.com/noah-isme/backoffice/internal/lock"
	"github.com/noah-isme/backoffice/internal/order"
	"github.com/noah-isme/backoffice/internal/store"
	"github.com/noah-isme/backoffice/internal/tenant"
)

type orderRecalculator interface {
	Recalculate(ctx context.Context, tenantID, id uuid.UUID) (order.Order, error)
}

// RecalcHandler recalculates a document under a per-document redis lock so
// concurrent workers never run the engine over the same order at once.
type RecalcHandler struct {
	Orders  orderRecalculator
	Locker  lock.Locker
	LockTTL time.Duration
	Logger  zerolog.Logger
}

// ProcessTask handles one TypeDocumentRecalc task.
func (h *RecalcHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var p RecalcPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("decode recalc payload: %w", err)
	}
	tenantID, err := uuid.Parse(p.TenantID)
	if err != nil {
		return fmt.Errorf("parse tenant id: %w", err)
	}
	ctx = tenant.WithTenant(ctx, p.TenantID)

	key := lock.DocumentKey(p.TenantID, p.DocumentID.String())
	return h.Locker.WithLock(ctx, key, h.LockTTL, func(ctx context.Context) error {
		_, err := h.Orders.Recalculate(ctx, tenantID, p.DocumentID)
		if errors.Is(err, order.ErrNotFound) {
			// The document vanished between enqueue and execution.
			h.Logger.Warn().Str("document_id", p.DocumentID.String()).Msg("recalc target gone")
			return nil
		}
		return err
	})
}

type pendingEventStore interface {
	ListPending(ctx context.Context, limit int32) ([]store.DomainEventRow, error)
	MarkDispatched(ctx context.Context, id uuid.UUID) error
}

// DispatchHandler drains pending domain events and fans them out to the
// configured notifiers. An event is marked dispatched only after every
// notifier accepted it; failures leave it pending for the next run.
type DispatchHandler struct {
	Events    pendingEventStore
	Notifiers []events.Notifier
	Batch     int32
	Logger    zerolog.Logger
}

// ProcessTask handles one TypeEventDispatch task.
func (h *DispatchHandler) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	batch := h.Batch
	if batch <= 0 {
		batch = 100
	}
	pending, err := h.Events.ListPending(ctx, batch)
	if err != nil {
		return fmt.Errorf("list pending events: %w", err)
	}

	var failed int
	for _, event := range pending {
		eventCtx := tenant.WithTenant(ctx, event.TenantID.String())
		if err := h.notifyAll(eventCtx, event); err != nil {
			failed++
			h.Logger.Error().Err(err).
				Str("event_id", event.ID.String()).
				Str("topic", event.Topic).
				Msg("event dispatch failed")
			continue
		}
		if err := h.Events.MarkDispatched(eventCtx, event.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("mark dispatched: %w", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d events failed to dispatch", failed, len(pending))
	}
	return nil
}

func (h *DispatchHandler) notifyAll(ctx context.Context, event store.DomainEventRow) error {
	for _, notifier := range h.Notifiers {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// NewMux wires the task handlers into an asynq mux.
func NewMux(recalc *RecalcHandler, dispatch *DispatchHandler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeDocumentRecalc, recalc)
	mux.Handle(TypeEventDispatch, dispatch)
	return mux
}
