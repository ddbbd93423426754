// Package jobs defines the asynq task surface: asynchronous document
// recalculation and domain event dispatch.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/noah-isme/backoffice/internal/store"
)

// Task type names.
const (
	TypeDocumentRecalc = "document:recalculate"
	TypeEventDispatch  = "events:dispatch"
)

// RecalcPayload asks the worker to recalculate one order's totals.
type RecalcPayload struct {
	TenantID   string    `json:"tenantId"`
	DocumentID uuid.UUID `json:"documentId"`
}

// DispatchPayload asks the worker to drain pending domain events.
type DispatchPayload struct {
	EventID uuid.UUID `json:"eventId"`
}

// Client enqueues background tasks.
type Client struct {
	C     *asynq.Client
	Queue string
}

// EnqueueRecalc schedules an asynchronous recalculation for one document.
// Duplicate requests for the same document within the uniqueness window
// collapse into one task.
func (c *Client) EnqueueRecalc(ctx context.Context, tenantID string, documentID uuid.UUID) error {
	payload, err := json.Marshal(RecalcPayload{TenantID: tenantID, DocumentID: documentID})
	if err != nil {
		return fmt.Errorf("jobs: encode recalc payload: %w", err)
	}
	_, err = c.C.EnqueueContext(ctx, asynq.NewTask(TypeDocumentRecalc, payload),
		asynq.Queue(c.Queue),
		asynq.MaxRetry(5),
		asynq.Unique(time.Minute),
	)
	if err != nil {
		return fmt.Errorf("jobs: enqueue recalc: %w", err)
	}
	return nil
}

// Schedule enqueues an event dispatch run. Implements the event bus
// DeliveryScheduler.
func (c *Client) Schedule(ctx context.Context, event store.DomainEventRow) error {
	payload, err := json.Marshal(DispatchPayload{EventID: event.ID})
	if err != nil {
		return fmt.Errorf("jobs: encode dispatch payload: %w", err)
	}
	_, err = c.C.EnqueueContext(ctx, asynq.NewTask(TypeEventDispatch, payload),
		asynq.Queue(c.Queue),
		asynq.MaxRetry(10),
	)
	if err != nil {
		return fmt.Errorf("jobs: enqueue dispatch: %w", err)
	}
	return nil
}
