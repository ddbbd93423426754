package events

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backoffice/internal/store"
)

// LogNotifier writes every delivered event to the structured log. It backs
// deployments that have no external webhook targets configured yet.
type LogNotifier struct {
	Logger zerolog.Logger
}

// Notify logs the event.
func (n LogNotifier) Notify(_ context.Context, event store.DomainEventRow) error {
	n.Logger.Info().
		Str("topic", event.Topic).
		Str("aggregate_id", event.AggregateID.String()).
		Str("tenant_id", event.TenantID.String()).
		RawJSON("payload", event.Payload).
		Msg("domain event")
	return nil
}
