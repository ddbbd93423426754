package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/noah-isme/backoffice/internal/command"
)

// CommandRecord books a payment or refund through the audit trail.
const CommandRecord = "payment.record"

const resourceType = "payment"

// recordSnapshot is the undo state for a booking. A nil Record means the
// ledger entry did not exist; restoring it deletes the entry again.
type recordSnapshot struct {
	OrderID uuid.UUID `json:"orderId"`
	Record  *Payment  `json:"record,omitempty"`
}

// Commands returns the definitions the registry needs for the payment ledger.
func (s *Service) Commands() []command.Definition {
	return []command.Definition{
		{
			Name:         CommandRecord,
			ResourceType: resourceType,
			Mutate:       s.mutateRecord,
			Restore:      s.restore,
		},
	}
}

func (s *Service) mutateRecord(ctx context.Context, actor command.Actor, payload json.RawMessage) (command.Outcome, error) {
	var in Input
	if err := json.Unmarshal(payload, &in); err != nil {
		return command.Outcome{}, fmt.Errorf("decode payment payload: %w", err)
	}
	record, err := s.Record(ctx, actor.TenantID, in)
	if err != nil {
		return command.Outcome{}, err
	}
	before, err := json.Marshal(recordSnapshot{OrderID: record.OrderID})
	if err != nil {
		return command.Outcome{}, err
	}
	after, err := json.Marshal(recordSnapshot{OrderID: record.OrderID, Record: &record})
	if err != nil {
		return command.Outcome{}, err
	}
	return command.Outcome{
		ResourceID: record.ID.String(),
		Before:     before,
		After:      after,
		Result:     record,
	}, nil
}

func (s *Service) restore(ctx context.Context, actor command.Actor, resourceID string, state json.RawMessage) error {
	id, err := uuid.Parse(resourceID)
	if err != nil {
		return fmt.Errorf("parse payment id: %w", err)
	}
	var snap recordSnapshot
	if err := json.Unmarshal(state, &snap); err != nil {
		return fmt.Errorf("decode payment state: %w", err)
	}
	if snap.Record == nil {
		return s.remove(ctx, actor.TenantID, id, snap.OrderID)
	}
	return s.reinstate(ctx, actor.TenantID, *snap.Record)
}
