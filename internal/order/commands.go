package order

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/noah-isme/backoffice/internal/command"
)

// Command names exposed through the executor.
const (
	CommandUpdateContent     = "order.update_content"
	CommandSetShippingMethod = "order.set_shipping_method"
	CommandSetPaymentMethod  = "order.set_payment_method"
	CommandSetStatus         = "order.set_status"
)

const resourceType = "order"

type contentPayload struct {
	ID      uuid.UUID `json:"id"`
	Content Content   `json:"content"`
}

type methodPayload struct {
	ID       uuid.UUID  `json:"id"`
	MethodID *uuid.UUID `json:"methodId"`
}

type statusPayload struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}

// Commands returns the order command definitions for registry assembly.
func (s *Service) Commands() []command.Definition {
	return []command.Definition{
		{
			Name:         CommandUpdateContent,
			ResourceType: resourceType,
			Mutate:       s.mutateContent,
			Restore:      s.restore,
		},
		{
			Name:         CommandSetShippingMethod,
			ResourceType: resourceType,
			Mutate:       s.mutateMethod(CommandSetShippingMethod),
			Restore:      s.restore,
		},
		{
			Name:         CommandSetPaymentMethod,
			ResourceType: resourceType,
			Mutate:       s.mutateMethod(CommandSetPaymentMethod),
			Restore:      s.restore,
		},
		{
			Name:         CommandSetStatus,
			ResourceType: resourceType,
			Mutate:       s.mutateStatus,
			Restore:      s.restore,
		},
	}
}

func (s *Service) mutateContent(ctx context.Context, actor command.Actor, payload json.RawMessage) (command.Outcome, error) {
	var req contentPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return command.Outcome{}, fmt.Errorf("decode order payload: %w", err)
	}
	before, err := s.snapshotJSON(ctx, req.ID)
	if err != nil {
		return command.Outcome{}, err
	}
	order, err := s.UpdateContent(ctx, actor.TenantID, req.ID, req.Content)
	if err != nil {
		return command.Outcome{}, err
	}
	after, err := s.snapshotJSON(ctx, order.ID)
	if err != nil {
		return command.Outcome{}, err
	}
	return command.Outcome{ResourceID: order.ID.String(), Before: before, After: after, Result: order}, nil
}

func (s *Service) mutateMethod(name string) command.MutateFunc {
	return func(ctx context.Context, actor command.Actor, payload json.RawMessage) (command.Outcome, error) {
		var req methodPayload
		if err := json.Unmarshal(payload, &req); err != nil {
			return command.Outcome{}, fmt.Errorf("decode order payload: %w", err)
		}
		before, err := s.snapshotJSON(ctx, req.ID)
		if err != nil {
			return command.Outcome{}, err
		}
		var order Order
		if name == CommandSetShippingMethod {
			order, err = s.SetShippingMethod(ctx, actor.TenantID, req.ID, req.MethodID)
		} else {
			order, err = s.SetPaymentMethod(ctx, actor.TenantID, req.ID, req.MethodID)
		}
		if err != nil {
			return command.Outcome{}, err
		}
		after, err := s.snapshotJSON(ctx, order.ID)
		if err != nil {
			return command.Outcome{}, err
		}
		return command.Outcome{ResourceID: order.ID.String(), Before: before, After: after, Result: order}, nil
	}
}

func (s *Service) mutateStatus(ctx context.Context, _ command.Actor, payload json.RawMessage) (command.Outcome, error) {
	var req statusPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return command.Outcome{}, fmt.Errorf("decode order payload: %w", err)
	}
	before, err := s.snapshotJSON(ctx, req.ID)
	if err != nil {
		return command.Outcome{}, err
	}
	order, err := s.SetStatus(ctx, req.ID, req.Status)
	if err != nil {
		return command.Outcome{}, err
	}
	after, err := s.snapshotJSON(ctx, order.ID)
	if err != nil {
		return command.Outcome{}, err
	}
	return command.Outcome{ResourceID: order.ID.String(), Before: before, After: after, Result: order}, nil
}

func (s *Service) restore(ctx context.Context, actor command.Actor, resourceID string, state json.RawMessage) error {
	id, err := uuid.Parse(resourceID)
	if err != nil {
		return fmt.Errorf("parse order id: %w", err)
	}
	return s.RestoreState(ctx, actor.TenantID, id, state)
}

func (s *Service) snapshotJSON(ctx context.Context, id uuid.UUID) (json.RawMessage, error) {
	state, err := s.Snapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	return json.Marshal(state)
}
