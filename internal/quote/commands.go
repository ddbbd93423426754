package quote

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/noah-isme/backoffice/internal/command"
)

// Command names exposed through the executor.
const (
	CommandCreate  = "quote.create"
	CommandUpdate  = "quote.update"
	CommandDelete  = "quote.delete"
	CommandConvert = "quote.convert"
)

const resourceType = "quote"

type updatePayload struct {
	ID      uuid.UUID `json:"id"`
	Content Content   `json:"content"`
}

type idPayload struct {
	ID uuid.UUID `json:"id"`
}

// Commands returns the quote command definitions for registry assembly.
func (s *Service) Commands() []command.Definition {
	return []command.Definition{
		{
			Name:         CommandCreate,
			ResourceType: resourceType,
			Mutate:       s.mutateCreate,
			Restore:      s.restore,
		},
		{
			Name:         CommandUpdate,
			ResourceType: resourceType,
			Mutate:       s.mutateUpdate,
			Restore:      s.restore,
		},
		{
			Name:         CommandDelete,
			ResourceType: resourceType,
			Mutate:       s.mutateDelete,
			Restore:      s.restore,
		},
		{
			// Conversion creates an order; rolling that back is a business
			// decision, not an undo.
			Name:         CommandConvert,
			ResourceType: resourceType,
			Mutate:       s.mutateConvert,
		},
	}
}

func (s *Service) mutateCreate(ctx context.Context, actor command.Actor, payload json.RawMessage) (command.Outcome, error) {
	var content Content
	if err := json.Unmarshal(payload, &content); err != nil {
		return command.Outcome{}, fmt.Errorf("decode quote payload: %w", err)
	}
	quote, err := s.Create(ctx, actor.TenantID, content)
	if err != nil {
		return command.Outcome{}, err
	}
	after, err := s.snapshotJSON(ctx, quote.ID)
	if err != nil {
		return command.Outcome{}, err
	}
	return command.Outcome{
		ResourceID: quote.ID.String(),
		After:      after,
		Result:     quote,
	}, nil
}

func (s *Service) mutateUpdate(ctx context.Context, actor command.Actor, payload json.RawMessage) (command.Outcome, error) {
	var req updatePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return command.Outcome{}, fmt.Errorf("decode quote payload: %w", err)
	}
	before, err := s.snapshotJSON(ctx, req.ID)
	if err != nil {
		return command.Outcome{}, err
	}
	quote, err := s.Update(ctx, actor.TenantID, req.ID, req.Content)
	if err != nil {
		return command.Outcome{}, err
	}
	after, err := s.snapshotJSON(ctx, quote.ID)
	if err != nil {
		return command.Outcome{}, err
	}
	return command.Outcome{
		ResourceID: quote.ID.String(),
		Before:     before,
		After:      after,
		Result:     quote,
	}, nil
}

func (s *Service) mutateDelete(ctx context.Context, _ command.Actor, payload json.RawMessage) (command.Outcome, error) {
	var req idPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return command.Outcome{}, fmt.Errorf("decode quote payload: %w", err)
	}
	before, err := s.snapshotJSON(ctx, req.ID)
	if err != nil {
		return command.Outcome{}, err
	}
	if err := s.Delete(ctx, req.ID); err != nil {
		return command.Outcome{}, err
	}
	return command.Outcome{
		ResourceID: req.ID.String(),
		Before:     before,
		Result:     map[string]any{"deleted": true},
	}, nil
}

func (s *Service) mutateConvert(ctx context.Context, actor command.Actor, payload json.RawMessage) (command.Outcome, error) {
	var req idPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return command.Outcome{}, fmt.Errorf("decode quote payload: %w", err)
	}
	before, err := s.snapshotJSON(ctx, req.ID)
	if err != nil {
		return command.Outcome{}, err
	}
	order, err := s.ConvertToOrder(ctx, actor.TenantID, req.ID)
	if err != nil {
		return command.Outcome{}, err
	}
	after, err := s.snapshotJSON(ctx, req.ID)
	if err != nil {
		return command.Outcome{}, err
	}
	return command.Outcome{
		ResourceID: req.ID.String(),
		Before:     before,
		After:      after,
		Result:     map[string]any{"orderId": order.ID},
	}, nil
}

func (s *Service) restore(ctx context.Context, actor command.Actor, resourceID string, state json.RawMessage) error {
	id, err := uuid.Parse(resourceID)
	if err != nil {
		return fmt.Errorf("parse quote id: %w", err)
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
