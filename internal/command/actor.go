package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/noah-isme/backoffice/internal/common"
	"github.com/noah-isme/backoffice/internal/tenant"
)

var (
	// ErrNoTenant is returned when the context carries no usable tenant.
	ErrNoTenant = errors.New("command: tenant missing from context")
	// ErrNoActor is returned when the context carries no authenticated actor.
	ErrNoActor = errors.New("command: actor missing from context")
)

// ActorFromContext derives the acting identity from the request context.
func ActorFromContext(ctx context.Context) (Actor, error) {
	tenantID, ok := tenant.From(ctx)
	if !ok {
		return Actor{}, ErrNoTenant
	}
	parsed, err := uuid.Parse(tenantID)
	if err != nil {
		return Actor{}, fmt.Errorf("%w: %v", ErrNoTenant, err)
	}
	actorID, ok := common.ActorID(ctx)
	if !ok || actorID == "" {
		return Actor{}, ErrNoActor
	}
	return Actor{TenantID: parsed, ID: actorID}, nil
}
