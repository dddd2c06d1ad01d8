package authorization

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("authorization grant not found")

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Grant, error)
	FindByKey(ctx context.Context, principalID, resourceID uuid.UUID, authority Authority) (Grant, error)
	Create(ctx context.Context, g Grant) (Grant, error)
	Update(ctx context.Context, g Grant) (Grant, error)
	Delete(ctx context.Context, id uuid.UUID) error

	ListByPrincipalID(ctx context.Context, principalID uuid.UUID) ([]Grant, error)
	ListByResourceID(ctx context.Context, resourceID uuid.UUID) ([]Grant, error)
	// ExistsForPrincipals reports whether any grant exists on the resource
	// and authority for one of the given principal ids.
	ExistsForPrincipals(ctx context.Context, resourceID uuid.UUID, authority Authority, principalIDs []uuid.UUID) (bool, error)
}
