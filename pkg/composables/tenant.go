package composables

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/orgstack-io/orgstack/pkg/constants"
)

var ErrNoTenantID = errors.New("no tenant id found in context")

// WithTenantID returns a new context carrying the active tenant identity.
// The tenant travels with the context for the duration of a unit of work
// (a request, a background task) and never leaks across units.
func WithTenantID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, constants.TenantIDKey, id)
}

// UseTenantID returns the active tenant identity.
// "Unset" is a valid state that callers must handle via ErrNoTenantID.
func UseTenantID(ctx context.Context) (uuid.UUID, error) {
	id, ok := TryUseTenantID(ctx)
	if !ok {
		return uuid.Nil, ErrNoTenantID
	}
	return id, nil
}

// TryUseTenantID returns the active tenant identity without erroring.
func TryUseTenantID(ctx context.Context) (uuid.UUID, bool) {
	v := ctx.Value(constants.TenantIDKey)
	if v == nil {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}
