package role

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("role not found")

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Role, error)
	FindByCustomIDAndParentID(ctx context.Context, customID string, parentID uuid.UUID) (Role, error)
	ListByParentID(ctx context.Context, parentID uuid.UUID) ([]Role, error)
	ListByParentIDAndName(ctx context.Context, parentID uuid.UUID, name string) ([]Role, error)
	// ListBySelector returns role nodes of the given type matching the
	// selector; Properties is matched only when non-empty.
	ListBySelector(ctx context.Context, sel Selector, typ Type) ([]Role, error)

	ListMembershipsByRole(ctx context.Context, roleID uuid.UUID) ([]Membership, error)
	AddMembership(ctx context.Context, m Membership) error
	RemoveMembership(ctx context.Context, roleID, orgUnitID uuid.UUID) error

	// CountPositiveByRoleAndOrgUnitIDs counts positive membership rows for
	// the role over any of the given org unit ids. Negative rows are
	// deliberately not consulted (ancestor grants are not revocable by
	// descendant-level exclusions).
	CountPositiveByRoleAndOrgUnitIDs(ctx context.Context, roleID uuid.UUID, orgUnitIDs []uuid.UUID) (int64, error)
	// ListRolesWithPositiveMembership returns roles holding a positive row
	// on any of the given org unit ids, deduplicated, in tree order.
	ListRolesWithPositiveMembership(ctx context.Context, orgUnitIDs []uuid.UUID) ([]Role, error)
}
