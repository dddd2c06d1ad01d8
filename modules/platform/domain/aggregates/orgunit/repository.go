package orgunit

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("org unit not found")

// Repository reads organizational data for the active tenant. All methods
// require a tenant in context; read paths treat missing ids as "contributes
// nothing" rather than as errors, except GetByID which returns ErrNotFound.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (OrgUnit, error)
	// ListByIDs returns units for the given ids in stable natural order
	// (display order, name, id). Unknown ids are skipped.
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]OrgUnit, error)

	ListChildDepartmentIDs(ctx context.Context, parentID uuid.UUID) ([]uuid.UUID, error)
	ListPersonIDsByDepartment(ctx context.Context, departmentID uuid.UUID) ([]uuid.UUID, error)
	ListPersonIDsByGroup(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error)
	ListPersonIDsByPosition(ctx context.Context, positionID uuid.UUID) ([]uuid.UUID, error)

	ListPositionIDsByPerson(ctx context.Context, personID uuid.UUID) ([]uuid.UUID, error)
	ListGroupIDsByPerson(ctx context.Context, personID uuid.UUID) ([]uuid.UUID, error)
}
