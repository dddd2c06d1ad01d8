package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/orgstack-io/orgstack/modules/platform/domain/aggregates/orgunit"
	"github.com/orgstack-io/orgstack/pkg/composables"
)

const orgUnitColumns = `id, tenant_id, org_type, name, parent_id, display_order, created_at, updated_at`

type OrgRepository struct{}

func NewOrgRepository() *OrgRepository {
	return &OrgRepository{}
}

func (r *OrgRepository) GetByID(ctx context.Context, id uuid.UUID) (orgunit.OrgUnit, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return orgunit.OrgUnit{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return orgunit.OrgUnit{}, err
	}

	row := tx.QueryRow(ctx, `
SELECT `+orgUnitColumns+`
FROM org_units
WHERE tenant_id = $1 AND id = $2
`, tenantID, id)
	unit, err := scanOrgUnit(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return orgunit.OrgUnit{}, orgunit.ErrNotFound
	}
	return unit, err
}

func (r *OrgRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]orgunit.OrgUnit, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
SELECT `+orgUnitColumns+`
FROM org_units
WHERE tenant_id = $1 AND id = ANY($2)
ORDER BY display_order ASC, name ASC, id ASC
`, tenantID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]orgunit.OrgUnit, 0, len(ids))
	for rows.Next() {
		unit, err := scanOrgUnit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, unit)
	}
	return out, rows.Err()
}

func (r *OrgRepository) ListChildDepartmentIDs(ctx context.Context, parentID uuid.UUID) ([]uuid.UUID, error) {
	return r.listIDs(ctx, `
SELECT id
FROM org_units
WHERE tenant_id = $1 AND parent_id = $2 AND org_type = 'department'
`, parentID)
}

func (r *OrgRepository) ListPersonIDsByDepartment(ctx context.Context, departmentID uuid.UUID) ([]uuid.UUID, error) {
	return r.listIDs(ctx, `
SELECT id
FROM org_units
WHERE tenant_id = $1 AND parent_id = $2 AND org_type = 'person'
`, departmentID)
}

func (r *OrgRepository) ListPersonIDsByGroup(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	return r.listIDs(ctx, `
SELECT person_id
FROM org_group_members
WHERE tenant_id = $1 AND group_id = $2
`, groupID)
}

func (r *OrgRepository) ListPersonIDsByPosition(ctx context.Context, positionID uuid.UUID) ([]uuid.UUID, error) {
	return r.listIDs(ctx, `
SELECT person_id
FROM org_position_members
WHERE tenant_id = $1 AND position_id = $2
`, positionID)
}

func (r *OrgRepository) ListPositionIDsByPerson(ctx context.Context, personID uuid.UUID) ([]uuid.UUID, error) {
	return r.listIDs(ctx, `
SELECT position_id
FROM org_position_members
WHERE tenant_id = $1 AND person_id = $2
`, personID)
}

func (r *OrgRepository) ListGroupIDsByPerson(ctx context.Context, personID uuid.UUID) ([]uuid.UUID, error) {
	return r.listIDs(ctx, `
SELECT group_id
FROM org_group_members
WHERE tenant_id = $1 AND person_id = $2
`, personID)
}

func (r *OrgRepository) listIDs(ctx context.Context, query string, arg uuid.UUID) ([]uuid.UUID, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query, tenantID, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]uuid.UUID, 0, 16)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func scanOrgUnit(row pgx.Row) (orgunit.OrgUnit, error) {
	var (
		id           uuid.UUID
		tenantID     uuid.UUID
		orgType      string
		name         string
		parent       pgtype.UUID
		displayOrder int
		createdAt    pgtype.Timestamptz
		updatedAt    pgtype.Timestamptz
	)
	if err := row.Scan(&id, &tenantID, &orgType, &name, &parent, &displayOrder, &createdAt, &updatedAt); err != nil {
		return orgunit.OrgUnit{}, err
	}

	var parentID *uuid.UUID
	if parent.Valid {
		pid := uuid.UUID(parent.Bytes)
		parentID = &pid
	}
	return orgunit.Hydrate(
		id,
		tenantID,
		orgunit.Type(orgType),
		name,
		parentID,
		displayOrder,
		createdAt.Time,
		updatedAt.Time,
	), nil
}
