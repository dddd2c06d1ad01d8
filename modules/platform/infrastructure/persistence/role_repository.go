package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/orgstack-io/orgstack/modules/platform/domain/aggregates/orgunit"
	"github.com/orgstack-io/orgstack/modules/platform/domain/aggregates/role"
	"github.com/orgstack-io/orgstack/pkg/composables"
)

const roleColumns = `id, name, parent_id, custom_id, system_name, properties, role_type, tab_index, created_at, updated_at`

// RoleRepository reads the per-system role tree and the tenant-scoped
// membership edges. Role nodes themselves are shared across tenants.
type RoleRepository struct{}

func NewRoleRepository() *RoleRepository {
	return &RoleRepository{}
}

func (r *RoleRepository) GetByID(ctx context.Context, id uuid.UUID) (role.Role, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return role.Role{}, err
	}

	row := tx.QueryRow(ctx, `
SELECT `+roleColumns+`
FROM role_nodes
WHERE id = $1
`, id)
	node, err := scanRole(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return role.Role{}, role.ErrNotFound
	}
	return node, err
}

func (r *RoleRepository) FindByCustomIDAndParentID(ctx context.Context, customID string, parentID uuid.UUID) (role.Role, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return role.Role{}, err
	}

	row := tx.QueryRow(ctx, `
SELECT `+roleColumns+`
FROM role_nodes
WHERE custom_id = $1 AND parent_id = $2
`, customID, parentID)
	node, err := scanRole(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return role.Role{}, role.ErrNotFound
	}
	return node, err
}

func (r *RoleRepository) ListByParentID(ctx context.Context, parentID uuid.UUID) ([]role.Role, error) {
	return r.listRoles(ctx, `
SELECT `+roleColumns+`
FROM role_nodes
WHERE parent_id = $1
ORDER BY tab_index ASC, name ASC
`, parentID)
}

func (r *RoleRepository) ListByParentIDAndName(ctx context.Context, parentID uuid.UUID, name string) ([]role.Role, error) {
	return r.listRoles(ctx, `
SELECT `+roleColumns+`
FROM role_nodes
WHERE parent_id = $1 AND name = $2
ORDER BY tab_index ASC
`, parentID, name)
}

func (r *RoleRepository) ListBySelector(ctx context.Context, sel role.Selector, typ role.Type) ([]role.Role, error) {
	return r.listRoles(ctx, `
SELECT `+roleColumns+`
FROM role_nodes
WHERE name = $1
  AND system_name = $2
  AND role_type = $3
  AND ($4 = '' OR properties = $4)
ORDER BY tab_index ASC, id ASC
`, sel.Name, sel.SystemName, string(typ), sel.Properties)
}

func (r *RoleRepository) ListMembershipsByRole(ctx context.Context, roleID uuid.UUID) ([]role.Membership, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
SELECT role_id, org_unit_id, org_type, negative
FROM role_memberships
WHERE tenant_id = $1 AND role_id = $2
`, tenantID, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]role.Membership, 0, 16)
	for rows.Next() {
		var m role.Membership
		var orgType string
		if err := rows.Scan(&m.RoleID, &m.OrgUnitID, &orgType, &m.Negative); err != nil {
			return nil, err
		}
		m.OrgType = orgunit.Type(orgType)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *RoleRepository) AddMembership(ctx context.Context, m role.Membership) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
INSERT INTO role_memberships (tenant_id, role_id, org_unit_id, org_type, negative)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (tenant_id, role_id, org_unit_id)
DO UPDATE SET org_type = EXCLUDED.org_type, negative = EXCLUDED.negative
`, tenantID, m.RoleID, m.OrgUnitID, string(m.OrgType), m.Negative)
	return err
}

func (r *RoleRepository) RemoveMembership(ctx context.Context, roleID, orgUnitID uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
DELETE FROM role_memberships
WHERE tenant_id = $1 AND role_id = $2 AND org_unit_id = $3
`, tenantID, roleID, orgUnitID)
	return err
}

func (r *RoleRepository) CountPositiveByRoleAndOrgUnitIDs(ctx context.Context, roleID uuid.UUID, orgUnitIDs []uuid.UUID) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	err = tx.QueryRow(ctx, `
SELECT COUNT(*)
FROM role_memberships
WHERE tenant_id = $1
  AND role_id = $2
  AND org_unit_id = ANY($3)
  AND negative = FALSE
`, tenantID, roleID, orgUnitIDs).Scan(&count)
	return count, err
}

func (r *RoleRepository) ListRolesWithPositiveMembership(ctx context.Context, orgUnitIDs []uuid.UUID) ([]role.Role, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
SELECT DISTINCT `+prefixedRoleColumns("r")+`
FROM role_nodes r
JOIN role_memberships m ON m.role_id = r.id
WHERE m.tenant_id = $1
  AND m.org_unit_id = ANY($2)
  AND m.negative = FALSE
ORDER BY r.tab_index ASC, r.name ASC, r.id ASC
`, tenantID, orgUnitIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRoles(rows)
}

func (r *RoleRepository) listRoles(ctx context.Context, query string, args ...any) ([]role.Role, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRoles(rows)
}

func collectRoles(rows pgx.Rows) ([]role.Role, error) {
	out := make([]role.Role, 0, 8)
	for rows.Next() {
		node, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, node)
	}
	return out, rows.Err()
}

func prefixedRoleColumns(alias string) string {
	return alias + `.id, ` + alias + `.name, ` + alias + `.parent_id, ` + alias + `.custom_id, ` +
		alias + `.system_name, ` + alias + `.properties, ` + alias + `.role_type, ` +
		alias + `.tab_index, ` + alias + `.created_at, ` + alias + `.updated_at`
}

func scanRole(row pgx.Row) (role.Role, error) {
	var (
		id         uuid.UUID
		name       string
		parent     pgtype.UUID
		customID   string
		systemName string
		properties string
		roleType   string
		tabIndex   int
		createdAt  pgtype.Timestamptz
		updatedAt  pgtype.Timestamptz
	)
	if err := row.Scan(&id, &name, &parent, &customID, &systemName, &properties, &roleType, &tabIndex, &createdAt, &updatedAt); err != nil {
		return role.Role{}, err
	}

	var parentID *uuid.UUID
	if parent.Valid {
		pid := uuid.UUID(parent.Bytes)
		parentID = &pid
	}
	return role.Hydrate(
		id,
		name,
		parentID,
		customID,
		systemName,
		properties,
		role.Type(roleType),
		tabIndex,
		createdAt.Time,
		updatedAt.Time,
	), nil
}
